package fragments

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/vantage/internal/common"
	"github.com/ternarybob/vantage/internal/models"
)

// newsLookbackDays is how far back articles are pulled from the baseline.
const newsLookbackDays = 7

// BuildNews produces the news fragment: keyword list, merged FMP and
// Finnhub articles deduplicated by URL and title, and the LLM sentiment
// pass. The article limit arrives from the caller because the usage monitor
// may shrink it.
func (s *Service) BuildNews(ctx context.Context, ticker string, baseline time.Time, articleLimit int) *models.NewsFragment {
	cfg := s.config.Analysis
	key := cacheKey("news", ticker, common.DayKey(baseline))

	var cached models.NewsFragment
	if hit, empty := s.cachedJSON(ctx, key, s.hours(cfg.NewsCacheTTLHours), &cached); hit {
		if empty {
			// The sentinel records article absence only; rebuild the keyword
			// list so the fragment keeps its usual shape.
			return &models.NewsFragment{Keywords: fallbackKeywords(ticker)}
		}
		return &cached
	}

	keywords, err := s.llm.NewsKeywords(ctx, ticker)
	if err != nil {
		s.logger.Debug().Str("ticker", ticker).Err(err).Msg("Keyword extraction failed, using fallback list")
		keywords = fallbackKeywords(ticker)
	}

	from := baseline.AddDate(0, 0, -newsLookbackDays)
	articles := s.fetchArticles(ctx, ticker, from, baseline)
	articles = dedupeArticles(articles)
	articles = filterBySymbol(articles, ticker)

	sort.SliceStable(articles, func(i, j int) bool {
		if articles[i].Weight != articles[j].Weight {
			return articles[i].Weight > articles[j].Weight
		}
		return articles[i].PublishedAt > articles[j].PublishedAt
	})

	if articleLimit <= 0 {
		articleLimit = cfg.NewsArticleLimit
	}
	if len(articles) > articleLimit {
		articles = articles[:articleLimit]
	}

	fragment := &models.NewsFragment{
		Keywords: keywords,
		Articles: articles,
	}

	if len(articles) == 0 {
		if err := s.blobs.PutEmpty(ctx, key); err != nil {
			s.logger.Warn().Str("key", key).Err(err).Msg("Failed to cache news absence")
		}
		return fragment
	}

	sentiment, err := s.llm.NewsSentiment(ctx, ticker, articles)
	if err != nil {
		s.logger.Debug().Str("ticker", ticker).Err(err).Msg("News sentiment pass failed")
		fragment.Error = err.Error()
	} else {
		fragment.Sentiment = sentiment
	}

	s.writeCache(ctx, key, fragment)
	return fragment
}

// fallbackKeywords is the deterministic list used when no LLM provider is
// configured.
func fallbackKeywords(ticker string) []string {
	return []string{
		ticker,
		ticker + " earnings",
		ticker + " outlook",
		"guidance",
		"margin",
	}
}

// fetchArticles pulls both news sources in parallel; a failed source just
// contributes nothing.
func (s *Service) fetchArticles(ctx context.Context, ticker string, from, to time.Time) []models.NewsArticle {
	type sourceResult struct {
		articles []models.NewsArticle
	}

	fetch := func(name string, provider interface {
		News(ctx context.Context, symbol string, from, to time.Time, limit int) ([]models.NewsArticle, error)
	}, out chan<- sourceResult) {
		var articles []models.NewsArticle
		err := s.retry.Do(ctx, name, func(ctx context.Context) error {
			var err error
			articles, err = provider.News(ctx, ticker, from, to, 50)
			return err
		})
		if err != nil {
			s.logger.Debug().Str("ticker", ticker).Str("source", name).Err(err).Msg("News source failed")
		}
		out <- sourceResult{articles: articles}
	}

	results := make(chan sourceResult, 2)
	go fetch("fmp_news", s.providers.FMPNews, results)
	go fetch("finnhub_news", s.providers.FinnNews, results)

	var merged []models.NewsArticle
	for i := 0; i < 2; i++ {
		r := <-results
		merged = append(merged, r.articles...)
	}
	return merged
}

// dedupeArticles collapses duplicates by URL and normalized title, keeping
// the highest-weight copy.
func dedupeArticles(articles []models.NewsArticle) []models.NewsArticle {
	best := make(map[string]models.NewsArticle, len(articles))
	order := make([]string, 0, len(articles))

	keyOf := func(a models.NewsArticle) string {
		if a.URL != "" {
			return "u:" + a.URL
		}
		return "t:" + strings.ToLower(strings.TrimSpace(a.Title))
	}

	// Titles dedupe across sources even when URLs differ.
	titleSeen := make(map[string]string, len(articles))

	for _, a := range articles {
		key := keyOf(a)
		title := strings.ToLower(strings.TrimSpace(a.Title))
		if prior, ok := titleSeen[title]; ok {
			key = prior
		} else {
			titleSeen[title] = key
		}

		if existing, ok := best[key]; !ok {
			best[key] = a
			order = append(order, key)
		} else if a.Weight > existing.Weight {
			best[key] = a
		}
	}

	out := make([]models.NewsArticle, 0, len(best))
	for _, key := range order {
		out = append(out, best[key])
	}
	return out
}

// filterBySymbol keeps articles whose symbol set mentions the target.
// Articles with no symbol metadata pass through.
func filterBySymbol(articles []models.NewsArticle, ticker string) []models.NewsArticle {
	ticker = strings.ToUpper(ticker)
	out := articles[:0]
	for _, a := range articles {
		if a.Symbols == "" {
			out = append(out, a)
			continue
		}
		for _, sym := range strings.Split(a.Symbols, ",") {
			if strings.ToUpper(strings.TrimSpace(sym)) == ticker {
				out = append(out, a)
				break
			}
		}
	}
	return out
}
