package fragments

import (
	"context"
	"time"

	"github.com/ternarybob/vantage/internal/common"
	"github.com/ternarybob/vantage/internal/hotquote"
	"github.com/ternarybob/vantage/internal/models"
)

// historicalLookbackDays is how many trading days the historical chain walks
// back when the exact baseline has no bar.
const historicalLookbackDays = 7

// BuildPriceMeta resolves the baseline price. Historical mode walks
// FMP bars backward up to seven trading days, then the Yahoo chart; when
// everything fails it degrades to a live quote tagged as a fallback.
// Real-time mode goes hot cache, FMP live, Yahoo live.
func (s *Service) BuildPriceMeta(ctx context.Context, ticker string, baseline time.Time) *models.PriceMeta {
	if common.IsHistorical(baseline, s.now()) {
		return s.historicalPriceMeta(ctx, ticker, baseline)
	}
	return s.realtimePriceMeta(ctx, ticker, baseline)
}

func (s *Service) historicalPriceMeta(ctx context.Context, ticker string, baseline time.Time) *models.PriceMeta {
	target := common.LastTradingDayOnOrBefore(baseline)
	extended := !target.Equal(common.DayStart(baseline))

	day := target
	for i := 0; i < historicalLookbackDays; i++ {
		var bar *models.DailyBar
		err := s.retry.Do(ctx, "fmp_eod_price", func(ctx context.Context) error {
			var err error
			bar, err = s.providers.Historical.EODPrice(ctx, ticker, day)
			return err
		})
		if err == nil && bar != nil {
			return &models.PriceMeta{
				Value:    bar.Close,
				AsOf:     bar.Date,
				Source:   "fmp_historical",
				Kind:     models.PriceKindHistorical,
				Extended: extended || i > 0,
				Intraday: &models.Intraday{Open: bar.Open, High: bar.High, Low: bar.Low, Volume: bar.Volume},
			}
		}
		day = common.PrevTradingDay(day)
	}

	var bar *models.DailyBar
	err := s.retry.Do(ctx, "yahoo_chart_close", func(ctx context.Context) error {
		var err error
		bar, err = s.providers.Chart.ChartClose(ctx, ticker, target)
		return err
	})
	if err == nil && bar != nil {
		return &models.PriceMeta{
			Value:    bar.Close,
			AsOf:     bar.Date,
			Source:   "yahoo_chart",
			Kind:     models.PriceKindHistorical,
			Extended: extended,
		}
	}

	s.logger.Warn().
		Str("ticker", ticker).
		Str("date", common.DayKey(baseline)).
		Msg("Historical price chain exhausted, degrading to live quote")

	meta := s.realtimePriceMeta(ctx, ticker, baseline)
	if meta != nil {
		meta.Source = "real-time_fallback"
		meta.Kind = models.PriceKindHistorical
	}
	return meta
}

func (s *Service) realtimePriceMeta(ctx context.Context, ticker string, baseline time.Time) *models.PriceMeta {
	day := common.DayKey(baseline)

	if q, ok := s.hotQuotes.Get(hotquote.Key(ticker, day)); ok {
		return quoteToPriceMeta(q, "hot_quote")
	}

	var quote *models.Quote
	err := s.retry.Do(ctx, "fmp_live_quote", func(ctx context.Context) error {
		var err error
		quote, err = s.providers.Quotes.Quote(ctx, ticker)
		return err
	})
	if err == nil && quote != nil {
		s.hotQuotes.Put(hotquote.Key(ticker, day), quote)
		return quoteToPriceMeta(quote, "fmp_live")
	}

	err = s.retry.Do(ctx, "yahoo_live_quote", func(ctx context.Context) error {
		var err error
		quote, err = s.providers.Chart.ChartQuote(ctx, ticker)
		return err
	})
	if err == nil && quote != nil {
		s.hotQuotes.Put(hotquote.Key(ticker, day), quote)
		return quoteToPriceMeta(quote, "yahoo_live")
	}

	s.logger.Warn().Str("ticker", ticker).Err(err).Msg("All price sources failed")
	return nil
}

func quoteToPriceMeta(q *models.Quote, source string) *models.PriceMeta {
	meta := &models.PriceMeta{
		Value:     q.Price,
		AsOf:      q.Timestamp.UTC().Format(time.RFC3339),
		Source:    source,
		Kind:      models.PriceKindRealtime,
		YearHigh:  q.YearHigh,
		YearLow:   q.YearLow,
		MA50:      q.MA50,
		MA200:     q.MA200,
		MarketCap: q.MarketCap,
	}
	if q.Open != 0 || q.High != 0 || q.Low != 0 || q.Volume != 0 {
		meta.Intraday = &models.Intraday{Open: q.Open, High: q.High, Low: q.Low, Volume: q.Volume}
	}
	return meta
}
