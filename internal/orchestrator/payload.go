package orchestrator

import (
	"math"
	"regexp"
	"strings"

	"github.com/ternarybob/vantage/internal/common"
	"github.com/ternarybob/vantage/internal/models"
)

// Compaction limits for the LLM payload. Long-form fields keep more room.
const (
	maxPayloadString = 300
	maxLongString    = 900
)

// longFieldPattern marks the fields allowed the longer truncation limit.
var longFieldPattern = regexp.MustCompile(`summary|explanation|mda`)

// buildInputs assembles the compact numeric payload the analysis model
// receives. Only normalized, truncated values go in; raw vendor records
// never reach the prompt.
func buildInputs(cfg common.AnalysisConfig, bundle *models.AnalysisBundle) map[string]any {
	inputs := map[string]any{
		"ticker": bundle.Input.Ticker,
		"date":   bundle.Input.Date,
	}

	currentPrice := 0.0
	if meta := bundle.PriceMetaOrNil(); meta != nil {
		currentPrice = meta.Value
		inputs["price"] = compactMap(map[string]any{
			"value":      meta.Value,
			"as_of":      meta.AsOf,
			"source":     meta.Source,
			"kind":       string(meta.Kind),
			"year_high":  meta.YearHigh,
			"year_low":   meta.YearLow,
			"market_cap": meta.MarketCap,
		})
	}

	if m := bundle.Momentum; m != nil && m.Error == "" {
		inputs["momentum"] = compactMap(map[string]any{
			"score":        m.Score,
			"trend":        string(m.Trend),
			"trend_label":  m.TrendLabel,
			"return_3m":    m.Returns.M3,
			"return_6m":    m.Returns.M6,
			"return_12m":   m.Returns.M12,
			"rsi_14":       m.RSI14,
			"atr_14":       m.ATR14,
			"volume_ratio": m.VolumeRatio,
			"sma_50":       m.MovingAverages.SMA50,
			"sma_200":      m.MovingAverages.SMA200,
		})
	}

	if am := bundle.AnalystMetrics; am != nil {
		inputs["analyst_metrics"] = compactMap(map[string]any{
			"target_consensus":    am.TargetConsensus,
			"target_confidence":   string(am.TargetConfidence),
			"target_upside":       am.TargetUpside,
			"rating_score":        am.RatingScore,
			"rating_trend":        am.RatingTrend,
			"grade_net_revisions": am.GradeNetRevisions,
		})
	}

	if inst := bundle.Institutional; inst != nil && inst.Error == "" {
		institutional := map[string]any{
			"signal":     string(inst.Signal.Signal),
			"label":      inst.Signal.Label,
			"net_shares": inst.Signal.NetShares,
			"summary":    inst.Summary,
		}
		if inst.InsiderActivity != nil {
			institutional["insider_net_shares"] = inst.InsiderActivity.NetShares
			institutional["insider_label"] = inst.InsiderActivity.Label
		}
		if inst.AnalystActions != nil {
			institutional["upgrades_30d"] = inst.AnalystActions.Upgrades30d
			institutional["downgrades_30d"] = inst.AnalystActions.Downgrades30d
		}
		inputs["institutional"] = compactMap(institutional)
	}

	if news := bundle.News; news != nil && news.Sentiment != nil {
		inputs["news"] = compactMap(map[string]any{
			"sentiment":       string(news.Sentiment.Sentiment),
			"sentiment_label": news.Sentiment.SentimentLabel,
			"summary":         news.Sentiment.Summary,
			"article_count":   len(news.Articles),
		})
	}

	if len(bundle.PerFilingSummaries) > 0 {
		filings := make([]any, 0, len(bundle.PerFilingSummaries))
		for _, f := range bundle.PerFilingSummaries {
			if f.Error != "" {
				continue
			}
			filings = append(filings, compactMap(map[string]any{
				"form":        f.Form,
				"filing_date": f.FilingDate,
				"mda_summary": f.MDASummary,
			}))
		}
		if len(filings) > 0 {
			inputs["filings"] = filings
		}
	}

	if call := bundle.EarningsCall; call != nil && call.Error == "" && call.Summary != nil {
		inputs["earnings_call"] = compactMap(map[string]any{
			"quarter": call.Quarter,
			"year":    call.Year,
			"summary": call.Summary.Summary,
		})
	}

	if macro := bundle.Macro; macro != nil {
		inputs["macro"] = compactMap(map[string]any{
			"yield_10y":           macro.Yield10Y,
			"yield_2y":            macro.Yield2Y,
			"spread":              macro.Spread,
			"market_risk_premium": macro.MarketRiskPremium,
		})
	}

	if currentPrice > 0 {
		valuation := map[string]any{"current_price": currentPrice}
		if am := bundle.AnalystMetrics; am != nil && am.TargetConsensus > 0 {
			valuation["target_consensus"] = am.TargetConsensus
			valuation["upside"] = am.TargetUpside
		}
		inputs["valuation"] = compactMap(valuation)
	}

	inputs["signal_hints"] = compactMap(buildSignalHints(cfg, bundle))

	if g := bundle.Guardrails; g != nil {
		inputs["guardrails"] = map[string]any{
			"severe_momentum":  g.SevereMomentum,
			"selling_pressure": g.SellingPressure,
		}
	}

	return compactMap(inputs)
}

// buildSignalHints condenses the fragment signals into the short label set
// the prompt leans on. The momentum score is graded against the configured
// strong/severe thresholds independently of the SMA-based trend rule.
func buildSignalHints(cfg common.AnalysisConfig, bundle *models.AnalysisBundle) map[string]any {
	hints := map[string]any{}
	if m := bundle.Momentum; m != nil && m.Error == "" {
		hints["momentum"] = m.TrendLabel
		switch {
		case m.Score >= cfg.MomentumStrongThreshold:
			hints["momentum_strength"] = "strong"
		case m.Score <= cfg.MomentumSevereThreshold:
			hints["momentum_strength"] = "severe"
		}
	}
	if inst := bundle.Institutional; inst != nil && inst.Error == "" {
		hints["institutional"] = inst.Signal.Label
	}
	if news := bundle.News; news != nil && news.Sentiment != nil {
		hints["news"] = news.Sentiment.SentimentLabel
	}
	return hints
}

// compactMap applies the compaction rules to one level of payload: strings
// truncated, non-finite numbers nulled, empty members dropped. Nested maps
// and slices are walked recursively; a map whose members all compact away
// is dropped by the caller receiving nil.
func compactMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for key, value := range in {
		if compacted, keep := compactValue(key, value); keep {
			out[key] = compacted
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func compactValue(key string, value any) (any, bool) {
	switch v := value.(type) {
	case nil:
		return nil, false
	case string:
		if v == "" {
			return nil, false
		}
		return truncateField(key, v), true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, true // non-finite becomes an explicit null
		}
		return v, true
	case float32:
		return compactValue(key, float64(v))
	case map[string]any:
		nested := compactMap(v)
		if nested == nil {
			return nil, false
		}
		return nested, true
	case []any:
		if len(v) == 0 {
			return nil, false
		}
		kept := make([]any, 0, len(v))
		for _, item := range v {
			if compacted, keep := compactValue(key, item); keep {
				kept = append(kept, compacted)
			}
		}
		if len(kept) == 0 {
			return nil, false
		}
		return kept, true
	default:
		return v, true
	}
}

// truncateField enforces the string limits; long-form fields keep more.
func truncateField(key, value string) string {
	limit := maxPayloadString
	if longFieldPattern.MatchString(strings.ToLower(key)) {
		limit = maxLongString
	}
	if len(value) <= limit {
		return value
	}
	return value[:limit]
}
