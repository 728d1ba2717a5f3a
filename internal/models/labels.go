// Package models defines the canonical shapes shared across adapters,
// fragment builders and the orchestrator. Vendor field names never appear
// here; adapters translate into these types.
package models

// Rating is the final recommendation emitted by the analysis model.
type Rating string

const (
	RatingBuy  Rating = "BUY"
	RatingHold Rating = "HOLD"
	RatingSell Rating = "SELL"
)

// Confidence qualifies a recommendation or a derived statistic.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Trend classifies price momentum. Downstream consumers read the localized
// label, so both the canonical tag and the Chinese label are carried.
type Trend string

const (
	TrendStrong  Trend = "strong"
	TrendNeutral Trend = "neutral"
	TrendWeak    Trend = "weak"
)

// Label returns the localized trend tag (強勢/中性/弱勢).
func (t Trend) Label() string {
	switch t {
	case TrendStrong:
		return "強勢"
	case TrendWeak:
		return "弱勢"
	default:
		return "中性"
	}
}

// InstitutionalSignal classifies quarter-over-quarter institutional flow.
type InstitutionalSignal string

const (
	SignalAccumulate InstitutionalSignal = "accumulate"
	SignalReduce     InstitutionalSignal = "reduce"
	SignalFlat       InstitutionalSignal = "flat"
)

// Label returns the localized flow tag (加碼/減碼/持平).
func (s InstitutionalSignal) Label() string {
	switch s {
	case SignalAccumulate:
		return "加碼"
	case SignalReduce:
		return "減碼"
	default:
		return "持平"
	}
}

// SignalForNetShares maps a net share delta onto the flow classification.
func SignalForNetShares(net float64) InstitutionalSignal {
	switch {
	case net > 0:
		return SignalAccumulate
	case net < 0:
		return SignalReduce
	default:
		return SignalFlat
	}
}

// Sentiment classifies aggregate news tone.
type Sentiment string

const (
	SentimentOptimistic  Sentiment = "optimistic"
	SentimentNeutral     Sentiment = "neutral"
	SentimentPessimistic Sentiment = "pessimistic"
)

// Label returns the localized sentiment tag (樂觀/中性/悲觀).
func (s Sentiment) Label() string {
	switch s {
	case SentimentOptimistic:
		return "樂觀"
	case SentimentPessimistic:
		return "悲觀"
	default:
		return "中性"
	}
}

// SentimentFromLabel maps either a canonical or a localized tag back onto
// the enum. Unrecognized input is treated as neutral.
func SentimentFromLabel(label string) Sentiment {
	switch label {
	case string(SentimentOptimistic), "樂觀", "正面", "positive":
		return SentimentOptimistic
	case string(SentimentPessimistic), "悲觀", "負面", "negative":
		return SentimentPessimistic
	default:
		return SentimentNeutral
	}
}
