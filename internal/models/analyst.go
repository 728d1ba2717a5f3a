package models

// PriceTargetSummary aggregates published analyst targets over rolling
// windows. Confidence is high when the most recent window with at least the
// configured publisher count carries a non-null average.
type PriceTargetSummary struct {
	LastMonthCount   int        `json:"last_month_count"`
	LastMonthAvg     float64    `json:"last_month_avg,omitempty"`
	LastQuarterCount int        `json:"last_quarter_count"`
	LastQuarterAvg   float64    `json:"last_quarter_avg,omitempty"`
	LastYearCount    int        `json:"last_year_count"`
	LastYearAvg      float64    `json:"last_year_avg,omitempty"`
	AllTimeCount     int        `json:"all_time_count,omitempty"`
	AllTimeAvg       float64    `json:"all_time_avg,omitempty"`
	Consensus        float64    `json:"consensus,omitempty"` // best available windowed average
	Confidence       Confidence `json:"confidence"`
	Window           string     `json:"window,omitempty"` // which window supplied the consensus
}

// EstimatePeriod is one consensus estimate row (quarterly or annual).
type EstimatePeriod struct {
	Date       string  `json:"date"`
	RevenueAvg float64 `json:"revenue_avg,omitempty"`
	RevenueLow float64 `json:"revenue_low,omitempty"`
	RevenueHi  float64 `json:"revenue_high,omitempty"`
	EPSAvg     float64 `json:"eps_avg,omitempty"`
	EPSLow     float64 `json:"eps_low,omitempty"`
	EPSHi      float64 `json:"eps_high,omitempty"`
	Analysts   int     `json:"analysts,omitempty"`
}

// Estimates groups quarterly and annual consensus rows.
type Estimates struct {
	Quarterly []EstimatePeriod `json:"quarterly,omitempty"`
	Annual    []EstimatePeriod `json:"annual,omitempty"`
}

// RatingEntry is one dated composite analyst rating.
type RatingEntry struct {
	Date    string  `json:"date"`
	Rating  string  `json:"rating,omitempty"` // vendor letter grade, e.g. "A-"
	Score   float64 `json:"score"`            // numeric composite, higher is better
	Details string  `json:"details,omitempty"`
}

// Ratings carries the current snapshot plus a trend derived from history:
// the anchor is the first entry at least TrendWindowDays older than the
// latest, and Trend is the sign of (latest - anchor).
type Ratings struct {
	Snapshot        *RatingEntry  `json:"snapshot,omitempty"`
	Historical      []RatingEntry `json:"historical,omitempty"`
	Trend           string        `json:"trend,omitempty"` // "improving" | "stable" | "deteriorating"
	TrendDelta      float64       `json:"trend_delta,omitempty"`
	TrendWindowDays int           `json:"trend_window_days,omitempty"`
}

// GradeAction is one analyst upgrade/downgrade/initiation record.
type GradeAction struct {
	Date          string `json:"date"`
	Firm          string `json:"firm"`
	Action        string `json:"action"` // upgrade | downgrade | maintain | initiate
	PreviousGrade string `json:"previous_grade,omitempty"`
	NewGrade      string `json:"new_grade,omitempty"`
}

// GradeConsensus is the vendor's aggregate buy/hold/sell distribution.
type GradeConsensus struct {
	StrongBuy  int    `json:"strong_buy"`
	Buy        int    `json:"buy"`
	Hold       int    `json:"hold"`
	Sell       int    `json:"sell"`
	StrongSell int    `json:"strong_sell"`
	Consensus  string `json:"consensus,omitempty"`
}

// Grades groups recent actions with the historical distribution.
type Grades struct {
	RecentActions    []GradeAction    `json:"recent_actions,omitempty"`
	HistoricalCounts []GradeConsensus `json:"historical_counts,omitempty"`
	Consensus        *GradeConsensus  `json:"consensus,omitempty"`
}

// AnalystSignals is the aggregate analyst fragment. Estimates and Grades are
// the extended sub-fragments, fetched only when the baseline date is within
// the extended window of today.
type AnalystSignals struct {
	PriceTargetSummary *PriceTargetSummary `json:"price_target_summary,omitempty"`
	Estimates          *Estimates          `json:"estimates,omitempty"`
	Ratings            *Ratings            `json:"ratings,omitempty"`
	Grades             *Grades             `json:"grades,omitempty"`
	Error              string              `json:"error,omitempty"`
}

// AnalystMetrics are the derived numbers the compact payload carries instead
// of the full signals fragment.
type AnalystMetrics struct {
	TargetConsensus   float64    `json:"target_consensus,omitempty"`
	TargetConfidence  Confidence `json:"target_confidence,omitempty"`
	TargetUpside      float64    `json:"target_upside,omitempty"` // consensus / current - 1
	RatingScore       float64    `json:"rating_score,omitempty"`
	RatingTrend       string     `json:"rating_trend,omitempty"`
	GradeNetRevisions int        `json:"grade_net_revisions,omitempty"` // upgrades - downgrades in recent actions
}
