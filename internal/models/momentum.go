package models

// Returns holds trailing total returns at the 3/6/12 month horizons.
type Returns struct {
	M3  float64 `json:"m3"`
	M6  float64 `json:"m6"`
	M12 float64 `json:"m12"`
}

// MovingAverages holds the simple moving averages used by the trend rule.
type MovingAverages struct {
	SMA20  float64 `json:"sma20"`
	SMA50  float64 `json:"sma50"`
	SMA200 float64 `json:"sma200"`
}

// PriceVsMA reports where the close sits relative to each average.
type PriceVsMA struct {
	AboveSMA50  bool `json:"above_sma50"`
	AboveSMA200 bool `json:"above_sma200"`
}

// ETFProxy is the sector fund used to contextualize momentum.
type ETFProxy struct {
	Symbol   string  `json:"symbol"`
	Source   string  `json:"source"` // static_map | exposure_rank
	Return3M float64 `json:"return_3m"`
}

// MomentumMetrics is the technicals fragment. Score is the clamped sum of
// capped contributions around a base of 50; Trend applies the SMA/return
// rule with the localized label carried alongside.
type MomentumMetrics struct {
	Score          float64        `json:"score"` // [0,100]
	Trend          Trend          `json:"trend"`
	TrendLabel     string         `json:"trend_label"` // 強勢 | 中性 | 弱勢
	Returns        Returns        `json:"returns"`
	MovingAverages MovingAverages `json:"moving_averages"`
	RSI14          float64        `json:"rsi14"`
	ATR14          float64        `json:"atr14"`
	VolumeRatio    float64        `json:"volume_ratio"` // 5-day avg vs 30-day avg
	PriceVsMA      PriceVsMA      `json:"price_vs_ma"`
	ETF            *ETFProxy      `json:"etf,omitempty"`
	ReferenceDate  string         `json:"reference_date"`
	Close          float64        `json:"close,omitempty"`
	Error          string         `json:"error,omitempty"`
}
