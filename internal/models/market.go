package models

import "time"

// PriceKind distinguishes live quotes from end-of-day lookups.
type PriceKind string

const (
	PriceKindRealtime   PriceKind = "real-time"
	PriceKindHistorical PriceKind = "historical"
)

// PriceMeta describes where the baseline price came from. Kind is
// "historical" exactly when the baseline date precedes today.
type PriceMeta struct {
	Value     float64   `json:"value"`
	AsOf      string    `json:"as_of"`
	Source    string    `json:"source"` // e.g. fmp_live, fmp_historical, yahoo_chart, real-time_fallback
	Kind      PriceKind `json:"kind"`
	Extended  bool      `json:"extended,omitempty"` // baseline older than the requested trading day (weekend/holiday walk-back)
	YearHigh  float64   `json:"year_high,omitempty"`
	YearLow   float64   `json:"year_low,omitempty"`
	MA50      float64   `json:"ma50,omitempty"`
	MA200     float64   `json:"ma200,omitempty"`
	Intraday  *Intraday `json:"intraday,omitempty"`
	MarketCap float64   `json:"market_cap,omitempty"`
}

// Intraday carries the session range when the source provides it.
type Intraday struct {
	Open   float64 `json:"open,omitempty"`
	High   float64 `json:"high,omitempty"`
	Low    float64 `json:"low,omitempty"`
	Volume float64 `json:"volume,omitempty"`
}

// Quote is a canonical live quote.
type Quote struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change,omitempty"`
	ChangePercent float64   `json:"change_percent,omitempty"`
	Open          float64   `json:"open,omitempty"`
	High          float64   `json:"high,omitempty"`
	Low           float64   `json:"low,omitempty"`
	PrevClose     float64   `json:"prev_close,omitempty"`
	Volume        float64   `json:"volume,omitempty"`
	YearHigh      float64   `json:"year_high,omitempty"`
	YearLow       float64   `json:"year_low,omitempty"`
	MA50          float64   `json:"ma50,omitempty"`
	MA200         float64   `json:"ma200,omitempty"`
	MarketCap     float64   `json:"market_cap,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// DailyBar is one end-of-day OHLCV record.
type DailyBar struct {
	Date   string  `json:"date"` // YYYY-MM-DD
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}
