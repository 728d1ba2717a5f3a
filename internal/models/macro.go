package models

// MacroEvent is one economic calendar entry inside the macro window.
type MacroEvent struct {
	Date     string  `json:"date"`
	Event    string  `json:"event"`
	Country  string  `json:"country,omitempty"`
	Impact   string  `json:"impact,omitempty"`
	Actual   float64 `json:"actual,omitempty"`
	Estimate float64 `json:"estimate,omitempty"`
	Previous float64 `json:"previous,omitempty"`
}

// MacroContext is the macro fragment: curve levels plus nearby events.
type MacroContext struct {
	Yield10Y          float64      `json:"yield_10y,omitempty"`
	Yield2Y           float64      `json:"yield_2y,omitempty"`
	Spread            float64      `json:"spread,omitempty"` // y10 - y2
	MarketRiskPremium float64      `json:"market_risk_premium,omitempty"`
	Events            []MacroEvent `json:"events,omitempty"`
	WindowStart       string       `json:"window_start"`
	WindowEnd         string       `json:"window_end"`
	Error             string       `json:"error,omitempty"`
}
