package models

// EarningsCallSummary is the LLM condensation of one call transcript.
type EarningsCallSummary struct {
	Summary string   `json:"summary"`
	Bullets []string `json:"bullets,omitempty"`
}

// EarningsCallFragment is the earnings call portion of the bundle. Missing
// reports Status "missing" so the quarter fallback loop caches the absence.
type EarningsCallFragment struct {
	Quarter int                  `json:"quarter,omitempty"`
	Year    int                  `json:"year,omitempty"`
	Date    string               `json:"date,omitempty"`
	Status  string               `json:"status,omitempty"` // "" | "missing"
	Summary *EarningsCallSummary `json:"summary,omitempty"`
	Error   string               `json:"error,omitempty"`
}
