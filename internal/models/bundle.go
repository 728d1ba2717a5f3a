package models

import "time"

// AnalysisInput echoes the request that produced a bundle.
type AnalysisInput struct {
	Ticker string `json:"ticker"`
	Date   string `json:"date"` // YYYY-MM-DD baseline
	Model  string `json:"model,omitempty"`
	Mode   string `json:"mode,omitempty"`
}

// FinnhubSummary groups the quote-derived context for the baseline date.
// The name survives from the original vendor wiring; the price chain now
// spans multiple sources but the bundle field is part of the output contract.
type FinnhubSummary struct {
	PriceMeta *PriceMeta `json:"price_meta,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// FetchedData carries the raw-ish inputs the analysis was built from.
type FetchedData struct {
	Filings        []FilingRef     `json:"filings,omitempty"`
	FinnhubSummary *FinnhubSummary `json:"finnhub_summary,omitempty"`
}

// Guardrails are the risk flags derived from momentum and institutional
// fragments before the LLM call. They gate the target-price clamp.
type Guardrails struct {
	SevereMomentum  bool `json:"severe_momentum"`
	SellingPressure bool `json:"selling_pressure"`
}

// Action is the recommendation block of an analysis.
type Action struct {
	Rating        Rating     `json:"rating"`
	TargetPrice   float64    `json:"target_price,omitempty"`
	Confidence    Confidence `json:"confidence,omitempty"`
	Rationale     string     `json:"rationale,omitempty"`
	GuardrailNote string     `json:"guardrail_note,omitempty"`
}

// Analysis is the parsed LLM output. Everything beyond Action is free-form
// prose the model produced against the prompt schema.
type Analysis struct {
	Action       *Action  `json:"action"`
	Segment      string   `json:"segment,omitempty"`
	QualityScore float64  `json:"quality_score,omitempty"`
	Thesis       string   `json:"thesis,omitempty"`
	Risks        []string `json:"risks,omitempty"`
	Catalysts    []string `json:"catalysts,omitempty"`
}

// LLMUsage meters one completion for the cost monitor.
type LLMUsage struct {
	Model            string    `json:"model"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	InputCost        float64   `json:"input_cost"`
	OutputCost       float64   `json:"output_cost"`
	TotalCost        float64   `json:"total_cost"`
	At               time.Time `json:"at,omitempty"`
}

// AnalysisBundle is the top-level cached result for one
// (ticker, baseline date, model variant). Persisted atomically.
type AnalysisBundle struct {
	Input              *AnalysisInput         `json:"input"`
	Fetched            *FetchedData           `json:"fetched,omitempty"`
	Analysis           *Analysis              `json:"analysis,omitempty"`
	LLMUsage           *LLMUsage              `json:"llm_usage,omitempty"`
	AnalysisModel      string                 `json:"analysis_model,omitempty"`
	News               *NewsFragment          `json:"news,omitempty"`
	Momentum           *MomentumMetrics       `json:"momentum,omitempty"`
	Institutional      *InstitutionalSnapshot `json:"institutional,omitempty"`
	EarningsCall       *EarningsCallFragment  `json:"earnings_call,omitempty"`
	AnalystSignals     *AnalystSignals        `json:"analyst_signals,omitempty"`
	PerFilingSummaries []FilingSummary        `json:"per_filing_summaries,omitempty"`
	AnalystMetrics     *AnalystMetrics        `json:"analyst_metrics,omitempty"`
	Macro              *MacroContext          `json:"macro,omitempty"`
	Guardrails         *Guardrails            `json:"guardrails,omitempty"`
	Inputs             map[string]any         `json:"inputs,omitempty"` // the compact LLM payload
	GeneratedAt        time.Time              `json:"generated_at"`
}

// PriceMetaOrNil returns the bundle's price meta when present.
func (b *AnalysisBundle) PriceMetaOrNil() *PriceMeta {
	if b == nil || b.Fetched == nil || b.Fetched.FinnhubSummary == nil {
		return nil
	}
	return b.Fetched.FinnhubSummary.PriceMeta
}
