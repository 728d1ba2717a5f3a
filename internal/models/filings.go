package models

// FilingRef identifies one regulatory filing to summarize.
type FilingRef struct {
	Form       string `json:"form"`        // 10-K, 10-Q, 8-K
	FilingDate string `json:"filing_date"` // YYYY-MM-DD
	ReportDate string `json:"report_date,omitempty"`
	URL        string `json:"url"`
	CIK        string `json:"cik,omitempty"`
	Accession  string `json:"accession,omitempty"`
}

// FilingSummary is the condensed MD&A narrative for one filing. Kind is
// "llm" when a model produced the summary and "fallback" when the raw text
// was truncated instead; only fallback summaries carry MDAExcerpt, and a
// fallback is upgraded to llm on a later request once a provider key is
// configured.
type FilingSummary struct {
	Form        string `json:"form"`
	FilingDate  string `json:"filing_date"`
	ReportDate  string `json:"report_date,omitempty"`
	MDASummary  string `json:"mda_summary"`
	SummaryKind string `json:"summary_kind"` // "llm" | "fallback"
	MDAExcerpt  string `json:"mda_excerpt,omitempty"`
	Error       string `json:"error,omitempty"`
}

const (
	SummaryKindLLM      = "llm"
	SummaryKindFallback = "fallback"
)
