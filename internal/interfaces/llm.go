package interfaces

import (
	"context"

	"github.com/ternarybob/vantage/internal/models"
)

// AnalyzeOptions tunes a single analysis completion.
type AnalyzeOptions struct {
	Model     string // overrides the configured default when non-empty
	MaxTokens int    // completion token ceiling; 0 uses the configured default
}

// LLMService is the analysis-model boundary. Implementations cache parsed
// outputs by payload hash, collapse concurrent identical requests, and retry
// against a fallback model before surfacing ErrInvalidOutput.
type LLMService interface {
	// Enabled reports whether any provider API key is configured. Callers
	// degrade to metrics-only behavior when false.
	Enabled() bool

	// Analyze synthesizes a recommendation from the compact payload.
	Analyze(ctx context.Context, payload map[string]any, opts AnalyzeOptions) (*models.Analysis, *models.LLMUsage, error)

	// SummarizeMDA condenses a filing's MD&A text. Kind is "llm" on success
	// or "fallback" when no provider is available, in which case the caller
	// attaches an excerpt instead.
	SummarizeMDA(ctx context.Context, ticker, form, text string) (summary string, kind string, err error)

	// SummarizeTranscript condenses an earnings call transcript.
	SummarizeTranscript(ctx context.Context, ticker, transcript string) (*models.EarningsCallSummary, error)

	// NewsKeywords proposes search keywords for a ticker. Falls back to a
	// deterministic list when no provider is available.
	NewsKeywords(ctx context.Context, ticker string) ([]string, error)

	// NewsSentiment classifies a set of articles.
	NewsSentiment(ctx context.Context, ticker string, articles []models.NewsArticle) (*models.NewsSentiment, error)
}

// UsageMonitor accumulates LLM spend over a sliding window and feeds back
// into payload sizing.
type UsageMonitor interface {
	Record(usage *models.LLMUsage)

	// AdaptiveLimits returns possibly-shrunk payload limits given the
	// window's cost rate.
	AdaptiveLimits(maxFilings, newsLimit int) (int, int)

	// WindowCost returns the summed cost of usage inside the window.
	WindowCost() float64
}
