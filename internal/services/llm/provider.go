// Package llm implements the analysis-model boundary: provider clients for
// Anthropic and Gemini, the payload-hash output cache, the parse/repair
// chain, per-model usage pricing and the adaptive cost monitor.
package llm

import (
	"context"
	"strings"

	"google.golang.org/genai"

	"github.com/ternarybob/vantage/internal/models"
)

// completionRequest is the provider-neutral shape of one completion.
// Seed and JSONSchema are honored only by providers that support them.
type completionRequest struct {
	Model       string
	System      string
	User        string
	MaxTokens   int
	Temperature float32
	Seed        int32
	SeedSet     bool
	ForceJSON   bool
	JSONSchema  *genai.Schema
}

// completionResult carries the raw text plus token counts; pricing happens
// in the service layer.
type completionResult struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// completer is one upstream model provider.
type completer interface {
	Complete(ctx context.Context, req completionRequest) (*completionResult, error)
}

// isGeminiModel routes model names to the Gemini provider; everything else
// goes to Anthropic.
func isGeminiModel(model string) bool {
	return strings.HasPrefix(strings.ToLower(model), "gemini")
}

// tokensUsage converts raw token counts into an unpriced usage record.
func tokensUsage(model string, result *completionResult) *models.LLMUsage {
	return &models.LLMUsage{
		Model:            model,
		PromptTokens:     result.PromptTokens,
		CompletionTokens: result.CompletionTokens,
		TotalTokens:      result.PromptTokens + result.CompletionTokens,
	}
}
