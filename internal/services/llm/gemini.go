package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"google.golang.org/genai"

	"github.com/ternarybob/vantage/internal/common"
)

// geminiProvider runs completions against the Gemini API. It serves the
// summarizer entry points and the strict-JSON repair pass; deterministic
// seeding and response schemas are supported natively.
type geminiProvider struct {
	client  *genai.Client
	logger  arbor.ILogger
	timeout time.Duration
}

func newGeminiProvider(ctx context.Context, cfg *common.GeminiConfig, logger arbor.ILogger) (*geminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Google API key is required (set via GEMINI_API_KEY or gemini.api_key in config)")
	}

	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid gemini timeout duration '%s': %w", cfg.Timeout, err)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	logger.Debug().
		Str("model", cfg.Model).
		Dur("timeout", timeout).
		Msg("Gemini provider initialized")

	return &geminiProvider{
		client:  client,
		logger:  logger,
		timeout: timeout,
	}, nil
}

func (p *geminiProvider) Complete(ctx context.Context, req completionRequest) (*completionResult, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(req.Temperature),
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{genai.NewPartFromText(req.System)},
		}
	}
	if req.SeedSet {
		config.Seed = genai.Ptr(req.Seed)
	}
	if req.ForceJSON {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = req.JSONSchema
	}

	start := time.Now()
	resp, err := p.client.Models.GenerateContent(timeoutCtx, req.Model, genai.Text(req.User), config)
	if err != nil {
		return nil, fmt.Errorf("Gemini API call failed: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return nil, fmt.Errorf("no response generated from Gemini API")
	}

	result := &completionResult{Text: text}
	if resp.UsageMetadata != nil {
		result.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		result.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}

	p.logger.Debug().
		Str("model", req.Model).
		Int("prompt_tokens", result.PromptTokens).
		Int("completion_tokens", result.CompletionTokens).
		Dur("duration", time.Since(start)).
		Msg("Gemini completion finished")

	return result, nil
}
