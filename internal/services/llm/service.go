package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vantage/internal/common"
	"github.com/ternarybob/vantage/internal/interfaces"
	"github.com/ternarybob/vantage/internal/models"
)

// maxSummaryInputChars bounds the text handed to the summarizer models.
const maxSummaryInputChars = 30000

// Service implements interfaces.LLMService over the Anthropic and Gemini
// providers. Parsed analyses are cached by payload hash in the results
// store and mirrored into the blob cache; concurrent identical requests
// collapse onto one completion.
type Service struct {
	config  *common.Config
	logger  arbor.ILogger
	results interfaces.ResultStore
	blobs   interfaces.BlobCache
	monitor interfaces.UsageMonitor
	claude  *claudeProvider
	gemini  *geminiProvider

	mu       sync.Mutex
	inflight map[string]*analyzeCall

	now func() time.Time
}

type analyzeCall struct {
	done     chan struct{}
	analysis *models.Analysis
	usage    *models.LLMUsage
	err      error
}

// NewService builds the LLM service. Providers whose API key is absent are
// left nil; with no provider at all the service still constructs but
// reports Enabled() == false so callers degrade to metrics-only behavior.
func NewService(ctx context.Context, config *common.Config, results interfaces.ResultStore, blobs interfaces.BlobCache, monitor interfaces.UsageMonitor, logger arbor.ILogger) (*Service, error) {
	service := &Service{
		config:   config,
		logger:   logger,
		results:  results,
		blobs:    blobs,
		monitor:  monitor,
		inflight: make(map[string]*analyzeCall),
		now:      time.Now,
	}

	if config.Claude.APIKey != "" {
		claude, err := newClaudeProvider(&config.Claude, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Claude provider: %w", err)
		}
		service.claude = claude
	}
	if config.Gemini.APIKey != "" {
		gemini, err := newGeminiProvider(ctx, &config.Gemini, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Gemini provider: %w", err)
		}
		service.gemini = gemini
	}

	if service.claude == nil && service.gemini == nil {
		logger.Warn().Msg("No LLM provider configured, analysis runs in metrics-only mode")
	}

	return service, nil
}

// Enabled reports whether any provider is configured.
func (s *Service) Enabled() bool {
	return s.claude != nil || s.gemini != nil
}

// DefaultModel returns the model used when a request names none.
func (s *Service) DefaultModel() string {
	if s.config.LLM.DefaultProvider == common.LLMProviderGemini {
		return s.config.Gemini.Model
	}
	return s.config.Claude.Model
}

// Analyze synthesizes a recommendation from the compact payload. The
// SHA-256 of (payload, prompt version, model) keys both the output cache
// and the in-flight collapse map.
func (s *Service) Analyze(ctx context.Context, payload map[string]any, opts interfaces.AnalyzeOptions) (*models.Analysis, *models.LLMUsage, error) {
	if !s.Enabled() {
		return nil, nil, interfaces.ErrLLMDisabled
	}

	model := opts.Model
	if model == "" {
		model = s.DefaultModel()
	}

	hash, err := analysisHash(payload, s.config.LLM.PromptVersion, model)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash analysis payload: %w", err)
	}

	// Collapse concurrent identical requests onto one completion.
	s.mu.Lock()
	if call, ok := s.inflight[hash]; ok {
		s.mu.Unlock()
		select {
		case <-call.done:
			return call.analysis, call.usage, call.err
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	}
	call := &analyzeCall{done: make(chan struct{})}
	s.inflight[hash] = call
	s.mu.Unlock()

	call.analysis, call.usage, call.err = s.analyzeOnce(ctx, model, payload, hash, opts.MaxTokens)
	close(call.done)

	s.mu.Lock()
	delete(s.inflight, hash)
	s.mu.Unlock()

	return call.analysis, call.usage, call.err
}

func (s *Service) analyzeOnce(ctx context.Context, model string, payload map[string]any, hash string, maxTokens int) (*models.Analysis, *models.LLMUsage, error) {
	if record, err := s.results.GetLLMOutput(ctx, hash); err == nil && record.Output != nil {
		s.logger.Debug().Str("hash", hash[:12]).Str("model", model).Msg("LLM output cache hit")
		return record.Output, record.Usage, nil
	}
	if record := s.blobLLMOutput(ctx, hash); record != nil {
		s.logger.Debug().Str("hash", hash[:12]).Str("model", model).Msg("LLM output blob cache hit")
		return record.Output, record.Usage, nil
	}

	analysis, usage, err := s.runModel(ctx, model, payload, hash, maxTokens)

	// One retry against the fallback model when the primary output stays
	// invalid after repair.
	if invalidOutput(err) {
		fallback := s.config.LLM.FallbackModel
		if fallback != "" && !strings.EqualFold(fallback, model) {
			s.logger.Warn().
				Str("model", model).
				Str("fallback", fallback).
				Msg("Primary model output invalid, retrying with fallback model")
			analysis, usage, err = s.runModel(ctx, fallback, payload, hash, maxTokens)
		}
	}
	if err != nil {
		return nil, usage, err
	}

	record := &interfaces.LLMCacheRecord{
		Hash:   hash,
		Output: analysis,
		Usage:  usage,
	}
	if storeErr := s.results.PutLLMOutput(ctx, record); storeErr != nil {
		s.logger.Warn().Str("hash", hash[:12]).Err(storeErr).Msg("Failed to cache LLM output")
	}
	if s.blobs != nil {
		if storeErr := s.blobs.Put(ctx, llmOutputKey(hash), record); storeErr != nil {
			s.logger.Warn().Str("hash", hash[:12]).Err(storeErr).Msg("Failed to mirror LLM output to blob cache")
		}
	}

	return analysis, usage, nil
}

// blobLLMOutput consults the blob cache tier for a previously mirrored
// output. Any miss or decode failure just falls through to the model call.
func (s *Service) blobLLMOutput(ctx context.Context, hash string) *interfaces.LLMCacheRecord {
	if s.blobs == nil {
		return nil
	}
	envelope, err := s.blobs.Get(ctx, llmOutputKey(hash), 0)
	if err != nil || envelope.Empty {
		return nil
	}
	var record interfaces.LLMCacheRecord
	if err := json.Unmarshal(envelope.Payload, &record); err != nil || record.Output == nil {
		return nil
	}
	return &record
}

func llmOutputKey(hash string) string {
	return "llm_output_" + hash
}

// invalidOutput reports whether err is the invalid-output sentinel, however
// deeply the provider layer wrapped it.
func invalidOutput(err error) bool {
	return errors.Is(err, interfaces.ErrInvalidOutput)
}

// runModel performs one completion plus the parse/repair/validate chain.
func (s *Service) runModel(ctx context.Context, model string, payload map[string]any, hash string, maxTokens int) (*models.Analysis, *models.LLMUsage, error) {
	provider := s.providerFor(model)
	if provider == nil {
		return nil, nil, interfaces.ErrLLMDisabled
	}

	userJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal analysis payload: %w", err)
	}

	if maxTokens <= 0 {
		maxTokens = s.config.Claude.MaxTokens
	}

	req := completionRequest{
		Model:       model,
		System:      analysisSystemPrompt,
		User:        string(userJSON),
		MaxTokens:   maxTokens,
		Temperature: 0,
	}
	if s.modelInList(model, s.config.LLM.SeedModels) {
		req.Seed = seedFromHash(hash)
		req.SeedSet = true
	}
	if s.modelInList(model, s.config.LLM.JSONModels) {
		req.ForceJSON = true
		req.JSONSchema = analysisSchema
	}

	result, err := provider.Complete(ctx, req)
	if err != nil {
		return nil, nil, err
	}

	usage := priceUsage(tokensUsage(model, result), s.now())
	s.monitor.Record(usage)

	analysis, ok := decodeAnalysis(result.Text)
	if !ok {
		analysis, err = s.repair(ctx, result.Text)
		if err != nil {
			return nil, usage, err
		}
	}

	if err := validateAnalysis(analysis); err != nil {
		return nil, usage, err
	}
	return analysis, usage, nil
}

// repair delegates a malformed response to the secondary model with a
// strict JSON response schema.
func (s *Service) repair(ctx context.Context, broken string) (*models.Analysis, error) {
	if s.gemini == nil {
		return nil, interfaces.ErrInvalidOutput
	}

	s.logger.Debug().Int("length", len(broken)).Msg("Delegating JSON repair to secondary model")

	result, err := s.gemini.Complete(ctx, completionRequest{
		Model:       s.config.Gemini.Model,
		System:      repairSystemPrompt,
		User:        broken,
		MaxTokens:   s.config.Claude.MaxTokens,
		Temperature: 0,
		ForceJSON:   true,
		JSONSchema:  analysisSchema,
	})
	if err != nil {
		return nil, interfaces.ErrInvalidOutput
	}

	s.monitor.Record(priceUsage(tokensUsage(s.config.Gemini.Model, result), s.now()))

	analysis, ok := decodeAnalysis(result.Text)
	if !ok {
		return nil, interfaces.ErrInvalidOutput
	}
	return analysis, nil
}

// SummarizeMDA condenses a filing's MD&A narrative. With no provider the
// kind degrades to fallback and the caller attaches an excerpt instead.
func (s *Service) SummarizeMDA(ctx context.Context, ticker, form, text string) (string, string, error) {
	provider, model := s.summarizer()
	if provider == nil {
		return "", models.SummaryKindFallback, nil
	}

	result, err := provider.Complete(ctx, completionRequest{
		Model:       model,
		System:      mdaSummaryPrompt,
		User:        fmt.Sprintf("Ticker: %s\nForm: %s\n\n%s", ticker, form, truncate(text, maxSummaryInputChars)),
		MaxTokens:   1024,
		Temperature: 0,
	})
	if err != nil {
		return "", models.SummaryKindFallback, err
	}

	s.monitor.Record(priceUsage(tokensUsage(model, result), s.now()))
	return strings.TrimSpace(result.Text), models.SummaryKindLLM, nil
}

// SummarizeTranscript condenses an earnings call transcript into a summary
// plus bullets.
func (s *Service) SummarizeTranscript(ctx context.Context, ticker, transcript string) (*models.EarningsCallSummary, error) {
	provider, model := s.summarizer()
	if provider == nil {
		return nil, interfaces.ErrLLMDisabled
	}

	req := completionRequest{
		Model:       model,
		System:      transcriptSummaryPrompt,
		User:        fmt.Sprintf("Ticker: %s\n\n%s", ticker, truncate(transcript, maxSummaryInputChars)),
		MaxTokens:   1024,
		Temperature: 0,
	}
	if provider == s.gemini {
		req.ForceJSON = true
		req.JSONSchema = transcriptSchema
	}

	result, err := provider.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	s.monitor.Record(priceUsage(tokensUsage(model, result), s.now()))

	var summary models.EarningsCallSummary
	if err := decodeJSON(result.Text, &summary); err != nil {
		return nil, fmt.Errorf("transcript summary parse failed: %w", err)
	}
	return &summary, nil
}

// NewsKeywords proposes search keywords for a ticker.
func (s *Service) NewsKeywords(ctx context.Context, ticker string) ([]string, error) {
	provider, model := s.summarizer()
	if provider == nil {
		return nil, interfaces.ErrLLMDisabled
	}

	req := completionRequest{
		Model:       model,
		System:      fmt.Sprintf(newsKeywordsPrompt, ticker),
		User:        ticker,
		MaxTokens:   256,
		Temperature: 0,
	}
	if provider == s.gemini {
		req.ForceJSON = true
		req.JSONSchema = keywordsSchema
	}

	result, err := provider.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	s.monitor.Record(priceUsage(tokensUsage(model, result), s.now()))

	var parsed struct {
		Keywords []string `json:"keywords"`
	}
	if err := decodeJSON(result.Text, &parsed); err != nil {
		return nil, fmt.Errorf("keyword parse failed: %w", err)
	}
	if len(parsed.Keywords) == 0 {
		return nil, fmt.Errorf("keyword extraction returned no keywords")
	}
	return parsed.Keywords, nil
}

// NewsSentiment classifies a set of articles into the localized sentiment
// labels with a canonical enum alongside.
func (s *Service) NewsSentiment(ctx context.Context, ticker string, articles []models.NewsArticle) (*models.NewsSentiment, error) {
	provider, model := s.summarizer()
	if provider == nil {
		return nil, interfaces.ErrLLMDisabled
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Ticker: %s\n\n", ticker)
	for i, a := range articles {
		fmt.Fprintf(&sb, "%d. [%s] %s\n", i+1, a.Source, a.Title)
		if a.Summary != "" {
			fmt.Fprintf(&sb, "   %s\n", truncate(a.Summary, 300))
		}
	}

	req := completionRequest{
		Model:       model,
		System:      newsSentimentPrompt,
		User:        sb.String(),
		MaxTokens:   512,
		Temperature: 0,
	}
	if provider == s.gemini {
		req.ForceJSON = true
		req.JSONSchema = sentimentSchema
	}

	result, err := provider.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	s.monitor.Record(priceUsage(tokensUsage(model, result), s.now()))

	var parsed struct {
		SentimentLabel   string   `json:"sentiment_label"`
		Summary          string   `json:"summary"`
		SupportingEvents []string `json:"supporting_events"`
	}
	if err := decodeJSON(result.Text, &parsed); err != nil {
		return nil, fmt.Errorf("sentiment parse failed: %w", err)
	}

	sentiment := models.SentimentFromLabel(parsed.SentimentLabel)
	return &models.NewsSentiment{
		Sentiment:        sentiment,
		SentimentLabel:   sentiment.Label(),
		Summary:          parsed.Summary,
		SupportingEvents: parsed.SupportingEvents,
	}, nil
}

// summarizer picks the provider for the lightweight summary tasks: the
// secondary Gemini model when available, otherwise the primary.
func (s *Service) summarizer() (completer, string) {
	if s.gemini != nil {
		return s.gemini, s.config.Gemini.Model
	}
	if s.claude != nil {
		return s.claude, s.config.Claude.Model
	}
	return nil, ""
}

func (s *Service) providerFor(model string) completer {
	if isGeminiModel(model) {
		if s.gemini == nil {
			return nil
		}
		return s.gemini
	}
	if s.claude == nil {
		return nil
	}
	return s.claude
}

func (s *Service) modelInList(model string, list []string) bool {
	for _, entry := range list {
		if strings.EqualFold(entry, model) {
			return true
		}
	}
	return false
}

// analysisHash is the cache and dedupe key: SHA-256 over the canonical JSON
// of payload, prompt version and model.
func analysisHash(payload map[string]any, promptVersion, model string) (string, error) {
	doc, err := json.Marshal(struct {
		Payload       map[string]any `json:"payload"`
		PromptVersion string         `json:"prompt_version"`
		Model         string         `json:"model"`
	}{payload, promptVersion, model})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(doc)
	return hex.EncodeToString(sum[:]), nil
}

// seedFromHash derives the deterministic seed: the first 12 hash hex chars
// as an integer modulo 1e9.
func seedFromHash(hash string) int32 {
	if len(hash) < 12 {
		return 0
	}
	n, err := strconv.ParseInt(hash[:12], 16, 64)
	if err != nil {
		return 0
	}
	return int32(n % 1_000_000_000)
}

// decodeJSON runs the non-repair parse stages against a task response.
func decodeJSON(text string, out any) error {
	cleaned := cleanResponse(text)
	if err := json.Unmarshal([]byte(cleaned), out); err == nil {
		return nil
	}
	sub, ok := extractBraces(cleaned)
	if !ok {
		return fmt.Errorf("response contains no JSON object")
	}
	return json.Unmarshal([]byte(sub), out)
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit]
}
