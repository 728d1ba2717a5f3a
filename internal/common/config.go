package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string         `toml:"environment"` // "development" or "production"
	Server      ServerConfig   `toml:"server"`
	Storage     StorageConfig  `toml:"storage"`
	Logging     LoggingConfig  `toml:"logging"`
	Vendors     VendorsConfig  `toml:"vendors"`
	Gemini      GeminiConfig   `toml:"gemini"`
	Claude      ClaudeConfig   `toml:"claude"`
	LLM         LLMConfig      `toml:"llm"`
	Analysis    AnalysisConfig `toml:"analysis"`
	Retry       RetryConfig    `toml:"retry"`
	Batch       BatchConfig    `toml:"batch"`
	Prewarm     PrewarmConfig  `toml:"prewarm"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs (default: "15:04:05")
}

// VendorsConfig holds upstream market-data vendor credentials and limits.
type VendorsConfig struct {
	FMPAPIKey      string `toml:"fmp_api_key"`     // Financial Modeling Prep API key
	FinnhubAPIKey  string `toml:"finnhub_api_key"` // Finnhub API key
	RequestTimeout string `toml:"request_timeout"` // Per-call timeout as duration string (default: "20s")
	RateLimit      int    `toml:"rate_limit"`      // Requests per second per vendor (default: 8)
}

// GeminiConfig contains Google Gemini API configuration for summarization and JSON repair.
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`     // Google Gemini API key
	Model       string  `toml:"model"`       // Secondary model for summaries and repair (default: "gemini-3-flash-preview")
	Timeout     string  `toml:"timeout"`     // Operation timeout as duration string (default: "2m")
	Temperature float32 `toml:"temperature"` // Completion temperature (default: 0)
}

// ClaudeConfig contains Anthropic Claude API configuration for analysis.
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`     // Anthropic API key
	Model       string  `toml:"model"`       // Primary analysis model (default: "claude-sonnet-4-20250514")
	MaxTokens   int     `toml:"max_tokens"`  // Maximum completion tokens (default: 4096)
	Timeout     string  `toml:"timeout"`     // Operation timeout as duration string (default: "3m")
	Temperature float32 `toml:"temperature"` // Completion temperature (default: 0)
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	// LLMProviderGemini uses Google Gemini API
	LLMProviderGemini LLMProvider = "gemini"
	// LLMProviderClaude uses Anthropic Claude API
	LLMProviderClaude LLMProvider = "claude"
)

// LLMConfig contains unified configuration for the analysis pipeline.
type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider"` // "claude" or "gemini" (default: "claude")
	FallbackModel   string      `toml:"fallback_model"`   // Model retried once when the primary output is invalid
	PromptVersion   string      `toml:"prompt_version"`   // Versions the LLM cache key; bump to invalidate cached analyses
	JSONModels      []string    `toml:"json_models"`      // Models allowed to use structured JSON response format
	SeedModels      []string    `toml:"seed_models"`      // Models that honor a deterministic seed
	CostThreshold   float64     `toml:"cost_threshold"`   // Windowed cost (USD per window) above which payload limits shrink
	CostWindow      string      `toml:"cost_window"`      // Sliding usage window as duration string (default: "1h")
}

// AnalysisConfig carries the cache TTLs, payload limits and guardrail
// thresholds for the analysis pipeline. Defaults mirror the recognized
// environment options (REALTIME_RESULT_TTL_HOURS, ...).
type AnalysisConfig struct {
	RealtimeResultTTLHours     int     `toml:"realtime_result_ttl_hours"`      // default 12
	HistoricalResultTTLDays    int     `toml:"historical_result_ttl_days"`     // default 120
	FilingSummaryTTLDays       int     `toml:"filing_summary_ttl_days"`        // default 180
	NewsCacheTTLHours          int     `toml:"news_cache_ttl_hours"`           // default 6
	MomentumCacheTTLHours      int     `toml:"momentum_cache_ttl_hours"`       // default 6
	ThirteenFTTLDays           int     `toml:"thirteenf_ttl_days"`             // default 30
	EarningsCallTTLDays        int     `toml:"earnings_call_ttl_days"`         // default 30
	AnalystAggregateTTLHours   int     `toml:"analyst_aggregate_ttl_hours"`    // default 12
	AnalystPriceTargetTTLHours int     `toml:"analyst_price_target_ttl_hours"` // default 24
	AnalystEstimatesTTLHours   int     `toml:"analyst_estimates_ttl_hours"`    // default 72
	AnalystRatingsTTLHours     int     `toml:"analyst_ratings_ttl_hours"`      // default 24
	AnalystGradesTTLHours      int     `toml:"analyst_grades_ttl_hours"`       // default 72
	ExtendedWindowDays         int     `toml:"extended_window_days"`           // default 30
	MaxFilingsForLLM           int     `toml:"max_filings_for_llm"`            // default 2
	NewsArticleLimit           int     `toml:"news_article_limit"`             // default 4
	MacroEventLimit            int     `toml:"macro_event_limit"`              // default 8
	MomentumStrongThreshold    float64 `toml:"momentum_strong_threshold"`      // default 70
	MomentumSevereThreshold    float64 `toml:"momentum_severe_threshold"`      // default 20
	WeakSignalTargetCap        float64 `toml:"weak_signal_target_cap"`         // default 1.25
	WeakSignalTargetFloor      float64 `toml:"weak_signal_target_floor"`       // default 0.8
	LLMTargetMaxMultiplier     float64 `toml:"llm_target_max_multiplier"`      // default 1.8
	LLMTargetMinMultiplier     float64 `toml:"llm_target_min_multiplier"`      // default 0.6
	PriceTargetSampleThreshold int     `toml:"price_target_sample_threshold"`  // default 3
	InsiderLookbackDays        int     `toml:"insider_lookback_days"`          // default 90
	InsiderLookaheadDays       int     `toml:"insider_lookahead_days"`         // default 7
	HotQuoteTTLSeconds         int     `toml:"hot_quote_ttl_seconds"`          // default 45
	FilingPoolSize             int     `toml:"filing_pool_size"`               // default 3
}

// RetryConfig controls the upstream retry primitive.
type RetryConfig struct {
	Attempts int `toml:"attempts"` // default 3
	DelayMS  int `toml:"delay_ms"` // base backoff in milliseconds (default 1500)
}

// BatchConfig controls the batch executor.
type BatchConfig struct {
	Concurrency int `toml:"concurrency"` // default 3
}

// PrewarmConfig controls the periodic prewarmer.
type PrewarmConfig struct {
	Tickers       []string `toml:"tickers"`        // Symbols refreshed on the interval (empty disables prewarming)
	IntervalHours int      `toml:"interval_hours"` // default 6
	IncludeLLM    bool     `toml:"include_llm"`    // Run full mode instead of metrics-only
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability;
// only user-facing settings belong in vantage.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout", "file"},
			TimeFormat: "15:04:05",
		},
		Vendors: VendorsConfig{
			RequestTimeout: "20s",
			RateLimit:      8,
		},
		Gemini: GeminiConfig{
			Model:       "gemini-3-flash-preview",
			Timeout:     "2m",
			Temperature: 0,
		},
		Claude: ClaudeConfig{
			Model:       "claude-sonnet-4-20250514",
			MaxTokens:   4096,
			Timeout:     "3m",
			Temperature: 0,
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderClaude,
			FallbackModel:   "gemini-3-flash-preview",
			PromptVersion:   "v3",
			JSONModels:      []string{"gemini-3-flash-preview", "gemini-2.5-flash"},
			SeedModels:      []string{"gemini-3-flash-preview", "gemini-2.5-flash"},
			CostThreshold:   2.50,
			CostWindow:      "1h",
		},
		Analysis: AnalysisConfig{
			RealtimeResultTTLHours:     12,
			HistoricalResultTTLDays:    120,
			FilingSummaryTTLDays:       180,
			NewsCacheTTLHours:          6,
			MomentumCacheTTLHours:      6,
			ThirteenFTTLDays:           30,
			EarningsCallTTLDays:        30,
			AnalystAggregateTTLHours:   12,
			AnalystPriceTargetTTLHours: 24,
			AnalystEstimatesTTLHours:   72,
			AnalystRatingsTTLHours:     24,
			AnalystGradesTTLHours:      72,
			ExtendedWindowDays:         30,
			MaxFilingsForLLM:           2,
			NewsArticleLimit:           4,
			MacroEventLimit:            8,
			MomentumStrongThreshold:    70,
			MomentumSevereThreshold:    20,
			WeakSignalTargetCap:        1.25,
			WeakSignalTargetFloor:      0.8,
			LLMTargetMaxMultiplier:     1.8,
			LLMTargetMinMultiplier:     0.6,
			PriceTargetSampleThreshold: 3,
			InsiderLookbackDays:        90,
			InsiderLookaheadDays:       7,
			HotQuoteTTLSeconds:         45,
			FilingPoolSize:             3,
		},
		Retry: RetryConfig{
			Attempts: 3,
			DelayMS:  1500,
		},
		Batch: BatchConfig{
			Concurrency: 3,
		},
		Prewarm: PrewarmConfig{
			IntervalHours: 6,
		},
	}
}

// LoadFromFile loads configuration with priority: defaults -> file -> env.
// An empty path skips the file step and returns defaults plus env overrides.
func LoadFromFile(path string) (*Config, error) {
	config := NewDefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks configuration invariants that would otherwise surface as
// confusing runtime behavior.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Retry.Attempts < 1 {
		return fmt.Errorf("retry attempts must be at least 1, got %d", c.Retry.Attempts)
	}
	if c.Batch.Concurrency < 1 {
		return fmt.Errorf("batch concurrency must be at least 1, got %d", c.Batch.Concurrency)
	}
	if c.Analysis.WeakSignalTargetFloor >= c.Analysis.WeakSignalTargetCap {
		return fmt.Errorf("weak signal target floor %.2f must be below cap %.2f",
			c.Analysis.WeakSignalTargetFloor, c.Analysis.WeakSignalTargetCap)
	}
	if c.Analysis.LLMTargetMinMultiplier >= c.Analysis.LLMTargetMaxMultiplier {
		return fmt.Errorf("llm target min multiplier %.2f must be below max %.2f",
			c.Analysis.LLMTargetMinMultiplier, c.Analysis.LLMTargetMaxMultiplier)
	}
	return nil
}

// VendorTimeout returns the parsed per-call vendor timeout.
func (c *Config) VendorTimeout() time.Duration {
	d, err := time.ParseDuration(c.Vendors.RequestTimeout)
	if err != nil || d <= 0 {
		return 20 * time.Second
	}
	return d
}

// RetryDelay returns the parsed base retry delay.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Retry.DelayMS) * time.Millisecond
}

// CostWindowDuration returns the parsed usage monitor window.
func (c *Config) CostWindowDuration() time.Duration {
	d, err := time.ParseDuration(c.LLM.CostWindow)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}

// applyEnvOverrides maps recognized environment options onto the config.
// The names follow the upstream deployment surface so existing environments
// keep working unchanged.
func applyEnvOverrides(c *Config) {
	setStr := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	setInt := func(name string, dst *int) {
		if v := os.Getenv(name); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setFloat := func(name string, dst *float64) {
		if v := os.Getenv(name); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				*dst = f
			}
		}
	}

	setStr("FMP_API_KEY", &c.Vendors.FMPAPIKey)
	setStr("FINNHUB_API_KEY", &c.Vendors.FinnhubAPIKey)
	setStr("ANTHROPIC_API_KEY", &c.Claude.APIKey)
	setStr("GEMINI_API_KEY", &c.Gemini.APIKey)

	setInt("REALTIME_RESULT_TTL_HOURS", &c.Analysis.RealtimeResultTTLHours)
	setInt("HISTORICAL_RESULT_TTL_DAYS", &c.Analysis.HistoricalResultTTLDays)
	setInt("FILING_SUMMARY_TTL_DAYS", &c.Analysis.FilingSummaryTTLDays)
	setInt("NEWS_CACHE_TTL_HOURS", &c.Analysis.NewsCacheTTLHours)
	setInt("MOMENTUM_CACHE_TTL_HOURS", &c.Analysis.MomentumCacheTTLHours)
	setInt("THIRTEENF_TTL_DAYS", &c.Analysis.ThirteenFTTLDays)
	setInt("EARNINGS_CALL_TTL_DAYS", &c.Analysis.EarningsCallTTLDays)
	setInt("ANALYST_AGGREGATE_TTL_HOURS", &c.Analysis.AnalystAggregateTTLHours)
	setInt("ANALYST_PRICE_TARGET_TTL_HOURS", &c.Analysis.AnalystPriceTargetTTLHours)
	setInt("ANALYST_ESTIMATES_TTL_HOURS", &c.Analysis.AnalystEstimatesTTLHours)
	setInt("ANALYST_RATINGS_TTL_HOURS", &c.Analysis.AnalystRatingsTTLHours)
	setInt("ANALYST_GRADES_TTL_HOURS", &c.Analysis.AnalystGradesTTLHours)
	setInt("API_RETRY_ATTEMPTS", &c.Retry.Attempts)
	setInt("API_RETRY_DELAY_MS", &c.Retry.DelayMS)
	setInt("BATCH_CONCURRENCY", &c.Batch.Concurrency)
	setInt("MAX_FILINGS_FOR_LLM", &c.Analysis.MaxFilingsForLLM)
	setInt("NEWS_ARTICLE_LIMIT", &c.Analysis.NewsArticleLimit)
	setInt("PRICE_TARGET_SAMPLE_THRESHOLD", &c.Analysis.PriceTargetSampleThreshold)
	setInt("PREWARM_INTERVAL_HOURS", &c.Prewarm.IntervalHours)

	setFloat("MOMENTUM_STRONG_THRESHOLD", &c.Analysis.MomentumStrongThreshold)
	setFloat("MOMENTUM_SEVERE_THRESHOLD", &c.Analysis.MomentumSevereThreshold)
	setFloat("WEAK_SIGNAL_TARGET_CAP", &c.Analysis.WeakSignalTargetCap)
	setFloat("WEAK_SIGNAL_TARGET_FLOOR", &c.Analysis.WeakSignalTargetFloor)
	setFloat("LLM_TARGET_MAX_MULTIPLIER", &c.Analysis.LLMTargetMaxMultiplier)
	setFloat("LLM_TARGET_MIN_MULTIPLIER", &c.Analysis.LLMTargetMinMultiplier)

	if v := os.Getenv("PREWARM_TICKERS"); v != "" {
		var tickers []string
		for _, t := range strings.Split(v, ",") {
			t = strings.ToUpper(strings.TrimSpace(t))
			if t != "" {
				tickers = append(tickers, t)
			}
		}
		c.Prewarm.Tickers = tickers
	}
	if v := os.Getenv("PREWARM_INCLUDE_LLM"); v != "" {
		c.Prewarm.IncludeLLM = v == "1" || strings.EqualFold(v, "true")
	}
}
