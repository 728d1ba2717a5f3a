// Package orchestrator drives one analysis request end to end: cached
// bundle lookup, per-fragment staleness, concurrent fragment fan-out,
// payload assembly, the LLM call with guardrails, and persistence.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vantage/internal/common"
	"github.com/ternarybob/vantage/internal/fragments"
	"github.com/ternarybob/vantage/internal/interfaces"
	"github.com/ternarybob/vantage/internal/models"
	"github.com/ternarybob/vantage/internal/services/deferred"
)

// Request modes. An empty mode means full.
const (
	ModeFull        = "full"
	ModeCachedOnly  = "cached-only"
	ModeMetricsOnly = "metrics-only"
	ModeDeferred    = "deferred"
)

// FragmentBuilder is the fragment fan-out surface; fragments.Service
// implements it.
type FragmentBuilder interface {
	BuildPriceMeta(ctx context.Context, ticker string, baseline time.Time) *models.PriceMeta
	BuildFilings(ctx context.Context, ticker string, baseline time.Time, maxFilings int) ([]models.FilingRef, []models.FilingSummary)
	BuildMomentum(ctx context.Context, ticker string, baseline time.Time) *models.MomentumMetrics
	BuildInstitutional(ctx context.Context, ticker string, baseline time.Time) *models.InstitutionalSnapshot
	BuildNews(ctx context.Context, ticker string, baseline time.Time, articleLimit int) *models.NewsFragment
	BuildEarningsCall(ctx context.Context, ticker string, baseline time.Time) *models.EarningsCallFragment
	BuildAnalystSignals(ctx context.Context, ticker string, baseline time.Time) *models.AnalystSignals
	BuildMacro(ctx context.Context, baseline time.Time) *models.MacroContext
}

var _ FragmentBuilder = (*fragments.Service)(nil)

// Orchestrator owns in-flight request state. Assembly is serialized per
// request key through a keyed mutex; everything below fans out.
type Orchestrator struct {
	config    *common.Config
	logger    arbor.ILogger
	results   interfaces.ResultStore
	fragments FragmentBuilder
	llm       interfaces.LLMService
	monitor   interfaces.UsageMonitor
	queue     *deferred.Queue

	keys keyedMutex
	now  func() time.Time
}

// New creates the orchestrator. The deferred queue may be nil, in which
// case deferred mode degrades to metrics-only.
func New(config *common.Config, logger arbor.ILogger, results interfaces.ResultStore, builder FragmentBuilder, llm interfaces.LLMService, monitor interfaces.UsageMonitor, queue *deferred.Queue) *Orchestrator {
	return &Orchestrator{
		config:    config,
		logger:    logger,
		results:   results,
		fragments: builder,
		llm:       llm,
		monitor:   monitor,
		queue:     queue,
		now:       time.Now,
	}
}

// Analyze runs one request through the mode machine and returns the final
// bundle. Validation failures surface as *interfaces.ValidationError; a
// cached-only miss surfaces interfaces.ErrCacheMiss.
func (o *Orchestrator) Analyze(ctx context.Context, input models.AnalysisInput) (*models.AnalysisBundle, error) {
	ticker, err := common.NormalizeSymbol(input.Ticker)
	if err != nil {
		return nil, interfaces.NewValidationError(err.Error())
	}

	dateValue := input.Date
	if dateValue == "" {
		dateValue = common.DayKey(o.now())
	}
	baseline, err := common.ParseBaselineDate(dateValue, o.now())
	if err != nil {
		return nil, interfaces.NewValidationError(err.Error())
	}

	mode := input.Mode
	if mode == "" {
		mode = ModeFull
	}
	switch mode {
	case ModeFull, ModeCachedOnly, ModeMetricsOnly, ModeDeferred:
	default:
		return nil, interfaces.NewValidationError(fmt.Sprintf("unknown mode %q", input.Mode))
	}

	model := input.Model
	if model == "" {
		model = o.defaultModel()
	}

	date := common.DayKey(baseline)
	isHistorical := common.IsHistorical(baseline, o.now())
	analysisTTL := o.analysisTTL(isHistorical)

	// cached-only never calls the model; treating it as LLM-bearing just
	// steers the lookup toward the richer stored variant.
	llmRuns := (mode == ModeFull || mode == ModeCachedOnly) && o.llm.Enabled()
	variant := variantFor(model, llmRuns)

	requestKey := strings.Join([]string{ticker, date, variant, mode}, "|")
	unlock := o.keys.lock(requestKey)
	defer unlock()

	logger := o.logger
	logger.Info().
		Str("ticker", ticker).
		Str("date", date).
		Str("mode", mode).
		Str("variant", variant).
		Bool("historical", isHistorical).
		Msg("Analysis request started")

	stored, storedAt := o.loadStored(ctx, ticker, date, model, variant, llmRuns)
	age := time.Duration(0)
	if stored != nil {
		age = o.now().Sub(storedAt)
	}

	if mode == ModeCachedOnly {
		if stored != nil && age <= analysisTTL {
			return stored, nil
		}
		return nil, interfaces.ErrCacheMiss
	}

	// A fresh exact-variant bundle short-circuits the fan-out entirely;
	// identical requests inside the TTL window are idempotent.
	if stored != nil && age <= analysisTTL && (!llmRuns || stored.Analysis != nil) {
		logger.Debug().Str("ticker", ticker).Str("variant", variant).Msg("Serving fresh stored bundle")
		return stored, nil
	}

	if mode == ModeFull && !o.llm.Enabled() {
		return nil, interfaces.ErrLLMDisabled
	}

	bundle := o.assemble(ctx, ticker, date, baseline, isHistorical, model, mode, stored, age)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch mode {
	case ModeMetricsOnly, ModeDeferred:
		// Reuse any stored analysis; never call the LLM synchronously.
		if stored != nil {
			bundle.Analysis = stored.Analysis
			bundle.LLMUsage = stored.LLMUsage
			bundle.AnalysisModel = stored.AnalysisModel
		}
		if err := o.persist(ctx, ticker, date, variant, bundle); err != nil {
			return nil, err
		}
		if mode == ModeDeferred {
			o.enqueueCompletion(ticker, date, model)
		}
		return bundle, nil
	}

	analysis, usage, err := o.llm.Analyze(ctx, bundle.Inputs, interfaces.AnalyzeOptions{Model: model})
	if err != nil {
		return nil, fmt.Errorf("analysis model failed: %w", err)
	}

	currentPrice := 0.0
	if meta := bundle.PriceMetaOrNil(); meta != nil {
		currentPrice = meta.Value
	}
	ApplyGuardrails(o.config.Analysis, currentPrice, bundle.Guardrails, analysis)

	bundle.Analysis = analysis
	bundle.LLMUsage = usage
	bundle.AnalysisModel = model

	if err := o.persist(ctx, ticker, date, variant, bundle); err != nil {
		return nil, err
	}

	logger.Info().
		Str("ticker", ticker).
		Str("date", date).
		Str("rating", string(analysis.Action.Rating)).
		Float64("target_price", analysis.Action.TargetPrice).
		Msg("Analysis request completed")

	return bundle, nil
}

// assemble fans out the fragment builders, reusing stored fragments that
// are still fresh against their per-fragment TTLs.
func (o *Orchestrator) assemble(ctx context.Context, ticker, date string, baseline time.Time, isHistorical bool, model, mode string, stored *models.AnalysisBundle, age time.Duration) *models.AnalysisBundle {
	cfg := o.config.Analysis
	fresh := func(ttl time.Duration) bool {
		return stored != nil && age <= ttl
	}

	maxFilings, newsLimit := cfg.MaxFilingsForLLM, cfg.NewsArticleLimit
	if o.monitor != nil {
		maxFilings, newsLimit = o.monitor.AdaptiveLimits(maxFilings, newsLimit)
	}

	bundle := &models.AnalysisBundle{
		Input:       &models.AnalysisInput{Ticker: ticker, Date: date, Model: model, Mode: mode},
		Fetched:     &models.FetchedData{FinnhubSummary: &models.FinnhubSummary{}},
		GeneratedAt: o.now(),
	}

	var wg sync.WaitGroup
	run := func(task func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			task()
		}()
	}

	run(func() {
		if isHistorical && fresh(o.analysisTTL(true)) && stored.PriceMetaOrNil() != nil {
			bundle.Fetched.FinnhubSummary.PriceMeta = stored.PriceMetaOrNil()
			return
		}
		meta := o.fragments.BuildPriceMeta(ctx, ticker, baseline)
		if meta == nil {
			bundle.Fetched.FinnhubSummary.Error = "no price source available"
			return
		}
		bundle.Fetched.FinnhubSummary.PriceMeta = meta
	})

	run(func() {
		if fresh(o.analysisTTL(isHistorical)) && stored.Fetched != nil && len(stored.PerFilingSummaries) > 0 {
			bundle.Fetched.Filings = stored.Fetched.Filings
			bundle.PerFilingSummaries = stored.PerFilingSummaries
			return
		}
		refs, summaries := o.fragments.BuildFilings(ctx, ticker, baseline, maxFilings)
		bundle.Fetched.Filings = refs
		bundle.PerFilingSummaries = summaries
	})

	run(func() {
		if fresh(time.Duration(cfg.MomentumCacheTTLHours)*time.Hour) && stored.Momentum != nil {
			bundle.Momentum = stored.Momentum
			return
		}
		bundle.Momentum = o.fragments.BuildMomentum(ctx, ticker, baseline)
	})

	run(func() {
		if fresh(time.Duration(cfg.ThirteenFTTLDays)*24*time.Hour) && stored.Institutional != nil {
			bundle.Institutional = stored.Institutional
			return
		}
		bundle.Institutional = o.fragments.BuildInstitutional(ctx, ticker, baseline)
	})

	run(func() {
		if fresh(time.Duration(cfg.NewsCacheTTLHours)*time.Hour) && stored.News != nil {
			bundle.News = stored.News
			return
		}
		bundle.News = o.fragments.BuildNews(ctx, ticker, baseline, newsLimit)
	})

	run(func() {
		if fresh(time.Duration(cfg.EarningsCallTTLDays)*24*time.Hour) && stored.EarningsCall != nil {
			bundle.EarningsCall = stored.EarningsCall
			return
		}
		bundle.EarningsCall = o.fragments.BuildEarningsCall(ctx, ticker, baseline)
	})

	run(func() {
		if fresh(time.Duration(cfg.AnalystAggregateTTLHours)*time.Hour) && stored.AnalystSignals != nil {
			bundle.AnalystSignals = stored.AnalystSignals
			return
		}
		bundle.AnalystSignals = o.fragments.BuildAnalystSignals(ctx, ticker, baseline)
	})

	run(func() {
		if fresh(time.Duration(cfg.NewsCacheTTLHours)*time.Hour) && stored.Macro != nil {
			bundle.Macro = stored.Macro
			return
		}
		bundle.Macro = o.fragments.BuildMacro(ctx, baseline)
	})

	wg.Wait()

	currentPrice := 0.0
	if meta := bundle.PriceMetaOrNil(); meta != nil {
		currentPrice = meta.Value
	}
	bundle.AnalystMetrics = fragments.DeriveAnalystMetrics(bundle.AnalystSignals, currentPrice)
	bundle.Guardrails = DeriveGuardrails(cfg, bundle.Momentum, bundle.Institutional)
	bundle.Inputs = buildInputs(cfg, bundle)

	return bundle
}

// loadStored fetches the exact-variant record; when it is absent and the
// LLM will run, the metrics variant is consulted so its fragments can be
// reused and the record rewritten under the richer variant.
func (o *Orchestrator) loadStored(ctx context.Context, ticker, date, model, variant string, llmRuns bool) (*models.AnalysisBundle, time.Time) {
	record, err := o.results.GetBundle(ctx, ticker, date, variant)
	if err == nil && record.Bundle != nil {
		return record.Bundle, record.UpdatedAt
	}

	if llmRuns {
		metricsVariant := variantFor(model, false)
		record, err = o.results.GetBundle(ctx, ticker, date, metricsVariant)
		if err == nil && record.Bundle != nil {
			o.logger.Debug().
				Str("ticker", ticker).
				Str("from", metricsVariant).
				Str("to", variant).
				Msg("Reusing metrics-variant bundle for LLM run")
			return record.Bundle, record.UpdatedAt
		}
	}

	return nil, time.Time{}
}

func (o *Orchestrator) persist(ctx context.Context, ticker, date, variant string, bundle *models.AnalysisBundle) error {
	err := o.results.PutBundle(ctx, &interfaces.AnalysisRecord{
		Ticker:       ticker,
		Date:         date,
		ModelVariant: variant,
		Bundle:       bundle,
	})
	if err != nil {
		return fmt.Errorf("failed to persist analysis bundle: %w", err)
	}
	return nil
}

// enqueueCompletion schedules the background full rerun for deferred mode.
func (o *Orchestrator) enqueueCompletion(ticker, date, model string) {
	if o.queue == nil {
		o.logger.Warn().Str("ticker", ticker).Msg("Deferred mode without queue, skipping background completion")
		return
	}
	o.queue.Enqueue("deferred_analysis_"+ticker+"_"+date, func(ctx context.Context) error {
		_, err := o.Analyze(ctx, models.AnalysisInput{
			Ticker: ticker,
			Date:   date,
			Model:  model,
			Mode:   ModeFull,
		})
		return err
	})
}

// Variants resolves the model variants a reset must clear.
func (o *Orchestrator) Variants(model string) []string {
	if model == "" {
		model = o.defaultModel()
	}
	return []string{model, variantFor(model, true), variantFor(model, false)}
}

func (o *Orchestrator) defaultModel() string {
	if o.config.LLM.DefaultProvider == common.LLMProviderGemini {
		return o.config.Gemini.Model
	}
	return o.config.Claude.Model
}

func (o *Orchestrator) analysisTTL(isHistorical bool) time.Duration {
	if isHistorical {
		return time.Duration(o.config.Analysis.HistoricalResultTTLDays) * 24 * time.Hour
	}
	return time.Duration(o.config.Analysis.RealtimeResultTTLHours) * time.Hour
}

// variantFor suffixes the model with whether the LLM step ran.
func variantFor(model string, llmRuns bool) string {
	if llmRuns {
		return model + "__full"
	}
	return model + "__metrics"
}

// keyedMutex serializes work per request key.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyedLock)
	}
	entry, ok := k.locks[key]
	if !ok {
		entry = &keyedLock{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
