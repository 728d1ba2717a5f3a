// Package app wires configuration, storage, vendor adapters, services and
// HTTP handlers into one runnable application.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vantage/internal/adapters/finnhub"
	"github.com/ternarybob/vantage/internal/adapters/fmp"
	"github.com/ternarybob/vantage/internal/adapters/secfilings"
	"github.com/ternarybob/vantage/internal/adapters/yahoo"
	"github.com/ternarybob/vantage/internal/batch"
	"github.com/ternarybob/vantage/internal/common"
	"github.com/ternarybob/vantage/internal/fragments"
	"github.com/ternarybob/vantage/internal/handlers"
	"github.com/ternarybob/vantage/internal/hotquote"
	"github.com/ternarybob/vantage/internal/interfaces"
	"github.com/ternarybob/vantage/internal/orchestrator"
	"github.com/ternarybob/vantage/internal/services/deferred"
	"github.com/ternarybob/vantage/internal/services/llm"
	"github.com/ternarybob/vantage/internal/services/prewarm"
	"github.com/ternarybob/vantage/internal/storage/badger"
)

// App holds all application components and dependencies.
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	ctx       context.Context
	cancelCtx context.CancelFunc

	StorageManager interfaces.StorageManager
	HotQuotes      *hotquote.Cache
	UsageMonitor   *llm.Monitor
	LLMService     *llm.Service
	Fragments      *fragments.Service
	DeferredQueue  *deferred.Queue
	Orchestrator   *orchestrator.Orchestrator
	BatchExecutor  *batch.Executor
	Prewarmer      *prewarm.Service

	// HTTP handlers
	AnalyzeHandler *handlers.AnalyzeHandler
	CacheHandler   *handlers.CacheHandler
	BatchHandler   *handlers.BatchHandler
	StatusHandler  *handlers.StatusHandler
}

// New initializes the application with all dependencies.
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}
	app.ctx, app.cancelCtx = context.WithCancel(context.Background())

	storageManager, err := badger.NewManager(logger, &cfg.Storage.Badger)
	if err != nil {
		app.cancelCtx()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	app.StorageManager = storageManager
	logger.Debug().
		Str("storage", "badger").
		Str("path", cfg.Storage.Badger.Path).
		Msg("Storage layer initialized")

	app.HotQuotes = hotquote.New(time.Duration(cfg.Analysis.HotQuoteTTLSeconds) * time.Second)
	app.UsageMonitor = llm.NewMonitor(cfg.CostWindowDuration(), cfg.LLM.CostThreshold, logger)

	app.LLMService, err = llm.NewService(app.ctx, cfg, storageManager.ResultStore(), storageManager.BlobCache(), app.UsageMonitor, logger)
	if err != nil {
		app.cancelCtx()
		storageManager.Close()
		return nil, fmt.Errorf("failed to initialize llm service: %w", err)
	}

	fmpClient := fmp.NewClient(cfg.Vendors.FMPAPIKey,
		fmp.WithLogger(logger),
		fmp.WithTimeout(cfg.VendorTimeout()),
		fmp.WithRateLimit(cfg.Vendors.RateLimit),
	)
	finnhubClient := finnhub.NewClient(cfg.Vendors.FinnhubAPIKey,
		finnhub.WithLogger(logger),
		finnhub.WithTimeout(cfg.VendorTimeout()),
		finnhub.WithRateLimit(cfg.Vendors.RateLimit),
	)
	yahooClient := yahoo.NewClient(
		yahoo.WithLogger(logger),
		yahoo.WithTimeout(cfg.VendorTimeout()),
	)
	secClient := secfilings.NewClient(
		secfilings.WithLogger(logger),
	)

	app.Fragments = fragments.NewService(cfg, logger, storageManager.BlobCache(), app.LLMService, app.HotQuotes, fragments.Providers{
		Quotes:     fmpClient,
		Historical: fmpClient,
		Chart:      yahooClient,
		Analyst:    fmpClient,
		Holders:    fmpClient,
		FMPNews:    fmpClient,
		FinnNews:   finnhubClient,
		Macro:      fmpClient,
		Filings:    secClient,
		Transcript: fmpClient,
		ETF:        fmpClient,
	})

	app.DeferredQueue = deferred.NewQueue(logger)
	app.DeferredQueue.Start(app.ctx)

	app.Orchestrator = orchestrator.New(cfg, logger,
		storageManager.ResultStore(),
		app.Fragments,
		app.LLMService,
		app.UsageMonitor,
		app.DeferredQueue,
	)

	app.BatchExecutor = batch.NewExecutor(cfg, logger, app.Orchestrator, fmpClient, app.HotQuotes)

	app.Prewarmer = prewarm.NewService(cfg.Prewarm, app.Orchestrator, logger)
	if err := app.Prewarmer.Start(app.ctx); err != nil {
		logger.Warn().Err(err).Msg("Failed to start prewarming scheduler")
	}

	app.initHandlers()

	logger.Info().
		Bool("llm_enabled", app.LLMService.Enabled()).
		Int("prewarm_tickers", len(cfg.Prewarm.Tickers)).
		Msg("Application initialization complete")

	return app, nil
}

// initHandlers initializes all HTTP handlers.
func (a *App) initHandlers() {
	a.AnalyzeHandler = handlers.NewAnalyzeHandler(a.Orchestrator, a.Logger)
	a.CacheHandler = handlers.NewCacheHandler(a.Orchestrator,
		a.StorageManager.ResultStore(),
		a.StorageManager.BlobCache(),
		a.Logger,
	)
	a.BatchHandler = handlers.NewBatchHandler(a.BatchExecutor, a.Logger)
	a.StatusHandler = handlers.NewStatusHandler(a.Orchestrator, a.Logger)
}

// Close closes all application resources.
func (a *App) Close() error {
	if a.Prewarmer != nil {
		a.Prewarmer.Stop()
	}
	if a.DeferredQueue != nil {
		a.DeferredQueue.Stop()
	}
	if a.cancelCtx != nil {
		a.cancelCtx()
	}
	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}
	return nil
}
