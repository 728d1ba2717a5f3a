// Package prewarm keeps analysis bundles for a configured watchlist warm by
// rerunning them on a fixed interval.
package prewarm

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vantage/internal/common"
	"github.com/ternarybob/vantage/internal/models"
)

// Analyzer is the orchestration surface the prewarmer drives.
type Analyzer interface {
	Analyze(ctx context.Context, input models.AnalysisInput) (*models.AnalysisBundle, error)
}

// Service runs the watchlist at startup and on the configured interval.
// Metrics-only unless include_llm is set; failures are logged and the next
// tick proceeds regardless.
type Service struct {
	config   common.PrewarmConfig
	logger   arbor.ILogger
	analyzer Analyzer
	cron     *cron.Cron
}

// NewService creates the prewarmer.
func NewService(config common.PrewarmConfig, analyzer Analyzer, logger arbor.ILogger) *Service {
	return &Service{
		config:   config,
		logger:   logger,
		analyzer: analyzer,
		cron:     cron.New(),
	}
}

// Start schedules the interval runs and kicks off the startup pass. A
// configuration without tickers disables the service entirely.
func (s *Service) Start(ctx context.Context) error {
	if len(s.config.Tickers) == 0 {
		s.logger.Debug().Msg("Prewarming disabled, no tickers configured")
		return nil
	}

	interval := s.config.IntervalHours
	if interval <= 0 {
		interval = 6
	}

	_, err := s.cron.AddFunc(fmt.Sprintf("@every %dh", interval), func() {
		s.runAll(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule prewarming: %w", err)
	}

	s.cron.Start()
	s.logger.Info().
		Int("tickers", len(s.config.Tickers)).
		Int("interval_hours", interval).
		Bool("include_llm", s.config.IncludeLLM).
		Msg("Prewarming scheduler started")

	go s.runAll(ctx)
	return nil
}

// Stop halts the scheduler. In-flight runs finish on their own.
func (s *Service) Stop() {
	s.cron.Stop()
	s.logger.Info().Msg("Prewarming scheduler stopped")
}

func (s *Service) runAll(ctx context.Context) {
	mode := "metrics-only"
	if s.config.IncludeLLM {
		mode = "full"
	}

	for _, ticker := range s.config.Tickers {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.analyzer.Analyze(ctx, models.AnalysisInput{Ticker: ticker, Mode: mode}); err != nil {
			s.logger.Warn().
				Err(err).
				Str("ticker", ticker).
				Msg("Prewarming run failed")
			continue
		}
		s.logger.Debug().
			Str("ticker", ticker).
			Str("mode", mode).
			Msg("Prewarmed analysis bundle")
	}
}
