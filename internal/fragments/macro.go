package fragments

import (
	"context"
	"math"
	"time"

	"github.com/ternarybob/vantage/internal/common"
	"github.com/ternarybob/vantage/internal/models"
)

// Macro window bounds around the baseline date.
const (
	macroLookbackDays  = 7
	macroLookaheadDays = 7
)

// BuildMacro assembles the macro fragment: curve levels, the 10y-2y spread,
// the equity risk premium and nearby calendar events.
func (s *Service) BuildMacro(ctx context.Context, baseline time.Time) *models.MacroContext {
	cfg := s.config.Analysis
	key := cacheKey("macro", common.DayKey(baseline))

	var cached models.MacroContext
	if hit, empty := s.cachedJSON(ctx, key, s.hours(cfg.NewsCacheTTLHours), &cached); hit && !empty {
		return &cached
	}

	from := baseline.AddDate(0, 0, -macroLookbackDays)
	to := baseline.AddDate(0, 0, macroLookaheadDays)

	macro := &models.MacroContext{
		WindowStart: from.Format(common.DateLayout),
		WindowEnd:   to.Format(common.DateLayout),
	}

	if err := s.retry.Do(ctx, "treasury_yields", func(ctx context.Context) error {
		y10, y2, err := s.providers.Macro.TreasuryYields(ctx, baseline)
		if err != nil {
			return err
		}
		macro.Yield10Y = y10
		macro.Yield2Y = y2
		macro.Spread = math.Round((y10-y2)*100) / 100
		return nil
	}); err != nil {
		s.logger.Debug().Err(err).Msg("Treasury yields unavailable")
	}

	if err := s.retry.Do(ctx, "risk_premium", func(ctx context.Context) error {
		premium, err := s.providers.Macro.MarketRiskPremium(ctx)
		if err != nil {
			return err
		}
		macro.MarketRiskPremium = premium
		return nil
	}); err != nil {
		s.logger.Debug().Err(err).Msg("Market risk premium unavailable")
	}

	if err := s.retry.Do(ctx, "economic_calendar", func(ctx context.Context) error {
		events, err := s.providers.Macro.EconomicCalendar(ctx, from, to)
		if err != nil {
			return err
		}
		if len(events) > cfg.MacroEventLimit {
			events = events[:cfg.MacroEventLimit]
		}
		macro.Events = events
		return nil
	}); err != nil {
		s.logger.Debug().Err(err).Msg("Economic calendar unavailable")
		macro.Error = err.Error()
	}

	s.writeCache(ctx, key, macro)
	return macro
}
