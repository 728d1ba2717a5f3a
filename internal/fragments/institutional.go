package fragments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/vantage/internal/common"
	"github.com/ternarybob/vantage/internal/interfaces"
	"github.com/ternarybob/vantage/internal/models"
)

// thirteenFQuarterFallbacks is how many earlier quarters the builder tries
// when the current quarter has no snapshot yet.
const thirteenFQuarterFallbacks = 3

// BuildInstitutional assembles the ownership fragment: top 13F holders for
// the most recent available quarter, the flow signal, insider activity and
// analyst actions around the baseline.
func (s *Service) BuildInstitutional(ctx context.Context, ticker string, baseline time.Time) *models.InstitutionalSnapshot {
	cfg := s.config.Analysis
	key := cacheKey("institutional", ticker, common.DayKey(baseline))

	var cached models.InstitutionalSnapshot
	if hit, empty := s.cachedJSON(ctx, key, s.days(cfg.ThirteenFTTLDays), &cached); hit {
		if empty {
			return &models.InstitutionalSnapshot{Error: "no institutional data"}
		}
		return &cached
	}

	snapshot := s.fetchThirteenF(ctx, ticker, baseline)
	if snapshot == nil {
		if err := s.blobs.PutEmpty(ctx, key); err != nil {
			s.logger.Warn().Str("key", key).Err(err).Msg("Failed to cache institutional absence")
		}
		return &models.InstitutionalSnapshot{Error: "no institutional data"}
	}

	if insider := s.buildInsiderActivity(ctx, ticker, baseline); insider != nil {
		snapshot.InsiderActivity = insider
	}
	if actions := s.buildAnalystActions(ctx, ticker, baseline); actions != nil {
		snapshot.AnalystActions = actions
	}

	s.writeCache(ctx, key, snapshot)
	return snapshot
}

// fetchThirteenF tries the baseline's quarter and up to three earlier ones.
func (s *Service) fetchThirteenF(ctx context.Context, ticker string, baseline time.Time) *models.InstitutionalSnapshot {
	quarter, year := common.QuarterOf(baseline)

	for offset := 0; offset <= thirteenFQuarterFallbacks; offset++ {
		var rows []models.HolderRow
		var summaryNet float64
		err := s.retry.Do(ctx, "thirteenf", func(ctx context.Context) error {
			var err error
			rows, summaryNet, err = s.providers.Holders.ThirteenF(ctx, ticker, quarter, year)
			return err
		})
		if err == nil && len(rows) > 0 {
			return buildSnapshot(ticker, rows, summaryNet, quarter, year, offset)
		}
		if err != nil && err != interfaces.ErrKeyNotFound {
			s.logger.Debug().
				Str("ticker", ticker).
				Int("quarter", quarter).
				Int("year", year).
				Err(err).
				Msg("13F fetch failed")
		}
		quarter, year = common.PrevQuarter(quarter, year)
	}
	return nil
}

// buildSnapshot normalizes the rows into the fragment shape. The net share
// delta prefers the summary-level value, falling back to the sum of
// row-level changes (which ThirteenF already supplies as summaryNet).
func buildSnapshot(ticker string, rows []models.HolderRow, netShares float64, quarter, year, offset int) *models.InstitutionalSnapshot {
	top := rows
	if len(top) > 5 {
		top = top[:5]
	}

	totalValue, totalShares := 0.0, 0.0
	for _, row := range rows {
		totalValue += row.Value
		totalShares += row.Shares
	}

	signal := models.SignalForNetShares(netShares)
	label := signal.Label()

	var summary string
	switch signal {
	case models.SignalAccumulate:
		summary = fmt.Sprintf("機構於 %d 年 Q%d 淨%s %.0f 股", year, quarter, label, netShares)
	case models.SignalReduce:
		summary = fmt.Sprintf("機構於 %d 年 Q%d 淨%s %.0f 股", year, quarter, label, -netShares)
	default:
		summary = fmt.Sprintf("機構於 %d 年 Q%d 持股%s", year, quarter, label)
	}

	return &models.InstitutionalSnapshot{
		AsOf:       quarterEnd(quarter, year),
		Quarter:    quarter,
		Year:       year,
		Signal:     models.FlowSignal{Signal: signal, Label: label, NetShares: netShares},
		TopHolders: top,
		Summary:    summary,
		Metrics: &models.InstitutionalMetrics{
			HolderCount:   len(rows),
			TotalValue:    totalValue,
			TotalShares:   totalShares,
			QuarterOffset: offset,
		},
	}
}

func quarterEnd(quarter, year int) string {
	month := time.Month(quarter * 3)
	day := 31
	if month == time.June || month == time.September {
		day = 30
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Format(common.DateLayout)
}

// buildInsiderActivity summarizes insider trades inside
// [baseline-lookback, baseline+lookahead].
func (s *Service) buildInsiderActivity(ctx context.Context, ticker string, baseline time.Time) *models.InsiderActivity {
	cfg := s.config.Analysis
	from := baseline.AddDate(0, 0, -cfg.InsiderLookbackDays)
	to := baseline.AddDate(0, 0, cfg.InsiderLookaheadDays)

	var trades []models.InsiderTrade
	err := s.retry.Do(ctx, "insider_trades", func(ctx context.Context) error {
		var err error
		trades, err = s.providers.Holders.InsiderTrades(ctx, ticker, from, to)
		return err
	})
	if err != nil {
		s.logger.Debug().Str("ticker", ticker).Err(err).Msg("Insider trades unavailable")
		return nil
	}
	if len(trades) == 0 {
		return nil
	}

	activity := &models.InsiderActivity{
		WindowStart: from.Format(common.DateLayout),
		WindowEnd:   to.Format(common.DateLayout),
	}
	for _, trade := range trades {
		if trade.Type == "buy" {
			activity.BuyCount++
			activity.BuyShares += trade.Shares
		} else {
			activity.SellCount++
			activity.SellShares += trade.Shares
		}
	}
	activity.NetShares = activity.BuyShares - activity.SellShares

	signal := models.SignalForNetShares(activity.NetShares)
	activity.Signal = string(signal)
	activity.Label = signal.Label()

	if len(trades) > 5 {
		trades = trades[:5]
	}
	activity.LastTrades = trades

	return activity
}

// buildAnalystActions counts upgrades and downgrades in the 7-day and
// 30-day windows around the baseline.
func (s *Service) buildAnalystActions(ctx context.Context, ticker string, baseline time.Time) *models.AnalystActions {
	var actions []models.GradeAction
	err := s.retry.Do(ctx, "grade_actions_window", func(ctx context.Context) error {
		var err error
		actions, err = s.providers.Analyst.GradeActions(ctx, ticker, 100)
		return err
	})
	if err != nil {
		s.logger.Debug().Str("ticker", ticker).Err(err).Msg("Analyst actions unavailable")
		return nil
	}

	result := &models.AnalystActions{}
	counted := false
	for _, action := range actions {
		date, err := time.Parse(common.DateLayout, action.Date)
		if err != nil {
			continue
		}
		days := common.DaysBetween(date, baseline)
		if days > 30 {
			continue
		}

		switch strings.ToLower(action.Action) {
		case "upgrade":
			result.Upgrades30d++
			if days <= 7 {
				result.Upgrades7d++
			}
			counted = true
		case "downgrade":
			result.Downgrades30d++
			if days <= 7 {
				result.Downgrades7d++
			}
			counted = true
		}
	}
	if !counted {
		return nil
	}
	return result
}
