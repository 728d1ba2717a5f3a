package fragments

import (
	"context"
	"math"
	"time"

	"github.com/markcheno/go-talib"

	"github.com/ternarybob/vantage/internal/common"
	"github.com/ternarybob/vantage/internal/models"
)

// Trading-day offsets for the trailing return horizons.
const (
	offset3M  = 63
	offset6M  = 126
	offset12M = 252
)

// sectorETF maps well-known symbols to their sector proxy fund. Symbols not
// listed fall through to the upstream exposure ranking.
var sectorETF = map[string]string{
	"NVDA": "SMH", "AMD": "SMH", "INTC": "SMH", "TSM": "SMH", "AVGO": "SMH",
	"AAPL": "XLK", "MSFT": "XLK", "ORCL": "XLK", "CRM": "XLK", "ADBE": "XLK",
	"GOOGL": "XLC", "GOOG": "XLC", "META": "XLC", "NFLX": "XLC", "DIS": "XLC",
	"AMZN": "XLY", "TSLA": "XLY", "HD": "XLY", "NKE": "XLY", "MCD": "XLY",
	"JPM": "XLF", "BAC": "XLF", "GS": "XLF", "MS": "XLF", "V": "XLF",
	"JNJ": "XLV", "PFE": "XLV", "UNH": "XLV", "LLY": "XLV", "MRK": "XLV",
	"XOM": "XLE", "CVX": "XLE", "COP": "XLE",
	"CAT": "XLI", "BA": "XLI", "GE": "XLI", "UPS": "XLI",
	"PG": "XLP", "KO": "XLP", "PEP": "XLP", "WMT": "XLP",
}

// BuildMomentum computes the technicals fragment from roughly a year and a
// half of daily bars, caching the result per (ticker, date).
func (s *Service) BuildMomentum(ctx context.Context, ticker string, baseline time.Time) *models.MomentumMetrics {
	key := cacheKey("momentum", ticker, common.DayKey(baseline))
	ttl := s.hours(s.config.Analysis.MomentumCacheTTLHours)

	var cached models.MomentumMetrics
	if hit, empty := s.cachedJSON(ctx, key, ttl, &cached); hit {
		if empty {
			return &models.MomentumMetrics{Error: "insufficient price history"}
		}
		return &cached
	}

	end := common.LastTradingDayOnOrBefore(baseline)
	// 600 calendar days cover 252 trading days plus the SMA200 warmup.
	start := end.AddDate(0, 0, -600)

	var bars []models.DailyBar
	err := s.retry.Do(ctx, "momentum_bars", func(ctx context.Context) error {
		var err error
		bars, err = s.providers.Historical.DailyBars(ctx, ticker, start, end)
		return err
	})
	if err != nil {
		s.logger.Warn().Str("ticker", ticker).Err(err).Msg("Momentum bars unavailable")
		return &models.MomentumMetrics{Error: err.Error()}
	}
	if len(bars) < offset12M+1 {
		s.logger.Debug().Str("ticker", ticker).Int("bars", len(bars)).Msg("Not enough history for momentum")
		if err := s.blobs.PutEmpty(ctx, key); err != nil {
			s.logger.Warn().Str("key", key).Err(err).Msg("Failed to cache momentum absence")
		}
		return &models.MomentumMetrics{Error: "insufficient price history"}
	}

	metrics := computeMomentum(bars)
	metrics.ReferenceDate = bars[len(bars)-1].Date

	if etf := s.buildETFProxy(ctx, ticker, end); etf != nil {
		metrics.ETF = etf
	}

	s.writeCache(ctx, key, metrics)
	return metrics
}

// computeMomentum derives the score, trend and indicator block from
// ascending daily bars.
func computeMomentum(bars []models.DailyBar) *models.MomentumMetrics {
	n := len(bars)
	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	volumes := make([]float64, n)
	for i, b := range bars {
		closes[i] = b.Close
		highs[i] = b.High
		lows[i] = b.Low
		volumes[i] = b.Volume
	}

	last := closes[n-1]
	ret3 := trailingReturn(closes, offset3M)
	ret6 := trailingReturn(closes, offset6M)
	ret12 := trailingReturn(closes, offset12M)

	sma20 := lastValue(talib.Sma(closes, 20))
	sma50 := lastValue(talib.Sma(closes, 50))
	sma200 := lastValue(talib.Sma(closes, 200))
	rsi14 := lastValue(talib.Rsi(closes, 14))
	atr14 := lastValue(talib.Atr(highs, lows, closes, 14))

	volRatio := volumeRatio(volumes)

	aboveSMA50 := last > sma50
	aboveSMA200 := last > sma200

	score := 50.0
	score += capped(ret3*200, 20)
	score += capped(ret6*150, 15)
	score += capped(ret12*100, 10)
	score += capped((rsi14-50)/2, 10)
	score += capped((volRatio-1)*20, 10)
	score += sideBonus(aboveSMA50)
	score += sideBonus(aboveSMA200)
	score = math.Min(100, math.Max(0, score))

	trend := models.TrendNeutral
	switch {
	case aboveSMA50 && aboveSMA200 && ret3 > 0.10:
		trend = models.TrendStrong
	case !aboveSMA50 && !aboveSMA200 && ret3 < -0.05:
		trend = models.TrendWeak
	}

	return &models.MomentumMetrics{
		Score:      round2(score),
		Trend:      trend,
		TrendLabel: trend.Label(),
		Returns:    models.Returns{M3: round4(ret3), M6: round4(ret6), M12: round4(ret12)},
		MovingAverages: models.MovingAverages{
			SMA20:  round2(sma20),
			SMA50:  round2(sma50),
			SMA200: round2(sma200),
		},
		RSI14:       round2(rsi14),
		ATR14:       round2(atr14),
		VolumeRatio: round2(volRatio),
		PriceVsMA: models.PriceVsMA{
			AboveSMA50:  aboveSMA50,
			AboveSMA200: aboveSMA200,
		},
		Close: round2(last),
	}
}

// buildETFProxy picks the sector fund and reports its 3-month return.
func (s *Service) buildETFProxy(ctx context.Context, ticker string, end time.Time) *models.ETFProxy {
	symbol, source := sectorETF[ticker], "static_map"
	if symbol == "" {
		if s.providers.ETF == nil {
			return nil
		}
		var err error
		symbol, err = s.providers.ETF.TopExposureETF(ctx, ticker)
		if err != nil || symbol == "" {
			return nil
		}
		source = "exposure_rank"
	}

	var bars []models.DailyBar
	err := s.retry.Do(ctx, "etf_bars", func(ctx context.Context) error {
		var err error
		bars, err = s.providers.Historical.DailyBars(ctx, symbol, end.AddDate(0, 0, -130), end)
		return err
	})
	if err != nil || len(bars) < offset3M+1 {
		return &models.ETFProxy{Symbol: symbol, Source: source}
	}

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return &models.ETFProxy{
		Symbol:   symbol,
		Source:   source,
		Return3M: round4(trailingReturn(closes, offset3M)),
	}
}

func trailingReturn(closes []float64, offset int) float64 {
	n := len(closes)
	if n <= offset || closes[n-1-offset] == 0 {
		return 0
	}
	return closes[n-1]/closes[n-1-offset] - 1
}

func lastValue(series []float64) float64 {
	for i := len(series) - 1; i >= 0; i-- {
		if !math.IsNaN(series[i]) && series[i] != 0 {
			return series[i]
		}
	}
	return 0
}

func volumeRatio(volumes []float64) float64 {
	short := tailAvg(volumes, 5)
	long := tailAvg(volumes, 30)
	if long == 0 {
		return 1
	}
	return short / long
}

func tailAvg(values []float64, n int) float64 {
	if len(values) < n || n == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values[len(values)-n:] {
		sum += v
	}
	return sum / float64(n)
}

func capped(value, limit float64) float64 {
	return math.Max(-limit, math.Min(limit, value))
}

func sideBonus(above bool) float64 {
	if above {
		return 5
	}
	return -5
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
