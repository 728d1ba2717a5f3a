package fragments

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/vantage/internal/models"
)

// syntheticBars builds n ascending daily bars whose closes follow fn.
func syntheticBars(n int, fn func(i int) float64) []models.DailyBar {
	bars := make([]models.DailyBar, n)
	for i := 0; i < n; i++ {
		close := fn(i)
		bars[i] = models.DailyBar{
			Date:   fmt.Sprintf("2025-%02d-%02d", 1+i/28%12, 1+i%28),
			Open:   close * 0.99,
			High:   close * 1.01,
			Low:    close * 0.98,
			Close:  close,
			Volume: 1_000_000,
		}
	}
	return bars
}

func TestComputeMomentumUptrend(t *testing.T) {
	// Steady riser: +0.2% per day over 300 bars
	bars := syntheticBars(300, func(i int) float64 { return 100 * pow(1.002, i) })

	m := computeMomentum(bars)
	require.NotNil(t, m)

	assert.Equal(t, models.TrendStrong, m.Trend)
	assert.Equal(t, "強勢", m.TrendLabel)
	assert.True(t, m.PriceVsMA.AboveSMA50)
	assert.True(t, m.PriceVsMA.AboveSMA200)
	assert.Greater(t, m.Returns.M3, 0.10)
	assert.GreaterOrEqual(t, m.Score, 70.0)
	assert.LessOrEqual(t, m.Score, 100.0)
}

func TestComputeMomentumDowntrend(t *testing.T) {
	bars := syntheticBars(300, func(i int) float64 { return 100 * pow(0.997, i) })

	m := computeMomentum(bars)
	require.NotNil(t, m)

	assert.Equal(t, models.TrendWeak, m.Trend)
	assert.Equal(t, "弱勢", m.TrendLabel)
	assert.Less(t, m.Returns.M3, -0.05)
	assert.GreaterOrEqual(t, m.Score, 0.0)
	assert.Less(t, m.Score, 50.0)
}

func TestComputeMomentumFlatIsNeutral(t *testing.T) {
	bars := syntheticBars(300, func(i int) float64 { return 100 })

	m := computeMomentum(bars)
	require.NotNil(t, m)
	assert.Equal(t, models.TrendNeutral, m.Trend)
	assert.Equal(t, "中性", m.TrendLabel)
}

func TestScoreContributionsAreCapped(t *testing.T) {
	// Extreme riser: every contribution saturates its cap.
	// 50 + 20 + 15 + 10 + rsi(~10) + vol(0) + 5 + 5 stays within [0,100].
	bars := syntheticBars(300, func(i int) float64 { return 100 * pow(1.02, i) })

	m := computeMomentum(bars)
	require.NotNil(t, m)
	assert.LessOrEqual(t, m.Score, 100.0)
	assert.GreaterOrEqual(t, m.Score, 0.0)
}

func pow(base float64, exp int) float64 {
	out := 1.0
	for i := 0; i < exp; i++ {
		out *= base
	}
	return out
}
