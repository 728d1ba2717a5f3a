package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSymbol(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "simple", input: "nvda", want: "NVDA"},
		{name: "whitespace", input: "  aapl ", want: "AAPL"},
		{name: "class share dot", input: "brk.b", want: "BRK.B"},
		{name: "class share hyphen", input: "rds-a", want: "RDS-A"},
		{name: "empty", input: "", wantErr: true},
		{name: "spaces only", input: "   ", wantErr: true},
		{name: "invalid chars", input: "AB$C", wantErr: true},
		{name: "leading digit", input: "1AB", wantErr: true},
		{name: "too long", input: "ABCDEFGHIJKLM", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeSymbol(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseBaselineDate(t *testing.T) {
	now := time.Date(2025, 11, 10, 14, 30, 0, 0, time.UTC)

	t.Run("valid past date", func(t *testing.T) {
		d, err := ParseBaselineDate("2024-01-02", now)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), d)
	})

	t.Run("today is allowed", func(t *testing.T) {
		d, err := ParseBaselineDate("2025-11-10", now)
		require.NoError(t, err)
		assert.False(t, IsHistorical(d, now))
	})

	t.Run("future rejected", func(t *testing.T) {
		_, err := ParseBaselineDate("2025-11-11", now)
		assert.Error(t, err)
	})

	t.Run("bad format rejected", func(t *testing.T) {
		_, err := ParseBaselineDate("02/01/2024", now)
		assert.Error(t, err)
	})

	t.Run("empty rejected", func(t *testing.T) {
		_, err := ParseBaselineDate("", now)
		assert.Error(t, err)
	})
}

func TestIsHistorical(t *testing.T) {
	now := time.Date(2025, 11, 10, 9, 0, 0, 0, time.UTC)

	assert.True(t, IsHistorical(time.Date(2025, 11, 9, 0, 0, 0, 0, time.UTC), now))
	assert.False(t, IsHistorical(time.Date(2025, 11, 10, 0, 0, 0, 0, time.UTC), now))
}

func TestPrevTradingDay(t *testing.T) {
	// Monday 2025-11-10 -> Friday 2025-11-07
	monday := time.Date(2025, 11, 10, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 11, 7, 0, 0, 0, 0, time.UTC), PrevTradingDay(monday))

	// Saturday -> Friday
	saturday := time.Date(2025, 11, 8, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 11, 7, 0, 0, 0, 0, time.UTC), PrevTradingDay(saturday))
}

func TestLastTradingDayOnOrBefore(t *testing.T) {
	// Sunday walks back to Friday, weekday stays put
	sunday := time.Date(2025, 11, 9, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 11, 7, 0, 0, 0, 0, time.UTC), LastTradingDayOnOrBefore(sunday))

	wednesday := time.Date(2025, 11, 5, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, wednesday, LastTradingDayOnOrBefore(wednesday))
}

func TestQuarterMath(t *testing.T) {
	q, y := QuarterOf(time.Date(2025, 2, 14, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 1, q)
	assert.Equal(t, 2025, y)

	q, y = PrevQuarter(1, 2025)
	assert.Equal(t, 4, q)
	assert.Equal(t, 2024, y)

	q, y = PrevQuarter(3, 2025)
	assert.Equal(t, 2, q)
	assert.Equal(t, 2025, y)
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2025, 11, 10, 23, 0, 0, 0, time.UTC)
	b := time.Date(2025, 11, 1, 1, 0, 0, 0, time.UTC)
	assert.Equal(t, 9, DaysBetween(a, b))
	assert.Equal(t, 9, DaysBetween(b, a))
}
