package llm

import (
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vantage/internal/models"
)

// Monitor accumulates completion costs over a sliding window and shrinks
// payload limits when the windowed spend crosses the configured threshold.
type Monitor struct {
	mu        sync.Mutex
	logger    arbor.ILogger
	window    time.Duration
	threshold float64
	records   []usageRecord
	now       func() time.Time
}

type usageRecord struct {
	at   time.Time
	cost float64
}

// NewMonitor creates a usage monitor. A zero threshold disables the
// adaptive shrink; tokens are still metered.
func NewMonitor(window time.Duration, threshold float64, logger arbor.ILogger) *Monitor {
	if window <= 0 {
		window = time.Hour
	}
	return &Monitor{
		logger:    logger,
		window:    window,
		threshold: threshold,
		now:       time.Now,
	}
}

// Record adds one completion's cost to the window.
func (m *Monitor) Record(usage *models.LLMUsage) {
	if usage == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prune()
	m.records = append(m.records, usageRecord{at: m.now(), cost: usage.TotalCost})
}

// WindowCost returns the summed cost of records inside the window.
func (m *Monitor) WindowCost() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prune()
	total := 0.0
	for _, r := range m.records {
		total += r.cost
	}
	return total
}

// AdaptiveLimits shrinks the filing and news payload limits while the
// windowed spend exceeds the threshold. Limits never drop below one filing
// and two articles so the payload stays useful.
func (m *Monitor) AdaptiveLimits(maxFilings, newsLimit int) (int, int) {
	if m.threshold <= 0 {
		return maxFilings, newsLimit
	}

	cost := m.WindowCost()
	if cost <= m.threshold {
		return maxFilings, newsLimit
	}

	shrunkFilings := maxFilings
	if shrunkFilings > 1 {
		shrunkFilings = 1
	}
	shrunkNews := newsLimit / 2
	if shrunkNews < 2 {
		shrunkNews = 2
	}

	m.logger.Warn().
		Float64("window_cost", cost).
		Float64("threshold", m.threshold).
		Int("max_filings", shrunkFilings).
		Int("news_limit", shrunkNews).
		Msg("LLM cost threshold exceeded, shrinking payload limits")

	return shrunkFilings, shrunkNews
}

// prune drops records older than the window. Caller holds the lock.
func (m *Monitor) prune() {
	cutoff := m.now().Add(-m.window)
	kept := m.records[:0]
	for _, r := range m.records {
		if r.at.After(cutoff) {
			kept = append(kept, r)
		}
	}
	m.records = kept
}
