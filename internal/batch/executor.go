package batch

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vantage/internal/common"
	"github.com/ternarybob/vantage/internal/hotquote"
	"github.com/ternarybob/vantage/internal/interfaces"
	"github.com/ternarybob/vantage/internal/models"
	"github.com/ternarybob/vantage/internal/services/workers"
)

// quoteBatchSize is the vendor's multi-symbol quote page size.
const quoteBatchSize = 50

// Analyzer is the orchestration surface the executor drives.
type Analyzer interface {
	Analyze(ctx context.Context, input models.AnalysisInput) (*models.AnalysisBundle, error)
}

// Result pairs one input row with its outcome. Err is carried into the
// output CSV as an ERROR cell rather than failing the batch.
type Result struct {
	Row    Row
	Bundle *models.AnalysisBundle
	Err    error
}

// Executor fans batch rows out over a worker pool. Identical
// (ticker, date, model, mode) tuples share one orchestration run.
type Executor struct {
	config   *common.Config
	logger   arbor.ILogger
	analyzer Analyzer
	quotes   interfaces.QuoteProvider
	hot      *hotquote.Cache

	now func() time.Time
}

// NewExecutor creates the executor. The quote provider and hot cache may be
// nil, which disables prefetching.
func NewExecutor(config *common.Config, logger arbor.ILogger, analyzer Analyzer, quotes interfaces.QuoteProvider, hot *hotquote.Cache) *Executor {
	return &Executor{
		config:   config,
		logger:   logger,
		analyzer: analyzer,
		quotes:   quotes,
		hot:      hot,
		now:      time.Now,
	}
}

// memoEntry is one shared orchestration run; duplicates wait on done.
type memoEntry struct {
	done   chan struct{}
	bundle *models.AnalysisBundle
	err    error
}

// Run executes every row and returns one result per input, in input order.
func (e *Executor) Run(ctx context.Context, rows []Row, mode string) []Result {
	e.logger.Info().
		Int("rows", len(rows)).
		Str("mode", mode).
		Msg("Batch run started")

	e.prefetchQuotes(ctx, rows)

	results := make([]Result, len(rows))
	memo := make(map[string]*memoEntry)
	var memoMu sync.Mutex

	pool := workers.NewPool(ctx, e.resolveConcurrency(mode), e.logger)
	pool.Start()

	for i := range rows {
		index := i
		row := rows[i]
		if err := pool.Submit(func(ctx context.Context) error {
			bundle, err := e.runRow(ctx, row, mode, memo, &memoMu)
			results[index] = Result{Row: row, Bundle: bundle, Err: err}
			return err
		}); err != nil {
			results[index] = Result{Row: row, Err: err}
		}
	}
	pool.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	e.logger.Info().
		Int("rows", len(rows)).
		Int("failed", failed).
		Msg("Batch run finished")

	return results
}

// runRow resolves the row through the memo map: the first arrival of a
// tuple runs the orchestration, later arrivals wait for its result.
func (e *Executor) runRow(ctx context.Context, row Row, mode string, memo map[string]*memoEntry, memoMu *sync.Mutex) (*models.AnalysisBundle, error) {
	key := e.memoKey(row, mode)

	memoMu.Lock()
	entry, exists := memo[key]
	if !exists {
		entry = &memoEntry{done: make(chan struct{})}
		memo[key] = entry
	}
	memoMu.Unlock()

	if exists {
		select {
		case <-entry.done:
			return entry.bundle, entry.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	entry.bundle, entry.err = e.analyzer.Analyze(ctx, models.AnalysisInput{
		Ticker: row.Ticker,
		Date:   row.Date,
		Model:  row.Model,
		Mode:   mode,
	})
	close(entry.done)
	return entry.bundle, entry.err
}

func (e *Executor) memoKey(row Row, mode string) string {
	ticker := row.Ticker
	if normalized, err := common.NormalizeSymbol(ticker); err == nil {
		ticker = normalized
	}
	date := row.Date
	if date == "" {
		date = common.DayKey(e.now())
	}
	return strings.Join([]string{ticker, date, row.Model, mode}, "|")
}

// prefetchQuotes pulls multi-symbol quotes for today's rows into the hot
// cache so the per-row price builders skip their individual vendor calls.
func (e *Executor) prefetchQuotes(ctx context.Context, rows []Row) {
	if e.quotes == nil || e.hot == nil {
		return
	}

	today := common.DayKey(e.now())
	seen := make(map[string]bool)
	var symbols []string
	for _, row := range rows {
		if row.Date != "" && row.Date != today {
			continue
		}
		symbol, err := common.NormalizeSymbol(row.Ticker)
		if err != nil || seen[symbol] {
			continue
		}
		seen[symbol] = true
		symbols = append(symbols, symbol)
	}
	if len(symbols) == 0 {
		return
	}

	for start := 0; start < len(symbols); start += quoteBatchSize {
		end := start + quoteBatchSize
		if end > len(symbols) {
			end = len(symbols)
		}
		page := symbols[start:end]

		quotes, err := e.quotes.Quotes(ctx, page)
		if err != nil {
			e.logger.Warn().
				Err(err).
				Int("symbols", len(page)).
				Msg("Batch quote prefetch failed")
			continue
		}
		for symbol, quote := range quotes {
			e.hot.Put(hotquote.Key(symbol, today), quote)
		}
	}

	e.logger.Debug().
		Int("symbols", len(symbols)).
		Msg("Prefetched quotes for batch")
}

// resolveConcurrency scales the pool to the mode: cheap modes need fewer
// workers than full LLM runs would tolerate.
func (e *Executor) resolveConcurrency(mode string) int {
	base := e.config.Batch.Concurrency
	if base < 1 {
		base = 1
	}
	switch mode {
	case "metrics-only":
		if base > 2 {
			return 2
		}
		return base
	case "cached-only":
		half := base / 2
		if half < 1 {
			return 1
		}
		return half
	default:
		return base
	}
}
