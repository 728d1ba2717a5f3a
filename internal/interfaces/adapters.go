package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/vantage/internal/models"
)

// The adapter layer is the only place vendor field names exist. Each
// interface here is a semantic capability; fragment builders depend on these
// and never on a concrete vendor client.

// QuoteProvider serves live quotes.
type QuoteProvider interface {
	Quote(ctx context.Context, symbol string) (*models.Quote, error)

	// Quotes fetches multiple symbols in one call where the vendor supports
	// it. Missing symbols are simply absent from the result.
	Quotes(ctx context.Context, symbols []string) (map[string]*models.Quote, error)
}

// HistoricalPriceProvider serves end-of-day bars and point lookups.
type HistoricalPriceProvider interface {
	// EODPrice returns the close for the exact date, or ErrKeyNotFound when
	// the vendor has no bar for it (holiday, listing gap).
	EODPrice(ctx context.Context, symbol string, date time.Time) (*models.DailyBar, error)

	// DailyBars returns bars in [from, to] ascending by date.
	DailyBars(ctx context.Context, symbol string, from, to time.Time) ([]models.DailyBar, error)
}

// ChartProvider is the secondary price source used when the primary chain
// fails (live and historical).
type ChartProvider interface {
	ChartQuote(ctx context.Context, symbol string) (*models.Quote, error)
	ChartClose(ctx context.Context, symbol string, date time.Time) (*models.DailyBar, error)
}

// AnalystProvider serves consensus signals.
type AnalystProvider interface {
	PriceTargets(ctx context.Context, symbol string) (*models.PriceTargetSummary, error)
	Estimates(ctx context.Context, symbol string) (*models.Estimates, error)
	RatingsSnapshot(ctx context.Context, symbol string) (*models.RatingEntry, error)
	RatingsHistory(ctx context.Context, symbol string, limit int) ([]models.RatingEntry, error)
	GradeActions(ctx context.Context, symbol string, limit int) ([]models.GradeAction, error)
	GradeHistory(ctx context.Context, symbol string, limit int) ([]models.GradeConsensus, error)
	GradeConsensus(ctx context.Context, symbol string) (*models.GradeConsensus, error)
}

// InstitutionalProvider serves ownership and insider data.
type InstitutionalProvider interface {
	// ThirteenF returns normalized holder rows for the given quarter, or
	// ErrKeyNotFound when the vendor has no snapshot yet.
	ThirteenF(ctx context.Context, symbol string, quarter, year int) ([]models.HolderRow, float64, error)

	InsiderTrades(ctx context.Context, symbol string, from, to time.Time) ([]models.InsiderTrade, error)
}

// NewsProvider serves articles for a symbol.
type NewsProvider interface {
	News(ctx context.Context, symbol string, from, to time.Time, limit int) ([]models.NewsArticle, error)
}

// MacroProvider serves macroeconomic context.
type MacroProvider interface {
	EconomicCalendar(ctx context.Context, from, to time.Time) ([]models.MacroEvent, error)
	TreasuryYields(ctx context.Context, date time.Time) (y10, y2 float64, err error)
	MarketRiskPremium(ctx context.Context) (float64, error)
}

// FilingsProvider serves regulatory filings and their MD&A text.
type FilingsProvider interface {
	RecentFilings(ctx context.Context, symbol string, forms []string, before time.Time, limit int) ([]models.FilingRef, error)
	MDAText(ctx context.Context, filing models.FilingRef) (string, error)
}

// TranscriptProvider serves earnings call transcripts. ErrKeyNotFound
// signals a quarter with no call on record.
type TranscriptProvider interface {
	Transcript(ctx context.Context, symbol string, quarter, year int) (string, string, error) // transcript, call date
}

// ETFExposureProvider ranks sector funds by exposure to a symbol, used when
// the static sector table has no entry.
type ETFExposureProvider interface {
	TopExposureETF(ctx context.Context, symbol string) (string, error)
}
