package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/vantage/internal/models"
)

// BlobEnvelope wraps a cached JSON value with its write time. The payload is
// stored as raw JSON so heterogeneous fragment shapes share one store.
type BlobEnvelope struct {
	Key      string    `json:"key" badgerhold:"key"`
	Payload  []byte    `json:"payload"`
	Empty    bool      `json:"empty"` // negative-result sentinel ({__empty:true})
	StoredAt time.Time `json:"stored_at"`
}

// BlobCache is the content-keyed cache (one JSON document per key) with a
// per-read freshness check. Prefix/substring invalidation by ticker is part
// of the contract.
type BlobCache interface {
	// Get returns the envelope iff now - stored_at <= maxAge; ErrKeyNotFound
	// on absence, ErrStale when present but too old.
	Get(ctx context.Context, key string, maxAge time.Duration) (*BlobEnvelope, error)

	// Put marshals value to JSON and upserts it under key.
	Put(ctx context.Context, key string, value any) error

	// PutEmpty records a negative result so known-absent upstream data is
	// also cached.
	PutEmpty(ctx context.Context, key string) error

	// ClearTicker deletes every entry whose key contains the uppercased
	// ticker, optionally constrained to keys that also contain date.
	// Returns the number of removed entries. Idempotent.
	ClearTicker(ctx context.Context, ticker string, date string) (int, error)
}

// AnalysisRecord is a persisted analysis bundle keyed by
// (ticker, baseline date, model variant).
type AnalysisRecord struct {
	Key          string                 `json:"key" badgerhold:"key"`
	Ticker       string                 `json:"ticker" badgerhold:"index"`
	Date         string                 `json:"date"`
	ModelVariant string                 `json:"model_variant"`
	Bundle       *models.AnalysisBundle `json:"bundle"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// LLMCacheRecord stores a parsed LLM output keyed by the SHA-256 of
// (payload, prompt version, model) for cross-request deduplication.
type LLMCacheRecord struct {
	Hash      string           `json:"hash" badgerhold:"key"`
	Output    *models.Analysis `json:"output"`
	Usage     *models.LLMUsage `json:"usage"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// ResultStore is the durable index of finalized analysis bundles plus the
// LLM output cache. Reads return records unconditionally; freshness is the
// caller's decision against per-fragment TTLs.
type ResultStore interface {
	GetBundle(ctx context.Context, ticker, date, variant string) (*AnalysisRecord, error)
	PutBundle(ctx context.Context, record *AnalysisRecord) error

	// DeleteVariants removes the bundle stored under each of the given model
	// variants. Returns how many records were removed.
	DeleteVariants(ctx context.Context, ticker, date string, variants []string) (int, error)

	GetLLMOutput(ctx context.Context, hash string) (*LLMCacheRecord, error)
	PutLLMOutput(ctx context.Context, record *LLMCacheRecord) error
}

// StorageManager aggregates the storage interfaces over one database
// connection.
type StorageManager interface {
	BlobCache() BlobCache
	ResultStore() ResultStore
	Close() error
}
