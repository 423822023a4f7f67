package storage

import (
	"context"
	"time"

	"github.com/spicyregs/regsearch/internal/resolver"
	"github.com/spicyregs/regsearch/pkg/types"
)

// Store defines the persistence boundary for the cache tables and the search
// corpus. The underlying connection is a process-wide singleton created once
// by Open; higher layers never construct connections directly.
type Store interface {
	// Cache slice operations
	CacheStats(ctx context.Context, dt types.DataType, pred resolver.Predicate) (CacheStats, error)
	SelectRecords(ctx context.Context, dt types.DataType, pred resolver.Predicate) ([]types.Record, error)
	ReplaceSlice(ctx context.Context, dt types.DataType, pred resolver.Predicate, recs []types.Record, cachedAt time.Time) error
	TableTotals(ctx context.Context, dt types.DataType) (TableTotals, error)

	// Search corpus operations
	UpsertSearchDoc(ctx context.Context, doc *SearchDoc) error
	GetHit(ctx context.Context, id string) (*types.SearchHit, error)
	GetVector(ctx context.Context, id string) ([]float32, error)
	SearchText(ctx context.Context, query string, limit int, agencyCode string) ([]TextResult, error)
	SearchVector(ctx context.Context, vector []float32, limit int, agencyCode, excludeID string) ([]VectorResult, error)
	CountSearchDocs(ctx context.Context) (int, error)

	Close() error
}

// CacheStats describes one cache slice: the row count matching a predicate
// and the freshness watermark. LastCached is nil when the slice is empty.
type CacheStats struct {
	Count      int
	LastCached *time.Time
}

// TableTotals summarizes one cache table for diagnostics.
type TableTotals struct {
	Records  int
	Agencies int
	Oldest   *time.Time
	Newest   *time.Time
}

// SearchDoc is one searchable item in the corpus: a public comment with its
// embedding vector. The FTS index mirrors title and text.
type SearchDoc struct {
	ID         string
	Title      string
	Text       string
	DocketID   string
	AgencyCode string
	PostedDate *time.Time
	Vector     []float32
}

// TextResult is one hit from lexical full-text search. Score is a normalized
// BM25 relevance where higher is better.
type TextResult struct {
	ID    string
	Score float64
}

// VectorResult is one hit from nearest-neighbor search. Similarity is cosine
// similarity in [-1, 1] where higher is closer.
type VectorResult struct {
	ID         string
	Similarity float64
}
