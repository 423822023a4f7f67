package types

import "errors"

// Error taxonomy shared by all components. Local cache errors are absorbed by
// a cheaper fallback before surfacing; search-pipeline errors surface
// directly.
var (
	// ErrInvalidArgument marks an unusable request: unknown data type,
	// missing required agency code. Surfaced immediately, no retry.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound marks a lookup for an item absent from the index.
	ErrNotFound = errors.New("not found")

	// ErrRebuildFailed marks a cache rebuild the manager could not
	// complete. Recovered locally by the federated fallback; logged, not
	// surfaced unless the fallback also fails.
	ErrRebuildFailed = errors.New("cache rebuild failed")

	// ErrFallbackFailed marks a failed federated query. Surfaced to the
	// caller as a generic data-fetch error; no further recovery.
	ErrFallbackFailed = errors.New("federated query failed")

	// ErrEmbeddingUnavailable marks an embedding provider failure during
	// search. Surfaced as a search failure; callers may offer a manual
	// keyword-only retry path.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
)

// Validation errors for result types.
var (
	ErrEmptyHitID  = errors.New("hit id cannot be empty")
	ErrInvalidRank = errors.New("rank must be >= 1")
)
