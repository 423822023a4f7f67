// Package storage implements persistence for the cache tables and the search
// corpus over an embedded SQLite database.
//
// The database connection is a single owned resource: Open creates it once
// per process (applying versioned migrations) and every higher layer goes
// through the Store interface, so connections are never constructed above
// this package.
//
// # Cache tables
//
// Each data type owns one cache table (dockets_cache, documents_cache,
// comments_cache) sharing the promoted-column union plus raw_json and the
// cached_at freshness watermark. Slices are replaced wholesale:
//
//	err := store.ReplaceSlice(ctx, types.DataTypeComments, pred, recs, time.Now())
//
// runs delete-then-insert for the predicate in one transaction, so a rebuild
// never leaves a half-old, half-new mix for the same filter. Readers
// deduplicate by (docket_id, item_id), keeping the newest cached_at.
//
// # Search corpus
//
// search_docs holds one row per searchable comment with its embedding vector
// (little-endian float32 blob). An FTS5 mirror provides BM25 lexical search;
// nearest-neighbor search uses the sqlite-vec extension when built with the
// sqlite_vec tag and a pure Go cosine scan otherwise (see build_cgo.go and
// build_purego.go).
package storage
