// Package searcher ranks indexed regulatory comments.
//
// Hybrid search runs BM25 lexical search and cosine-similarity vector search
// concurrently and fuses the two rankings with Reciprocal Rank Fusion
// (score += 1/(k+rank), k=60). Keyword search is a standalone lexical path,
// and Similar finds the nearest neighbors of an already-indexed item by
// ascending cosine distance. Hybrid responses are cached in a TTL-bounded
// LRU keyed by the logical query.
package searcher
