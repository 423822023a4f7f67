// Package cache implements the read-through cache manager over the local
// SQLite store and the remote archive.
//
// Each (data type, agency, docket) filter addresses one cache slice. A
// request checks the slice's freshness, serves it when fresh, and otherwise
// rebuilds it wholesale from the remote archive before serving. Concurrent
// requests for the same stale slice coalesce onto a single rebuild. When a
// rebuild fails the manager answers the request with a direct remote read
// instead, so callers see the same result shape on every path.
package cache
