// Package source implements the remote archive boundary: an anonymous
// S3-compatible client that lists and downloads raw regulations.gov blobs
// from the public mirror and parses them into cache records.
//
// The cache manager rebuilds slices through this package, and the federated
// fallback reads through it directly when a rebuild fails.
package source
