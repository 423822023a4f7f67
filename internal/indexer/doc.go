// Package indexer builds the comment search corpus.
//
// A run loads cached comment records through the cache manager, converts
// each record into a search doc (the comment body, falling back to the
// title), embeds the texts in batches, and upserts the docs into the
// store's search corpus. Records with no usable text are skipped, not
// failed. Batches run on a bounded worker pool, and a non-blocking
// process-wide lock keeps runs from overlapping.
package indexer
