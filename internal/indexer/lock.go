package indexer

import "sync/atomic"

// IndexLock is a non-blocking mutual exclusion guard for indexing runs.
// Callers that lose the race get an immediate refusal instead of queueing
// behind a long-running embed job.
type IndexLock struct {
	held atomic.Bool
}

// TryAcquire takes the lock if it is free and reports whether it did.
func (l *IndexLock) TryAcquire() bool {
	return l.held.CompareAndSwap(false, true)
}

// Release frees the lock. Only the acquirer may call it.
func (l *IndexLock) Release() {
	l.held.Store(false)
}
