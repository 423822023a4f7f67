package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/spicyregs/regsearch/pkg/types"
)

const defaultCacheSize = 10000

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrUnsupportedModel  = errors.New("unsupported model")
	ErrEmptyText         = errors.New("text cannot be empty")
	ErrBatchTooLarge     = errors.New("batch size exceeds limit")
	ErrNoProviderEnabled = errors.New("no embedding provider configured")

	// ErrUnavailable marks network, auth, and quota failures. Callers that
	// need embeddings surface it; they never silently degrade to keyword
	// search.
	ErrUnavailable = types.ErrEmbeddingUnavailable
)

// Embedding is one dense vector plus the provenance needed to detect
// dimension mismatches across providers.
type Embedding struct {
	Vector    []float32
	Dimension int
	Provider  string
	Model     string
	Hash      string
}

// clone returns an independent copy so cached vectors cannot be mutated
// through a returned embedding.
func (e *Embedding) clone() *Embedding {
	out := *e
	out.Vector = make([]float32, len(e.Vector))
	copy(out.Vector, e.Vector)
	return &out
}

// EmbeddingRequest asks for one text to be embedded. Model overrides the
// provider default when set.
type EmbeddingRequest struct {
	Text  string
	Model string
}

// BatchEmbeddingRequest asks for several texts in one provider call.
type BatchEmbeddingRequest struct {
	Texts []string
	Model string
}

// BatchEmbeddingResponse carries the embeddings in request order.
type BatchEmbeddingResponse struct {
	Embeddings []*Embedding
	Provider   string
	Model      string
}

// Embedder generates embeddings for comment text and search queries. The
// indexer and the searcher share one instance so they also share its cache.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error)
	GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error)

	// Dimension returns the vector width this provider produces.
	Dimension() int
	Provider() string
	Model() string

	Close() error
}

// Cache memoizes embeddings by content hash with LRU eviction. Queries
// repeat often during a session; comments repeat across reindex runs.
type Cache struct {
	entries *lru.Cache[string, *Embedding]
}

// NewCache creates an embedding cache holding at most maxLen entries.
// Non-positive sizes fall back to the default.
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = defaultCacheSize
	}
	entries, err := lru.New[string, *Embedding](maxLen)
	if err != nil {
		entries, _ = lru.New[string, *Embedding](defaultCacheSize)
	}
	return &Cache{entries: entries}
}

// Get returns a copy of the cached embedding for a content hash.
func (c *Cache) Get(hash string) (*Embedding, bool) {
	emb, ok := c.entries.Get(hash)
	if !ok {
		return nil, false
	}
	return emb.clone(), true
}

// Set stores an embedding, evicting the least recently used entry if full.
func (c *Cache) Set(hash string, emb *Embedding) {
	c.entries.Add(hash, emb)
}

// Size returns the number of cached embeddings.
func (c *Cache) Size() int {
	return c.entries.Len()
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.entries.Purge()
}

// ComputeHash returns the SHA-256 content hash used as the cache key.
func ComputeHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// ValidateRequest rejects requests with no text to embed.
func ValidateRequest(req EmbeddingRequest) error {
	if req.Text == "" {
		return ErrEmptyText
	}
	return nil
}

// ValidateBatchRequest rejects empty batches and batches containing empty
// texts. Providers additionally enforce their own batch size limit.
func ValidateBatchRequest(req BatchEmbeddingRequest) error {
	if len(req.Texts) == 0 {
		return fmt.Errorf("%w: no texts provided", ErrInvalidInput)
	}
	for i, text := range req.Texts {
		if text == "" {
			return fmt.Errorf("%w: text at index %d is empty", ErrInvalidInput, i)
		}
	}
	return nil
}
