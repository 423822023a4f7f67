package searcher

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/spicyregs/regsearch/internal/embedder"
	"github.com/spicyregs/regsearch/internal/storage"
	"github.com/spicyregs/regsearch/pkg/types"
)

// Limit bounds per operation.
const (
	DefaultHybridLimit = 20
	MaxHybridLimit     = 50

	DefaultSimilarLimit = 10
	MaxSimilarLimit     = 30

	// DefaultRRFConstant is the k in score += 1/(k+rank).
	DefaultRRFConstant = 60.0

	// DefaultCacheTTL bounds how long a hybrid response stays servable
	// from the response cache.
	DefaultCacheTTL = 15 * time.Minute

	responseCacheSize = 1000
)

// cacheEntry is a cached hybrid response with its expiration time.
type cacheEntry struct {
	hits      []types.SearchHit
	expiresAt time.Time
}

// Searcher runs keyword, hybrid, and similarity searches over the indexed
// comment corpus.
type Searcher struct {
	store    storage.Store
	embedder embedder.Embedder
	logger   *slog.Logger

	cacheTTL time.Duration
	cache    *lru.Cache[[32]byte, *cacheEntry]
	cacheMu  sync.RWMutex
}

// Option configures a Searcher.
type Option func(*Searcher)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) {
		s.logger = logger
	}
}

// WithCacheTTL sets the hybrid response cache TTL. Zero disables caching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Searcher) {
		s.cacheTTL = ttl
	}
}

// NewSearcher creates a Searcher over the given store and embedder.
func NewSearcher(store storage.Store, emb embedder.Embedder, opts ...Option) *Searcher {
	cache, err := lru.New[[32]byte, *cacheEntry](responseCacheSize)
	if err != nil {
		// Unreachable with a positive size.
		panic(fmt.Sprintf("create response cache: %v", err))
	}

	s := &Searcher{
		store:    store,
		embedder: emb,
		logger:   slog.Default(),
		cacheTTL: DefaultCacheTTL,
		cache:    cache,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hybrid runs lexical and semantic search concurrently and fuses the two
// rankings with Reciprocal Rank Fusion. A blank query returns an empty
// result. An embedding failure surfaces as ErrEmbeddingUnavailable; hybrid
// search never silently degrades to keyword-only results.
func (s *Searcher) Hybrid(ctx context.Context, query string, limit int, agencyCode string) ([]types.SearchHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []types.SearchHit{}, nil
	}
	limit = clampLimit(limit, DefaultHybridLimit, MaxHybridLimit)

	key := queryHash("hybrid", query, limit, agencyCode)
	if hits, ok := s.fromCache(key); ok {
		return hits, nil
	}

	// Embed before launching the legs: a dead embedding provider is the
	// caller's problem, not something to paper over with keyword results.
	emb, err := s.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: query})
	if err != nil {
		if errors.Is(err, types.ErrEmbeddingUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", types.ErrEmbeddingUnavailable, err)
	}

	// Both legs overfetch so fusion has enough candidates, and both carry
	// the agency filter: filtering happens before fusion, never after.
	fetch := limit * 2
	var (
		wg         sync.WaitGroup
		vecResults []storage.VectorResult
		txtResults []storage.TextResult
		vecErr     error
		txtErr     error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		vecResults, vecErr = s.store.SearchVector(ctx, emb.Vector, fetch, agencyCode, "")
	}()
	go func() {
		defer wg.Done()
		txtResults, txtErr = s.store.SearchText(ctx, query, fetch, agencyCode)
	}()
	wg.Wait()

	// One leg may fail as long as the other produced a ranking.
	if vecErr != nil && txtErr != nil {
		return nil, fmt.Errorf("both search legs failed: vector=%v, text=%v", vecErr, txtErr)
	}
	if vecErr != nil {
		s.logger.Warn("vector leg failed, fusing text ranking only", "error", vecErr)
	}
	if txtErr != nil {
		s.logger.Warn("text leg failed, fusing vector ranking only", "error", txtErr)
	}

	fused := fuseRRF(vecResults, txtResults, DefaultRRFConstant)
	hits, err := s.hydrate(ctx, fused, limit)
	if err != nil {
		return nil, err
	}

	s.toCache(key, hits)
	return hits, nil
}

// Keyword runs BM25 lexical search only. It is its own operation, not a
// fallback inside Hybrid.
func (s *Searcher) Keyword(ctx context.Context, query string, limit int, agencyCode string) ([]types.SearchHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []types.SearchHit{}, nil
	}
	limit = clampLimit(limit, DefaultHybridLimit, MaxHybridLimit)

	results, err := s.store.SearchText(ctx, query, limit, agencyCode)
	if err != nil {
		return nil, fmt.Errorf("text search: %w", err)
	}

	ranked := make([]rankedResult, len(results))
	for i, r := range results {
		ranked[i] = rankedResult{id: r.ID, score: r.Score}
	}
	return s.hydrate(ctx, ranked, limit)
}

// Similar returns the nearest neighbors of an already-indexed item, ordered
// by ascending cosine distance. The source item itself is excluded. An id
// that is not in the vector index yields ErrNotFound.
func (s *Searcher) Similar(ctx context.Context, id string, limit int) ([]types.SearchHit, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: id is required", types.ErrInvalidArgument)
	}
	limit = clampLimit(limit, DefaultSimilarLimit, MaxSimilarLimit)

	vector, err := s.store.GetVector(ctx, id)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s is not in the vector index", types.ErrNotFound, id)
		}
		return nil, fmt.Errorf("load vector for %s: %w", id, err)
	}

	neighbors, err := s.store.SearchVector(ctx, vector, limit, "", id)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	// Similarity ranks high-to-low; distance reads low-to-high. The store
	// already ordered by similarity descending, which is distance
	// ascending.
	ranked := make([]rankedResult, len(neighbors))
	for i, n := range neighbors {
		ranked[i] = rankedResult{id: n.ID, score: 1 - n.Similarity}
	}
	return s.hydrate(ctx, ranked, limit)
}

// InvalidateCache drops every cached hybrid response. Called after a corpus
// reindex.
func (s *Searcher) InvalidateCache() {
	s.cacheMu.Lock()
	s.cache.Purge()
	s.cacheMu.Unlock()
}

// rankedResult is one corpus item with its final score, before hydration.
type rankedResult struct {
	id    string
	score float64
}

// fuseRRF fuses the two rankings with Reciprocal Rank Fusion:
// score(d) = sum over lists of 1/(k + rank(d)). An item appearing in only
// one list scores from that list alone.
func fuseRRF(vectorResults []storage.VectorResult, textResults []storage.TextResult, k float64) []rankedResult {
	scores := make(map[string]float64)
	for rank, vr := range vectorResults {
		scores[vr.ID] += 1.0 / (k + float64(rank+1))
	}
	for rank, tr := range textResults {
		scores[tr.ID] += 1.0 / (k + float64(rank+1))
	}

	fused := make([]rankedResult, 0, len(scores))
	for id, score := range scores {
		fused = append(fused, rankedResult{id: id, score: score})
	}

	// Descending score with an id tie-break keeps the ordering
	// deterministic across runs.
	sort.Slice(fused, func(i, j int) bool {
		if fused[i].score != fused[j].score {
			return fused[i].score > fused[j].score
		}
		return fused[i].id < fused[j].id
	})
	return fused
}

// hydrate loads display fields for the top ranked items and assigns final
// ranks 1..N. Items that vanished from the corpus between ranking and
// hydration are skipped.
func (s *Searcher) hydrate(ctx context.Context, ranked []rankedResult, limit int) ([]types.SearchHit, error) {
	if limit > len(ranked) {
		limit = len(ranked)
	}

	hits := make([]types.SearchHit, 0, limit)
	for _, rr := range ranked {
		if len(hits) == limit {
			break
		}
		hit, err := s.store.GetHit(ctx, rr.id)
		if err != nil {
			if errors.Is(err, types.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("load hit %s: %w", rr.id, err)
		}
		hit.Score = rr.score
		hit.Rank = len(hits) + 1
		hits = append(hits, *hit)
	}
	return hits, nil
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

// queryHash is the response cache key for one logical query.
func queryHash(mode, query string, limit int, agencyCode string) [32]byte {
	var data strings.Builder
	data.WriteString(mode)
	data.WriteString("|")
	data.WriteString(query)
	data.WriteString("|")
	data.WriteString(strconv.Itoa(limit))
	data.WriteString("|")
	data.WriteString(agencyCode)
	return sha256.Sum256([]byte(data.String()))
}

func (s *Searcher) fromCache(key [32]byte) ([]types.SearchHit, bool) {
	if s.cacheTTL <= 0 {
		return nil, false
	}

	s.cacheMu.RLock()
	entry, found := s.cache.Get(key)
	if !found {
		s.cacheMu.RUnlock()
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		s.cacheMu.RUnlock()
		s.cacheMu.Lock()
		s.cache.Remove(key)
		s.cacheMu.Unlock()
		return nil, false
	}
	hits := make([]types.SearchHit, len(entry.hits))
	copy(hits, entry.hits)
	s.cacheMu.RUnlock()
	return hits, true
}

func (s *Searcher) toCache(key [32]byte, hits []types.SearchHit) {
	if s.cacheTTL <= 0 || len(hits) == 0 {
		return
	}

	stored := make([]types.SearchHit, len(hits))
	copy(stored, hits)
	entry := &cacheEntry{
		hits:      stored,
		expiresAt: time.Now().Add(s.cacheTTL),
	}

	s.cacheMu.Lock()
	s.cache.Add(key, entry)
	s.cacheMu.Unlock()
}
