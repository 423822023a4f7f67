package indexer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spicyregs/regsearch/internal/embedder"
	"github.com/spicyregs/regsearch/internal/storage"
	"github.com/spicyregs/regsearch/pkg/types"
)

// staticProvider serves a fixed record slice.
type staticProvider struct {
	records []types.Record
	err     error
	delay   time.Duration
}

func (p *staticProvider) GetData(ctx context.Context, dataType types.DataType, agencyCode, docketID string, maxAgeHours float64) ([]types.Record, error) {
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	return p.records, p.err
}

func comment(item, title, body string) types.Record {
	return types.Record{
		AgencyCode: "EPA",
		DocketID:   "EPA-HQ-OAR-2020-0001",
		ItemID:     item,
		Title:      title,
		Comment:    body,
	}
}

func setupIndexer(t *testing.T, provider DataProvider) (*Indexer, *storage.SQLiteStore) {
	t.Helper()
	store, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	emb, err := embedder.NewLocalProvider(nil)
	require.NoError(t, err)
	return New(provider, store, emb, nil), store
}

func TestIndexComments(t *testing.T) {
	provider := &staticProvider{records: []types.Record{
		comment("c1", "first", "supports the rule"),
		comment("c2", "second", "opposes the rule"),
		comment("c3", "title only", ""),
		comment("c4", "", ""), // no usable text
	}}
	idx, store := setupIndexer(t, provider)

	stats, err := idx.IndexComments(context.Background(), Config{BatchSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Indexed)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 0, stats.Failed)
	assert.Empty(t, stats.ErrorMessages)

	n, err := store.CountSearchDocs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// Title-only comments index their title text with a vector.
	vec, err := store.GetVector(context.Background(), "c3")
	require.NoError(t, err)
	assert.Len(t, vec, embedder.LocalDimension)
}

func TestIndexComments_ReindexUpserts(t *testing.T) {
	provider := &staticProvider{records: []types.Record{comment("c1", "first", "original text")}}
	idx, store := setupIndexer(t, provider)
	ctx := context.Background()

	_, err := idx.IndexComments(ctx, Config{})
	require.NoError(t, err)

	provider.records = []types.Record{comment("c1", "first", "revised text")}
	stats, err := idx.IndexComments(ctx, Config{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Indexed)

	n, err := store.CountSearchDocs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "reindexing the same id replaces, not duplicates")

	hit, err := store.GetHit(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "revised text", hit.Text)
}

func TestIndexComments_ProviderError(t *testing.T) {
	idx, _ := setupIndexer(t, &staticProvider{err: errors.New("archive down")})

	_, err := idx.IndexComments(context.Background(), Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load comment records")
}

// unavailableEmbedder fails every batch.
type unavailableEmbedder struct {
	embedder.Embedder
}

func (u *unavailableEmbedder) GenerateBatch(ctx context.Context, req embedder.BatchEmbeddingRequest) (*embedder.BatchEmbeddingResponse, error) {
	return nil, embedder.ErrUnavailable
}

func TestIndexComments_EmbedderUnavailable(t *testing.T) {
	provider := &staticProvider{records: []types.Record{comment("c1", "first", "text")}}
	store, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	local, err := embedder.NewLocalProvider(nil)
	require.NoError(t, err)
	idx := New(provider, store, &unavailableEmbedder{Embedder: local}, nil)

	stats, err := idx.IndexComments(context.Background(), Config{})
	require.Error(t, err)
	assert.ErrorIs(t, err, embedder.ErrUnavailable)
	require.NotNil(t, stats)
	assert.Equal(t, 1, stats.Failed)
}

func TestIndexComments_ConcurrentRunRejected(t *testing.T) {
	provider := &staticProvider{
		records: []types.Record{comment("c1", "first", "text")},
		delay:   100 * time.Millisecond,
	}
	idx, _ := setupIndexer(t, provider)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = idx.IndexComments(context.Background(), Config{})
		}(i)
	}
	wg.Wait()

	var busy, ok int
	for _, err := range errs {
		if errors.Is(err, ErrIndexingInProgress) {
			busy++
		} else if err == nil {
			ok++
		}
	}
	assert.Equal(t, 1, busy)
	assert.Equal(t, 1, ok)
}

func TestIndexLock(t *testing.T) {
	var lock IndexLock
	require.True(t, lock.TryAcquire())
	assert.False(t, lock.TryAcquire())
	lock.Release()
	assert.True(t, lock.TryAcquire())
}
