package embedder

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeHash(t *testing.T) {
	h1 := ComputeHash("public comment on water quality")
	h2 := ComputeHash("public comment on water quality")
	h3 := ComputeHash("different text")

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 64) // hex SHA-256
}

func TestValidateRequest(t *testing.T) {
	assert.NoError(t, ValidateRequest(EmbeddingRequest{Text: "hello"}))
	assert.ErrorIs(t, ValidateRequest(EmbeddingRequest{}), ErrEmptyText)
}

func TestValidateBatchRequest(t *testing.T) {
	assert.NoError(t, ValidateBatchRequest(BatchEmbeddingRequest{Texts: []string{"a", "b"}}))
	assert.ErrorIs(t, ValidateBatchRequest(BatchEmbeddingRequest{}), ErrInvalidInput)
	assert.ErrorIs(t, ValidateBatchRequest(BatchEmbeddingRequest{Texts: []string{"a", ""}}), ErrInvalidInput)
}

func TestCache(t *testing.T) {
	cache := NewCache(2)

	emb := &Embedding{Vector: []float32{1, 2, 3}, Dimension: 3, Provider: ProviderLocal}
	cache.Set("h1", emb)

	got, ok := cache.Get("h1")
	require.True(t, ok)
	assert.Equal(t, emb.Vector, got.Vector)

	// Mutating the returned copy must not pollute the cache.
	got.Vector[0] = 99
	again, ok := cache.Get("h1")
	require.True(t, ok)
	assert.Equal(t, float32(1), again.Vector[0])

	_, ok = cache.Get("missing")
	assert.False(t, ok)

	// LRU eviction at capacity.
	cache.Set("h2", emb)
	cache.Set("h3", emb)
	assert.Equal(t, 2, cache.Size())

	cache.Clear()
	assert.Equal(t, 0, cache.Size())
}

func TestLocalProvider_Deterministic(t *testing.T) {
	provider, err := NewLocalProvider(nil)
	require.NoError(t, err)
	defer func() { _ = provider.Close() }()

	ctx := context.Background()
	a, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "clean water standards"})
	require.NoError(t, err)
	b, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "clean water standards"})
	require.NoError(t, err)

	assert.Equal(t, a.Vector, b.Vector)
	assert.Equal(t, LocalDimension, a.Dimension)
	assert.Equal(t, ProviderLocal, a.Provider)
}

func TestLocalProvider_UnitNorm(t *testing.T) {
	provider, err := NewLocalProvider(nil)
	require.NoError(t, err)

	emb, err := provider.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "air quality rules"})
	require.NoError(t, err)

	var sum float64
	for _, v := range emb.Vector {
		sum += float64(v * v)
	}
	assert.InDelta(t, 1.0, sum, 1e-5)
}

func TestLocalProvider_SharedVocabularyIsCloser(t *testing.T) {
	provider, err := NewLocalProvider(nil)
	require.NoError(t, err)
	ctx := context.Background()

	base, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "clean water act protections"})
	require.NoError(t, err)
	near, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "clean water act standards"})
	require.NoError(t, err)
	far, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "airport noise abatement complaint"})
	require.NoError(t, err)

	assert.Greater(t, dot(base.Vector, near.Vector), dot(base.Vector, far.Vector))
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i] * b[i])
	}
	return sum
}

func TestLocalProvider_Batch(t *testing.T) {
	provider, err := NewLocalProvider(NewCache(100))
	require.NoError(t, err)

	resp, err := provider.GenerateBatch(context.Background(), BatchEmbeddingRequest{
		Texts: []string{"one", "two", "three"},
	})
	require.NoError(t, err)
	require.Len(t, resp.Embeddings, 3)
	assert.Equal(t, ProviderLocal, resp.Provider)
	for _, emb := range resp.Embeddings {
		assert.Len(t, emb.Vector, LocalDimension)
		assert.NotEmpty(t, emb.Hash)
	}
}

func TestLocalProvider_EmptyTextRejected(t *testing.T) {
	provider, err := NewLocalProvider(nil)
	require.NoError(t, err)

	_, err = provider.GenerateEmbedding(context.Background(), EmbeddingRequest{})
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestNormalizeVector_ZeroVector(t *testing.T) {
	v := []float32{0, 0, 0}
	assert.Equal(t, v, NormalizeVector(v))
}

func BenchmarkLocalProvider(b *testing.B) {
	provider, _ := NewLocalProvider(nil)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{
			Text: fmt.Sprintf("comment text number %d about water quality", i),
		})
		if err != nil {
			b.Fatal(err)
		}
	}
}
