package index

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuchat/ragcore/internal/adapters/driven/storage/memory"
	"github.com/docuchat/ragcore/internal/core/domain"
)

const testDims = 32

func newTestIndex(t *testing.T) (*Index, *memory.VectorStore) {
	t.Helper()
	vectors := memory.NewVectorStore()
	samples, err := GenerateSamples(DefaultSampleSeed, testDims)
	require.NoError(t, err)
	return New(vectors, samples), vectors
}

func insertVector(t *testing.T, ix *Index, docID, chunkID string, chunkIndex int, vec []float32) {
	t.Helper()
	err := ix.Insert(context.Background(), &domain.VectorEmbedding{
		ChunkID:    chunkID,
		DocumentID: docID,
		SessionID:  "sess-1",
		ChunkIndex: chunkIndex,
		Vector:     vec,
	})
	require.NoError(t, err)
}

func TestInsert_FillsDistanceKeys(t *testing.T) {
	ix, vectors := newTestIndex(t)
	rng := rand.New(rand.NewSource(1))

	insertVector(t, ix, "doc-1", "chunk-1", 0, randomVector(rng, testDims))

	all, err := vectors.All(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)

	assert.NotEmpty(t, all[0].ID)
	assert.False(t, all[0].CreatedAt.IsZero())
	for axis, key := range all[0].DistanceKeys {
		require.Len(t, key, 8, "axis %d", axis)
		d, err := DecodeDistance(key)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, d, 0.0)
		assert.LessOrEqual(t, d, 2.0)
	}
}

func TestInsert_DimensionMismatch(t *testing.T) {
	ix, _ := newTestIndex(t)

	err := ix.Insert(context.Background(), &domain.VectorEmbedding{
		ChunkID: "chunk-1",
		Vector:  []float32{1, 2, 3},
	})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestFindSimilar_ExactMatchOnTop(t *testing.T) {
	ix, _ := newTestIndex(t)
	rng := rand.New(rand.NewSource(2))
	ctx := context.Background()

	target := randomVector(rng, testDims)
	insertVector(t, ix, "doc-1", "chunk-target", 3, target)
	for i := 0; i < 20; i++ {
		insertVector(t, ix, "doc-1", fmt.Sprintf("chunk-%d", i), i+10, randomVector(rng, testDims))
	}

	matches, err := ix.FindSimilar(ctx, target, SearchOptions{K: 3, MinScore: 0.99})
	require.NoError(t, err)
	require.NotEmpty(t, matches)

	assert.Equal(t, "chunk-target", matches[0].Embedding.ChunkID)
	assert.InDelta(t, 1.0, matches[0].Similarity, 1e-6)
}

func TestFindSimilar_MinScoreContract(t *testing.T) {
	ix, _ := newTestIndex(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(3))

	_, err := ix.FindSimilar(ctx, randomVector(rng, testDims), SearchOptions{MinScore: -0.1})
	assert.ErrorIs(t, err, domain.ErrInvalidScore)

	_, err = ix.FindSimilar(ctx, randomVector(rng, testDims), SearchOptions{MinScore: 1.5})
	assert.ErrorIs(t, err, domain.ErrInvalidScore)
}

func TestFindSimilar_EmptyIndexReturnsEmpty(t *testing.T) {
	ix, _ := newTestIndex(t)
	rng := rand.New(rand.NewSource(4))

	matches, err := ix.FindSimilar(context.Background(), randomVector(rng, testDims), SearchOptions{K: 5})
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestFindSimilar_FewerThanK(t *testing.T) {
	ix, _ := newTestIndex(t)
	rng := rand.New(rand.NewSource(5))

	query := randomVector(rng, testDims)
	insertVector(t, ix, "doc-1", "chunk-1", 0, query)
	insertVector(t, ix, "doc-1", "chunk-2", 1, randomVector(rng, testDims))

	matches, err := ix.FindSimilar(context.Background(), query, SearchOptions{K: 10, MinScore: 0})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(matches), 2)
	assert.NotEmpty(t, matches)
}

func TestFindSimilar_DocumentFilter(t *testing.T) {
	ix, _ := newTestIndex(t)
	rng := rand.New(rand.NewSource(6))
	ctx := context.Background()

	query := randomVector(rng, testDims)
	insertVector(t, ix, "doc-in", "chunk-in", 0, query)
	insertVector(t, ix, "doc-out", "chunk-out", 0, query)

	matches, err := ix.FindSimilar(ctx, query, SearchOptions{K: 10, DocumentIDs: []string{"doc-in"}})
	require.NoError(t, err)

	for _, m := range matches {
		assert.Equal(t, "doc-in", m.Embedding.DocumentID)
	}
	require.Len(t, matches, 1)
}

func TestFindSimilar_TieBreakByChunkIndex(t *testing.T) {
	ix, _ := newTestIndex(t)
	rng := rand.New(rand.NewSource(7))
	ctx := context.Background()

	// Identical vectors produce identical similarity; order must be
	// by chunk index
	vec := randomVector(rng, testDims)
	insertVector(t, ix, "doc-1", "chunk-b", 5, vec)
	insertVector(t, ix, "doc-1", "chunk-a", 2, vec)

	matches, err := ix.FindSimilar(ctx, vec, SearchOptions{K: 2})
	require.NoError(t, err)
	require.Len(t, matches, 2)

	assert.Equal(t, "chunk-a", matches[0].Embedding.ChunkID)
	assert.Equal(t, "chunk-b", matches[1].Embedding.ChunkID)
}

// Coarse filtering may lose true neighbours but must never invent
// candidates or rank a false candidate above a true neighbour on the
// final exact score.
func TestFindSimilar_SubsetOfFullScan(t *testing.T) {
	ix, _ := newTestIndex(t)
	rng := rand.New(rand.NewSource(8))
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		insertVector(t, ix, "doc-1", fmt.Sprintf("chunk-%d", i), i, randomVector(rng, testDims))
	}

	for trial := 0; trial < 5; trial++ {
		query := randomVector(rng, testDims)
		opts := SearchOptions{K: 100, MinScore: 0}

		approx, err := ix.FindSimilar(ctx, query, opts)
		require.NoError(t, err)
		exact, err := ix.FullScan(ctx, query, opts)
		require.NoError(t, err)

		exactSims := make(map[string]float64, len(exact))
		for _, m := range exact {
			exactSims[m.Embedding.ChunkID] = m.Similarity
		}

		// Subset property: every approximate hit appears in the oracle
		// with the same exact score
		for _, m := range approx {
			sim, ok := exactSims[m.Embedding.ChunkID]
			require.True(t, ok, "approximate result %s missing from full scan", m.Embedding.ChunkID)
			assert.InDelta(t, sim, m.Similarity, 1e-9)
		}

		// Ordering agrees: approximate results are sorted by the same
		// exact score
		for i := 1; i < len(approx); i++ {
			assert.GreaterOrEqual(t, approx[i-1].Similarity, approx[i].Similarity)
		}
	}
}

func TestFullScan_RanksEverything(t *testing.T) {
	ix, _ := newTestIndex(t)
	rng := rand.New(rand.NewSource(9))
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		insertVector(t, ix, "doc-1", fmt.Sprintf("chunk-%d", i), i, randomVector(rng, testDims))
	}

	matches, err := ix.FullScan(ctx, randomVector(rng, testDims), SearchOptions{K: 100, MinScore: 0})
	require.NoError(t, err)
	assert.Len(t, matches, 10)
}

func TestFindSimilar_WideningFindsDistantNeighbours(t *testing.T) {
	// A tiny initial window with generous widening should still find
	// vectors far from the query on every axis
	vectors := memory.NewVectorStore()
	samples, err := GenerateSamples(DefaultSampleSeed, testDims)
	require.NoError(t, err)
	ix := New(vectors, samples, WithInitialWindow(0.001), WithMaxWidenings(10))

	rng := rand.New(rand.NewSource(10))
	ctx := context.Background()

	for i := 0; i < 30; i++ {
		insertVector(t, ix, "doc-1", fmt.Sprintf("chunk-%d", i), i, randomVector(rng, testDims))
	}

	matches, err := ix.FindSimilar(ctx, randomVector(rng, testDims), SearchOptions{K: 5, MinScore: 0})
	require.NoError(t, err)
	assert.NotEmpty(t, matches)
}
