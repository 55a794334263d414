package index

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuchat/ragcore/internal/adapters/driven/storage/memory"
	"github.com/docuchat/ragcore/internal/core/domain"
)

func TestGenerateSamples_Deterministic(t *testing.T) {
	a, err := GenerateSamples(42, 64)
	require.NoError(t, err)
	b, err := GenerateSamples(42, 64)
	require.NoError(t, err)

	assert.Equal(t, a.Vectors, b.Vectors, "same seed must produce identical samples")
}

func TestGenerateSamples_UnitLength(t *testing.T) {
	set, err := GenerateSamples(DefaultSampleSeed, 128)
	require.NoError(t, err)

	for i, vec := range set.Vectors {
		require.Len(t, vec, 128)
		var norm float64
		for _, v := range vec {
			norm += float64(v) * float64(v)
		}
		assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5, "sample %d", i)
	}
}

func TestGenerateSamples_InvalidDimensions(t *testing.T) {
	_, err := GenerateSamples(1, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestEnsureSamples_GeneratesOnceThenLoads(t *testing.T) {
	store := memory.NewSampleStore()
	ctx := context.Background()

	first, err := EnsureSamples(ctx, store, 42, 32)
	require.NoError(t, err)

	// A second call with a different seed must return the persisted set
	second, err := EnsureSamples(ctx, store, 99, 32)
	require.NoError(t, err)

	assert.Equal(t, first.Seed, second.Seed)
	assert.Equal(t, first.Vectors, second.Vectors)
}
