package index

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDistance_FixedWidth(t *testing.T) {
	for _, d := range []float64{0, 0.5, 1, 1.5, 1.999999, 2, -0.1} {
		key := EncodeDistance(d)
		assert.Len(t, key, 8, "key for %v", d)
	}
}

func TestEncodeDistance_LexicographicOrderMatchesNumeric(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	distances := make([]float64, 200)
	for i := range distances {
		distances[i] = rng.Float64() * 2
	}
	sort.Float64s(distances)

	keys := make([]string, len(distances))
	for i, d := range distances {
		keys[i] = EncodeDistance(d)
	}

	assert.True(t, sort.StringsAreSorted(keys),
		"encoded keys must sort in the same order as the distances")
}

func TestEncodeDistance_Clamps(t *testing.T) {
	assert.Equal(t, EncodeDistance(0), EncodeDistance(-1))
	assert.Equal(t, EncodeDistance(maxEncodableDistance), EncodeDistance(5))
}

func TestDecodeDistance_RoundTrip(t *testing.T) {
	for _, d := range []float64{0, 0.123456, 1.0, 1.999999} {
		got, err := DecodeDistance(EncodeDistance(d))
		require.NoError(t, err)
		assert.InDelta(t, d, got, 1e-6)
	}
}

func TestDecodeDistance_Invalid(t *testing.T) {
	_, err := DecodeDistance("not-a-number")
	assert.Error(t, err)
}

func TestCosineSimilarity(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{0, 1, 0}

	assert.InDelta(t, 1.0, CosineSimilarity(a, a), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity(a, b), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity(a, []float32{-1, 0, 0}), 1e-9)
}

func TestCosineSimilarity_DegenerateInputs(t *testing.T) {
	assert.Equal(t, 0.0, CosineSimilarity(nil, nil))
	assert.Equal(t, 0.0, CosineSimilarity([]float32{1}, []float32{1, 2}))
	assert.Equal(t, 0.0, CosineSimilarity([]float32{0, 0}, []float32{1, 1}))
}

func TestCosineDistance_Range(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		a := randomVector(rng, 16)
		b := randomVector(rng, 16)
		d := CosineDistance(a, b)
		assert.GreaterOrEqual(t, d, 0.0)
		assert.LessOrEqual(t, d, 2.0)
	}
}

func randomVector(rng *rand.Rand, dims int) []float32 {
	vec := make([]float32, dims)
	var norm float64
	for i := range vec {
		v := rng.NormFloat64()
		vec[i] = float32(v)
		norm += v * v
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}
