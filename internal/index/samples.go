package index

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/docuchat/ragcore/internal/core/domain"
	"github.com/docuchat/ragcore/internal/core/ports/driven"
)

// DefaultSampleSeed seeds sample generation. Deterministic so a
// rebuilt database regenerates identical samples.
const DefaultSampleSeed int64 = 0x5eed5

// GenerateSamples produces the fixed reference vectors from a
// deterministic seed. Each sample is drawn from a unit gaussian and
// normalised to unit length.
func GenerateSamples(seed int64, dimensions int) (*domain.SampleSet, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("generating samples: %w", domain.ErrInvalidInput)
	}

	rng := rand.New(rand.NewSource(seed))

	set := &domain.SampleSet{
		Seed:       seed,
		Dimensions: dimensions,
		CreatedAt:  time.Now().UTC(),
	}

	for i := 0; i < domain.SampleCount; i++ {
		vec := make([]float32, dimensions)
		var norm float64
		for j := range vec {
			v := rng.NormFloat64()
			vec[j] = float32(v)
			norm += v * v
		}
		norm = math.Sqrt(norm)
		for j := range vec {
			vec[j] = float32(float64(vec[j]) / norm)
		}
		set.Vectors[i] = vec
	}

	return set, nil
}

// EnsureSamples loads the persisted sample set or generates and
// persists one. The persisted set wins even if dimensions differ from
// the requested value - changing samples under live embeddings would
// invalidate every stored distance key.
func EnsureSamples(ctx context.Context, store driven.SampleStore, seed int64, dimensions int) (*domain.SampleSet, error) {
	set, err := store.Load(ctx)
	if err == nil {
		return set, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("loading sample set: %w", err)
	}

	set, err = GenerateSamples(seed, dimensions)
	if err != nil {
		return nil, err
	}

	if err := store.Save(ctx, set); err != nil {
		// A concurrent context may have won the race; prefer theirs.
		if existing, loadErr := store.Load(ctx); loadErr == nil {
			return existing, nil
		}
		return nil, fmt.Errorf("saving sample set: %w", err)
	}

	return set, nil
}
