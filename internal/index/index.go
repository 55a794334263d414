// Package index implements the Distance-to-Samples vector index.
//
// The underlying store cannot range-query a full D-dimensional
// vector, so each stored vector is reduced to its cosine distances to
// a fixed set of sample vectors, and each distance is persisted as a
// sortable string the store can range-scan natively. The scans are a
// coarse filter only: every candidate is re-ranked with the exact
// cosine similarity before results are returned.
package index

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/docuchat/ragcore/internal/core/domain"
	"github.com/docuchat/ragcore/internal/core/ports/driven"
	"github.com/docuchat/ragcore/internal/logger"
)

// Default search tuning values.
const (
	// DefaultInitialWindow is the starting tolerance around the
	// query's distance on each sample axis.
	DefaultInitialWindow = 0.05

	// DefaultMaxWidenings bounds how many times the window doubles
	// before the search settles for what it has. Keeps search cost
	// bounded instead of degrading into a full scan.
	DefaultMaxWidenings = 4

	// candidateOversample stops widening once this many times K
	// candidates are collected.
	candidateOversample = 3
)

// Index performs approximate nearest-neighbour search over a
// VectorStore using the distance-to-samples scheme.
type Index struct {
	vectors      driven.VectorStore
	samples      *domain.SampleSet
	window       float64
	maxWidenings int
}

// Option configures the index.
type Option func(*Index)

// WithInitialWindow sets the starting tolerance per axis.
func WithInitialWindow(w float64) Option {
	return func(ix *Index) {
		if w > 0 {
			ix.window = w
		}
	}
}

// WithMaxWidenings sets the widening cap.
func WithMaxWidenings(n int) Option {
	return func(ix *Index) {
		if n >= 0 {
			ix.maxWidenings = n
		}
	}
}

// New creates an index over the given store and sample set.
func New(vectors driven.VectorStore, samples *domain.SampleSet, opts ...Option) *Index {
	ix := &Index{
		vectors:      vectors,
		samples:      samples,
		window:       DefaultInitialWindow,
		maxWidenings: DefaultMaxWidenings,
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// SearchOptions configures a similarity search.
type SearchOptions struct {
	// K is the maximum number of matches to return. Defaults to 5.
	K int

	// MinScore discards matches with exact similarity below this
	// threshold. Must be within [0,1].
	MinScore float64

	// DocumentIDs restricts matches to these documents when non-empty.
	DocumentIDs []string
}

// Match is one similarity search result.
type Match struct {
	// Embedding is the matched record.
	Embedding domain.VectorEmbedding

	// Similarity is the exact cosine similarity to the query.
	Similarity float64
}

// Insert computes the distance keys for the chunk vector and persists
// the record. The caller provides identity fields; Insert fills ID,
// DistanceKeys and CreatedAt.
func (ix *Index) Insert(ctx context.Context, emb *domain.VectorEmbedding) error {
	keys, err := ix.DistanceKeys(emb.Vector)
	if err != nil {
		return err
	}

	if emb.ID == "" {
		emb.ID = uuid.New().String()
	}
	emb.DistanceKeys = keys
	if emb.CreatedAt.IsZero() {
		emb.CreatedAt = time.Now().UTC()
	}

	if err := ix.vectors.Insert(ctx, emb); err != nil {
		return fmt.Errorf("inserting embedding for chunk %s: %w", emb.ChunkID, err)
	}
	return nil
}

// DistanceKeys computes the encoded distance of vec to every sample.
func (ix *Index) DistanceKeys(vec []float32) ([domain.SampleCount]string, error) {
	var keys [domain.SampleCount]string
	if len(vec) != ix.samples.Dimensions {
		return keys, fmt.Errorf("vector has %d dimensions, samples have %d: %w",
			len(vec), ix.samples.Dimensions, domain.ErrDimensionMismatch)
	}
	for i, sample := range ix.samples.Vectors {
		keys[i] = EncodeDistance(CosineDistance(vec, sample))
	}
	return keys, nil
}

// FindSimilar returns the top-K matches for the query vector.
//
// Candidates are gathered by range-scanning each sample axis within a
// tolerance window around the query's own distance; the window starts
// narrow and doubles (up to the widening cap) while too few
// candidates have been found. The union of all axes is then re-ranked
// by exact cosine similarity. Ties are broken by chunk index so
// results are deterministic.
func (ix *Index) FindSimilar(ctx context.Context, query []float32, opts SearchOptions) ([]Match, error) {
	if opts.MinScore < 0 || opts.MinScore > 1 {
		return nil, domain.ErrInvalidScore
	}
	if len(query) != ix.samples.Dimensions {
		return nil, fmt.Errorf("query has %d dimensions, samples have %d: %w",
			len(query), ix.samples.Dimensions, domain.ErrDimensionMismatch)
	}

	k := opts.K
	if k <= 0 {
		k = 5
	}

	// Query's own position on each axis
	var distances [domain.SampleCount]float64
	for i, sample := range ix.samples.Vectors {
		distances[i] = CosineDistance(query, sample)
	}

	docFilter := toSet(opts.DocumentIDs)
	candidates := make(map[string]domain.VectorEmbedding)

	window := ix.window
	for attempt := 0; ; attempt++ {
		for axis := 0; axis < domain.SampleCount; axis++ {
			low := EncodeDistance(distances[axis] - window)
			high := EncodeDistance(distances[axis] + window)

			hits, err := ix.vectors.RangeByDistanceKey(ctx, axis, low, high)
			if err != nil {
				return nil, fmt.Errorf("range scan on axis %d: %w", axis, err)
			}

			for _, hit := range hits {
				if docFilter != nil && !docFilter[hit.DocumentID] {
					continue
				}
				candidates[hit.ID] = hit
			}
		}

		if len(candidates) >= k*candidateOversample || attempt >= ix.maxWidenings {
			break
		}
		window *= 2
		logger.Debug("index: widening search window to %.4f (%d candidates so far)", window, len(candidates))
	}

	logger.Debug("index: %d candidates after coarse filter", len(candidates))

	matches := make([]Match, 0, len(candidates))
	for _, emb := range candidates {
		sim := CosineSimilarity(query, emb.Vector)
		if sim < opts.MinScore {
			continue
		}
		matches = append(matches, Match{Embedding: emb, Similarity: sim})
	}

	sortMatches(matches)

	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// FullScan ranks every stored vector by exact similarity. Correctness
// oracle for tests; not used on the retrieval hot path.
func (ix *Index) FullScan(ctx context.Context, query []float32, opts SearchOptions) ([]Match, error) {
	if opts.MinScore < 0 || opts.MinScore > 1 {
		return nil, domain.ErrInvalidScore
	}

	k := opts.K
	if k <= 0 {
		k = 5
	}

	all, err := ix.vectors.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("scanning all embeddings: %w", err)
	}

	docFilter := toSet(opts.DocumentIDs)

	matches := make([]Match, 0, len(all))
	for _, emb := range all {
		if docFilter != nil && !docFilter[emb.DocumentID] {
			continue
		}
		sim := CosineSimilarity(query, emb.Vector)
		if sim < opts.MinScore {
			continue
		}
		matches = append(matches, Match{Embedding: emb, Similarity: sim})
	}

	sortMatches(matches)

	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// sortMatches orders by similarity descending, then chunk index
// ascending for a stable, deterministic order.
func sortMatches(matches []Match) {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].Embedding.ChunkIndex < matches[j].Embedding.ChunkIndex
	})
}

func toSet(ids []string) map[string]bool {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
