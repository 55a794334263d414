package driven

import (
	"context"

	"github.com/docuchat/ragcore/internal/core/domain"
)

// VectorStore persists vector embeddings and serves coarse candidate
// lookups over the distance index keys. It never ranks - exact
// scoring is the vector index's job.
type VectorStore interface {
	// Insert stores an embedding record.
	Insert(ctx context.Context, emb *domain.VectorEmbedding) error

	// ExistsForChunk reports whether a non-deleted embedding exists
	// for the chunk. The pipeline's idempotency check.
	ExistsForChunk(ctx context.Context, chunkID string) (bool, error)

	// RangeByDistanceKey returns embeddings whose encoded distance to
	// sample axis (0..4) lies within [low, high] inclusive, using the
	// store's native lexicographic range index.
	RangeByDistanceKey(ctx context.Context, axis int, low, high string) ([]domain.VectorEmbedding, error)

	// All returns every embedding. Used by the full-scan oracle and
	// the maintenance sweep, not the retrieval hot path.
	All(ctx context.Context) ([]domain.VectorEmbedding, error)

	// DeleteForChunk removes the embedding for a chunk, if any.
	DeleteForChunk(ctx context.Context, chunkID string) error

	// DeleteForDocument removes all embeddings for a document,
	// returning the number deleted.
	DeleteForDocument(ctx context.Context, documentID string) (int, error)

	// CountForDocument returns the number of embeddings for a document.
	CountForDocument(ctx context.Context, documentID string) (int, error)

	// Count returns the total number of embeddings.
	Count(ctx context.Context) (int, error)

	// ListDocumentIDs returns the distinct document IDs referenced by
	// stored embeddings.
	ListDocumentIDs(ctx context.Context) ([]string, error)
}

// SampleStore persists the fixed sample set.
type SampleStore interface {
	// Load returns the persisted sample set, or domain.ErrNotFound
	// when none has been generated yet.
	Load(ctx context.Context) (*domain.SampleSet, error)

	// Save persists a newly generated sample set. Implementations
	// must refuse to overwrite an existing set.
	Save(ctx context.Context, set *domain.SampleSet) error
}
