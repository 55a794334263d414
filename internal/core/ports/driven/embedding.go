package driven

import "context"

// EmbeddingService generates vector embeddings from text.
// The pipeline and the retrieval manager depend only on this
// signature, never on the model's internals.
//
// Implementations may include:
//   - Ollama (nomic-embed-text, all-minilm)
//   - OpenAI (text-embedding-3-small, text-embedding-3-large)
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size (e.g., 384, 768).
	// This is fixed per deployed model and must match the sample set.
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Close releases resources.
	Close() error
}

// EmbeddingCache is a bounded, content-hash keyed cache of chunk
// vectors. Purely a speed optimisation - losing it never causes
// incorrect results, only recomputation cost, so implementations must
// report failures as misses rather than errors.
type EmbeddingCache interface {
	// Get returns the cached vector for text, if present. A hit
	// refreshes the entry's recency.
	Get(text string) ([]float32, bool)

	// Put stores the vector for text, evicting the least recently
	// used entry on capacity overflow.
	Put(text string, vector []float32)

	// Len returns the current number of entries.
	Len() int

	// Capacity returns the configured bound.
	Capacity() int
}
