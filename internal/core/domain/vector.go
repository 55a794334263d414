package domain

import "time"

// SampleCount is the number of fixed reference vectors used to reduce
// a high-dimensional embedding to indexable scalars. Each stored
// vector is indexed by its distance to every sample, so this value is
// baked into the persisted record shape (Idx0..Idx4).
const SampleCount = 5

// VectorEmbedding is the persisted vector for a single chunk together
// with its distance-to-sample index keys. Created only by the
// embedding pipeline, exactly once per chunk.
type VectorEmbedding struct {
	// ID is the unique identifier for the embedding record.
	ID string

	// ChunkID links to the embedded chunk. At most one non-deleted
	// embedding exists per chunk.
	ChunkID string

	// DocumentID links to the owning document, denormalised so the
	// index can filter candidates without a join.
	DocumentID string

	// SessionID is the session that originated the owning document.
	SessionID string

	// ChunkIndex mirrors the chunk's ordinal position. Used as the
	// deterministic tie-break when similarity scores are equal.
	ChunkIndex int

	// Vector is the raw embedding, dimension fixed per model.
	Vector []float32

	// DistanceKeys holds the lexicographically sortable encodings of
	// the cosine distance from Vector to each sample vector
	// (persisted as idx0..idx4). The underlying store range-scans
	// these keys as a coarse candidate filter.
	DistanceKeys [SampleCount]string

	// CreatedAt is when the embedding was computed.
	CreatedAt time.Time
}

// SampleSet holds the fixed reference vectors the index measures
// distances against. Generated once at database initialisation from a
// deterministic seed and persisted; it must never change while
// embeddings computed against it exist, because changing it
// invalidates every stored distance key.
type SampleSet struct {
	// Seed is the PRNG seed the samples were generated from.
	Seed int64

	// Dimensions is the vector dimension, fixed per embedding model.
	Dimensions int

	// Vectors are the unit-length reference vectors.
	Vectors [SampleCount][]float32

	// CreatedAt is when the set was generated.
	CreatedAt time.Time
}

// RetrievalTelemetry records one retrieval request for observability.
// Swept by the maintenance service once older than the retention
// horizon.
type RetrievalTelemetry struct {
	// ID is the unique identifier for the record.
	ID string

	// SessionID is the requesting chat session.
	SessionID string

	// Mode is the retrieval mode that actually ran.
	Mode RetrievalMode

	// Degraded is true when semantic retrieval fell back to basic.
	Degraded bool

	// LatencyMs is the end-to-end latency inside the retrieval manager.
	LatencyMs int64

	// ResultCount is the number of results returned.
	ResultCount int

	// CreatedAt is when the request completed.
	CreatedAt time.Time
}
