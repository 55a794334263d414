package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidScore indicates a minScore outside the [0,1] contract.
	ErrInvalidScore = errors.New("min score must be within [0,1]")

	// ErrEmbeddingUnavailable indicates the embedding service failed
	// or is not configured. Semantic retrieval degrades to basic.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrDimensionMismatch indicates a vector whose dimension does
	// not match the sample set.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrSampleSetImmutable indicates an attempt to replace the
	// sample set while embeddings computed against it still exist.
	ErrSampleSetImmutable = errors.New("sample set is immutable while embeddings exist")

	// ErrNotLeader indicates a pipeline write was attempted by a
	// context that does not hold the leader lease.
	ErrNotLeader = errors.New("not the pipeline leader")

	// ErrPipelineRunning indicates the pipeline is already started.
	ErrPipelineRunning = errors.New("pipeline already running")
)
