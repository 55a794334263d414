// Package domain defines the core business entities for the ragcore
// retrieval engine.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: An uploaded document with session membership
//   - DocumentChunk: The unit of embedding and retrieval
//   - VectorEmbedding: A chunk vector plus its distance index keys
//   - SampleSet: The fixed reference vectors of the index
//   - RetrievalResult: The tagged basic/semantic retrieval union
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
