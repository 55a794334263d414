// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - DocumentStore: Document and chunk persistence
//   - VectorStore: Vector record persistence with range scans over
//     the distance index keys
//   - SampleStore: Persistence of the fixed sample set
//   - CheckpointStore: Pipeline resume-point persistence
//   - LeaderElector: Cross-context lease so exactly one pipeline writes
//   - EmbeddingService: Generates vector embeddings
//
// # Optional Interfaces
//
// These can be nil - the engine degrades gracefully:
//
//   - EmbeddingCache: Speed optimisation only; a missing or broken
//     cache behaves as a permanent miss
//   - TelemetryStore: Retrieval observability records
//   - ConfigStore: Application configuration
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
