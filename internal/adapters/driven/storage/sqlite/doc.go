// Package sqlite provides a unified SQLite-based implementation of driven port interfaces.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements multiple store interfaces
// through a single database connection:
//
//   - DocumentStore: Document and chunk persistence
//   - VectorStore: Embedding persistence and distance-key range scans
//   - SampleStore: Sample set persistence
//   - CheckpointStore: Pipeline resume point persistence
//   - LeaderElector: Single-row lease for pipeline leadership
//   - TelemetryStore: Retrieval telemetry persistence
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory.
//
// The distance-to-samples scheme maps onto plain indexed TEXT columns:
// each embedding row carries idx0..idx4, one sortable key per sample
// axis, and candidate lookups are BETWEEN range scans over those
// columns. No vector extension is required.
//
// # Data Location
//
// By default, the database is stored at ~/.ragcore/data/engine.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
