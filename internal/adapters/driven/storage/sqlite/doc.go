// Package sqlite provides a SQLite-based implementation of the embedding
// and draft store ports.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements both store interfaces
// through a single database connection:
//
//   - EmbeddingStore: ContextItems with little-endian float32 vectors
//   - DraftStore: per-stage ProtocolDraft snapshots
//
// Similarity is computed in process over one protocol's rows, so a query
// never reads another protocol's items.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// By default, the database is stored at ~/.protosmith/data/protosmith.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
