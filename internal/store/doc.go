// Package store provides SQLite-backed persistence for the host side of a
// query editor: saved queries and the snapshot history of sessions.
//
// The engine itself never writes here. A host attaches the store as a
// session dispatcher, or saves a settled model explicitly.
//
// # Tables
//
//   - saved_queries: named Option Models, upserted by ID
//   - snapshots: every dispatched Snapshot, keyed by (session_id, seq)
//
// Option Models are stored as JSON TEXT in their persisted form.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
