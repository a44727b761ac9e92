// Package store provides the SQLite-backed entity store.
//
// It holds categories, counterparties, items, documents, line entries,
// alerts, and the mutation journal. It knows nothing about reactions: the
// engine enrolls every write of one reaction cycle in a single Tx obtained
// from Store.WithTx.
//
// # Invariants enforced by the schema
//
//   - items.quantity >= 0, line_entries.quantity > 0
//   - PRIMARY KEY(document_id, item_id) on line_entries
//   - at most one open alert per item (partial UNIQUE index)
//   - line entries cascade with their document
//
// # Conflict detection
//
// Items and documents carry a version column. Every update is conditioned
// on the version the caller read; zero rows affected means another writer
// won and the update returns a CONFLICT error.
//
// # Database configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout (default 5000ms)
//   - foreign_keys=ON
//   - BEGIN IMMEDIATE so write transactions take the write lock up front
//
// All list queries have a deterministic ORDER BY.
package store
