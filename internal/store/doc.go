// Package store provides SQLite-backed durable storage for relay runs.
//
// The store is an append-only event log with two tables: runs (one row
// per run) and events (the per-run transition log). Key properties:
//
//   - Monotonic seq: each append allocates max(seq)+1 for the run inside
//     a single transaction. UNIQUE(run_id, seq) turns a racing writer
//     into a SequenceConflictError instead of a gap or duplicate.
//   - Single writer per run: the router owns writes for its run.
//     Concurrent readers are always allowed (WAL mode).
//   - Canonical payloads: event payloads are stored as canonical JSON
//     text so digests computed over stored rows are portable.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes, crash-consistent append
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: events cannot outlive their run row
//
// The path ":memory:" opens an ephemeral store that disappears on Close.
package store
