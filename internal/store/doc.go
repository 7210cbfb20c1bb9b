// Package store provides SQLite-backed storage for rendered frames and
// graph lifecycle events.
//
// The store is append-only:
//   - frames: one row per headless render, keyed by (graph_id, seq)
//   - lifecycle_events: one row per bridge lifecycle step, keyed by
//     (graph_id, seq)
//
// Ordering uses the logical seq column, never wall-clock time, so two runs
// of the same scenario produce identical reads. Every query orders by
// seq ASC.
//
// Payloads (frame bodies, event details) are stored as canonical JSON
// produced by internal/ir.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON
package store
