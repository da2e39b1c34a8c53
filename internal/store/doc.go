// Package store provides the SQLite-backed run journal.
//
// Each finished batch is recorded as:
//   - runs: one row per batch (run ID, tag, severity, call count, start time)
//   - outcomes: one row per call (content-addressed ID, index, raw text,
//     service, function, canonical JSON args, status, detail, logical seq)
//
// Writes are idempotent (ON CONFLICT DO NOTHING) and happen in one
// transaction per run. Args are stored as RFC 8785 canonical JSON via
// internal/ir, so identical calls store byte-identical rows.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
