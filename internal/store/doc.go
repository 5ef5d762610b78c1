// Package store provides the SQLite-backed compile log.
//
// Every recorded compilation keeps the raw query, the resource it was
// compiled for, and either the canonical QuerySpec JSON with its
// fingerprint or the rejecting error code. Replay recompiles recorded
// queries and stores whether each fingerprint still matches.
//
// # Ordering
//
// All reads ORDER BY seq ASC, id ASC COLLATE BINARY. seq is a logical
// clock assigned on append, never a timestamp.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
