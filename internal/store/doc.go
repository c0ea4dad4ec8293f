// Package store provides SQLite-backed durable storage for monitor sessions.
//
// The store is an append-only log with:
//   - Sessions: the spec text, output selection and frame policy a monitor
//     was initialized with
//   - Calls: every ingestion call in host order, with its verdict array
//
// A session plus its calls is enough to rebuild the monitor and replay the
// exact call sequence; Replay compares the two runs by verdict digest.
//
// # Ordering
//
//   - Calls are ordered by seq INTEGER assigned by the Recorder, never by
//     wall-clock time
//   - Sessions list by created_at, ties broken by id COLLATE BINARY
//
// # Encoding
//
// Call payloads and verdict arrays are stored as RFC 8785 canonical JSON.
// Non-finite floats are stored as the strings "NaN", "+Inf" and "-Inf" so
// malformed host input round-trips exactly.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
