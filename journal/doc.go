// Package journal provides SQLite-backed durable storage for the treasury
// engine's event trail.
//
// The journal is an append-only log of treasury.Event records: the durable
// audit trail of every successful mutating engine call. It doubles as the
// recovery mechanism - Replay re-applies a journal to a freshly constructed
// engine to rebuild its in-memory accounting state.
//
// # Critical Patterns
//
// Idempotent appends:
//   - INSERT ... ON CONFLICT(id) DO NOTHING
//   - An event written twice (e.g. a sink retried by the host) lands once.
//
// Logical identity and time:
//   - All ordering uses seq INTEGER (the engine's logical clock), NEVER
//     timestamps. Reads ORDER BY seq ASC, id ASC for deterministic replay.
//
// Amount fidelity:
//   - 256-bit amounts are stored as decimal TEXT and parsed back with
//     uint256.FromDecimal; no float conversion ever touches an amount.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON
package journal
