// Package store provides SQL-backed storage for releases, projects,
// environments and issues, and implements releases.Store over it.
//
// # Critical Patterns
//
// Deterministic Query Results
//   - Every query ends with an ORDER BY whose last key is id ASC
//   - Limits are applied in SQL after ordering, never in Go
//
// Parameterized SQL
//   - Values are always bound with ? placeholders
//   - Placeholders are rebound to $n on PostgreSQL
//
// # Database Configuration
//
// SQLite (driver "sqlite3"):
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// PostgreSQL (driver "pgx") uses the pgx stdlib driver. Schemas for both
// are goose migrations embedded under migrations/.
package store
