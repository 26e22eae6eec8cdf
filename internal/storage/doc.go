// Package storage defines the persistence interfaces for the order core.
//
// The event journal is the system of record; snapshots and telemetry are
// derived data. Implementations of these interfaces (e.g., using SQLite)
// live in subpackages.
//
// # Error Types
//
// The package defines common error types used across storage implementations:
//   - ErrNotFound: Indicates a requested record is missing.
package storage
