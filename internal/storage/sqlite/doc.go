// Package sqlite implements order persistence contracts for the event journal,
// replay snapshots, and telemetry records.
//
// Why this package exists:
// - It is the concrete backend where command execution and replay share one persistence shape.
// - It owns migration and schema-compatibility behavior for order history durability.
// - Only this package translates domain-shaped records into concrete SQL rows and transactions.
//
// The backend uses embedded migrations; queries are plain SQL kept next to the
// store methods that run them.
package sqlite
