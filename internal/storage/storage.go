package storage

import (
	"context"
	"time"

	apperrors "github.com/louisbranch/ordercore/internal/errors"
	"github.com/louisbranch/ordercore/internal/event"
)

// ErrNotFound indicates a requested persistence record is missing.
// Callers use this to differentiate between legitimate "no such record" states
// and transport or data corruption failures.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")

// EventStore owns the event journal boundary that drives replay and command
// rehydration; this is the source of truth for state reconstruction.
type EventStore interface {
	// AppendEvent atomically appends an event and returns it with its sequence set.
	AppendEvent(ctx context.Context, evt event.Event) (event.Event, error)
	// ListEvents returns events for an order with seq greater than afterSeq,
	// ordered by sequence ascending. A limit of zero or less means no limit.
	ListEvents(ctx context.Context, orderID string, afterSeq uint64, limit int) ([]event.Event, error)
	// GetLatestEventSeq returns the latest event sequence number for an order.
	// Returns 0 if no events exist.
	GetLatestEventSeq(ctx context.Context, orderID string) (uint64, error)
	// ListOrderIDs returns the IDs of all orders with at least one event.
	ListOrderIDs(ctx context.Context) ([]string, error)
}

// Snapshot is a materialized order state checkpoint derived from the event
// journal. Snapshots are accelerators for replay, not the source of authority.
type Snapshot struct {
	OrderID   string
	EventSeq  uint64
	Version   uint64
	Status    string
	StateJSON []byte
	UpdatedAt time.Time
}

// SnapshotStore persists replay checkpoints used to jump event replay work.
// At most one snapshot is kept per order; PutSnapshot replaces any prior one.
type SnapshotStore interface {
	// PutSnapshot stores a snapshot, replacing the order's previous snapshot.
	PutSnapshot(ctx context.Context, snap Snapshot) error
	// GetSnapshot retrieves the snapshot for an order.
	GetSnapshot(ctx context.Context, orderID string) (Snapshot, error)
}

// TelemetryEvent captures operational observations emitted during command execution.
type TelemetryEvent struct {
	Timestamp      time.Time
	EventName      string
	Severity       string
	OrderID        string
	RequestID      string
	TraceID        string
	SpanID         string
	Attributes     map[string]any
	AttributesJSON []byte
}

// TelemetryStore persists operational telemetry records for audits and incident analysis.
type TelemetryStore interface {
	AppendTelemetryEvent(ctx context.Context, evt TelemetryEvent) error
}

// Store is a composite interface for all persistence concerns used across
// event sourcing, snapshotting, and telemetry.
type Store interface {
	EventStore
	SnapshotStore
	TelemetryStore
	Close() error
}
