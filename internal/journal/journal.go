// Package journal provides the append-only, per-order event log.
//
// The journal is the system of record: the versioned store is a cache of
// what folding the journal reproduces. Appends validate against the event
// registry and assign a strictly sequential per-order Seq starting at 1.
package journal

import (
	"context"

	"github.com/louisbranch/ordercore/internal/event"
)

// Journal records and lists order events.
type Journal interface {
	// AppendEvent validates evt, assigns its Seq, and stores it.
	AppendEvent(ctx context.Context, evt event.Event) (event.Event, error)
	// ListEvents returns events for one order with Seq greater than afterSeq,
	// ascending, at most limit entries (no cap when limit <= 0).
	ListEvents(ctx context.Context, orderID string, afterSeq uint64, limit int) ([]event.Event, error)
	// GetLatestEventSeq returns the highest assigned Seq for an order, zero
	// when the order has no events.
	GetLatestEventSeq(ctx context.Context, orderID string) (uint64, error)
	// ListOrderIDs returns every order id with at least one event, sorted.
	ListOrderIDs(ctx context.Context) ([]string, error)
}
