package event

import "time"

// Type identifies the event type string.
type Type string

// Event captures the canonical event envelope.
type Event struct {
	// OrderID addresses the order the fact belongs to.
	OrderID string
	// Seq is the per-order sequence. The journal assigns it, starting at 1
	// with no gaps.
	Seq uint64
	// Type is the dotted event name, e.g. "order.created".
	Type Type
	// Timestamp records when the fact was decided.
	Timestamp time.Time
	// Source names the worker or actor whose command produced the fact.
	Source string
	// CausedBy is the aggregate version the producing commit was decided
	// against.
	CausedBy uint64
	// PayloadJSON carries the event-specific document.
	PayloadJSON []byte
}
