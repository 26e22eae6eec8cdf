package command

import (
	"time"

	"github.com/louisbranch/ordercore/internal/event"
)

// NewEvent builds an event.Event by copying the shared envelope fields from a
// command. Callers supply the event-specific type, payload, and timestamp.
// This eliminates per-decider boilerplate and ensures that new envelope
// fields are automatically forwarded.
func NewEvent(cmd Command, eventType event.Type, payloadJSON []byte, now time.Time) event.Event {
	return event.Event{
		OrderID:     cmd.OrderID,
		Type:        eventType,
		Timestamp:   now,
		Source:      cmd.Source,
		PayloadJSON: payloadJSON,
	}
}
