package journal

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/louisbranch/ordercore/internal/event"
)

// Memory keeps the journal in process. It backs tests and demo runs without
// a database path.
type Memory struct {
	registry *event.Registry

	mu     sync.RWMutex
	events map[string][]event.Event
}

// NewMemory creates an in-memory journal validating against registry.
func NewMemory(registry *event.Registry) *Memory {
	return &Memory{
		registry: registry,
		events:   make(map[string][]event.Event),
	}
}

// AppendEvent validates the event, assigns the next per-order Seq, and
// stores a copy.
func (m *Memory) AppendEvent(ctx context.Context, evt event.Event) (event.Event, error) {
	if m.registry == nil {
		return event.Event{}, errors.New("event registry is required")
	}
	normalized, err := m.registry.ValidateForAppend(evt)
	if err != nil {
		return event.Event{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	history := m.events[normalized.OrderID]
	normalized.Seq = uint64(len(history)) + 1
	normalized.PayloadJSON = append([]byte(nil), normalized.PayloadJSON...)
	m.events[normalized.OrderID] = append(history, normalized)
	return cloneEvent(normalized), nil
}

// ListEvents returns events after afterSeq in ascending Seq order.
func (m *Memory) ListEvents(ctx context.Context, orderID string, afterSeq uint64, limit int) ([]event.Event, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, event.ErrOrderIDRequired
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	var page []event.Event
	for _, evt := range m.events[orderID] {
		if evt.Seq <= afterSeq {
			continue
		}
		page = append(page, cloneEvent(evt))
		if limit > 0 && len(page) == limit {
			break
		}
	}
	return page, nil
}

// GetLatestEventSeq returns the highest Seq assigned for an order.
func (m *Memory) GetLatestEventSeq(ctx context.Context, orderID string) (uint64, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return 0, event.ErrOrderIDRequired
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return uint64(len(m.events[orderID])), nil
}

// ListOrderIDs returns every order with at least one event, sorted.
func (m *Memory) ListOrderIDs(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.events))
	for id := range m.events {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func cloneEvent(evt event.Event) event.Event {
	out := evt
	out.PayloadJSON = append([]byte(nil), evt.PayloadJSON...)
	return out
}
