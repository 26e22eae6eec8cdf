package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/ordercore/internal/event"
	"github.com/louisbranch/ordercore/internal/order"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "orders.sqlite")
	_, events, err := order.NewRegistries()
	if err != nil {
		t.Fatalf("build registries: %v", err)
	}
	store, err := Open(path, events)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}

func testEvent(orderID string, typ event.Type) event.Event {
	return event.Event{
		OrderID:     orderID,
		Type:        typ,
		Timestamp:   time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC),
		Source:      "worker:test",
		PayloadJSON: []byte(`{}`),
	}
}
