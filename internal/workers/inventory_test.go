package workers

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/louisbranch/ordercore/internal/command"
	"github.com/louisbranch/ordercore/internal/event"
	"github.com/louisbranch/ordercore/internal/order"
	"github.com/louisbranch/ordercore/internal/pipeline"
)

func TestInventoryReleasesStockOnCancellation(t *testing.T) {
	core, _ := newTestCore(t)
	inv := NewInventory(core, DefaultStock(), 2, quietLogger())
	defer core.Subscribe(order.EventTypeCreated, inv.HandleCreated)()
	defer core.Subscribe(order.EventTypeCancelled, inv.Release)()

	if _, err := core.Submit(context.Background(), createOrder("ord-1", map[string]int{"laptop": 4})); err != nil {
		t.Fatalf("Submit create: %v", err)
	}
	if got := inv.Stock()["laptop"]; got != 6 {
		t.Fatalf("laptop stock = %d, want 6 after reservation", got)
	}

	cancelPayload, _ := json.Marshal(order.CancelPayload{Reason: "customer changed mind"})
	_, err := core.Submit(context.Background(), command.Command{
		OrderID:         "ord-1",
		Type:            order.CommandTypeCancel,
		Source:          "worker:test",
		ExpectedVersion: command.Pin(2),
		PayloadJSON:     cancelPayload,
	})
	if err != nil {
		t.Fatalf("Submit cancel: %v", err)
	}
	if got := inv.Stock()["laptop"]; got != 10 {
		t.Fatalf("laptop stock = %d, want 10 after release", got)
	}

	// A release without a hold must not credit stock.
	if err := inv.Release(context.Background(), event.Event{OrderID: "ord-1"}); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if got := inv.Stock()["laptop"]; got != 10 {
		t.Fatalf("laptop stock = %d, want 10 after repeated release", got)
	}
}

// raceCore lets another writer commit between the worker's Get and its
// Submit, forcing a version conflict on the worker's pinned command.
type raceCore struct {
	pipeline.Core
	trigger  command.Type
	once     sync.Once
	sabotage func()
}

func (c *raceCore) Submit(ctx context.Context, cmd command.Command) (pipeline.Result, error) {
	if cmd.Type == c.trigger {
		c.once.Do(c.sabotage)
	}
	return c.Core.Submit(ctx, cmd)
}

func TestInventoryDropsLostVersionRace(t *testing.T) {
	core, _ := newTestCore(t)
	result, err := core.Submit(context.Background(), createOrder("ord-1", map[string]int{"laptop": 1}))
	if err != nil {
		t.Fatalf("Submit create: %v", err)
	}
	created := result.Events[0]

	raced := &raceCore{Core: core, trigger: order.CommandTypeReserveInventory}
	raced.sabotage = func() {
		payload, _ := json.Marshal(order.ReserveInventoryPayload{Reserved: map[string]int{"laptop": 1}})
		_, err := core.Submit(context.Background(), command.Command{
			OrderID:         "ord-1",
			Type:            order.CommandTypeReserveInventory,
			Source:          "worker:rival",
			ExpectedVersion: command.Pin(1),
			PayloadJSON:     payload,
		})
		if err != nil {
			t.Errorf("rival submit: %v", err)
		}
	}

	inv := NewInventory(raced, DefaultStock(), 2, quietLogger())
	if err := inv.HandleCreated(context.Background(), created); err != nil {
		t.Fatalf("HandleCreated = %v, want dropped conflict", err)
	}
	if got := inv.Stock()["laptop"]; got != 10 {
		t.Fatalf("laptop stock = %d, want 10 after released hold", got)
	}

	state, version, err := core.Get(context.Background(), "ord-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if version != 2 || state.Status != order.StatusInventoryReserved {
		t.Fatalf("version = %d status = %q, want rival's reservation to stand", version, state.Status)
	}
}
