package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/louisbranch/ordercore/internal/command"
	"github.com/louisbranch/ordercore/internal/event"
	"github.com/louisbranch/ordercore/internal/order"
	"github.com/louisbranch/ordercore/internal/pipeline"
)

// Inventory reserves warehouse stock for created orders and returns it when
// an order is cancelled or fails. Holds are tracked per order so a release
// is idempotent and never credits stock twice.
type Inventory struct {
	core      pipeline.Core
	logger    *log.Logger
	threshold int

	mu    sync.Mutex
	stock map[string]int
	holds map[string]map[string]int
}

// NewInventory creates an inventory worker over a copy of the given stock.
func NewInventory(core pipeline.Core, stock map[string]int, threshold int, logger *log.Logger) *Inventory {
	ledger := make(map[string]int, len(stock))
	for item, qty := range stock {
		ledger[item] = qty
	}
	return &Inventory{
		core:      core,
		logger:    logger,
		threshold: threshold,
		stock:     ledger,
		holds:     make(map[string]map[string]int),
	}
}

// Stock returns a snapshot of the current ledger quantities.
func (w *Inventory) Stock() map[string]int {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[string]int, len(w.stock))
	for item, qty := range w.stock {
		out[item] = qty
	}
	return out
}

// HandleCreated reserves stock for a new order. A shortage fails the order
// instead; a lost version race returns the held stock to the ledger.
func (w *Inventory) HandleCreated(ctx context.Context, evt event.Event) error {
	state, version, err := w.core.Get(ctx, evt.OrderID)
	if err != nil {
		return err
	}

	reserved, lowStock, shortage := w.reserve(evt.OrderID, state.Items)
	if shortage != "" {
		return submitFail(ctx, w.core, w.logger, "inventory", evt.OrderID, version, shortage)
	}

	payloadJSON, err := json.Marshal(order.ReserveInventoryPayload{Reserved: reserved, LowStock: lowStock})
	if err != nil {
		w.releaseHold(evt.OrderID)
		return fmt.Errorf("marshal reserve payload: %w", err)
	}
	result, err := w.core.Submit(ctx, command.Command{
		OrderID:         evt.OrderID,
		Type:            order.CommandTypeReserveInventory,
		Source:          "worker:inventory",
		ExpectedVersion: command.Pin(version),
		PayloadJSON:     payloadJSON,
	})
	if err != nil {
		w.releaseHold(evt.OrderID)
		return dropConflict(w.logger, "inventory", evt.OrderID, err)
	}
	w.logger.Printf("inventory reserved order=%s items=%d low_stock=%d", evt.OrderID, len(reserved), len(lowStock))
	logHandlerFailures(w.logger, "inventory", result.HandlerFailures)
	return nil
}

// Release returns an order's held stock to the ledger. It subscribes to
// order.cancelled and order.failed and is a no-op when no hold exists.
func (w *Inventory) Release(ctx context.Context, evt event.Event) error {
	if hold := w.releaseHold(evt.OrderID); len(hold) > 0 {
		w.logger.Printf("inventory released order=%s items=%d", evt.OrderID, len(hold))
	}
	return nil
}

// reserve deducts the ordered quantities, records the hold, and lists the
// items left at or below the low-stock threshold. A shortage deducts
// nothing and reports the first missing item.
func (w *Inventory) reserve(orderID string, items map[string]int) (reserved map[string]int, lowStock []string, shortage string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	names := make([]string, 0, len(items))
	for item := range items {
		names = append(names, item)
	}
	sort.Strings(names)

	for _, item := range names {
		if w.stock[item] < items[item] {
			return nil, nil, fmt.Sprintf("insufficient stock for %s: want %d have %d", item, items[item], w.stock[item])
		}
	}

	reserved = make(map[string]int, len(items))
	hold := make(map[string]int, len(items))
	for _, item := range names {
		qty := items[item]
		w.stock[item] -= qty
		reserved[item] = qty
		hold[item] = qty
		if w.stock[item] <= w.threshold {
			lowStock = append(lowStock, item)
		}
	}
	w.holds[orderID] = hold
	return reserved, lowStock, ""
}

// releaseHold credits an order's hold back to the ledger.
func (w *Inventory) releaseHold(orderID string) map[string]int {
	w.mu.Lock()
	defer w.mu.Unlock()
	hold := w.holds[orderID]
	if hold == nil {
		return nil
	}
	delete(w.holds, orderID)
	for item, qty := range hold {
		w.stock[item] += qty
	}
	return hold
}
