package workers

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"

	"github.com/louisbranch/ordercore/internal/event"
	"github.com/louisbranch/ordercore/internal/order"
	"github.com/louisbranch/ordercore/internal/storage"
	"github.com/louisbranch/ordercore/internal/telemetry"
)

// Notification observes every published event, counts deliveries by type,
// and warns when a reservation leaves items low on stock. It never submits
// commands.
type Notification struct {
	logger  *log.Logger
	emitter *telemetry.Emitter

	mu     sync.Mutex
	counts map[event.Type]int
}

// NewNotification creates a notification worker. The emitter may be nil.
func NewNotification(emitter *telemetry.Emitter, logger *log.Logger) *Notification {
	return &Notification{
		logger:  logger,
		emitter: emitter,
		counts:  make(map[event.Type]int),
	}
}

// HandleEvent records one published event.
func (w *Notification) HandleEvent(ctx context.Context, evt event.Event) error {
	w.mu.Lock()
	w.counts[evt.Type]++
	w.mu.Unlock()

	w.logger.Printf("notification event=%s order=%s seq=%d source=%s", evt.Type, evt.OrderID, evt.Seq, evt.Source)

	if evt.Type == order.EventTypeInventoryChecked {
		var payload order.ReserveInventoryPayload
		if err := json.Unmarshal(evt.PayloadJSON, &payload); err == nil && len(payload.LowStock) > 0 {
			w.warnLowStock(ctx, evt.OrderID, payload.LowStock)
		}
	}
	return nil
}

// Counts returns a snapshot of per-type delivery counts.
func (w *Notification) Counts() map[event.Type]int {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[event.Type]int, len(w.counts))
	for kind, count := range w.counts {
		out[kind] = count
	}
	return out
}

func (w *Notification) warnLowStock(ctx context.Context, orderID string, items []string) {
	w.logger.Printf("low stock after order=%s: %s", orderID, strings.Join(items, ", "))
	err := w.emitter.Emit(ctx, storage.TelemetryEvent{
		EventName:  "stock.low",
		Severity:   string(telemetry.SeverityWarn),
		OrderID:    orderID,
		Attributes: map[string]any{"items": items},
	})
	if err != nil {
		w.logger.Printf("emit low stock telemetry: %v", err)
	}
}
