package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/louisbranch/ordercore/internal/command"
	"github.com/louisbranch/ordercore/internal/event"
	"github.com/louisbranch/ordercore/internal/order"
	"github.com/louisbranch/ordercore/internal/pipeline"
	"github.com/louisbranch/ordercore/internal/platform/id"
)

// Payment prices reserved orders and captures the charge.
type Payment struct {
	core     pipeline.Core
	logger   *log.Logger
	capCents int64
}

// NewPayment creates a payment worker. A positive capCents fails any order
// priced above it.
func NewPayment(core pipeline.Core, capCents int64, logger *log.Logger) *Payment {
	return &Payment{core: core, logger: logger, capCents: capCents}
}

// AmountCents prices an order's items. Each unit of an item costs ten
// dollars per letter of its name.
func AmountCents(items map[string]int) int64 {
	var total int64
	for item, qty := range items {
		total += int64(len(item)) * 10 * 100 * int64(qty)
	}
	return total
}

// HandleInventoryChecked prices the order and submits the capture.
func (w *Payment) HandleInventoryChecked(ctx context.Context, evt event.Event) error {
	state, version, err := w.core.Get(ctx, evt.OrderID)
	if err != nil {
		return err
	}

	amount := AmountCents(state.Items)
	if w.capCents > 0 && amount > w.capCents {
		reason := fmt.Sprintf("amount %d exceeds cap %d", amount, w.capCents)
		return submitFail(ctx, w.core, w.logger, "payment", evt.OrderID, version, reason)
	}

	ref, err := paymentRef()
	if err != nil {
		return err
	}
	payloadJSON, err := json.Marshal(order.CapturePaymentPayload{AmountCents: amount, PaymentRef: ref})
	if err != nil {
		return fmt.Errorf("marshal capture payload: %w", err)
	}
	result, err := w.core.Submit(ctx, command.Command{
		OrderID:         evt.OrderID,
		Type:            order.CommandTypeCapturePayment,
		Source:          "worker:payment",
		ExpectedVersion: command.Pin(version),
		PayloadJSON:     payloadJSON,
	})
	if err != nil {
		return dropConflict(w.logger, "payment", evt.OrderID, err)
	}
	w.logger.Printf("payment captured order=%s amount_cents=%d ref=%s", evt.OrderID, amount, ref)
	logHandlerFailures(w.logger, "payment", result.HandlerFailures)
	return nil
}

func paymentRef() (string, error) {
	suffix, err := id.NewID()
	if err != nil {
		return "", fmt.Errorf("generate payment ref: %w", err)
	}
	return "pay_" + suffix[:10], nil
}
