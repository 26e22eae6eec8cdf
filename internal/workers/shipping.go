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

// Shipping books a carrier for paid orders and completes shipped ones.
type Shipping struct {
	core    pipeline.Core
	logger  *log.Logger
	carrier string
}

// NewShipping creates a shipping worker booking with the given carrier.
func NewShipping(core pipeline.Core, carrier string, logger *log.Logger) *Shipping {
	return &Shipping{core: core, logger: logger, carrier: carrier}
}

// HandlePaymentProcessed books the shipment for a paid order.
func (w *Shipping) HandlePaymentProcessed(ctx context.Context, evt event.Event) error {
	_, version, err := w.core.Get(ctx, evt.OrderID)
	if err != nil {
		return err
	}

	tracking, err := trackingID()
	if err != nil {
		return err
	}
	payloadJSON, err := json.Marshal(order.ShipPayload{Carrier: w.carrier, TrackingID: tracking})
	if err != nil {
		return fmt.Errorf("marshal ship payload: %w", err)
	}
	result, err := w.core.Submit(ctx, command.Command{
		OrderID:         evt.OrderID,
		Type:            order.CommandTypeShip,
		Source:          "worker:shipping",
		ExpectedVersion: command.Pin(version),
		PayloadJSON:     payloadJSON,
	})
	if err != nil {
		return dropConflict(w.logger, "shipping", evt.OrderID, err)
	}
	w.logger.Printf("shipping booked order=%s carrier=%s tracking=%s", evt.OrderID, w.carrier, tracking)
	logHandlerFailures(w.logger, "shipping", result.HandlerFailures)
	return nil
}

// HandleShipped marks a shipped order complete.
func (w *Shipping) HandleShipped(ctx context.Context, evt event.Event) error {
	_, version, err := w.core.Get(ctx, evt.OrderID)
	if err != nil {
		return err
	}

	payloadJSON, err := json.Marshal(order.CompletePayload{Note: "delivered by " + w.carrier})
	if err != nil {
		return fmt.Errorf("marshal complete payload: %w", err)
	}
	result, err := w.core.Submit(ctx, command.Command{
		OrderID:         evt.OrderID,
		Type:            order.CommandTypeComplete,
		Source:          "worker:shipping",
		ExpectedVersion: command.Pin(version),
		PayloadJSON:     payloadJSON,
	})
	if err != nil {
		return dropConflict(w.logger, "shipping", evt.OrderID, err)
	}
	w.logger.Printf("shipping completed order=%s", evt.OrderID)
	logHandlerFailures(w.logger, "shipping", result.HandlerFailures)
	return nil
}

func trackingID() (string, error) {
	suffix, err := id.NewID()
	if err != nil {
		return "", fmt.Errorf("generate tracking id: %w", err)
	}
	return "trk_" + suffix[:10], nil
}
