package workers

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/louisbranch/ordercore/internal/command"
	"github.com/louisbranch/ordercore/internal/event"
	"github.com/louisbranch/ordercore/internal/order"
	"github.com/louisbranch/ordercore/internal/pipeline"
)

// payOrder drives an order to payment_processed without any workers attached
// and returns the payment event a shipping worker would receive.
func payOrder(t *testing.T, core *pipeline.Pipeline, orderID string) event.Event {
	t.Helper()
	if _, err := core.Submit(context.Background(), createOrder(orderID, map[string]int{"laptop": 1})); err != nil {
		t.Fatalf("Submit create: %v", err)
	}

	reservePayload, _ := json.Marshal(order.ReserveInventoryPayload{Reserved: map[string]int{"laptop": 1}})
	if _, err := core.Submit(context.Background(), command.Command{
		OrderID:         orderID,
		Type:            order.CommandTypeReserveInventory,
		Source:          "worker:test",
		ExpectedVersion: command.Pin(1),
		PayloadJSON:     reservePayload,
	}); err != nil {
		t.Fatalf("Submit reserve: %v", err)
	}

	capturePayload, _ := json.Marshal(order.CapturePaymentPayload{AmountCents: 6000, PaymentRef: "pay_test"})
	result, err := core.Submit(context.Background(), command.Command{
		OrderID:         orderID,
		Type:            order.CommandTypeCapturePayment,
		Source:          "worker:test",
		ExpectedVersion: command.Pin(2),
		PayloadJSON:     capturePayload,
	})
	if err != nil {
		t.Fatalf("Submit capture: %v", err)
	}
	return result.Events[0]
}

func TestShippingBooksCarrierForPaidOrder(t *testing.T) {
	core, _ := newTestCore(t)
	paid := payOrder(t, core, "ord-1")

	ship := NewShipping(core, "ACME Logistics", quietLogger())
	if err := ship.HandlePaymentProcessed(context.Background(), paid); err != nil {
		t.Fatalf("HandlePaymentProcessed: %v", err)
	}

	state, version, err := core.Get(context.Background(), "ord-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if version != 4 || state.Status != order.StatusShipped {
		t.Fatalf("version = %d status = %q, want shipped at version 4", version, state.Status)
	}
	if state.Carrier != "ACME Logistics" {
		t.Fatalf("Carrier = %q, want ACME Logistics", state.Carrier)
	}
	if !strings.HasPrefix(state.TrackingID, "trk_") || len(state.TrackingID) != len("trk_")+10 {
		t.Fatalf("TrackingID = %q, want trk_ prefix with 10-char suffix", state.TrackingID)
	}
}

func TestShippingCompletesShippedOrder(t *testing.T) {
	core, _ := newTestCore(t)
	paid := payOrder(t, core, "ord-1")

	ship := NewShipping(core, "ACME Logistics", quietLogger())
	if err := ship.HandlePaymentProcessed(context.Background(), paid); err != nil {
		t.Fatalf("HandlePaymentProcessed: %v", err)
	}
	if err := ship.HandleShipped(context.Background(), event.Event{OrderID: "ord-1"}); err != nil {
		t.Fatalf("HandleShipped: %v", err)
	}

	state, version, err := core.Get(context.Background(), "ord-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if version != 5 || state.Status != order.StatusCompleted {
		t.Fatalf("version = %d status = %q, want completed at version 5", version, state.Status)
	}
}

func TestShippingDropsLostVersionRace(t *testing.T) {
	core, _ := newTestCore(t)
	paid := payOrder(t, core, "ord-1")

	raced := &raceCore{Core: core, trigger: order.CommandTypeShip}
	raced.sabotage = func() {
		payload, _ := json.Marshal(order.ShipPayload{Carrier: "Rival Freight", TrackingID: "trk_rival00001"})
		_, err := core.Submit(context.Background(), command.Command{
			OrderID:         "ord-1",
			Type:            order.CommandTypeShip,
			Source:          "worker:rival",
			ExpectedVersion: command.Pin(3),
			PayloadJSON:     payload,
		})
		if err != nil {
			t.Errorf("rival submit: %v", err)
		}
	}

	ship := NewShipping(raced, "ACME Logistics", quietLogger())
	if err := ship.HandlePaymentProcessed(context.Background(), paid); err != nil {
		t.Fatalf("HandlePaymentProcessed = %v, want dropped conflict", err)
	}

	state, version, err := core.Get(context.Background(), "ord-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if version != 4 || state.Carrier != "Rival Freight" {
		t.Fatalf("version = %d carrier = %q, want rival's booking to stand", version, state.Carrier)
	}
}
