// Package workers implements the order-processing adapters that react to
// published events by submitting follow-up commands. Each worker reads the
// current state with Get, pins the observed version on the command it
// submits, and drops the command when another writer wins the version race.
//
// Bus dispatch is synchronous, so a handler must never hold a worker mutex
// across a Submit call: the commands it submits can re-enter its own
// handlers before Submit returns.
package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/louisbranch/ordercore/internal/bus"
	"github.com/louisbranch/ordercore/internal/command"
	apperrors "github.com/louisbranch/ordercore/internal/errors"
	"github.com/louisbranch/ordercore/internal/order"
	"github.com/louisbranch/ordercore/internal/pipeline"
	"github.com/louisbranch/ordercore/internal/telemetry"
)

const (
	// DefaultLowStockThreshold flags items left with two or fewer units.
	DefaultLowStockThreshold = 2
	// DefaultCarrier is the carrier booked when none is configured.
	DefaultCarrier = "ACME Logistics"
)

// DefaultStock returns the demo warehouse quantities.
func DefaultStock() map[string]int {
	return map[string]int{
		"laptop":   10,
		"mouse":    50,
		"keyboard": 30,
		"monitor":  15,
	}
}

// Config tunes the worker fleet. Zero values select the demo defaults.
type Config struct {
	// Stock seeds the inventory ledger. Nil selects DefaultStock.
	Stock map[string]int

	// LowStockThreshold flags items whose remaining quantity is at or
	// below this value after a reservation.
	LowStockThreshold int

	// Carrier names the carrier booked on ship commands.
	Carrier string

	// AmountCapCents fails orders priced above this amount. Zero
	// disables the cap.
	AmountCapCents int64

	// Telemetry, when set, records low-stock warnings.
	Telemetry *telemetry.Emitter

	// Logger receives worker activity. Nil selects the standard logger.
	Logger *log.Logger
}

// normalized fills unset config fields with defaults.
func (cfg Config) normalized() Config {
	if cfg.Stock == nil {
		cfg.Stock = DefaultStock()
	}
	if cfg.LowStockThreshold <= 0 {
		cfg.LowStockThreshold = DefaultLowStockThreshold
	}
	if strings.TrimSpace(cfg.Carrier) == "" {
		cfg.Carrier = DefaultCarrier
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return cfg
}

// Runtime holds a worker fleet subscribed to a core.
type Runtime struct {
	Inventory     *Inventory
	Payment       *Payment
	Shipping      *Shipping
	Notifications *Notification

	unsubscribes []func()
}

// NewRuntime builds the workers and subscribes them to the core's events.
// The cascade runs depth-first inside the publishing Submit call: a single
// create command drives the order through reservation, capture, shipping,
// and completion before the call returns.
func NewRuntime(core pipeline.Core, cfg Config) (*Runtime, error) {
	if core == nil {
		return nil, errors.New("core is required")
	}
	cfg = cfg.normalized()

	r := &Runtime{
		Inventory:     NewInventory(core, cfg.Stock, cfg.LowStockThreshold, cfg.Logger),
		Payment:       NewPayment(core, cfg.AmountCapCents, cfg.Logger),
		Shipping:      NewShipping(core, cfg.Carrier, cfg.Logger),
		Notifications: NewNotification(cfg.Telemetry, cfg.Logger),
	}
	r.unsubscribes = append(r.unsubscribes,
		core.Subscribe(order.EventTypeCreated, r.Inventory.HandleCreated),
		core.Subscribe(order.EventTypeCancelled, r.Inventory.Release),
		core.Subscribe(order.EventTypeFailed, r.Inventory.Release),
		core.Subscribe(order.EventTypeInventoryChecked, r.Payment.HandleInventoryChecked),
		core.Subscribe(order.EventTypePaymentProcessed, r.Shipping.HandlePaymentProcessed),
		core.Subscribe(order.EventTypeShipped, r.Shipping.HandleShipped),
		core.SubscribeAll(r.Notifications.HandleEvent),
	)
	return r, nil
}

// Close detaches every worker from the bus.
func (r *Runtime) Close() {
	for _, unsubscribe := range r.unsubscribes {
		unsubscribe()
	}
	r.unsubscribes = nil
}

// dropConflict swallows conflict outcomes. A conflict means another writer
// advanced the order first, and the cascade continues from that writer's
// event instead.
func dropConflict(logger *log.Logger, worker, orderID string, err error) error {
	if apperrors.HasCode(err, apperrors.CodeVersionConflict) || apperrors.HasCode(err, apperrors.CodeOrderExists) {
		logger.Printf("%s dropped conflicting command order=%s: %v", worker, orderID, err)
		return nil
	}
	return err
}

// submitFail moves an order to its failed status on behalf of a worker.
func submitFail(ctx context.Context, core pipeline.Core, logger *log.Logger, worker, orderID string, version uint64, reason string) error {
	payloadJSON, err := json.Marshal(order.FailPayload{Reason: reason})
	if err != nil {
		return fmt.Errorf("marshal fail payload: %w", err)
	}
	result, err := core.Submit(ctx, command.Command{
		OrderID:         orderID,
		Type:            order.CommandTypeFail,
		Source:          "worker:" + worker,
		ExpectedVersion: command.Pin(version),
		PayloadJSON:     payloadJSON,
	})
	if err != nil {
		return dropConflict(logger, worker, orderID, err)
	}
	logger.Printf("%s failed order=%s: %s", worker, orderID, reason)
	logHandlerFailures(logger, worker, result.HandlerFailures)
	return nil
}

// logHandlerFailures reports downstream handler errors surfaced by a
// worker's own Submit. The commit already stands, so the failures are
// logged rather than propagated.
func logHandlerFailures(logger *log.Logger, worker string, failures []bus.HandlerFailure) {
	for _, failure := range failures {
		logger.Printf("%s cascade handler failure subscription=%s event=%s order=%s: %v",
			worker, failure.Subscription, failure.Event.Type, failure.Event.OrderID, failure.Err)
	}
}
