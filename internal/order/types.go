package order

import (
	"github.com/louisbranch/ordercore/internal/command"
	"github.com/louisbranch/ordercore/internal/event"
)

// Command types understood by the order decider.
const (
	CommandTypeCreate           command.Type = "order.create"
	CommandTypeReserveInventory command.Type = "order.reserve_inventory"
	CommandTypeCapturePayment   command.Type = "order.capture_payment"
	CommandTypeShip             command.Type = "order.ship"
	CommandTypeComplete         command.Type = "order.complete"
	CommandTypeCancel           command.Type = "order.cancel"
	CommandTypeFail             command.Type = "order.fail"
	CommandTypeRestore          command.Type = "order.restore"
)

// Event types emitted by accepted order decisions.
const (
	EventTypeCreated          event.Type = "order.created"
	EventTypeInventoryChecked event.Type = "order.inventory_checked"
	EventTypePaymentProcessed event.Type = "order.payment_processed"
	EventTypeShipped          event.Type = "order.shipped"
	EventTypeCompleted        event.Type = "order.completed"
	EventTypeCancelled        event.Type = "order.cancelled"
	EventTypeFailed           event.Type = "order.failed"
	EventTypeRestored         event.Type = "order.restored"
)
