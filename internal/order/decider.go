package order

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/ordercore/internal/command"
)

const (
	rejectionCodeOrderAlreadyExists       = "ORDER_ALREADY_EXISTS"
	rejectionCodeOrderNotCreated          = "ORDER_NOT_CREATED"
	rejectionCodeOrderCustomerEmpty       = "ORDER_CUSTOMER_EMPTY"
	rejectionCodeOrderItemsEmpty          = "ORDER_ITEMS_EMPTY"
	rejectionCodeOrderItemQuantityInvalid = "ORDER_ITEM_QUANTITY_INVALID"
	rejectionCodeOrderStatusTransition    = "ORDER_INVALID_STATUS_TRANSITION"
	rejectionCodeOrderReservationEmpty    = "ORDER_RESERVATION_EMPTY"
	rejectionCodeOrderAmountInvalid       = "ORDER_AMOUNT_INVALID"
	rejectionCodeOrderPaymentRefEmpty     = "ORDER_PAYMENT_REF_EMPTY"
	rejectionCodeOrderCarrierEmpty        = "ORDER_CARRIER_EMPTY"
	rejectionCodeOrderTrackingEmpty       = "ORDER_TRACKING_EMPTY"
	rejectionCodeOrderFailReasonEmpty     = "ORDER_FAIL_REASON_EMPTY"
	rejectionCodeOrderRestoreInvalid      = "ORDER_RESTORE_INVALID"
)

// Decide returns the decision for an order command against current state.
func Decide(state State, cmd command.Command, now func() time.Time) command.Decision {
	if now == nil {
		now = time.Now
	}

	if cmd.Type == CommandTypeCreate {
		if state.Created {
			return command.Reject(command.Rejection{
				Code:    rejectionCodeOrderAlreadyExists,
				Message: "order already exists",
			})
		}
		var payload CreatePayload
		_ = json.Unmarshal(cmd.PayloadJSON, &payload)
		normalizedCustomer := strings.TrimSpace(payload.Customer)
		if normalizedCustomer == "" {
			return command.Reject(command.Rejection{
				Code:    rejectionCodeOrderCustomerEmpty,
				Message: "order customer is required",
			})
		}
		if len(payload.Items) == 0 {
			return command.Reject(command.Rejection{
				Code:    rejectionCodeOrderItemsEmpty,
				Message: "order requires at least one item",
			})
		}
		normalizedItems := make(map[string]int, len(payload.Items))
		for item, qty := range payload.Items {
			name := strings.TrimSpace(item)
			if name == "" || qty <= 0 {
				return command.Reject(command.Rejection{
					Code:    rejectionCodeOrderItemQuantityInvalid,
					Message: fmt.Sprintf("item %q quantity must be positive", item),
				})
			}
			normalizedItems[name] = qty
		}

		normalizedPayload := CreatePayload{
			Customer: normalizedCustomer,
			Address:  strings.TrimSpace(payload.Address),
			Items:    normalizedItems,
		}
		payloadJSON, _ := json.Marshal(normalizedPayload)
		return command.Accept(command.NewEvent(cmd, EventTypeCreated, payloadJSON, now().UTC()))
	}

	if cmd.Type == CommandTypeReserveInventory {
		if rejection, ok := requireTransition(state, StatusInventoryReserved); !ok {
			return command.Reject(rejection)
		}
		var payload ReserveInventoryPayload
		_ = json.Unmarshal(cmd.PayloadJSON, &payload)
		if len(payload.Reserved) == 0 {
			return command.Reject(command.Rejection{
				Code:    rejectionCodeOrderReservationEmpty,
				Message: "reservation requires at least one item",
			})
		}
		for item, qty := range payload.Reserved {
			if strings.TrimSpace(item) == "" || qty <= 0 {
				return command.Reject(command.Rejection{
					Code:    rejectionCodeOrderItemQuantityInvalid,
					Message: fmt.Sprintf("reserved item %q quantity must be positive", item),
				})
			}
		}
		payloadJSON, _ := json.Marshal(payload)
		return command.Accept(command.NewEvent(cmd, EventTypeInventoryChecked, payloadJSON, now().UTC()))
	}

	if cmd.Type == CommandTypeCapturePayment {
		if rejection, ok := requireTransition(state, StatusPaymentCaptured); !ok {
			return command.Reject(rejection)
		}
		var payload CapturePaymentPayload
		_ = json.Unmarshal(cmd.PayloadJSON, &payload)
		if payload.AmountCents <= 0 {
			return command.Reject(command.Rejection{
				Code:    rejectionCodeOrderAmountInvalid,
				Message: "payment amount must be positive",
			})
		}
		payload.PaymentRef = strings.TrimSpace(payload.PaymentRef)
		if payload.PaymentRef == "" {
			return command.Reject(command.Rejection{
				Code:    rejectionCodeOrderPaymentRefEmpty,
				Message: "payment reference is required",
			})
		}
		payloadJSON, _ := json.Marshal(payload)
		return command.Accept(command.NewEvent(cmd, EventTypePaymentProcessed, payloadJSON, now().UTC()))
	}

	if cmd.Type == CommandTypeShip {
		if rejection, ok := requireTransition(state, StatusShipped); !ok {
			return command.Reject(rejection)
		}
		var payload ShipPayload
		_ = json.Unmarshal(cmd.PayloadJSON, &payload)
		payload.Carrier = strings.TrimSpace(payload.Carrier)
		if payload.Carrier == "" {
			return command.Reject(command.Rejection{
				Code:    rejectionCodeOrderCarrierEmpty,
				Message: "carrier is required",
			})
		}
		payload.TrackingID = strings.TrimSpace(payload.TrackingID)
		if payload.TrackingID == "" {
			return command.Reject(command.Rejection{
				Code:    rejectionCodeOrderTrackingEmpty,
				Message: "tracking id is required",
			})
		}
		payloadJSON, _ := json.Marshal(payload)
		return command.Accept(command.NewEvent(cmd, EventTypeShipped, payloadJSON, now().UTC()))
	}

	if cmd.Type == CommandTypeComplete {
		if rejection, ok := requireTransition(state, StatusCompleted); !ok {
			return command.Reject(rejection)
		}
		var payload CompletePayload
		_ = json.Unmarshal(cmd.PayloadJSON, &payload)
		payload.Note = strings.TrimSpace(payload.Note)
		payloadJSON, _ := json.Marshal(payload)
		return command.Accept(command.NewEvent(cmd, EventTypeCompleted, payloadJSON, now().UTC()))
	}

	if cmd.Type == CommandTypeCancel {
		if rejection, ok := requireTransition(state, StatusCancelled); !ok {
			return command.Reject(rejection)
		}
		var payload CancelPayload
		_ = json.Unmarshal(cmd.PayloadJSON, &payload)
		payload.Reason = strings.TrimSpace(payload.Reason)
		payloadJSON, _ := json.Marshal(payload)
		return command.Accept(command.NewEvent(cmd, EventTypeCancelled, payloadJSON, now().UTC()))
	}

	if cmd.Type == CommandTypeFail {
		if rejection, ok := requireTransition(state, StatusFailed); !ok {
			return command.Reject(rejection)
		}
		var payload FailPayload
		_ = json.Unmarshal(cmd.PayloadJSON, &payload)
		payload.Reason = strings.TrimSpace(payload.Reason)
		if payload.Reason == "" {
			return command.Reject(command.Rejection{
				Code:    rejectionCodeOrderFailReasonEmpty,
				Message: "failure reason is required",
			})
		}
		payloadJSON, _ := json.Marshal(payload)
		return command.Accept(command.NewEvent(cmd, EventTypeFailed, payloadJSON, now().UTC()))
	}

	if cmd.Type == CommandTypeRestore {
		if !state.Created {
			return command.Reject(command.Rejection{
				Code:    rejectionCodeOrderNotCreated,
				Message: "order does not exist",
			})
		}
		var payload RestorePayload
		_ = json.Unmarshal(cmd.PayloadJSON, &payload)
		if !payload.State.Created {
			return command.Reject(command.Rejection{
				Code:    rejectionCodeOrderRestoreInvalid,
				Message: "restore requires a previously committed state",
			})
		}
		if _, ok := normalizeStatusLabel(string(payload.State.Status)); !ok {
			return command.Reject(command.Rejection{
				Code:    rejectionCodeOrderRestoreInvalid,
				Message: "restore state status is invalid",
			})
		}
		// Restore bypasses the transition table: the carried state was legal
		// when it was first committed.
		payloadJSON, _ := json.Marshal(payload)
		return command.Accept(command.NewEvent(cmd, EventTypeRestored, payloadJSON, now().UTC()))
	}

	return command.Reject(command.Rejection{
		Code:    command.RejectionCodeCommandTypeUnsupported,
		Message: fmt.Sprintf("no handling for command type %s", cmd.Type),
	})
}

// requireTransition checks that the order exists and may move to the target
// status. The second return is false when the rejection should be raised.
func requireTransition(state State, target Status) (command.Rejection, bool) {
	if !state.Created {
		return command.Rejection{
			Code:    rejectionCodeOrderNotCreated,
			Message: "order does not exist",
		}, false
	}
	if !isTransitionAllowed(state.Status, target) {
		return command.Rejection{
			Code:    rejectionCodeOrderStatusTransition,
			Message: fmt.Sprintf("order status transition %s to %s is not allowed", state.Status, target),
		}, false
	}
	return command.Rejection{}, true
}
