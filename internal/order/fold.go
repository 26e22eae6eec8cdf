package order

import (
	"encoding/json"

	"github.com/louisbranch/ordercore/internal/event"
)

// Fold applies an event to order state. Unknown event types leave the state
// untouched so older replicas can replay newer journals.
func Fold(state State, evt event.Event) State {
	switch evt.Type {
	case EventTypeCreated:
		var payload CreatePayload
		_ = json.Unmarshal(evt.PayloadJSON, &payload)
		state.Created = true
		state.Status = StatusCreated
		state.Customer = payload.Customer
		state.Address = payload.Address
		state.Items = copyQuantities(payload.Items)
	case EventTypeInventoryChecked:
		var payload ReserveInventoryPayload
		_ = json.Unmarshal(evt.PayloadJSON, &payload)
		state.Status = StatusInventoryReserved
		state.Reserved = copyQuantities(payload.Reserved)
		state.LowStock = append([]string(nil), payload.LowStock...)
	case EventTypePaymentProcessed:
		var payload CapturePaymentPayload
		_ = json.Unmarshal(evt.PayloadJSON, &payload)
		state.Status = StatusPaymentCaptured
		state.AmountCents = payload.AmountCents
		state.PaymentRef = payload.PaymentRef
	case EventTypeShipped:
		var payload ShipPayload
		_ = json.Unmarshal(evt.PayloadJSON, &payload)
		state.Status = StatusShipped
		state.Carrier = payload.Carrier
		state.TrackingID = payload.TrackingID
	case EventTypeCompleted:
		state.Status = StatusCompleted
	case EventTypeCancelled:
		var payload CancelPayload
		_ = json.Unmarshal(evt.PayloadJSON, &payload)
		state.Status = StatusCancelled
		state.CancelReason = payload.Reason
	case EventTypeFailed:
		var payload FailPayload
		_ = json.Unmarshal(evt.PayloadJSON, &payload)
		state.Status = StatusFailed
		state.FailureReason = payload.Reason
	case EventTypeRestored:
		var payload RestorePayload
		_ = json.Unmarshal(evt.PayloadJSON, &payload)
		state = payload.State.Clone()
	}
	return state
}

// FoldHandledTypes returns the event types Fold applies.
func FoldHandledTypes() []event.Type {
	return []event.Type{
		EventTypeCreated,
		EventTypeInventoryChecked,
		EventTypePaymentProcessed,
		EventTypeShipped,
		EventTypeCompleted,
		EventTypeCancelled,
		EventTypeFailed,
		EventTypeRestored,
	}
}

func copyQuantities(in map[string]int) map[string]int {
	if in == nil {
		return nil
	}
	out := make(map[string]int, len(in))
	for item, qty := range in {
		out[item] = qty
	}
	return out
}
