package order

// State captures the replayed order aggregate state used by the decider.
//
// Read this as "order snapshot in-memory": it is derived from events, drives
// order-level decisions, and serializes as the snapshot and restore document.
type State struct {
	// Created indicates whether order.create has been successfully applied.
	Created bool `json:"created"`
	// Status is the current lifecycle state that gates which commands are legal.
	Status Status `json:"status,omitempty"`
	// Customer is the ordering customer's name.
	Customer string `json:"customer,omitempty"`
	// Address is the shipping address.
	Address string `json:"address,omitempty"`
	// Items maps item name to ordered quantity.
	Items map[string]int `json:"items,omitempty"`
	// Reserved maps item name to quantity held after the inventory check.
	Reserved map[string]int `json:"reserved,omitempty"`
	// LowStock lists items at or below the warehouse threshold after reservation.
	LowStock []string `json:"low_stock,omitempty"`
	// AmountCents is the captured payment amount.
	AmountCents int64 `json:"amount_cents,omitempty"`
	// PaymentRef is the processor's capture reference.
	PaymentRef string `json:"payment_ref,omitempty"`
	// Carrier is the shipping carrier name.
	Carrier string `json:"carrier,omitempty"`
	// TrackingID is the carrier tracking id.
	TrackingID string `json:"tracking_id,omitempty"`
	// FailureReason records why a failed order failed.
	FailureReason string `json:"failure_reason,omitempty"`
	// CancelReason records why a cancelled order was cancelled.
	CancelReason string `json:"cancel_reason,omitempty"`
}

// Clone returns a deep copy safe to hand across goroutines.
func (s State) Clone() State {
	out := s
	if s.Items != nil {
		out.Items = make(map[string]int, len(s.Items))
		for item, qty := range s.Items {
			out.Items[item] = qty
		}
	}
	if s.Reserved != nil {
		out.Reserved = make(map[string]int, len(s.Reserved))
		for item, qty := range s.Reserved {
			out.Reserved[item] = qty
		}
	}
	if s.LowStock != nil {
		out.LowStock = append([]string(nil), s.LowStock...)
	}
	return out
}
