package order

// CreatePayload captures the payload for order.create commands and order.created events.
type CreatePayload struct {
	Customer string         `json:"customer"`
	Address  string         `json:"address,omitempty"`
	Items    map[string]int `json:"items"`
}

// ReserveInventoryPayload captures the payload for order.reserve_inventory commands
// and order.inventory_checked events.
type ReserveInventoryPayload struct {
	Reserved map[string]int `json:"reserved"`
	LowStock []string       `json:"low_stock,omitempty"`
}

// CapturePaymentPayload captures the payload for order.capture_payment commands
// and order.payment_processed events.
type CapturePaymentPayload struct {
	AmountCents int64  `json:"amount_cents"`
	PaymentRef  string `json:"payment_ref"`
}

// ShipPayload captures the payload for order.ship commands and order.shipped events.
type ShipPayload struct {
	Carrier    string `json:"carrier"`
	TrackingID string `json:"tracking_id"`
}

// CompletePayload captures the payload for order.complete commands and order.completed events.
type CompletePayload struct {
	Note string `json:"note,omitempty"`
}

// CancelPayload captures the payload for order.cancel commands and order.cancelled events.
type CancelPayload struct {
	Reason string `json:"reason,omitempty"`
}

// FailPayload captures the payload for order.fail commands and order.failed events.
type FailPayload struct {
	Reason string `json:"reason"`
}

// RestorePayload captures the payload for order.restore commands and order.restored events.
type RestorePayload struct {
	// State is the previously committed state to reinstate verbatim.
	State State `json:"state"`
	// RestoredFromVersion is the version whose state is reinstated.
	RestoredFromVersion uint64 `json:"restored_from_version"`
	// Direction is "undo" or "redo".
	Direction string `json:"direction,omitempty"`
}
