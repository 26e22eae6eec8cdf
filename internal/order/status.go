package order

import "strings"

// Status describes the order lifecycle label used by domain decisions.
type Status string

const (
	StatusUnspecified       Status = ""
	StatusCreated           Status = "created"
	StatusInventoryReserved Status = "inventory_reserved"
	StatusPaymentCaptured   Status = "payment_captured"
	StatusShipped           Status = "shipped"
	StatusCompleted         Status = "completed"
	StatusFailed            Status = "failed"
	StatusCancelled         Status = "cancelled"
)

// normalizeStatusLabel canonicalizes status labels from external input.
func normalizeStatusLabel(value string) (Status, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", false
	}
	switch Status(strings.ToLower(trimmed)) {
	case StatusCreated:
		return StatusCreated, true
	case StatusInventoryReserved:
		return StatusInventoryReserved, true
	case StatusPaymentCaptured:
		return StatusPaymentCaptured, true
	case StatusShipped:
		return StatusShipped, true
	case StatusCompleted:
		return StatusCompleted, true
	case StatusFailed:
		return StatusFailed, true
	case StatusCancelled:
		return StatusCancelled, true
	default:
		return "", false
	}
}

// isTransitionAllowed enforces the forward order lifecycle.
func isTransitionAllowed(from, to Status) bool {
	switch from {
	case StatusCreated:
		return to == StatusInventoryReserved || to == StatusFailed || to == StatusCancelled
	case StatusInventoryReserved:
		return to == StatusPaymentCaptured || to == StatusFailed || to == StatusCancelled
	case StatusPaymentCaptured:
		return to == StatusShipped || to == StatusFailed || to == StatusCancelled
	case StatusShipped:
		return to == StatusCompleted || to == StatusFailed
	default:
		return false
	}
}

// CanTransition reports whether a status transition is permitted.
func CanTransition(from, to Status) bool {
	return isTransitionAllowed(from, to)
}

// IsTerminal reports whether a status permits no further transitions.
func IsTerminal(s Status) bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}
