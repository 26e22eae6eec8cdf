package scenario

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/louisbranch/ordercore/internal/command"
)

func (r *Runner) failf(format string, args ...any) error {
	return r.assertions.Failf(format, args...)
}

func (r *Runner) assertf(format string, args ...any) error {
	return r.assertions.Assertf(format, args...)
}

// resolveOrder maps a step's order reference to the aggregate id, falling
// back to the most recently created order.
func (r *Runner) resolveOrder(state *scenarioState, args map[string]any) (string, error) {
	reference := optionalString(args, "order", state.lastOrder)
	if reference == "" {
		return "", r.failf("order reference is required")
	}
	id, ok := state.orders[reference]
	if !ok {
		return "", r.failf("unknown order %q", reference)
	}
	return id, nil
}

// buildCommand assembles the command a submit step describes, without a
// version pin.
func (r *Runner) buildCommand(state *scenarioState, args map[string]any) (command.Command, error) {
	orderID, err := r.resolveOrder(state, args)
	if err != nil {
		return command.Command{}, err
	}
	kind := requiredString(args, "type")
	if kind == "" {
		return command.Command{}, r.failf("submit type is required")
	}

	payloadJSON := []byte("{}")
	if payload, ok := args["payload"]; ok {
		payloadJSON, err = encodePayload(payload)
		if err != nil {
			return command.Command{}, err
		}
	}
	return command.Command{
		OrderID:     orderID,
		Type:        command.Type(kind),
		Source:      scenarioSource,
		PayloadJSON: payloadJSON,
	}, nil
}

// orderAlias picks the reference name a create_order step binds: an explicit
// order key, else the supplied id, else the customer name.
func orderAlias(args map[string]any) string {
	if reference := optionalString(args, "order", ""); reference != "" {
		return reference
	}
	if id := optionalString(args, "id", ""); id != "" {
		return id
	}
	return optionalString(args, "customer", "")
}

func encodePayload(payload any) ([]byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return encoded, nil
}

func rejectionReasons(rejections []command.Rejection) string {
	if len(rejections) == 0 {
		return "no reason given"
	}
	reasons := make([]string, 0, len(rejections))
	for _, rejection := range rejections {
		reasons = append(reasons, rejection.Message)
	}
	return strings.Join(reasons, "; ")
}

func requiredString(args map[string]any, key string) string {
	value, ok := args[key]
	if !ok {
		return ""
	}
	text, ok := value.(string)
	if ok && text != "" {
		return text
	}
	return ""
}

func optionalString(args map[string]any, key, fallback string) string {
	value, ok := args[key]
	if !ok {
		return fallback
	}
	text, ok := value.(string)
	if ok && text != "" {
		return text
	}
	return fallback
}

func readInt(args map[string]any, key string) (int, bool) {
	value, ok := args[key]
	if !ok {
		return 0, false
	}
	switch typed := value.(type) {
	case int:
		return typed, true
	case float64:
		return int(typed), true
	default:
		return 0, false
	}
}

func optionalInt(args map[string]any, key string, fallback int) int {
	value, ok := args[key]
	if !ok {
		return fallback
	}
	switch typed := value.(type) {
	case int:
		return typed
	case float64:
		return int(typed)
	default:
		return fallback
	}
}

// readIntMap reads a table of item quantities, e.g. { laptop = 1 }.
func readIntMap(args map[string]any, key string) map[string]int {
	value, ok := args[key]
	if !ok {
		return nil
	}
	entries, ok := value.(map[string]any)
	if !ok {
		return nil
	}
	result := make(map[string]int, len(entries))
	for name, raw := range entries {
		switch typed := raw.(type) {
		case int:
			result[name] = typed
		case float64:
			result[name] = int(typed)
		}
	}
	return result
}
