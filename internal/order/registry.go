package order

import (
	"encoding/json"
	"errors"

	"github.com/louisbranch/ordercore/internal/command"
	"github.com/louisbranch/ordercore/internal/event"
)

// RegisterCommands registers order commands with the shared registry.
func RegisterCommands(registry *command.Registry) error {
	if registry == nil {
		return errors.New("command registry is required")
	}
	if err := registry.Register(command.Definition{
		Type:            CommandTypeCreate,
		Insert:          true,
		ValidatePayload: validateCreatePayload,
	}); err != nil {
		return err
	}
	if err := registry.Register(command.Definition{
		Type:            CommandTypeReserveInventory,
		ValidatePayload: validateReserveInventoryPayload,
	}); err != nil {
		return err
	}
	if err := registry.Register(command.Definition{
		Type:            CommandTypeCapturePayment,
		ValidatePayload: validateCapturePaymentPayload,
	}); err != nil {
		return err
	}
	if err := registry.Register(command.Definition{
		Type:            CommandTypeShip,
		ValidatePayload: validateShipPayload,
	}); err != nil {
		return err
	}
	if err := registry.Register(command.Definition{
		Type:            CommandTypeComplete,
		ValidatePayload: validateCompletePayload,
	}); err != nil {
		return err
	}
	if err := registry.Register(command.Definition{
		Type:            CommandTypeCancel,
		ValidatePayload: validateCancelPayload,
	}); err != nil {
		return err
	}
	if err := registry.Register(command.Definition{
		Type:            CommandTypeFail,
		ValidatePayload: validateFailPayload,
	}); err != nil {
		return err
	}
	return registry.Register(command.Definition{
		Type:            CommandTypeRestore,
		ValidatePayload: validateRestorePayload,
	})
}

// RegisterEvents registers order events with the shared registry.
func RegisterEvents(registry *event.Registry) error {
	if registry == nil {
		return errors.New("event registry is required")
	}
	if err := registry.Register(event.Definition{
		Type:            EventTypeCreated,
		ValidatePayload: validateCreatePayload,
	}); err != nil {
		return err
	}
	if err := registry.Register(event.Definition{
		Type:            EventTypeInventoryChecked,
		ValidatePayload: validateReserveInventoryPayload,
	}); err != nil {
		return err
	}
	if err := registry.Register(event.Definition{
		Type:            EventTypePaymentProcessed,
		ValidatePayload: validateCapturePaymentPayload,
	}); err != nil {
		return err
	}
	if err := registry.Register(event.Definition{
		Type:            EventTypeShipped,
		ValidatePayload: validateShipPayload,
	}); err != nil {
		return err
	}
	if err := registry.Register(event.Definition{
		Type:            EventTypeCompleted,
		ValidatePayload: validateCompletePayload,
	}); err != nil {
		return err
	}
	if err := registry.Register(event.Definition{
		Type:            EventTypeCancelled,
		ValidatePayload: validateCancelPayload,
	}); err != nil {
		return err
	}
	if err := registry.Register(event.Definition{
		Type:            EventTypeFailed,
		ValidatePayload: validateFailPayload,
	}); err != nil {
		return err
	}
	return registry.Register(event.Definition{
		Type:            EventTypeRestored,
		ValidatePayload: validateRestorePayload,
	})
}

// NewRegistries returns command and event registries with every order type
// registered.
func NewRegistries() (*command.Registry, *event.Registry, error) {
	commands := command.NewRegistry()
	if err := RegisterCommands(commands); err != nil {
		return nil, nil, err
	}
	events := event.NewRegistry()
	if err := RegisterEvents(events); err != nil {
		return nil, nil, err
	}
	return commands, events, nil
}

// validateCreatePayload ensures create payloads match the order create shape.
func validateCreatePayload(raw json.RawMessage) error {
	var payload CreatePayload
	return json.Unmarshal(raw, &payload)
}

// validateReserveInventoryPayload ensures reservation payloads match the inventory shape.
func validateReserveInventoryPayload(raw json.RawMessage) error {
	var payload ReserveInventoryPayload
	return json.Unmarshal(raw, &payload)
}

// validateCapturePaymentPayload ensures payment payloads match the capture shape.
func validateCapturePaymentPayload(raw json.RawMessage) error {
	var payload CapturePaymentPayload
	return json.Unmarshal(raw, &payload)
}

// validateShipPayload ensures ship payloads match the shipping shape.
func validateShipPayload(raw json.RawMessage) error {
	var payload ShipPayload
	return json.Unmarshal(raw, &payload)
}

// validateCompletePayload ensures complete payloads match the completion shape.
func validateCompletePayload(raw json.RawMessage) error {
	var payload CompletePayload
	return json.Unmarshal(raw, &payload)
}

// validateCancelPayload ensures cancel payloads match the cancellation shape.
func validateCancelPayload(raw json.RawMessage) error {
	var payload CancelPayload
	return json.Unmarshal(raw, &payload)
}

// validateFailPayload ensures fail payloads match the failure shape.
func validateFailPayload(raw json.RawMessage) error {
	var payload FailPayload
	return json.Unmarshal(raw, &payload)
}

// validateRestorePayload ensures restore payloads match the restore shape.
func validateRestorePayload(raw json.RawMessage) error {
	var payload RestorePayload
	return json.Unmarshal(raw, &payload)
}
