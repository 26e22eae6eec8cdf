package command

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrOrderIDRequired indicates a missing order id on an update command.
	ErrOrderIDRequired = errors.New("order id is required")
	// ErrTypeRequired indicates a missing command type.
	ErrTypeRequired = errors.New("command type is required")
	// ErrTypeUnknown indicates an unregistered command type.
	ErrTypeUnknown = errors.New("command type is not registered")
	// ErrVersionPinForbidden indicates an expected version on an insert command.
	ErrVersionPinForbidden = errors.New("insert commands must not pin an expected version")
	// ErrVersionPinRequired indicates a missing expected version on an update command.
	ErrVersionPinRequired = errors.New("expected version is required")
	// ErrPayloadInvalid indicates malformed payload JSON.
	ErrPayloadInvalid = errors.New("payload json must be valid")
)

// Type identifies the command type string.
type Type string

// Command captures the canonical command envelope.
type Command struct {
	// OrderID addresses the target order. Insert commands may leave it empty
	// and have one assigned.
	OrderID string
	// Type is the dotted command name, e.g. "order.create".
	Type Type
	// Source names the issuing worker or actor.
	Source string
	// RequestID correlates the command with its issuer's request.
	RequestID string
	// ExpectedVersion pins the aggregate version the issuer observed.
	// Nil means insert-only: the order must not exist yet.
	ExpectedVersion *uint64
	// PayloadJSON carries the command-specific document.
	PayloadJSON []byte
}

// Pin returns a pointer to v for use as a command's expected version.
func Pin(v uint64) *uint64 {
	return &v
}

// PayloadValidator validates a payload JSON document.
type PayloadValidator func(json.RawMessage) error

// Definition registers metadata for a command type.
type Definition struct {
	Type Type
	// Insert marks commands that create the order rather than update it.
	Insert          bool
	ValidatePayload PayloadValidator
}

// Registry stores command definitions and validates commands.
type Registry struct {
	definitions map[Type]Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{definitions: make(map[Type]Definition)}
}

// Register adds a new command type definition to the registry.
func (r *Registry) Register(def Definition) error {
	if r == nil {
		return errors.New("registry is required")
	}
	def.Type = Type(strings.TrimSpace(string(def.Type)))
	if def.Type == "" {
		return ErrTypeRequired
	}
	if r.definitions == nil {
		r.definitions = make(map[Type]Definition)
	}
	if _, exists := r.definitions[def.Type]; exists {
		return fmt.Errorf("command type already registered: %s", def.Type)
	}
	r.definitions[def.Type] = def
	return nil
}

// ValidateForDecision validates and normalizes a command before decision
// handling.
func (r *Registry) ValidateForDecision(cmd Command) (Command, error) {
	cmd.Type = Type(strings.TrimSpace(string(cmd.Type)))
	if cmd.Type == "" {
		return Command{}, ErrTypeRequired
	}
	def, ok := r.definitions[cmd.Type]
	if !ok {
		return Command{}, ErrTypeUnknown
	}

	cmd.OrderID = strings.TrimSpace(cmd.OrderID)
	switch {
	case def.Insert:
		if cmd.ExpectedVersion != nil {
			return Command{}, ErrVersionPinForbidden
		}
	default:
		if cmd.OrderID == "" {
			return Command{}, ErrOrderIDRequired
		}
		if cmd.ExpectedVersion == nil {
			return Command{}, ErrVersionPinRequired
		}
	}

	cmd.Source = strings.TrimSpace(cmd.Source)
	cmd.RequestID = strings.TrimSpace(cmd.RequestID)

	if len(cmd.PayloadJSON) == 0 {
		cmd.PayloadJSON = []byte("{}")
	}
	if !json.Valid(cmd.PayloadJSON) {
		return Command{}, ErrPayloadInvalid
	}
	if def.ValidatePayload != nil {
		if err := def.ValidatePayload(json.RawMessage(cmd.PayloadJSON)); err != nil {
			return Command{}, fmt.Errorf("payload invalid: %w", err)
		}
	}
	return cmd, nil
}

// Definition returns the command definition for a given type.
func (r *Registry) Definition(cmdType Type) (Definition, bool) {
	if r == nil {
		return Definition{}, false
	}
	cmdType = Type(strings.TrimSpace(string(cmdType)))
	if cmdType == "" {
		return Definition{}, false
	}
	def, ok := r.definitions[cmdType]
	return def, ok
}

// ListDefinitions returns a stable, sorted snapshot of registered definitions.
func (r *Registry) ListDefinitions() []Definition {
	if r == nil || len(r.definitions) == 0 {
		return nil
	}
	definitions := make([]Definition, 0, len(r.definitions))
	for _, definition := range r.definitions {
		definitions = append(definitions, definition)
	}
	sort.Slice(definitions, func(i, j int) bool {
		return string(definitions[i].Type) < string(definitions[j].Type)
	})
	return definitions
}
