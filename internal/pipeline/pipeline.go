// Package pipeline runs order commands through validation, decision,
// optimistic commit, and publication.
//
// Submit is the single write path: a command is validated against the
// registry, decided against current state, committed with the journal append
// inside the critical section, and only then published on the bus. Version
// conflicts retry with exponential backoff, and the issuer's pin is never
// re-anchored to the version that beat it. The pipeline also keeps the
// per-order undo history and exposes the Core surface workers depend on.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/louisbranch/ordercore/internal/bus"
	"github.com/louisbranch/ordercore/internal/command"
	apperrors "github.com/louisbranch/ordercore/internal/errors"
	"github.com/louisbranch/ordercore/internal/event"
	"github.com/louisbranch/ordercore/internal/journal"
	"github.com/louisbranch/ordercore/internal/order"
	"github.com/louisbranch/ordercore/internal/platform/id"
	"github.com/louisbranch/ordercore/internal/storage"
	"github.com/louisbranch/ordercore/internal/store"
	"github.com/louisbranch/ordercore/internal/telemetry"
)

const tracerName = "ordercore/pipeline"

const (
	defaultMaxRetries    = 3
	defaultRetryBackoff  = 10 * time.Millisecond
	defaultRetryMaxDelay = 500 * time.Millisecond
	defaultHistoryDepth  = 10
)

// Status reports how far a command travelled through the pipeline.
type Status string

const (
	// StatusPending marks a command Submit has accepted but not yet validated.
	StatusPending Status = "pending"
	// StatusValidating marks a command between envelope validation and its
	// terminal outcome.
	StatusValidating Status = "validating"
	// StatusCommitted marks a command whose events landed in the journal.
	StatusCommitted Status = "committed"
	// StatusRejected marks a command the decider declined.
	StatusRejected Status = "rejected"
	// StatusConflicted marks a command that lost its optimistic version check.
	StatusConflicted Status = "conflicted"
)

// Result reports the outcome of one submitted command.
type Result struct {
	// Status is the phase the command reached. Errors without a terminal
	// classification, such as an unknown order, leave the phase the command
	// died in.
	Status Status
	// State and Version are the committed aggregate after the command.
	State   order.State
	Version uint64
	// Events are the journal-assigned events the command produced.
	Events []event.Event
	// Rejections carries the decider's reasons when Status is rejected.
	Rejections []command.Rejection
	// HandlerFailures collects subscriber errors from publication. A failing
	// subscriber never rolls back the commit.
	HandlerFailures []bus.HandlerFailure
}

// Core is the coordination surface workers and tooling depend on. Workers
// never touch the store, journal, or bus directly.
type Core interface {
	Get(ctx context.Context, orderID string) (order.State, uint64, error)
	Submit(ctx context.Context, cmd command.Command) (Result, error)
	Subscribe(kind event.Type, h bus.Handler) func()
	SubscribeAll(h bus.Handler) func()
	Undo(ctx context.Context, orderID string) (Result, error)
	Redo(ctx context.Context, orderID string) (Result, error)
}

// Config wires the pipeline's collaborators.
type Config struct {
	// Store is the versioned aggregate cache commits go through.
	Store *store.Store
	// Journal is the append-only system of record.
	Journal journal.Journal
	// Bus receives committed events after the journal write.
	Bus *bus.Bus
	// Commands validates submitted envelopes.
	Commands *command.Registry

	// Telemetry, when set, records command outcomes.
	Telemetry *telemetry.Emitter
	// Snapshots, when set, receives a state snapshot after every commit.
	Snapshots storage.SnapshotStore

	// MaxRetries bounds version-conflict retries per Submit. Zero means 3.
	MaxRetries int
	// RetryBackoff is the first retry delay, doubled each retry. Zero means 10ms.
	RetryBackoff time.Duration
	// RetryMaxDelay caps the retry delay. Zero means 500ms.
	RetryMaxDelay time.Duration
	// HistoryDepth bounds the per-order undo history. Zero means 10.
	HistoryDepth int
	// Now supplies event timestamps. Zero means time.Now.
	Now func() time.Time
}

// Pipeline is the single write path for order commands.
type Pipeline struct {
	cfg     Config
	history *history
}

var _ Core = (*Pipeline)(nil)

// New validates cfg, applies defaults, and builds a pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.Journal == nil {
		return nil, errors.New("journal is required")
	}
	if cfg.Bus == nil {
		return nil, errors.New("bus is required")
	}
	if cfg.Commands == nil {
		return nil, errors.New("command registry is required")
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = defaultRetryBackoff
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = defaultRetryMaxDelay
	}
	if cfg.HistoryDepth <= 0 {
		cfg.HistoryDepth = defaultHistoryDepth
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Pipeline{cfg: cfg, history: newHistory(cfg.HistoryDepth)}, nil
}

// Get returns the committed state and version for an order.
func (p *Pipeline) Get(ctx context.Context, orderID string) (order.State, uint64, error) {
	return p.cfg.Store.Get(ctx, orderID)
}

// Subscribe registers h for one event kind and returns its unsubscribe function.
func (p *Pipeline) Subscribe(kind event.Type, h bus.Handler) func() {
	return p.cfg.Bus.Subscribe(kind, h)
}

// SubscribeAll registers h for every event kind and returns its unsubscribe
// function.
func (p *Pipeline) SubscribeAll(h bus.Handler) func() {
	return p.cfg.Bus.SubscribeAll(h)
}

// Submit runs one command through the pipeline and returns its outcome.
//
// Rejections are terminal. Version conflicts retry up to MaxRetries times
// with exponential backoff; the pin is re-checked against a fresh read each
// attempt but never re-anchored, so a genuinely stale issuer receives
// CodeVersionConflict once the retries exhaust. Committed events are
// published only after the journal write, and handler failures are reported
// in the result, never as an error.
func (p *Pipeline) Submit(ctx context.Context, cmd command.Command) (Result, error) {
	result := Result{Status: StatusPending}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline.submit")
	defer span.End()
	span.SetAttributes(attribute.String("command.type", string(cmd.Type)))

	result.Status = StatusValidating
	cmd, err := p.cfg.Commands.ValidateForDecision(cmd)
	if err != nil {
		return result, apperrors.Wrap(apperrors.CodeCommandInvalid, "invalid command", err)
	}

	if cmd.ExpectedVersion == nil && cmd.OrderID == "" {
		orderID, err := id.NewID()
		if err != nil {
			return result, fmt.Errorf("assign order id: %w", err)
		}
		cmd.OrderID = orderID
	}
	span.SetAttributes(attribute.String("order.id", cmd.OrderID))

	var conflictErr error
	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := p.waitBeforeRetry(ctx, attempt); err != nil {
				return result, err
			}
		}

		result, err = p.attemptCommit(ctx, cmd)
		if err != nil && apperrors.HasCode(err, apperrors.CodeVersionConflict) {
			conflictErr = err
			continue
		}
		if err != nil && apperrors.HasCode(err, apperrors.CodeOrderExists) {
			p.emitTelemetry(ctx, "command.conflicted", telemetry.SeverityWarn, cmd, map[string]any{
				"reason": "order already exists",
			})
		}
		return result, err
	}

	result.Status = StatusConflicted
	p.emitTelemetry(ctx, "command.conflicted", telemetry.SeverityWarn, cmd, map[string]any{
		"attempts": p.cfg.MaxRetries + 1,
	})
	return result, conflictErr
}

// attemptCommit performs one read-decide-commit pass for a validated command.
func (p *Pipeline) attemptCommit(ctx context.Context, cmd command.Command) (Result, error) {
	result := Result{Status: StatusValidating}

	current, version, err := p.cfg.Store.Get(ctx, cmd.OrderID)
	switch {
	case cmd.ExpectedVersion == nil:
		// Insert-only: the order must not exist yet.
		if err == nil {
			result.Status = StatusConflicted
			return result, apperrors.WithMetadata(apperrors.CodeOrderExists, "order already exists",
				map[string]string{"order_id": cmd.OrderID})
		}
		if !apperrors.HasCode(err, apperrors.CodeNotFound) {
			return result, err
		}
	case err != nil:
		return result, err
	case *cmd.ExpectedVersion != version:
		return result, versionConflict(cmd.OrderID, *cmd.ExpectedVersion, version)
	}

	decision := order.Decide(current, cmd, p.cfg.Now)
	if len(decision.Rejections) > 0 {
		result.Status = StatusRejected
		result.Rejections = decision.Rejections
		p.emitTelemetry(ctx, "command.rejected", telemetry.SeverityWarn, cmd, map[string]any{
			"rejection_code": decision.Rejections[0].Code,
		})
		return result, apperrors.WithMetadata(apperrors.CodeCommandRejected, decision.Rejections[0].Message,
			map[string]string{"order_id": cmd.OrderID, "rejection_code": decision.Rejections[0].Code})
	}

	var stored []event.Event
	next, newVersion, err := p.cfg.Store.Commit(ctx, cmd.OrderID, cmd.ExpectedVersion,
		func(state order.State, version uint64) (order.State, error) {
			for i := range decision.Events {
				decision.Events[i].CausedBy = version
				state = order.Fold(state, decision.Events[i])
			}
			// The journal write is the last fallible step: an append failure
			// aborts the commit before the store advances.
			for _, evt := range decision.Events {
				appended, err := p.cfg.Journal.AppendEvent(ctx, evt)
				if err != nil {
					return order.State{}, apperrors.Wrap(apperrors.CodeStorageUnavailable, "append event", err)
				}
				stored = append(stored, appended)
			}
			return state, nil
		})
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeOrderExists) {
			result.Status = StatusConflicted
		}
		return result, err
	}

	result.Status = StatusCommitted
	result.State = next
	result.Version = newVersion
	result.Events = stored

	if cmd.Type != order.CommandTypeRestore {
		p.history.record(cmd.OrderID, next, newVersion)
	}
	p.saveSnapshot(ctx, cmd.OrderID, next, newVersion, stored)
	p.emitTelemetry(ctx, "command.committed", telemetry.SeverityInfo, cmd, map[string]any{
		"version": newVersion,
		"events":  len(stored),
	})

	// Durability before visibility: subscribers only ever see journaled events.
	for _, evt := range stored {
		result.HandlerFailures = append(result.HandlerFailures, p.cfg.Bus.Publish(ctx, evt)...)
	}
	return result, nil
}

// waitBeforeRetry sleeps for the retry's backoff delay unless ctx ends first.
func (p *Pipeline) waitBeforeRetry(ctx context.Context, retry int) error {
	delay := p.cfg.RetryBackoff << (retry - 1)
	if delay <= 0 || delay > p.cfg.RetryMaxDelay {
		delay = p.cfg.RetryMaxDelay
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// saveSnapshot records the committed state for faster rebuilds. Snapshots are
// accelerators, never authority, so a failed save only logs.
func (p *Pipeline) saveSnapshot(ctx context.Context, orderID string, state order.State, version uint64, stored []event.Event) {
	if p.cfg.Snapshots == nil || len(stored) == 0 {
		return
	}
	stateJSON, err := json.Marshal(state)
	if err != nil {
		log.Printf("marshal snapshot state: %v", err)
		return
	}
	snap := storage.Snapshot{
		OrderID:   orderID,
		EventSeq:  stored[len(stored)-1].Seq,
		Version:   version,
		Status:    string(state.Status),
		StateJSON: stateJSON,
		UpdatedAt: p.cfg.Now(),
	}
	if err := p.cfg.Snapshots.PutSnapshot(ctx, snap); err != nil {
		log.Printf("save snapshot order_id=%s: %v", orderID, err)
	}
}

func (p *Pipeline) emitTelemetry(ctx context.Context, name string, severity telemetry.Severity, cmd command.Command, attrs map[string]any) {
	if p.cfg.Telemetry == nil {
		return
	}
	if attrs == nil {
		attrs = make(map[string]any, 1)
	}
	attrs["command"] = string(cmd.Type)
	err := p.cfg.Telemetry.Emit(ctx, storage.TelemetryEvent{
		EventName:  name,
		Severity:   string(severity),
		OrderID:    cmd.OrderID,
		RequestID:  cmd.RequestID,
		Attributes: attrs,
	})
	if err != nil {
		log.Printf("emit telemetry event: %v", err)
	}
}

// versionConflict mirrors the store's conflict error so pre-commit pin checks
// and lost commit races surface identically to callers.
func versionConflict(orderID string, expected, current uint64) error {
	return apperrors.WithMetadata(apperrors.CodeVersionConflict, "order version conflict", map[string]string{
		"order_id": orderID,
		"expected": strconv.FormatUint(expected, 10),
		"current":  strconv.FormatUint(current, 10),
	})
}
