package scenario

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/ordercore/internal/command"
	apperrors "github.com/louisbranch/ordercore/internal/errors"
	"github.com/louisbranch/ordercore/internal/order"
	"github.com/louisbranch/ordercore/internal/pipeline"
)

const scenarioSource = "scenario"

func (r *Runner) runStep(ctx context.Context, env *scenarioEnv, state *scenarioState, step Step) error {
	switch step.Kind {
	case "create_order":
		return r.runCreateOrderStep(ctx, env, state, step)
	case "submit":
		return r.runSubmitStep(ctx, env, state, step)
	case "submit_stale":
		return r.runSubmitStaleStep(ctx, env, state, step)
	case "undo":
		return r.runUndoStep(ctx, env, state, step)
	case "redo":
		return r.runRedoStep(ctx, env, state, step)
	case "expect_status":
		return r.runExpectStatusStep(ctx, env, state, step)
	case "expect_version":
		return r.runExpectVersionStep(ctx, env, state, step)
	case "expect_event":
		return r.runExpectEventStep(ctx, env, state, step)
	case "expect_event_count":
		return r.runExpectEventCountStep(ctx, env, state, step)
	case "expect_stock":
		return r.runExpectStockStep(env, state, step)
	case "sleep":
		return r.runSleepStep(ctx, step)
	default:
		return r.failf("unknown step kind %q", step.Kind)
	}
}

func (r *Runner) runCreateOrderStep(ctx context.Context, env *scenarioEnv, state *scenarioState, step Step) error {
	customer := requiredString(step.Args, "customer")
	if customer == "" {
		return r.failf("create_order customer is required")
	}
	items := readIntMap(step.Args, "items")
	if len(items) == 0 {
		return r.failf("create_order items are required")
	}

	payloadJSON, err := encodePayload(order.CreatePayload{
		Customer: customer,
		Address:  optionalString(step.Args, "address", ""),
		Items:    items,
	})
	if err != nil {
		return err
	}

	result, err := env.core.Submit(ctx, command.Command{
		OrderID:     optionalString(step.Args, "id", ""),
		Type:        order.CommandTypeCreate,
		Source:      scenarioSource,
		PayloadJSON: payloadJSON,
	})
	state.lastResult = &result
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	if len(result.Events) == 0 {
		return r.failf("create order committed no events")
	}

	reference := orderAlias(step.Args)
	if reference == "" {
		reference = customer
	}
	state.orders[reference] = result.Events[0].OrderID
	state.lastOrder = reference
	r.logf("order created: ref=%s id=%s status=%s", reference, result.Events[0].OrderID, result.State.Status)
	return nil
}

func (r *Runner) runSubmitStep(ctx context.Context, env *scenarioEnv, state *scenarioState, step Step) error {
	cmd, err := r.buildCommand(state, step.Args)
	if err != nil {
		return err
	}
	if version, ok := readInt(step.Args, "expected_version"); ok {
		cmd.ExpectedVersion = command.Pin(uint64(version))
	} else {
		_, version, err := env.core.Get(ctx, cmd.OrderID)
		if err != nil {
			return fmt.Errorf("read order version: %w", err)
		}
		cmd.ExpectedVersion = command.Pin(version)
	}

	result, err := env.core.Submit(ctx, cmd)
	state.lastResult = &result
	expect := strings.ToLower(optionalString(step.Args, "expect", "committed"))
	switch {
	case err == nil:
		if expect != "committed" {
			return r.assertf("submit %s committed, want %s", cmd.Type, expect)
		}
		r.logf("submit %s: order=%s version=%d", cmd.Type, cmd.OrderID, result.Version)
		return nil
	case result.Status == pipeline.StatusRejected:
		if expect == "rejected" {
			r.logf("submit %s rejected as expected: %s", cmd.Type, rejectionReasons(result.Rejections))
			return nil
		}
		return r.assertf("submit %s rejected: %s", cmd.Type, rejectionReasons(result.Rejections))
	case result.Status == pipeline.StatusConflicted:
		if expect == "conflicted" {
			r.logf("submit %s conflicted as expected: order=%s", cmd.Type, cmd.OrderID)
			return nil
		}
		return r.assertf("submit %s conflicted for order %s", cmd.Type, cmd.OrderID)
	default:
		return fmt.Errorf("submit %s: %w", cmd.Type, err)
	}
}

func (r *Runner) runSubmitStaleStep(ctx context.Context, env *scenarioEnv, state *scenarioState, step Step) error {
	cmd, err := r.buildCommand(state, step.Args)
	if err != nil {
		return err
	}
	version, ok := readInt(step.Args, "expected_version")
	if !ok {
		return r.failf("submit_stale expected_version is required")
	}
	cmd.ExpectedVersion = command.Pin(uint64(version))

	result, err := env.core.Submit(ctx, cmd)
	state.lastResult = &result
	if err == nil || result.Status != pipeline.StatusConflicted {
		return r.assertf("stale submit %s reached status %s, want %s", cmd.Type, result.Status, pipeline.StatusConflicted)
	}
	r.logf("stale submit conflicted: order=%s pinned=%d", cmd.OrderID, version)
	return nil
}

func (r *Runner) runUndoStep(ctx context.Context, env *scenarioEnv, state *scenarioState, step Step) error {
	orderID, err := r.resolveOrder(state, step.Args)
	if err != nil {
		return err
	}
	expectUnavailable := strings.EqualFold(optionalString(step.Args, "expect", ""), "unavailable")

	result, err := env.core.Undo(ctx, orderID)
	state.lastResult = &result
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeUndoUnavailable) {
			if expectUnavailable {
				r.logf("undo unavailable as expected: order=%s", orderID)
				return nil
			}
			return r.assertf("undo unavailable for order %s", orderID)
		}
		return fmt.Errorf("undo: %w", err)
	}
	if expectUnavailable {
		return r.assertf("undo succeeded for order %s, want unavailable", orderID)
	}
	r.logf("undo: order=%s version=%d status=%s", orderID, result.Version, result.State.Status)
	return nil
}

func (r *Runner) runRedoStep(ctx context.Context, env *scenarioEnv, state *scenarioState, step Step) error {
	orderID, err := r.resolveOrder(state, step.Args)
	if err != nil {
		return err
	}
	expectUnavailable := strings.EqualFold(optionalString(step.Args, "expect", ""), "unavailable")

	result, err := env.core.Redo(ctx, orderID)
	state.lastResult = &result
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeRedoUnavailable) {
			if expectUnavailable {
				r.logf("redo unavailable as expected: order=%s", orderID)
				return nil
			}
			return r.assertf("redo unavailable for order %s", orderID)
		}
		return fmt.Errorf("redo: %w", err)
	}
	if expectUnavailable {
		return r.assertf("redo succeeded for order %s, want unavailable", orderID)
	}
	r.logf("redo: order=%s version=%d status=%s", orderID, result.Version, result.State.Status)
	return nil
}

func (r *Runner) runExpectStatusStep(ctx context.Context, env *scenarioEnv, state *scenarioState, step Step) error {
	state.checks++
	orderID, err := r.resolveOrder(state, step.Args)
	if err != nil {
		return err
	}
	want := requiredString(step.Args, "status")
	if want == "" {
		return r.failf("expect_status status is required")
	}

	current, version, err := env.core.Get(ctx, orderID)
	if err != nil {
		return fmt.Errorf("get order %s: %w", orderID, err)
	}
	if !strings.EqualFold(string(current.Status), strings.TrimSpace(want)) {
		return r.assertf("order %s status = %s, want %s", orderID, current.Status, want)
	}
	r.logf("status ok: order=%s status=%s version=%d", orderID, current.Status, version)
	return nil
}

func (r *Runner) runExpectVersionStep(ctx context.Context, env *scenarioEnv, state *scenarioState, step Step) error {
	state.checks++
	orderID, err := r.resolveOrder(state, step.Args)
	if err != nil {
		return err
	}
	want, ok := readInt(step.Args, "version")
	if !ok {
		return r.failf("expect_version version is required")
	}

	_, version, err := env.core.Get(ctx, orderID)
	if err != nil {
		return fmt.Errorf("get order %s: %w", orderID, err)
	}
	if version != uint64(want) {
		return r.assertf("order %s version = %d, want %d", orderID, version, want)
	}
	r.logf("version ok: order=%s version=%d", orderID, version)
	return nil
}

func (r *Runner) runExpectEventStep(ctx context.Context, env *scenarioEnv, state *scenarioState, step Step) error {
	state.checks++
	orderID, err := r.resolveOrder(state, step.Args)
	if err != nil {
		return err
	}
	wantType := requiredString(step.Args, "type")
	if wantType == "" {
		return r.failf("expect_event type is required")
	}

	events, err := env.journal.ListEvents(ctx, orderID, 0, 0)
	if err != nil {
		return fmt.Errorf("list events for %s: %w", orderID, err)
	}

	// seq 0 matches any event of the wanted type.
	if seq, ok := readInt(step.Args, "seq"); ok && seq > 0 {
		for _, evt := range events {
			if evt.Seq != uint64(seq) {
				continue
			}
			if string(evt.Type) != wantType {
				return r.assertf("order %s event %d = %s, want %s", orderID, seq, evt.Type, wantType)
			}
			if causedBy, ok := readInt(step.Args, "caused_by"); ok && evt.CausedBy != uint64(causedBy) {
				return r.assertf("order %s event %d caused_by = %d, want %d", orderID, seq, evt.CausedBy, causedBy)
			}
			return nil
		}
		return r.assertf("order %s has no event at seq %d", orderID, seq)
	}
	for _, evt := range events {
		if string(evt.Type) == wantType {
			return nil
		}
	}
	return r.assertf("order %s has no %s event", orderID, wantType)
}

func (r *Runner) runExpectEventCountStep(ctx context.Context, env *scenarioEnv, state *scenarioState, step Step) error {
	state.checks++
	orderID, err := r.resolveOrder(state, step.Args)
	if err != nil {
		return err
	}
	want, ok := readInt(step.Args, "count")
	if !ok {
		return r.failf("expect_event_count count is required")
	}

	events, err := env.journal.ListEvents(ctx, orderID, 0, 0)
	if err != nil {
		return fmt.Errorf("list events for %s: %w", orderID, err)
	}
	if len(events) != want {
		return r.assertf("order %s has %d events, want %d", orderID, len(events), want)
	}
	return nil
}

func (r *Runner) runExpectStockStep(env *scenarioEnv, state *scenarioState, step Step) error {
	state.checks++
	item := requiredString(step.Args, "item")
	if item == "" {
		return r.failf("expect_stock item is required")
	}
	want, ok := readInt(step.Args, "quantity")
	if !ok {
		return r.failf("expect_stock quantity is required")
	}

	if got := env.runtime.Inventory.Stock()[item]; got != want {
		return r.assertf("stock %s = %d, want %d", item, got, want)
	}
	return nil
}

func (r *Runner) runSleepStep(ctx context.Context, step Step) error {
	ms := optionalInt(step.Args, "ms", 1)
	select {
	case <-time.After(time.Duration(ms) * time.Millisecond):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
