package demo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/louisbranch/ordercore/internal/command"
	apperrors "github.com/louisbranch/ordercore/internal/errors"
	"github.com/louisbranch/ordercore/internal/event"
	"github.com/louisbranch/ordercore/internal/order"
)

const demoSource = "demo"

const telemetryTailLimit = 5

// walkthrough drives the scripted order lifecycle and prints the narrative.
func (e *demoEnv) walkthrough(ctx context.Context, out io.Writer) error {
	orderID, err := e.createOrder(ctx, out)
	if err != nil {
		return err
	}
	if err := e.staleCancel(ctx, out, orderID); err != nil {
		return err
	}
	if err := e.undoRedo(ctx, out, orderID); err != nil {
		return err
	}
	return e.report(ctx, out, orderID)
}

// createOrder submits the create command. The worker cascade runs depth-first
// inside this Submit call, so the order is terminal when it returns.
func (e *demoEnv) createOrder(ctx context.Context, out io.Writer) (string, error) {
	payloadJSON, err := json.Marshal(order.CreatePayload{
		Customer: "ada",
		Address:  "1 Loop Road",
		Items:    map[string]int{"laptop": 1, "mouse": 2},
	})
	if err != nil {
		return "", fmt.Errorf("marshal create payload: %w", err)
	}

	created, err := e.core.Submit(ctx, command.Command{
		Type:        order.CommandTypeCreate,
		Source:      demoSource,
		PayloadJSON: payloadJSON,
	})
	if err != nil {
		return "", fmt.Errorf("create order: %w", err)
	}
	if len(created.Events) == 0 {
		return "", errors.New("create order produced no events")
	}
	orderID := created.Events[0].OrderID

	state, version, err := e.core.Get(ctx, orderID)
	if err != nil {
		return "", fmt.Errorf("read order: %w", err)
	}
	fmt.Fprintf(out, "\ncreated order %s for %s\n", orderID, state.Customer)
	fmt.Fprintf(out, "cascade finished at version %d, status %s\n", version, state.Status)
	if len(created.HandlerFailures) > 0 {
		fmt.Fprintf(out, "cascade handler failures: %d\n", len(created.HandlerFailures))
	}
	return orderID, nil
}

// staleCancel pins a cancel at the pre-cascade version and shows the pipeline
// refusing it: retries re-check but never re-anchor the issuer's pin.
func (e *demoEnv) staleCancel(ctx context.Context, out io.Writer, orderID string) error {
	payloadJSON, err := json.Marshal(order.CancelPayload{Reason: "changed mind"})
	if err != nil {
		return fmt.Errorf("marshal cancel payload: %w", err)
	}

	stale, err := e.core.Submit(ctx, command.Command{
		OrderID:         orderID,
		Type:            order.CommandTypeCancel,
		Source:          demoSource,
		ExpectedVersion: command.Pin(1),
		PayloadJSON:     payloadJSON,
	})
	if err == nil {
		return fmt.Errorf("stale cancel committed at version %d, want a version conflict", stale.Version)
	}
	var conflict *apperrors.Error
	if !apperrors.HasCode(err, apperrors.CodeVersionConflict) || !errors.As(err, &conflict) {
		return fmt.Errorf("stale cancel: %w", err)
	}
	fmt.Fprintf(out, "\nstale cancel pinned at version 1: %s (expected %s, current %s)\n",
		conflict.Message, conflict.Metadata["expected"], conflict.Metadata["current"])
	return nil
}

// undoRedo steps the order back one commit and forward again. Both directions
// move the version forward with an order.restored event.
func (e *demoEnv) undoRedo(ctx context.Context, out io.Writer, orderID string) error {
	undone, err := e.core.Undo(ctx, orderID)
	if err != nil {
		return fmt.Errorf("undo: %w", err)
	}
	if err := printRestore(out, "undo", undone.Events, undone.Version, string(undone.State.Status)); err != nil {
		return err
	}

	redone, err := e.core.Redo(ctx, orderID)
	if err != nil {
		return fmt.Errorf("redo: %w", err)
	}
	return printRestore(out, "redo", redone.Events, redone.Version, string(redone.State.Status))
}

func printRestore(out io.Writer, direction string, events []event.Event, version uint64, status string) error {
	if len(events) == 0 {
		return fmt.Errorf("%s produced no events", direction)
	}
	var restored order.RestorePayload
	if err := json.Unmarshal(events[0].PayloadJSON, &restored); err != nil {
		return fmt.Errorf("decode %s payload: %w", direction, err)
	}
	fmt.Fprintf(out, "%s restored the version %d state, now version %d, status %s\n",
		direction, restored.RestoredFromVersion, version, status)
	return nil
}

// report prints the journal, final state, notification counts, and telemetry
// tail for the walked order.
func (e *demoEnv) report(ctx context.Context, out io.Writer, orderID string) error {
	events, err := e.journal.ListEvents(ctx, orderID, 0, 0)
	if err != nil {
		return fmt.Errorf("list events: %w", err)
	}
	fmt.Fprintln(out, "\nEvent log:")
	for _, evt := range events {
		fmt.Fprintf(out, "  %2d %-24s source=%-18s caused_by=%d\n", evt.Seq, evt.Type, evt.Source, evt.CausedBy)
	}

	state, version, err := e.core.Get(ctx, orderID)
	if err != nil {
		return fmt.Errorf("read order: %w", err)
	}
	fmt.Fprintln(out, "\nFinal state:")
	fmt.Fprintf(out, "  status   %s at version %d\n", state.Status, version)
	fmt.Fprintf(out, "  customer %s\n", state.Customer)
	fmt.Fprintf(out, "  items    %s\n", formatItems(state.Items))
	fmt.Fprintf(out, "  payment  %d.%02d via %s\n", state.AmountCents/100, state.AmountCents%100, state.PaymentRef)
	fmt.Fprintf(out, "  shipping %s tracking %s\n", state.Carrier, state.TrackingID)

	fmt.Fprintln(out, "\nNotifications:")
	counts := e.runtime.Notifications.Counts()
	kinds := make([]string, 0, len(counts))
	for kind := range counts {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		fmt.Fprintf(out, "  %-24s %d\n", kind, counts[event.Type(kind)])
	}

	tail, err := e.tail.ListTelemetryEvents(ctx, telemetryTailLimit)
	if err != nil {
		return fmt.Errorf("list telemetry events: %w", err)
	}
	fmt.Fprintln(out, "\nTelemetry tail:")
	for _, evt := range tail {
		fmt.Fprintf(out, "  %-5s %-20s order=%s\n", evt.Severity, evt.EventName, evt.OrderID)
	}
	return nil
}

func formatItems(items map[string]int) string {
	names := make([]string, 0, len(items))
	for name := range items {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%d", name, items[name]))
	}
	return strings.Join(parts, " ")
}
