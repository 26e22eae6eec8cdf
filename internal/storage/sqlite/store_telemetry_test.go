package sqlite

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/louisbranch/ordercore/internal/storage"
)

func TestAppendTelemetryEventPersistsRow(t *testing.T) {
	store := openTestStore(t)

	evt := storage.TelemetryEvent{
		Timestamp: time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC),
		EventName: "command.committed",
		Severity:  "INFO",
		OrderID:   "ord-telemetry",
		RequestID: "req-1",
		Attributes: map[string]any{
			"command_type": "order.create",
			"version":      float64(1),
		},
	}
	if err := store.AppendTelemetryEvent(context.Background(), evt); err != nil {
		t.Fatalf("append telemetry event: %v", err)
	}

	var (
		timestamp      int64
		eventName      string
		severity       string
		orderID        string
		requestID      string
		attributesJSON []byte
	)
	err := store.sqlDB.QueryRow(
		`SELECT timestamp, event_name, severity, order_id, request_id, attributes_json
		 FROM telemetry_events`,
	).Scan(&timestamp, &eventName, &severity, &orderID, &requestID, &attributesJSON)
	if err != nil {
		t.Fatalf("read telemetry row: %v", err)
	}

	if eventName != "command.committed" {
		t.Fatalf("expected event name to persist, got %q", eventName)
	}
	if severity != "INFO" {
		t.Fatalf("expected severity to persist, got %q", severity)
	}
	if orderID != "ord-telemetry" {
		t.Fatalf("expected order id to persist, got %q", orderID)
	}
	if requestID != "req-1" {
		t.Fatalf("expected request id to persist, got %q", requestID)
	}
	if !fromMillis(timestamp).Equal(evt.Timestamp) {
		t.Fatalf("expected timestamp to persist, got %v", fromMillis(timestamp))
	}

	var attributes map[string]any
	if err := json.Unmarshal(attributesJSON, &attributes); err != nil {
		t.Fatalf("unmarshal persisted attributes: %v", err)
	}
	if attributes["command_type"] != "order.create" {
		t.Fatalf("expected attributes to persist, got %v", attributes)
	}
}

func TestAppendTelemetryEventOmitsEmptyOptionalColumns(t *testing.T) {
	store := openTestStore(t)

	evt := storage.TelemetryEvent{
		EventName: "worker.failed",
		Severity:  "ERROR",
	}
	if err := store.AppendTelemetryEvent(context.Background(), evt); err != nil {
		t.Fatalf("append telemetry event: %v", err)
	}

	var orderID any
	if err := store.sqlDB.QueryRow(`SELECT order_id FROM telemetry_events`).Scan(&orderID); err != nil {
		t.Fatalf("read telemetry row: %v", err)
	}
	if orderID != nil {
		t.Fatalf("expected NULL order id, got %v", orderID)
	}
}

func TestAppendTelemetryEventRequiresNameAndSeverity(t *testing.T) {
	store := openTestStore(t)

	if err := store.AppendTelemetryEvent(context.Background(), storage.TelemetryEvent{Severity: "INFO"}); err == nil {
		t.Fatal("expected error for missing event name")
	}
	if err := store.AppendTelemetryEvent(context.Background(), storage.TelemetryEvent{EventName: "command.committed"}); err == nil {
		t.Fatal("expected error for missing severity")
	}
}

func TestListTelemetryEventsReturnsTailInAppendOrder(t *testing.T) {
	store := openTestStore(t)

	for _, name := range []string{"command.committed", "command.rejected", "stock.low"} {
		evt := storage.TelemetryEvent{
			EventName:  name,
			Severity:   "INFO",
			OrderID:    "ord-tail",
			Attributes: map[string]any{"source": name},
		}
		if err := store.AppendTelemetryEvent(context.Background(), evt); err != nil {
			t.Fatalf("append telemetry event: %v", err)
		}
	}

	events, err := store.ListTelemetryEvents(context.Background(), 2)
	if err != nil {
		t.Fatalf("list telemetry events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected two events, got %d", len(events))
	}
	if events[0].EventName != "command.rejected" || events[1].EventName != "stock.low" {
		t.Fatalf("expected the two newest events in append order, got %q then %q",
			events[0].EventName, events[1].EventName)
	}
	if events[1].Attributes["source"] != "stock.low" {
		t.Fatalf("expected attributes to decode, got %v", events[1].Attributes)
	}

	all, err := store.ListTelemetryEvents(context.Background(), 0)
	if err != nil {
		t.Fatalf("list telemetry events: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected all events with no limit, got %d", len(all))
	}
}
