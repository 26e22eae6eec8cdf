package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/ordercore/internal/storage"
)

// AppendTelemetryEvent records an operational telemetry event.
func (s *Store) AppendTelemetryEvent(ctx context.Context, evt storage.TelemetryEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(evt.EventName) == "" {
		return fmt.Errorf("event name is required")
	}
	if strings.TrimSpace(evt.Severity) == "" {
		return fmt.Errorf("severity is required")
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	if len(evt.AttributesJSON) == 0 && len(evt.Attributes) > 0 {
		payload, err := json.Marshal(evt.Attributes)
		if err != nil {
			return fmt.Errorf("marshal telemetry attributes: %w", err)
		}
		evt.AttributesJSON = payload
	}

	if _, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO telemetry_events (timestamp, event_name, severity, order_id, request_id, trace_id, span_id, attributes_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		toMillis(evt.Timestamp),
		evt.EventName,
		evt.Severity,
		toNullString(evt.OrderID),
		toNullString(evt.RequestID),
		toNullString(evt.TraceID),
		toNullString(evt.SpanID),
		evt.AttributesJSON,
	); err != nil {
		return fmt.Errorf("append telemetry event: %w", err)
	}
	return nil
}

// ListTelemetryEvents returns the most recent telemetry events in append
// order. A limit of zero or less means no limit.
func (s *Store) ListTelemetryEvents(ctx context.Context, limit int) ([]storage.TelemetryEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT timestamp, event_name, severity, order_id, request_id, trace_id, span_id, attributes_json
		 FROM (SELECT * FROM telemetry_events ORDER BY id DESC LIMIT ?)
		 ORDER BY id ASC`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list telemetry events: %w", err)
	}
	defer rows.Close()

	var events []storage.TelemetryEvent
	for rows.Next() {
		evt, err := scanTelemetryRow(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate telemetry events: %w", err)
	}
	return events, nil
}

func scanTelemetryRow(rows *sql.Rows) (storage.TelemetryEvent, error) {
	var (
		evt       storage.TelemetryEvent
		timestamp int64
		orderID   sql.NullString
		requestID sql.NullString
		traceID   sql.NullString
		spanID    sql.NullString
	)
	if err := rows.Scan(
		&timestamp,
		&evt.EventName,
		&evt.Severity,
		&orderID,
		&requestID,
		&traceID,
		&spanID,
		&evt.AttributesJSON,
	); err != nil {
		return storage.TelemetryEvent{}, fmt.Errorf("scan telemetry row: %w", err)
	}
	evt.Timestamp = fromMillis(timestamp)
	evt.OrderID = orderID.String
	evt.RequestID = requestID.String
	evt.TraceID = traceID.String
	evt.SpanID = spanID.String
	if len(evt.AttributesJSON) > 0 {
		if err := json.Unmarshal(evt.AttributesJSON, &evt.Attributes); err != nil {
			return storage.TelemetryEvent{}, fmt.Errorf("decode telemetry attributes: %w", err)
		}
	}
	return evt, nil
}

func toNullString(value string) sql.NullString {
	if strings.TrimSpace(value) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}
