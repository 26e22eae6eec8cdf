package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/ordercore/internal/event"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// EventStore methods (order event journal)

const (
	appendBusyRetries  = 8
	appendBusyBaseWait = 10 * time.Millisecond
)

// AppendEvent atomically appends an event and returns it with its sequence set.
//
// The per-order sequence counter and the event row are written in one
// transaction, so a committed event is always the latest sequence for its
// order. Busy writers retry with linear backoff before giving up.
func (s *Store) AppendEvent(ctx context.Context, evt event.Event) (event.Event, error) {
	if err := ctx.Err(); err != nil {
		return event.Event{}, err
	}
	if s == nil || s.sqlDB == nil {
		return event.Event{}, fmt.Errorf("storage is not configured")
	}
	if s.eventRegistry == nil {
		return event.Event{}, fmt.Errorf("event registry is required")
	}

	validated, err := s.eventRegistry.ValidateForAppend(evt)
	if err != nil {
		return event.Event{}, err
	}
	evt = validated
	evt.Timestamp = evt.Timestamp.UTC().Truncate(time.Millisecond)

	for attempt := 0; ; attempt++ {
		stored, err := s.appendEventTx(ctx, evt)
		if err == nil {
			return stored, nil
		}
		if isSQLiteBusyError(err) && attempt < appendBusyRetries {
			if waitErr := waitBeforeRetry(ctx, attempt); waitErr != nil {
				return event.Event{}, waitErr
			}
			continue
		}
		return event.Event{}, err
	}
}

func (s *Store) appendEventTx(ctx context.Context, evt event.Event) (event.Event, error) {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return event.Event{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(
		ctx,
		`INSERT OR IGNORE INTO event_seq (order_id, next_seq) VALUES (?, 1)`,
		evt.OrderID,
	); err != nil {
		return event.Event{}, fmt.Errorf("init event seq: %w", err)
	}

	var seq int64
	if err := tx.QueryRowContext(
		ctx,
		`SELECT next_seq FROM event_seq WHERE order_id = ?`,
		evt.OrderID,
	).Scan(&seq); err != nil {
		return event.Event{}, fmt.Errorf("get event seq: %w", err)
	}
	if seq <= 0 {
		return event.Event{}, fmt.Errorf("event seq is required")
	}
	evt.Seq = uint64(seq)

	if _, err := tx.ExecContext(
		ctx,
		`UPDATE event_seq SET next_seq = next_seq + 1 WHERE order_id = ?`,
		evt.OrderID,
	); err != nil {
		return event.Event{}, fmt.Errorf("increment event seq: %w", err)
	}

	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO events (order_id, seq, event_type, timestamp, source, caused_by, payload_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		evt.OrderID,
		seq,
		string(evt.Type),
		toMillis(evt.Timestamp),
		evt.Source,
		int64(evt.CausedBy),
		evt.PayloadJSON,
	); err != nil {
		if isConstraintError(err) {
			return event.Event{}, fmt.Errorf("event seq conflict order_id=%s seq=%d: %w", evt.OrderID, evt.Seq, err)
		}
		return event.Event{}, fmt.Errorf("append event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return event.Event{}, fmt.Errorf("commit: %w", err)
	}

	return evt, nil
}

func waitBeforeRetry(ctx context.Context, attempt int) error {
	timer := time.NewTimer(time.Duration(attempt+1) * appendBusyBaseWait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ListEvents returns events ordered by sequence ascending. A limit of zero or
// less means no limit.
func (s *Store) ListEvents(ctx context.Context, orderID string, afterSeq uint64, limit int) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(orderID) == "" {
		return nil, fmt.Errorf("order id is required")
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT order_id, seq, event_type, timestamp, source, caused_by, payload_json
		 FROM events
		 WHERE order_id = ? AND seq > ?
		 ORDER BY seq ASC
		 LIMIT ?`,
		orderID,
		int64(afterSeq),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		evt, err := scanEventRow(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// GetLatestEventSeq returns the latest event sequence number for an order.
// Returns 0 if no events exist.
func (s *Store) GetLatestEventSeq(ctx context.Context, orderID string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(orderID) == "" {
		return 0, fmt.Errorf("order id is required")
	}

	var seq int64
	if err := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM events WHERE order_id = ?`,
		orderID,
	).Scan(&seq); err != nil {
		return 0, fmt.Errorf("get latest event seq: %w", err)
	}
	return uint64(seq), nil
}

// ListOrderIDs returns the IDs of all orders with at least one event.
func (s *Store) ListOrderIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT DISTINCT order_id FROM events ORDER BY order_id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list order ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan order id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order ids: %w", err)
	}
	return ids, nil
}

func scanEventRow(rows *sql.Rows) (event.Event, error) {
	var (
		evt       event.Event
		seq       int64
		eventType string
		timestamp int64
		causedBy  int64
	)
	if err := rows.Scan(
		&evt.OrderID,
		&seq,
		&eventType,
		&timestamp,
		&evt.Source,
		&causedBy,
		&evt.PayloadJSON,
	); err != nil {
		return event.Event{}, fmt.Errorf("scan event row: %w", err)
	}
	evt.Seq = uint64(seq)
	evt.Type = event.Type(eventType)
	evt.Timestamp = fromMillis(timestamp)
	evt.CausedBy = uint64(causedBy)
	return evt, nil
}

func isConstraintError(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

func isSQLiteBusyError(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
}
