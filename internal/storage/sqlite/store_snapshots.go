package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/ordercore/internal/storage"
)

// PutSnapshot stores a snapshot, replacing the order's previous snapshot.
func (s *Store) PutSnapshot(ctx context.Context, snapshot storage.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(snapshot.OrderID) == "" {
		return fmt.Errorf("order id is required")
	}
	if snapshot.EventSeq == 0 {
		return fmt.Errorf("snapshot event seq is required")
	}
	if len(snapshot.StateJSON) == 0 {
		return fmt.Errorf("snapshot state is required")
	}
	if snapshot.UpdatedAt.IsZero() {
		snapshot.UpdatedAt = time.Now().UTC()
	}

	if _, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO snapshots (order_id, event_seq, version, status, state_json, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(order_id) DO UPDATE SET
		     event_seq = excluded.event_seq,
		     version = excluded.version,
		     status = excluded.status,
		     state_json = excluded.state_json,
		     updated_at = excluded.updated_at`,
		snapshot.OrderID,
		int64(snapshot.EventSeq),
		int64(snapshot.Version),
		snapshot.Status,
		snapshot.StateJSON,
		toMillis(snapshot.UpdatedAt),
	); err != nil {
		return fmt.Errorf("put snapshot: %w", err)
	}
	return nil
}

// GetSnapshot retrieves the snapshot for an order.
func (s *Store) GetSnapshot(ctx context.Context, orderID string) (storage.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return storage.Snapshot{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Snapshot{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(orderID) == "" {
		return storage.Snapshot{}, fmt.Errorf("order id is required")
	}

	var (
		snapshot  storage.Snapshot
		eventSeq  int64
		version   int64
		updatedAt int64
	)
	err := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT order_id, event_seq, version, status, state_json, updated_at
		 FROM snapshots
		 WHERE order_id = ?`,
		orderID,
	).Scan(
		&snapshot.OrderID,
		&eventSeq,
		&version,
		&snapshot.Status,
		&snapshot.StateJSON,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Snapshot{}, storage.ErrNotFound
		}
		return storage.Snapshot{}, fmt.Errorf("get snapshot: %w", err)
	}
	snapshot.EventSeq = uint64(eventSeq)
	snapshot.Version = uint64(version)
	snapshot.UpdatedAt = fromMillis(updatedAt)
	return snapshot, nil
}
