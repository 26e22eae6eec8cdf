package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/louisbranch/ordercore/internal/storage"
)

func TestPutSnapshotReplacesPerOrder(t *testing.T) {
	store := openTestStore(t)

	first := storage.Snapshot{
		OrderID:   "ord-snap",
		EventSeq:  3,
		Version:   3,
		Status:    "inventory_reserved",
		StateJSON: []byte(`{"status":"inventory_reserved"}`),
		UpdatedAt: time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC),
	}
	if err := store.PutSnapshot(context.Background(), first); err != nil {
		t.Fatalf("put snapshot: %v", err)
	}

	second := first
	second.EventSeq = 5
	second.Version = 5
	second.Status = "shipped"
	second.StateJSON = []byte(`{"status":"shipped"}`)
	if err := store.PutSnapshot(context.Background(), second); err != nil {
		t.Fatalf("put replacement snapshot: %v", err)
	}

	got, err := store.GetSnapshot(context.Background(), "ord-snap")
	if err != nil {
		t.Fatalf("get snapshot: %v", err)
	}
	if got.EventSeq != 5 {
		t.Fatalf("expected replacement event seq 5, got %d", got.EventSeq)
	}
	if got.Version != 5 {
		t.Fatalf("expected replacement version 5, got %d", got.Version)
	}
	if got.Status != "shipped" {
		t.Fatalf("expected replacement status, got %q", got.Status)
	}
	if string(got.StateJSON) != `{"status":"shipped"}` {
		t.Fatalf("expected replacement state, got %s", got.StateJSON)
	}
	if !got.UpdatedAt.Equal(first.UpdatedAt) {
		t.Fatalf("expected updated_at to round-trip, got %v", got.UpdatedAt)
	}
}

func TestGetSnapshotMissingReturnsNotFound(t *testing.T) {
	store := openTestStore(t)

	if _, err := store.GetSnapshot(context.Background(), "ord-unknown"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPutSnapshotValidatesInput(t *testing.T) {
	store := openTestStore(t)

	valid := storage.Snapshot{
		OrderID:   "ord-valid",
		EventSeq:  1,
		Version:   1,
		StateJSON: []byte(`{}`),
	}

	missingOrder := valid
	missingOrder.OrderID = " "
	if err := store.PutSnapshot(context.Background(), missingOrder); err == nil {
		t.Fatal("expected error for missing order id")
	}

	missingSeq := valid
	missingSeq.EventSeq = 0
	if err := store.PutSnapshot(context.Background(), missingSeq); err == nil {
		t.Fatal("expected error for zero event seq")
	}

	missingState := valid
	missingState.StateJSON = nil
	if err := store.PutSnapshot(context.Background(), missingState); err == nil {
		t.Fatal("expected error for empty state")
	}

	if err := store.PutSnapshot(context.Background(), valid); err != nil {
		t.Fatalf("put valid snapshot: %v", err)
	}
	got, err := store.GetSnapshot(context.Background(), "ord-valid")
	if err != nil {
		t.Fatalf("get snapshot: %v", err)
	}
	if got.UpdatedAt.IsZero() {
		t.Fatal("expected updated_at to default when unset")
	}
}
