// Package replay reconstructs order state by folding the journal.
//
// Replay is the proof that the journal is the system of record: any
// committed state must be reproducible by folding its events in sequence.
// Rebuild warms a store from the journal at startup, starting from the
// latest snapshot when the journal's backend keeps one.
package replay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/ordercore/internal/event"
	"github.com/louisbranch/ordercore/internal/order"
	"github.com/louisbranch/ordercore/internal/storage"
	"github.com/louisbranch/ordercore/internal/store"
)

const defaultPageSize = 200

var (
	// ErrJournalRequired indicates a missing journal.
	ErrJournalRequired = errors.New("journal is required")
	// ErrStoreRequired indicates a missing store.
	ErrStoreRequired = errors.New("store is required")
	// ErrOrderIDRequired indicates a missing order id.
	ErrOrderIDRequired = errors.New("order id is required")
)

// Journal lists committed events for replay.
type Journal interface {
	ListEvents(ctx context.Context, orderID string, afterSeq uint64, limit int) ([]event.Event, error)
	ListOrderIDs(ctx context.Context) ([]string, error)
}

// Options configures replay behavior.
type Options struct {
	// AfterSeq starts the replay after this sequence number.
	AfterSeq uint64
	// UntilSeq stops the replay after this sequence number. Zero means all.
	UntilSeq uint64
	// PageSize bounds each journal read. Zero means 200.
	PageSize int
}

// Result captures replay outcomes.
type Result struct {
	State   order.State
	LastSeq uint64
	Applied int
}

// Replay folds an order's events in sequence onto state.
//
// The sequence must be gapless: a hole means the journal lost an event, and
// the replay fails rather than fabricate a state no committer ever saw.
func Replay(ctx context.Context, jrnl Journal, orderID string, state order.State, opts Options) (Result, error) {
	if jrnl == nil {
		return Result{}, ErrJournalRequired
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Result{}, ErrOrderIDRequired
	}

	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	result := Result{State: state, LastSeq: opts.AfterSeq}
	for {
		events, err := jrnl.ListEvents(ctx, orderID, result.LastSeq, pageSize)
		if err != nil {
			return result, err
		}
		if len(events) == 0 {
			return result, nil
		}
		for _, evt := range events {
			if opts.UntilSeq > 0 && evt.Seq > opts.UntilSeq {
				return result, nil
			}
			expected := result.LastSeq + 1
			if evt.Seq != expected {
				return result, fmt.Errorf("event sequence gap: expected %d got %d", expected, evt.Seq)
			}
			result.State = order.Fold(result.State, evt)
			result.LastSeq = evt.Seq
			result.Applied++
		}
	}
}

// Rebuild replays every order in the journal and seeds the store with the
// result. It returns the number of orders rebuilt.
//
// When the journal's backend also keeps snapshots, each order replays from
// its snapshot instead of from scratch; a snapshot that fails to decode is
// ignored and the full history replays. Each commit appends exactly one
// event, so the seeded version is the last applied sequence.
func Rebuild(ctx context.Context, jrnl Journal, st *store.Store) (int, error) {
	if jrnl == nil {
		return 0, ErrJournalRequired
	}
	if st == nil {
		return 0, ErrStoreRequired
	}

	ids, err := jrnl.ListOrderIDs(ctx)
	if err != nil {
		return 0, err
	}

	snapshots, _ := jrnl.(storage.SnapshotStore)
	rebuilt := 0
	for _, orderID := range ids {
		state := order.State{}
		opts := Options{}
		if snapshots != nil {
			snap, err := snapshots.GetSnapshot(ctx, orderID)
			switch {
			case err == nil:
				var snapState order.State
				if err := json.Unmarshal(snap.StateJSON, &snapState); err == nil {
					state = snapState
					opts.AfterSeq = snap.EventSeq
				}
			case !errors.Is(err, storage.ErrNotFound):
				return rebuilt, err
			}
		}

		result, err := Replay(ctx, jrnl, orderID, state, opts)
		if err != nil {
			return rebuilt, err
		}
		if err := st.Seed(orderID, result.State, result.LastSeq); err != nil {
			return rebuilt, err
		}
		rebuilt++
	}
	return rebuilt, nil
}
