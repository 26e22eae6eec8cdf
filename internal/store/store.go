// Package store provides the versioned, in-memory view of order aggregates.
//
// The store is a cache over the journal: Commit serializes writers per order
// under a slot mutex, enforces optimistic version pins, and hands the mutator
// a deep copy of current state. The journal append rides inside the mutator,
// so the log and the cached view move together. Commits to different orders
// share no lock beyond the slot-map read lock.
package store

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"

	apperrors "github.com/louisbranch/ordercore/internal/errors"
	"github.com/louisbranch/ordercore/internal/order"
)

// Mutator mutates current state under the order's slot lock. Returning an
// error aborts the commit without a version bump.
type Mutator func(current order.State, version uint64) (order.State, error)

// Store holds committed order state keyed by order id.
type Store struct {
	mu    sync.RWMutex
	slots map[string]*slot
}

type slot struct {
	mu sync.Mutex
	// created is set once the first commit lands. A slot can exist earlier
	// when racing inserts serialize on it.
	created bool
	state   order.State
	version uint64
}

// New creates an empty store.
func New() *Store {
	return &Store{slots: make(map[string]*slot)}
}

// Get returns the committed state and version for an order.
func (s *Store) Get(ctx context.Context, orderID string) (order.State, uint64, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return order.State{}, 0, notFound(orderID)
	}

	s.mu.RLock()
	sl := s.slots[orderID]
	s.mu.RUnlock()
	if sl == nil {
		return order.State{}, 0, notFound(orderID)
	}

	sl.mu.Lock()
	defer sl.mu.Unlock()
	if !sl.created {
		return order.State{}, 0, notFound(orderID)
	}
	return sl.state.Clone(), sl.version, nil
}

// Commit applies mutate under the order's slot lock and bumps the version by
// exactly one.
//
// A nil expected means insert-only: the order must not exist yet. A non-nil
// expected must equal the committed version or the commit fails with
// CodeVersionConflict before the mutator runs.
func (s *Store) Commit(ctx context.Context, orderID string, expected *uint64, mutate Mutator) (order.State, uint64, error) {
	if err := ctx.Err(); err != nil {
		return order.State{}, 0, err
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return order.State{}, 0, apperrors.New(apperrors.CodeCommandInvalid, "order id is required")
	}
	if mutate == nil {
		return order.State{}, 0, apperrors.New(apperrors.CodeCommandInvalid, "mutator is required")
	}

	sl := s.slot(orderID)
	sl.mu.Lock()
	defer sl.mu.Unlock()

	if expected == nil {
		if sl.created {
			return order.State{}, 0, apperrors.WithMetadata(
				apperrors.CodeOrderExists,
				"order already exists",
				map[string]string{"order_id": orderID},
			)
		}
	} else {
		if !sl.created {
			return order.State{}, 0, notFound(orderID)
		}
		if *expected != sl.version {
			return order.State{}, 0, apperrors.WithMetadata(
				apperrors.CodeVersionConflict,
				"order version conflict",
				map[string]string{
					"order_id": orderID,
					"expected": strconv.FormatUint(*expected, 10),
					"current":  strconv.FormatUint(sl.version, 10),
				},
			)
		}
	}

	next, err := mutate(sl.state.Clone(), sl.version)
	if err != nil {
		return order.State{}, 0, err
	}

	sl.created = true
	sl.state = next.Clone()
	sl.version++
	return sl.state.Clone(), sl.version, nil
}

// Seed installs replayed state at a known version, bypassing the commit path.
// Rebuilds use it to warm the store from the journal.
func (s *Store) Seed(orderID string, state order.State, version uint64) error {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return apperrors.New(apperrors.CodeCommandInvalid, "order id is required")
	}

	sl := s.slot(orderID)
	sl.mu.Lock()
	defer sl.mu.Unlock()
	sl.created = true
	sl.state = state.Clone()
	sl.version = version
	return nil
}

// Len returns the number of committed orders.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, sl := range s.slots {
		sl.mu.Lock()
		if sl.created {
			count++
		}
		sl.mu.Unlock()
	}
	return count
}

// IDs returns the committed order ids, sorted.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.slots))
	for id, sl := range s.slots {
		sl.mu.Lock()
		if sl.created {
			ids = append(ids, id)
		}
		sl.mu.Unlock()
	}
	sort.Strings(ids)
	return ids
}

// slot returns the lock slot for an order, creating it on first use.
func (s *Store) slot(orderID string) *slot {
	s.mu.RLock()
	sl := s.slots[orderID]
	s.mu.RUnlock()
	if sl != nil {
		return sl
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sl = s.slots[orderID]
	if sl == nil {
		sl = &slot{}
		s.slots[orderID] = sl
	}
	return sl
}

func notFound(orderID string) error {
	return apperrors.WithMetadata(
		apperrors.CodeNotFound,
		"order not found",
		map[string]string{"order_id": orderID},
	)
}
