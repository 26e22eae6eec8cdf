package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/louisbranch/ordercore/internal/command"
	apperrors "github.com/louisbranch/ordercore/internal/errors"
	"github.com/louisbranch/ordercore/internal/order"
)

// historyEntry is one committed (state, version) pair.
type historyEntry struct {
	state   order.State
	version uint64
}

// history keeps the bounded per-order undo stacks.
//
// cursor counts applied entries: entries[cursor-1] holds the live state,
// undo restores entries[cursor-2], redo re-applies entries[cursor]. A normal
// commit truncates the redo tail and appends; restore commits move only the
// cursor.
type history struct {
	mu     sync.Mutex
	depth  int
	orders map[string]*orderHistory
}

type orderHistory struct {
	entries []historyEntry
	cursor  int
}

func newHistory(depth int) *history {
	return &history{depth: depth, orders: make(map[string]*orderHistory)}
}

func (h *history) record(orderID string, state order.State, version uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	oh := h.orders[orderID]
	if oh == nil {
		oh = &orderHistory{}
		h.orders[orderID] = oh
	}
	oh.entries = oh.entries[:oh.cursor]
	if n := len(oh.entries); n > 0 && version <= oh.entries[n-1].version {
		// A commit that lost the recording race is already superseded.
		return
	}
	oh.entries = append(oh.entries, historyEntry{state: state.Clone(), version: version})
	if len(oh.entries) > h.depth {
		oh.entries = append(oh.entries[:0], oh.entries[1:]...)
	}
	oh.cursor = len(oh.entries)
}

func (h *history) undoTarget(orderID string) (historyEntry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	oh := h.orders[orderID]
	if oh == nil || oh.cursor < 2 {
		return historyEntry{}, false
	}
	entry := oh.entries[oh.cursor-2]
	return historyEntry{state: entry.state.Clone(), version: entry.version}, true
}

func (h *history) redoTarget(orderID string) (historyEntry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	oh := h.orders[orderID]
	if oh == nil || oh.cursor >= len(oh.entries) {
		return historyEntry{}, false
	}
	entry := oh.entries[oh.cursor]
	return historyEntry{state: entry.state.Clone(), version: entry.version}, true
}

func (h *history) moveBack(orderID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if oh := h.orders[orderID]; oh != nil && oh.cursor > 1 {
		oh.cursor--
	}
}

func (h *history) moveForward(orderID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if oh := h.orders[orderID]; oh != nil && oh.cursor < len(oh.entries) {
		oh.cursor++
	}
}

// Undo reinstates the state committed just before the current one.
//
// The restore is a regular pipeline command pinned at the current version, so
// the order's version moves forward and the journal records the restore like
// any other event. The history cursor moves back only once the restore
// commits; a restore that loses a race with another writer leaves the cursor
// where it was.
func (p *Pipeline) Undo(ctx context.Context, orderID string) (Result, error) {
	_, version, err := p.cfg.Store.Get(ctx, orderID)
	if err != nil {
		return Result{}, err
	}
	target, ok := p.history.undoTarget(orderID)
	if !ok {
		return Result{}, apperrors.WithMetadata(apperrors.CodeUndoUnavailable,
			"no earlier committed state to restore", map[string]string{"order_id": orderID})
	}

	result, err := p.submitRestore(ctx, orderID, version, target, "undo")
	if err != nil {
		return result, err
	}
	p.history.moveBack(orderID)
	return result, nil
}

// Redo re-applies the state most recently undone.
func (p *Pipeline) Redo(ctx context.Context, orderID string) (Result, error) {
	_, version, err := p.cfg.Store.Get(ctx, orderID)
	if err != nil {
		return Result{}, err
	}
	target, ok := p.history.redoTarget(orderID)
	if !ok {
		return Result{}, apperrors.WithMetadata(apperrors.CodeRedoUnavailable,
			"no undone state to re-apply", map[string]string{"order_id": orderID})
	}

	result, err := p.submitRestore(ctx, orderID, version, target, "redo")
	if err != nil {
		return result, err
	}
	p.history.moveForward(orderID)
	return result, nil
}

func (p *Pipeline) submitRestore(ctx context.Context, orderID string, version uint64, target historyEntry, direction string) (Result, error) {
	payloadJSON, err := json.Marshal(order.RestorePayload{
		State:               target.state,
		RestoredFromVersion: target.version,
		Direction:           direction,
	})
	if err != nil {
		return Result{}, fmt.Errorf("marshal restore payload: %w", err)
	}
	return p.Submit(ctx, command.Command{
		OrderID:         orderID,
		Type:            order.CommandTypeRestore,
		Source:          "pipeline:" + direction,
		ExpectedVersion: command.Pin(version),
		PayloadJSON:     payloadJSON,
	})
}
