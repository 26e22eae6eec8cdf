// Package bus provides the synchronous, in-process event bus.
//
// Subscribers register per event kind or as wildcards. Publish runs inside
// the publisher's goroutine: kind handlers first in subscription order, then
// wildcard handlers in their own order. Dispatch is depth-first, so a
// handler that submits a follow-up command fully resolves the nested publish
// before the outer pass continues.
package bus

import (
	"context"
	"fmt"
	"sync"

	apperrors "github.com/louisbranch/ordercore/internal/errors"
	"github.com/louisbranch/ordercore/internal/event"
)

// WildcardSubscription labels failures from wildcard subscribers.
const WildcardSubscription = "*"

// Handler consumes one published event.
type Handler func(ctx context.Context, evt event.Event) error

// HandlerFailure records a handler error captured during a publish pass.
// Failures are collected, never raised: one failing subscriber must not
// starve the rest of the pass.
type HandlerFailure struct {
	// Subscription identifies the failing subscription: the event kind it
	// was registered for, or "*" for wildcard subscribers.
	Subscription string
	Event        event.Event
	Err          error
}

type subscription struct {
	id      uint64
	handler Handler
}

// Bus fans committed events out to subscribers.
type Bus struct {
	mu        sync.RWMutex
	nextID    uint64
	byKind    map[event.Type][]subscription
	wildcards []subscription
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{byKind: make(map[event.Type][]subscription)}
}

// Subscribe registers h for one event kind and returns its unsubscribe
// function. Unsubscribing twice is a no-op.
func (b *Bus) Subscribe(kind event.Type, h Handler) func() {
	if h == nil {
		return func() {}
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.byKind[kind] = append(b.byKind[kind], subscription{id: id, handler: h})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.byKind[kind] = removeSubscription(b.byKind[kind], id)
	}
}

// SubscribeAll registers h for every event kind and returns its unsubscribe
// function.
func (b *Bus) SubscribeAll(h Handler) func() {
	if h == nil {
		return func() {}
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.wildcards = append(b.wildcards, subscription{id: id, handler: h})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.wildcards = removeSubscription(b.wildcards, id)
	}
}

// Publish dispatches evt to its kind subscribers, then to wildcards. The
// subscriber list is snapshotted before the pass, so same-pass subscribe and
// unsubscribe affect later publishes only. Handler errors are returned as
// failures wrapped with CodeHandlerFailed.
func (b *Bus) Publish(ctx context.Context, evt event.Event) []HandlerFailure {
	b.mu.RLock()
	kindSubs := append([]subscription(nil), b.byKind[evt.Type]...)
	wildcardSubs := append([]subscription(nil), b.wildcards...)
	b.mu.RUnlock()

	var failures []HandlerFailure
	for _, sub := range kindSubs {
		if err := sub.handler(ctx, evt); err != nil {
			failures = append(failures, HandlerFailure{
				Subscription: string(evt.Type),
				Event:        evt,
				Err: apperrors.Wrap(
					apperrors.CodeHandlerFailed,
					fmt.Sprintf("handler for %s failed", evt.Type),
					err,
				),
			})
		}
	}
	for _, sub := range wildcardSubs {
		if err := sub.handler(ctx, evt); err != nil {
			failures = append(failures, HandlerFailure{
				Subscription: WildcardSubscription,
				Event:        evt,
				Err: apperrors.Wrap(
					apperrors.CodeHandlerFailed,
					fmt.Sprintf("wildcard handler for %s failed", evt.Type),
					err,
				),
			})
		}
	}
	return failures
}

func removeSubscription(subs []subscription, id uint64) []subscription {
	for i, sub := range subs {
		if sub.id == id {
			return append(subs[:i:i], subs[i+1:]...)
		}
	}
	return subs
}
