package bus

import (
	"context"
	"errors"
	"testing"

	apperrors "github.com/louisbranch/ordercore/internal/errors"
	"github.com/louisbranch/ordercore/internal/event"
)

func TestPublishRunsKindHandlersBeforeWildcards(t *testing.T) {
	b := New()
	var order []string

	b.SubscribeAll(func(ctx context.Context, evt event.Event) error {
		order = append(order, "wildcard-1")
		return nil
	})
	b.Subscribe("order.created", func(ctx context.Context, evt event.Event) error {
		order = append(order, "kind-1")
		return nil
	})
	b.Subscribe("order.created", func(ctx context.Context, evt event.Event) error {
		order = append(order, "kind-2")
		return nil
	})
	b.SubscribeAll(func(ctx context.Context, evt event.Event) error {
		order = append(order, "wildcard-2")
		return nil
	})

	failures := b.Publish(context.Background(), event.Event{Type: "order.created"})
	if len(failures) != 0 {
		t.Fatalf("failures = %v", failures)
	}

	want := []string{"kind-1", "kind-2", "wildcard-1", "wildcard-2"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestPublishSkipsOtherKinds(t *testing.T) {
	b := New()
	called := false
	b.Subscribe("order.shipped", func(ctx context.Context, evt event.Event) error {
		called = true
		return nil
	})

	b.Publish(context.Background(), event.Event{Type: "order.created"})
	if called {
		t.Fatal("handler for another kind must not run")
	}
}

func TestPublishCollectsFailuresAndContinues(t *testing.T) {
	b := New()
	handlerErr := errors.New("inventory ledger offline")
	laterRan := false

	b.Subscribe("order.created", func(ctx context.Context, evt event.Event) error {
		return handlerErr
	})
	b.Subscribe("order.created", func(ctx context.Context, evt event.Event) error {
		laterRan = true
		return nil
	})

	failures := b.Publish(context.Background(), event.Event{Type: "order.created"})
	if !laterRan {
		t.Fatal("later handler must run after a failure")
	}
	if len(failures) != 1 {
		t.Fatalf("failures = %d, want 1", len(failures))
	}
	if failures[0].Subscription != "order.created" {
		t.Fatalf("subscription = %s", failures[0].Subscription)
	}
	if !errors.Is(failures[0].Err, handlerErr) {
		t.Fatalf("failure err = %v, want wrapped handler error", failures[0].Err)
	}
	if !apperrors.HasCode(failures[0].Err, apperrors.CodeHandlerFailed) {
		t.Fatalf("failure err missing CodeHandlerFailed: %v", failures[0].Err)
	}
}

func TestPublishWildcardFailureLabeled(t *testing.T) {
	b := New()
	b.SubscribeAll(func(ctx context.Context, evt event.Event) error {
		return errors.New("log sink full")
	})

	failures := b.Publish(context.Background(), event.Event{Type: "order.created"})
	if len(failures) != 1 {
		t.Fatalf("failures = %d, want 1", len(failures))
	}
	if failures[0].Subscription != WildcardSubscription {
		t.Fatalf("subscription = %s, want %s", failures[0].Subscription, WildcardSubscription)
	}
}

func TestUnsubscribeRemovesHandler(t *testing.T) {
	b := New()
	calls := 0
	unsubscribe := b.Subscribe("order.created", func(ctx context.Context, evt event.Event) error {
		calls++
		return nil
	})

	b.Publish(context.Background(), event.Event{Type: "order.created"})
	unsubscribe()
	b.Publish(context.Background(), event.Event{Type: "order.created"})
	unsubscribe()
	b.Publish(context.Background(), event.Event{Type: "order.created"})

	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestPublishIsDepthFirst(t *testing.T) {
	b := New()
	var order []string

	b.Subscribe("order.created", func(ctx context.Context, evt event.Event) error {
		order = append(order, "created-1")
		// Simulates a worker submitting a follow-up command whose commit
		// publishes the next event before this pass continues.
		b.Publish(ctx, event.Event{Type: "order.inventory_checked"})
		order = append(order, "created-1-done")
		return nil
	})
	b.Subscribe("order.created", func(ctx context.Context, evt event.Event) error {
		order = append(order, "created-2")
		return nil
	})
	b.Subscribe("order.inventory_checked", func(ctx context.Context, evt event.Event) error {
		order = append(order, "checked-1")
		return nil
	})

	b.Publish(context.Background(), event.Event{Type: "order.created"})

	want := []string{"created-1", "checked-1", "created-1-done", "created-2"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestPublishSnapshotsSubscribers(t *testing.T) {
	b := New()
	lateCalls := 0

	b.Subscribe("order.created", func(ctx context.Context, evt event.Event) error {
		b.Subscribe("order.created", func(ctx context.Context, evt event.Event) error {
			lateCalls++
			return nil
		})
		return nil
	})

	b.Publish(context.Background(), event.Event{Type: "order.created"})
	if lateCalls != 0 {
		t.Fatalf("same-pass subscriber ran %d times, want 0", lateCalls)
	}

	b.Publish(context.Background(), event.Event{Type: "order.created"})
	if lateCalls != 1 {
		t.Fatalf("late subscriber calls = %d, want 1", lateCalls)
	}
}
