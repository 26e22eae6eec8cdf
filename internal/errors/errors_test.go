package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorMessage(t *testing.T) {
	err := New(CodeNotFound, "order not found")
	if err.Error() != "order not found" {
		t.Fatalf("message = %q, want %q", err.Error(), "order not found")
	}
}

func TestIsMatchesByCode(t *testing.T) {
	err := WithMetadata(CodeVersionConflict, "stale version", map[string]string{"expected": "1"})
	if !errors.Is(err, New(CodeVersionConflict, "any message")) {
		t.Fatal("expected Is to match by code")
	}
	if errors.Is(err, New(CodeNotFound, "any message")) {
		t.Fatal("expected Is to reject a different code")
	}
}

func TestIsMatchesThroughWrapping(t *testing.T) {
	inner := New(CodeVersionConflict, "stale version")
	outer := fmt.Errorf("submit command: %w", inner)
	if !errors.Is(outer, New(CodeVersionConflict, "")) {
		t.Fatal("expected Is to match through fmt wrapping")
	}
}

func TestUnwrapReturnsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(CodeStorageUnavailable, "append event", cause)
	if !errors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be reachable")
	}
	if errors.Unwrap(err) != cause {
		t.Fatalf("unwrap = %v, want %v", errors.Unwrap(err), cause)
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(nil); got != CodeUnknown {
		t.Fatalf("code of nil = %s, want %s", got, CodeUnknown)
	}
	if got := CodeOf(errors.New("plain")); got != CodeUnknown {
		t.Fatalf("code of plain error = %s, want %s", got, CodeUnknown)
	}
	wrapped := fmt.Errorf("outer: %w", New(CodeCommandRejected, "insufficient stock"))
	if got := CodeOf(wrapped); got != CodeCommandRejected {
		t.Fatalf("code of wrapped = %s, want %s", got, CodeCommandRejected)
	}
}

func TestHasCode(t *testing.T) {
	err := WrapWithMetadata(CodeHandlerFailed, "notify subscriber", map[string]string{"event": "order.created"}, errors.New("boom"))
	if !HasCode(err, CodeHandlerFailed) {
		t.Fatal("expected HasCode to match")
	}
	if HasCode(nil, CodeHandlerFailed) {
		t.Fatal("expected HasCode to reject nil")
	}
}
