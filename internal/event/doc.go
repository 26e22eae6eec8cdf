// Package event defines the canonical event envelope and event-type registry
// used by the order write path.
//
// Events are immutable business facts emitted by accepted decisions. The
// registry enforces envelope completeness and payload validity before the
// journal assigns the per-order sequence.
//
// A stable event contract is the foundation for replay correctness and for
// subscribers that depend on the same semantic names.
package event
