// Package order provides the order aggregate: its state, lifecycle, decider,
// and fold.
//
// The aggregate is the unit of consistency. Commands express intent against
// one order; the decider evaluates them against replayed state and either
// accepts them as events or rejects them with a coded reason. The fold is the
// single place events become state, so replaying a journal and reading the
// live store always agree.
//
// Undo and redo reinstate previously committed state through order.restore
// events. Restore bypasses the lifecycle transition table: it reproduces a
// state that was already legal when first committed, and history only ever
// moves forward.
package order
