// Package operator defines the uniform contract every physical
// operator implements: initialization of its Local/Global state, push
// of inputs, a finish signal, and pull of outputs. Unifying push and
// pull on one interface lets a Partition Pipeline walk its operators
// linearly without special-casing operators that push to one input
// and pull from another (joins, aggregates) — the alternative,
// separate Sink/Source interfaces, is what the pack's own streaming
// engine (execution.Node, a pull-only interface fed by goroutines and
// channels in arrowexec/nodes) has to work around with ad-hoc
// goroutine fan-in for every stateful operator. See spec.md §4.3, §9.
package operator

import (
	"github.com/vecql/engine/batch"
	"github.com/vecql/engine/state"
)

// Operator is the contract every physical operator kind implements.
// Implementations are stateless themselves — all mutable data lives
// in the Local/GlobalState the Partition Pipeline passes in — so one
// Operator value is safely shared by every partition of every query
// using it.
type Operator interface {
	// NumInputs is the operator's count of logical inputs: 0 for
	// sources, 1 for unary operators, 2 for joins.
	NumInputs() int

	// NumInputPartitions is the partition count expected on the given
	// input index.
	NumInputPartitions(input int) (int, error)

	// NumOutputPartitions is the partition count this operator
	// produces.
	NumOutputPartitions() int

	// InitLocal builds a fresh LocalState variant for one partition of
	// this operator. Called exactly once per partition, before first
	// use.
	InitLocal(partition int) (state.LocalState, error)

	// InitGlobal builds a fresh GlobalState variant for this operator.
	// Called exactly once per plan.
	InitGlobal() (state.GlobalState, error)

	// PollPush offers b on the given input of the given partition.
	PollPush(ctx Context, local state.LocalState, global state.GlobalState, b batch.Batch, input, partition int) (PollPush, error)

	// Finish signals that no further input will arrive on (input,
	// partition). Invoked at most once per (input, partition), and
	// only after every PollPush for that pair has returned a terminal
	// status (Pushed is not terminal; Break is).
	Finish(local state.LocalState, global state.GlobalState, input, partition int) error

	// PollPull requests the next output batch for partition. Never
	// returns BatchReady after it has returned Exhausted for that
	// partition.
	PollPull(ctx Context, local state.LocalState, global state.GlobalState, partition int) (PollPull, error)
}
