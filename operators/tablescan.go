package operators

import (
	"github.com/vecql/engine/batch"
	"github.com/vecql/engine/execerrors"
	"github.com/vecql/engine/operator"
	"github.com/vecql/engine/state"
)

// Producer is the pluggable Batch producer adapter described in
// spec.md §6: a source of batches for one partition, owned by a file
// reader or other external collaborator the core never parses itself.
// Grounded on arrowexec/execution/execution.go's Node.Run/produce
// callback pair, reshaped into pull form so TableScan fits the same
// poll_push/poll_pull contract as every other operator instead of
// needing its own Run loop and goroutine.
type Producer interface {
	// NumPartitions is the producer's own split count; TableScan's
	// output partitioning is exactly this.
	NumPartitions() int

	// PollNext returns the next batch for partition, or signals that
	// none is ready yet (PendingPull, after registering a waker via
	// ctx.Waker() to be woken once one is), or that the partition is
	// exhausted.
	PollNext(ctx operator.Context, partition int) (operator.PollPull, error)
}

// TableScan is a source operator: NumInputs() == 0. It owns no state
// of its own beyond remembering whether its producer signalled EOF —
// all buffering lives in Producer.
type TableScan struct {
	OutputSchema batch.Schema
	Source       Producer
}

func (t *TableScan) NumInputs() int { return 0 }

func (t *TableScan) NumInputPartitions(input int) (int, error) {
	return 0, execerrors.Internalf("table_scan: has no inputs, got input index %d", input)
}

func (t *TableScan) NumOutputPartitions() int { return t.Source.NumPartitions() }

func (t *TableScan) InitLocal(partition int) (state.LocalState, error) {
	return state.NewTableScanLocal(), nil
}

func (t *TableScan) InitGlobal() (state.GlobalState, error) {
	return state.NewTableScanGlobal(), nil
}

func (t *TableScan) PollPush(ctx operator.Context, local state.LocalState, global state.GlobalState, b batch.Batch, input, partition int) (operator.PollPush, error) {
	return operator.PollPush{}, execerrors.Internalf("table_scan: poll_push called on a source operator")
}

func (t *TableScan) Finish(local state.LocalState, global state.GlobalState, input, partition int) error {
	return execerrors.Internalf("table_scan: finish called on a source operator")
}

func (t *TableScan) PollPull(ctx operator.Context, local state.LocalState, global state.GlobalState, partition int) (operator.PollPull, error) {
	l, err := local.AsTableScan()
	if err != nil {
		return operator.PollPull{}, err
	}
	if l.Finished {
		return operator.ExhaustedPull(), nil
	}

	result, err := t.Source.PollNext(ctx, partition)
	if err != nil {
		return operator.PollPull{}, execerrors.Producer("table_scan: producer failed", err)
	}
	if result.Status == operator.Exhausted {
		l.Finished = true
	}
	return result, nil
}
