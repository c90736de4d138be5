package operators

import (
	"context"

	"github.com/apache/arrow/go/v13/arrow/array"
	"github.com/apache/arrow/go/v13/arrow/compute"
	"github.com/apache/arrow/go/v13/arrow/memory"

	"github.com/vecql/engine/batch"
	"github.com/vecql/engine/execerrors"
	"github.com/vecql/engine/operator"
	"github.com/vecql/engine/state"
)

// Filter evaluates Predicate against every row of the pushed batch and
// emits the rows for which it's true, dropping nulls from the
// selection rather than treating them as matches. Grounded on
// arrowexec/nodes/filter.go's NaiveFilter — compute.FilterRecordBatch
// over the arrow library's own selection kernel, rather than the
// rebatching variant, since the push/pull contract here already has a
// natural per-batch boundary to produce at.
type Filter struct {
	InputSchema  batch.Schema
	OutputSchema batch.Schema
	Predicate    Expression
	Partitions   int
	Alloc        memory.Allocator
}

func (f *Filter) allocator() memory.Allocator {
	if f.Alloc != nil {
		return f.Alloc
	}
	return memory.DefaultAllocator
}

func (f *Filter) NumInputs() int { return 1 }

func (f *Filter) NumInputPartitions(input int) (int, error) {
	if input != 0 {
		return 0, execerrors.Internalf("filter: invalid input index %d", input)
	}
	return f.Partitions, nil
}

func (f *Filter) NumOutputPartitions() int { return f.Partitions }

func (f *Filter) InitLocal(partition int) (state.LocalState, error) {
	return state.NewFilterLocal(), nil
}

func (f *Filter) InitGlobal() (state.GlobalState, error) {
	return state.NewFilterGlobal(), nil
}

func (f *Filter) PollPush(ctx operator.Context, local state.LocalState, global state.GlobalState, b batch.Batch, input, partition int) (operator.PollPush, error) {
	l, err := local.AsFilter()
	if err != nil {
		return operator.PollPush{}, err
	}
	if l.HasOutput {
		return operator.PollPush{}, execerrors.Internalf("filter: poll_push called while a produced batch is still unclaimed")
	}

	evalCtx := context.Background()
	selection, err := f.Predicate.Evaluate(evalCtx, f.allocator(), b)
	if err != nil {
		return operator.PollPush{}, execerrors.Data("filter: couldn't evaluate predicate", err)
	}
	defer selection.Release()

	typedSelection, ok := selection.(*array.Boolean)
	if !ok {
		return operator.PollPush{}, execerrors.Dataf("filter: predicate produced a %s array, expected Bool", selection.DataType())
	}

	out, err := compute.FilterRecordBatch(evalCtx, b.Record(), typedSelection, &compute.FilterOptions{
		NullSelection: compute.SelectionDropNulls,
	})
	if err != nil {
		return operator.PollPush{}, execerrors.Internal("filter: couldn't apply selection", err)
	}

	l.Output = batch.FromRecord(f.OutputSchema, out)
	l.HasOutput = true
	return operator.NewPushed(), nil
}

func (f *Filter) Finish(local state.LocalState, global state.GlobalState, input, partition int) error {
	return nil
}

func (f *Filter) PollPull(ctx operator.Context, local state.LocalState, global state.GlobalState, partition int) (operator.PollPull, error) {
	l, err := local.AsFilter()
	if err != nil {
		return operator.PollPull{}, err
	}
	if !l.HasOutput {
		ctx.Waker()
		return operator.NewPendingPull(), nil
	}
	out := l.Output
	l.Output = batch.Batch{}
	l.HasOutput = false
	return operator.BatchOf(out), nil
}
