package operators

import (
	"context"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/memory"

	"github.com/vecql/engine/batch"
	"github.com/vecql/engine/execerrors"
	"github.com/vecql/engine/operator"
	"github.com/vecql/engine/state"
)

// Projection evaluates Exprs against each pushed batch, one expression
// per output column, producing a batch against OutputSchema. Grounded
// on arrowexec/execution/expression.go's FunctionCall evaluation loop
// (evaluate each argument expression, collect into a slice), here
// collecting one top-level expression per output column instead of one
// function's arguments.
type Projection struct {
	OutputSchema batch.Schema
	Exprs        []Expression
	Partitions   int
	Alloc        memory.Allocator
}

func (p *Projection) allocator() memory.Allocator {
	if p.Alloc != nil {
		return p.Alloc
	}
	return memory.DefaultAllocator
}

func (p *Projection) NumInputs() int { return 1 }

func (p *Projection) NumInputPartitions(input int) (int, error) {
	if input != 0 {
		return 0, execerrors.Internalf("projection: invalid input index %d", input)
	}
	return p.Partitions, nil
}

func (p *Projection) NumOutputPartitions() int { return p.Partitions }

func (p *Projection) InitLocal(partition int) (state.LocalState, error) {
	return state.NewProjectionLocal(), nil
}

func (p *Projection) InitGlobal() (state.GlobalState, error) {
	return state.NewProjectionGlobal(), nil
}

func (p *Projection) PollPush(ctx operator.Context, local state.LocalState, global state.GlobalState, b batch.Batch, input, partition int) (operator.PollPush, error) {
	l, err := local.AsProjection()
	if err != nil {
		return operator.PollPush{}, err
	}
	if l.HasOutput {
		return operator.PollPush{}, execerrors.Internalf("projection: poll_push called while a produced batch is still unclaimed")
	}
	if len(p.Exprs) != len(p.OutputSchema.Fields) {
		return operator.PollPush{}, execerrors.Internalf("projection: %d expressions but output schema has %d fields", len(p.Exprs), len(p.OutputSchema.Fields))
	}

	evalCtx := context.Background()
	alloc := p.allocator()
	cols := make([]arrow.Array, len(p.Exprs))
	for i, expr := range p.Exprs {
		col, err := expr.Evaluate(evalCtx, alloc, b)
		if err != nil {
			for _, c := range cols[:i] {
				if c != nil {
					c.Release()
				}
			}
			return operator.PollPush{}, execerrors.Data("projection: couldn't evaluate output column", err)
		}
		cols[i] = col
	}

	out, err := batch.New(p.OutputSchema, cols)
	for _, c := range cols {
		c.Release()
	}
	if err != nil {
		return operator.PollPush{}, err
	}

	l.Output = out
	l.HasOutput = true
	return operator.NewPushed(), nil
}

func (p *Projection) Finish(local state.LocalState, global state.GlobalState, input, partition int) error {
	return nil
}

func (p *Projection) PollPull(ctx operator.Context, local state.LocalState, global state.GlobalState, partition int) (operator.PollPull, error) {
	l, err := local.AsProjection()
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
