package operators

import (
	"context"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"
	"github.com/apache/arrow/go/v13/arrow/compute"
	"github.com/apache/arrow/go/v13/arrow/memory"

	"github.com/vecql/engine/batch"
	"github.com/vecql/engine/execerrors"
	"github.com/vecql/engine/operator"
	"github.com/vecql/engine/state"
)

// NestedLoopJoin evaluates an arbitrary predicate over every
// build-row/probe-row pair instead of hashing, for join conditions a
// hash table can't serve. Grounded on the same build/probe shape as
// HashJoin (and ultimately arrowexec/nodes/join.go's StreamJoin), but
// the pairwise comparison is vectorized by materializing the cross
// product of a build batch and a probe batch via the "take" kernel and
// running it through the predicate the same way Filter does.
type NestedLoopJoin struct {
	BuildSchema, ProbeSchema, CombinedSchema, OutputSchema batch.Schema
	Predicate                                              Expression
	BuildIsLeftSide                                        bool

	BuildPartitions, ProbePartitions int
	Alloc                            memory.Allocator
}

func (n *NestedLoopJoin) allocator() memory.Allocator {
	if n.Alloc != nil {
		return n.Alloc
	}
	return memory.DefaultAllocator
}

func (n *NestedLoopJoin) NumInputs() int { return 2 }

func (n *NestedLoopJoin) NumInputPartitions(input int) (int, error) {
	switch input {
	case 0:
		return n.BuildPartitions, nil
	case 1:
		return n.ProbePartitions, nil
	default:
		return 0, execerrors.Internalf("nested_loop_join: invalid input index %d", input)
	}
}

func (n *NestedLoopJoin) NumOutputPartitions() int { return n.ProbePartitions }

func (n *NestedLoopJoin) InitLocal(partition int) (state.LocalState, error) {
	return state.NewNestedLoopJoinLocal(), nil
}

func (n *NestedLoopJoin) InitGlobal() (state.GlobalState, error) {
	return state.NewNestedLoopJoinGlobalState(n.BuildPartitions), nil
}

func (n *NestedLoopJoin) PollPush(ctx operator.Context, local state.LocalState, global state.GlobalState, b batch.Batch, input, partition int) (operator.PollPush, error) {
	l, err := local.AsNestedLoopJoin()
	if err != nil {
		return operator.PollPush{}, err
	}

	switch input {
	case 0:
		l.BuildBatches = append(l.BuildBatches, b)
		return operator.NewPushed(), nil

	case 1:
		g, err := global.AsNestedLoopJoin()
		if err != nil {
			return operator.PollPush{}, err
		}
		if l.BuildSnapshot == nil {
			if !g.Ready() {
				g.RegisterProbeWaker(ctx.Waker())
				return operator.PendingPushOf(b), nil
			}
			l.BuildSnapshot = g.BuildBatchesSnapshot()
		}

		for _, buildBatch := range l.BuildSnapshot {
			out, err := n.crossJoin(buildBatch, b)
			if err != nil {
				return operator.PollPush{}, err
			}
			if out.Record() != nil && out.Record().NumRows() > 0 {
				l.Output = append(l.Output, out)
			}
		}
		if len(l.Output) > 0 && l.PullWaker != nil {
			l.PullWaker.Wake()
		}
		return operator.NewPushed(), nil

	default:
		return operator.PollPush{}, execerrors.Internalf("nested_loop_join: invalid input index %d", input)
	}
}

// crossJoin materializes every (buildRow, probeRow) pair from one
// build batch and one probe batch, evaluates the predicate over the
// combined columns, and returns the surviving rows laid out per
// BuildIsLeftSide, mirroring Filter.PollPush's evaluate-then-select
// pattern.
func (n *NestedLoopJoin) crossJoin(buildBatch, probeBatch batch.Batch) (batch.Batch, error) {
	alloc := n.allocator()
	buildRows := int(buildBatch.Record().NumRows())
	probeRows := int(probeBatch.Record().NumRows())
	if buildRows == 0 || probeRows == 0 {
		return batch.Batch{}, nil
	}
	total := buildRows * probeRows

	buildIdx := make([]int64, total)
	probeIdx := make([]int64, total)
	for i := 0; i < buildRows; i++ {
		for j := 0; j < probeRows; j++ {
			k := i*probeRows + j
			buildIdx[k] = int64(i)
			probeIdx[k] = int64(j)
		}
	}

	evalCtx := context.Background()
	buildIdxArr, err := buildIndicesArray(alloc, buildIdx)
	if err != nil {
		return batch.Batch{}, err
	}
	defer buildIdxArr.Release()
	probeIdxArr, err := buildIndicesArray(alloc, probeIdx)
	if err != nil {
		return batch.Batch{}, err
	}
	defer probeIdxArr.Release()

	var combinedCols []arrow.Array
	var combinedFields []arrow.Field
	appendGathered := func(rec arrow.Record, idxArr arrow.Array) error {
		for i := 0; i < int(rec.NumCols()); i++ {
			gathered, err := takeArray(evalCtx, rec.Column(i), idxArr)
			if err != nil {
				return execerrors.Internal("nested_loop_join: couldn't gather cross-product column", err)
			}
			combinedCols = append(combinedCols, gathered)
			combinedFields = append(combinedFields, rec.Schema().Field(i))
		}
		return nil
	}
	if n.BuildIsLeftSide {
		if err := appendGathered(buildBatch.Record(), buildIdxArr); err != nil {
			return batch.Batch{}, err
		}
		if err := appendGathered(probeBatch.Record(), probeIdxArr); err != nil {
			return batch.Batch{}, err
		}
	} else {
		if err := appendGathered(probeBatch.Record(), probeIdxArr); err != nil {
			return batch.Batch{}, err
		}
		if err := appendGathered(buildBatch.Record(), buildIdxArr); err != nil {
			return batch.Batch{}, err
		}
	}
	defer func() {
		for _, c := range combinedCols {
			c.Release()
		}
	}()

	combinedRecord := array.NewRecord(arrow.NewSchema(combinedFields, nil), combinedCols, int64(total))
	defer combinedRecord.Release()
	combined := batch.FromRecord(n.CombinedSchema, combinedRecord)

	selection, err := n.Predicate.Evaluate(evalCtx, alloc, combined)
	if err != nil {
		return batch.Batch{}, execerrors.Data("nested_loop_join: couldn't evaluate join predicate", err)
	}
	defer selection.Release()
	typedSelection, ok := selection.(*array.Boolean)
	if !ok {
		return batch.Batch{}, execerrors.Dataf("nested_loop_join: predicate produced a %s array, expected Bool", selection.DataType())
	}

	out, err := compute.FilterRecordBatch(evalCtx, combinedRecord, typedSelection, &compute.FilterOptions{
		NullSelection: compute.SelectionDropNulls,
	})
	if err != nil {
		return batch.Batch{}, execerrors.Internal("nested_loop_join: couldn't apply predicate selection", err)
	}
	return batch.FromRecord(n.OutputSchema, out), nil
}

func (n *NestedLoopJoin) Finish(local state.LocalState, global state.GlobalState, input, partition int) error {
	l, err := local.AsNestedLoopJoin()
	if err != nil {
		return err
	}
	g, err := global.AsNestedLoopJoin()
	if err != nil {
		return err
	}

	switch input {
	case 0:
		g.AppendBuild(l.BuildBatches)
		_, last := g.FinishBuilder()
		if last {
			g.MarkReady()
		}
		return nil

	case 1:
		l.ProbeInputFinished = true
		if l.PullWaker != nil {
			l.PullWaker.Wake()
		}
		return nil

	default:
		return execerrors.Internalf("nested_loop_join: invalid input index %d", input)
	}
}

func (n *NestedLoopJoin) PollPull(ctx operator.Context, local state.LocalState, global state.GlobalState, partition int) (operator.PollPull, error) {
	l, err := local.AsNestedLoopJoin()
	if err != nil {
		return operator.PollPull{}, err
	}

	if len(l.Output) > 0 {
		b := l.Output[0]
		l.Output = l.Output[1:]
		return operator.BatchOf(b), nil
	}
	if l.ProbeInputFinished {
		return operator.ExhaustedPull(), nil
	}
	l.PullWaker = ctx.Waker()
	return operator.NewPendingPull(), nil
}
