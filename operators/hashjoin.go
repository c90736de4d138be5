package operators

import (
	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/memory"

	"github.com/vecql/engine/batch"
	"github.com/vecql/engine/execerrors"
	"github.com/vecql/engine/operator"
	"github.com/vecql/engine/operators/hashtable"
	"github.com/vecql/engine/state"
)

// HashJoin implements the build/probe two-input join described in
// spec.md §4.3: input 0 is the build side, input 1 is the probe side.
// Grounded on arrowexec/nodes/join.go's overall build-then-probe shape
// and arrowexec/nodes/hashtable/join_hashtable.go for the finalized
// table itself, adapted to the push/pull contract's explicit
// "snapshot once ready, else register a waker" probe-side protocol
// instead of join.go's goroutine-and-channel handoff.
type HashJoin struct {
	BuildSchema, ProbeSchema, OutputSchema batch.Schema

	BuildKeyIndices []int
	ProbeKeyIndices []int
	BuildIsLeftSide bool

	BuildPartitions, ProbePartitions int
	IdealBatchSize                   int
	Alloc                            memory.Allocator
}

func (h *HashJoin) allocator() memory.Allocator {
	if h.Alloc != nil {
		return h.Alloc
	}
	return memory.DefaultAllocator
}

func (h *HashJoin) idealBatchSize() int {
	if h.IdealBatchSize > 0 {
		return h.IdealBatchSize
	}
	return 16 * 1024
}

func (h *HashJoin) NumInputs() int { return 2 }

func (h *HashJoin) NumInputPartitions(input int) (int, error) {
	switch input {
	case 0:
		return h.BuildPartitions, nil
	case 1:
		return h.ProbePartitions, nil
	default:
		return 0, execerrors.Internalf("hash_join: invalid input index %d", input)
	}
}

func (h *HashJoin) NumOutputPartitions() int { return h.ProbePartitions }

func (h *HashJoin) InitLocal(partition int) (state.LocalState, error) {
	return state.NewHashJoinLocal(), nil
}

func (h *HashJoin) InitGlobal() (state.GlobalState, error) {
	return state.NewHashJoinGlobalState(h.BuildPartitions), nil
}

func (h *HashJoin) PollPush(ctx operator.Context, local state.LocalState, global state.GlobalState, b batch.Batch, input, partition int) (operator.PollPush, error) {
	l, err := local.AsHashJoin()
	if err != nil {
		return operator.PollPush{}, err
	}

	switch input {
	case 0:
		l.BuildBatches = append(l.BuildBatches, b)
		return operator.NewPushed(), nil

	case 1:
		g, err := global.AsHashJoin()
		if err != nil {
			return operator.PollPush{}, err
		}
		if l.BuildSnapshot == nil {
			if !g.Ready() {
				g.RegisterProbeWaker(ctx.Waker())
				return operator.PendingPushOf(b), nil
			}
			l.BuildSnapshot = g.Table
		}
		table, ok := l.BuildSnapshot.(*hashtable.JoinTable)
		if !ok {
			return operator.PollPush{}, execerrors.Internalf("hash_join: build snapshot has unexpected type %T", l.BuildSnapshot)
		}

		table.Probe(b.Record(), h.idealBatchSize(), func(rec arrow.Record) {
			l.Output = append(l.Output, batch.FromRecord(h.OutputSchema, rec))
		})
		if len(l.Output) > 0 && l.PullWaker != nil {
			l.PullWaker.Wake()
		}
		return operator.NewPushed(), nil

	default:
		return operator.PollPush{}, execerrors.Internalf("hash_join: invalid input index %d", input)
	}
}

func (h *HashJoin) Finish(local state.LocalState, global state.GlobalState, input, partition int) error {
	l, err := local.AsHashJoin()
	if err != nil {
		return err
	}
	g, err := global.AsHashJoin()
	if err != nil {
		return err
	}

	switch input {
	case 0:
		g.AppendBuild(l.BuildBatches)
		batches, last := g.FinishBuilder()
		if !last {
			return nil
		}
		records := make([]arrow.Record, len(batches))
		for i, b := range batches {
			records[i] = b.Record()
		}
		table := hashtable.Build(h.allocator(), records, h.BuildKeyIndices, h.ProbeKeyIndices, h.BuildIsLeftSide)
		g.MarkReady(table)
		return nil

	case 1:
		l.ProbeInputFinished = true
		if l.PullWaker != nil {
			l.PullWaker.Wake()
		}
		return nil

	default:
		return execerrors.Internalf("hash_join: invalid input index %d", input)
	}
}

func (h *HashJoin) PollPull(ctx operator.Context, local state.LocalState, global state.GlobalState, partition int) (operator.PollPull, error) {
	l, err := local.AsHashJoin()
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
