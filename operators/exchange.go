package operators

import (
	"context"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"
	"github.com/apache/arrow/go/v13/arrow/memory"

	"github.com/vecql/engine/batch"
	"github.com/vecql/engine/execerrors"
	"github.com/vecql/engine/operator"
	"github.com/vecql/engine/operators/hashtable"
	"github.com/vecql/engine/state"
)

// ExchangeStrategy picks how Exchange disperses rows across output
// partitions.
type ExchangeStrategy int

const (
	// ExchangeHash routes each row to destination hash(key) mod N,
	// the strategy HashAggregate/HashJoin repartitioning needs so
	// matching keys always land on the same partition.
	ExchangeHash ExchangeStrategy = iota
	// ExchangeRoundRobin routes whole batches to destinations in
	// rotation, for load-spreading with no partitioning requirement.
	ExchangeRoundRobin
	// ExchangeBroadcast sends every batch to every destination.
	ExchangeBroadcast
)

// Exchange repartitions a stream across a (possibly different) number
// of output partitions, per spec.md §4.3's Exchange description and
// §5's soft-bound back-pressure model. Grounded on state/exchange.go's
// ExchangeGlobal (one bounded mutex-protected queue per destination,
// separate push/pull waker lists) — this file is purely the
// split-and-deposit/drain logic riding on top of it.
type Exchange struct {
	Schema         batch.Schema
	Strategy       ExchangeStrategy
	HashKeyIndices []int

	InputPartitions, OutputPartitions int
	SoftBound                         int
	Alloc                             memory.Allocator
}

func (e *Exchange) allocator() memory.Allocator {
	if e.Alloc != nil {
		return e.Alloc
	}
	return memory.DefaultAllocator
}

func (e *Exchange) NumInputs() int { return 1 }

func (e *Exchange) NumInputPartitions(input int) (int, error) {
	if input != 0 {
		return 0, execerrors.Internalf("exchange: invalid input index %d", input)
	}
	return e.InputPartitions, nil
}

func (e *Exchange) NumOutputPartitions() int { return e.OutputPartitions }

func (e *Exchange) InitLocal(partition int) (state.LocalState, error) {
	return state.NewExchangeLocal(), nil
}

func (e *Exchange) InitGlobal() (state.GlobalState, error) {
	return state.NewExchangeGlobalState(e.OutputPartitions, e.InputPartitions, e.SoftBound), nil
}

func (e *Exchange) PollPush(ctx operator.Context, local state.LocalState, global state.GlobalState, b batch.Batch, input, partition int) (operator.PollPush, error) {
	loc, err := local.AsExchange()
	if err != nil {
		return operator.PollPush{}, err
	}
	glob, err := global.AsExchange()
	if err != nil {
		return operator.PollPush{}, err
	}

	if len(loc.PendingDestinations) == 0 {
		dests, batches, err := e.split(loc, b)
		if err != nil {
			return operator.PollPush{}, err
		}
		loc.PendingDestinations = dests
		loc.PendingBatches = batches
	}

	for len(loc.PendingDestinations) > 0 {
		dest := loc.PendingDestinations[0]
		sub := loc.PendingBatches[0]
		if !glob.TryDeposit(dest, sub, ctx.Waker()) {
			return operator.PendingPushOf(b), nil
		}
		loc.PendingDestinations = loc.PendingDestinations[1:]
		loc.PendingBatches = loc.PendingBatches[1:]
	}
	return operator.NewPushed(), nil
}

// split divides b into (destination, sub-batch) pairs per e.Strategy.
func (e *Exchange) split(loc *state.ExchangeLocal, b batch.Batch) ([]int, []batch.Batch, error) {
	switch e.Strategy {
	case ExchangeRoundRobin:
		dest := loc.RoundRobinCursor
		loc.RoundRobinCursor = (loc.RoundRobinCursor + 1) % e.OutputPartitions
		return []int{dest}, []batch.Batch{b}, nil

	case ExchangeBroadcast:
		dests := make([]int, e.OutputPartitions)
		batches := make([]batch.Batch, e.OutputPartitions)
		for i := 0; i < e.OutputPartitions; i++ {
			dests[i] = i
			batches[i] = b
		}
		return dests, batches, nil

	case ExchangeHash:
		return e.splitByHash(b)

	default:
		return nil, nil, execerrors.Internalf("exchange: unknown strategy %d", e.Strategy)
	}
}

func (e *Exchange) splitByHash(b batch.Batch) ([]int, []batch.Batch, error) {
	numRows := int(b.NumRows())
	if numRows == 0 {
		return nil, nil, nil
	}

	keyCols := make([]arrow.Array, len(e.HashKeyIndices))
	for i, idx := range e.HashKeyIndices {
		keyCols[i] = b.Column(idx)
	}
	hasher := hashtable.MakeRowHasher(keyCols)

	rowsByDest := make(map[int][]int64, e.OutputPartitions)
	for row := 0; row < numRows; row++ {
		hash := hasher(uint(row))
		dest := int(hash % uint64(e.OutputPartitions))
		rowsByDest[dest] = append(rowsByDest[dest], int64(row))
	}

	alloc := e.allocator()
	evalCtx := context.Background()
	rec := b.Record()

	dests := make([]int, 0, len(rowsByDest))
	batches := make([]batch.Batch, 0, len(rowsByDest))
	for dest, rows := range rowsByDest {
		idxArr, err := buildIndicesArray(alloc, rows)
		if err != nil {
			return nil, nil, err
		}
		outCols := make([]arrow.Array, rec.NumCols())
		for i := 0; i < int(rec.NumCols()); i++ {
			gathered, err := takeArray(evalCtx, rec.Column(i), idxArr)
			if err != nil {
				idxArr.Release()
				return nil, nil, execerrors.Internal("exchange: couldn't gather hash-partitioned rows", err)
			}
			outCols[i] = gathered
		}
		idxArr.Release()

		outRec := array.NewRecord(e.Schema.Arrow(), outCols, int64(len(rows)))
		for _, c := range outCols {
			c.Release()
		}
		dests = append(dests, dest)
		batches = append(batches, batch.FromRecord(e.Schema, outRec))
	}
	return dests, batches, nil
}

func (e *Exchange) Finish(local state.LocalState, global state.GlobalState, input, partition int) error {
	glob, err := global.AsExchange()
	if err != nil {
		return err
	}
	if glob.FinishInput() {
		glob.WakeAllPullers()
	}
	return nil
}

func (e *Exchange) PollPull(ctx operator.Context, local state.LocalState, global state.GlobalState, partition int) (operator.PollPull, error) {
	glob, err := global.AsExchange()
	if err != nil {
		return operator.PollPull{}, err
	}

	if b, ok := glob.Dequeue(partition); ok {
		return operator.BatchOf(b), nil
	}
	if glob.InputsFinished() {
		return operator.ExhaustedPull(), nil
	}
	glob.RegisterPullWaker(partition, ctx.Waker())
	return operator.NewPendingPull(), nil
}
