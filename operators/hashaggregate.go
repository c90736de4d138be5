package operators

import (
	"context"
	"fmt"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"
	"github.com/apache/arrow/go/v13/arrow/compute"
	"github.com/apache/arrow/go/v13/arrow/memory"
	"github.com/brentp/intintmap"
	"github.com/segmentio/fasthash/fnv1a"

	"github.com/vecql/engine/batch"
	"github.com/vecql/engine/execerrors"
	"github.com/vecql/engine/operator"
	"github.com/vecql/engine/state"
)

// HashAggregate implements the two-phase (really three-phase: local,
// repartition, final) grouped aggregation described in spec.md §4.3.
// Grounded on arrowexec/nodes/group_by.go's GroupBy for the local
// phase's hashing/table-building; the repartition and final phases are
// new, since group_by.go's engine isn't partition-parallel.
type HashAggregate struct {
	InputSchema  batch.Schema
	OutputSchema batch.Schema // key columns, then aggregate columns, in order

	KeyIndices []int // input-schema column indices used as the grouping key
	AggIndices []int // input-schema column indices the aggregates consume
	AggKinds   []AggregateKind

	InputPartitions  int
	OutputPartitions int // also the repartition fan-out

	Alloc memory.Allocator
}

func (h *HashAggregate) allocator() memory.Allocator {
	if h.Alloc != nil {
		return h.Alloc
	}
	return memory.DefaultAllocator
}

func (h *HashAggregate) NumInputs() int { return 1 }

func (h *HashAggregate) NumInputPartitions(input int) (int, error) {
	if input != 0 {
		return 0, execerrors.Internalf("hash_aggregate: invalid input index %d", input)
	}
	return h.InputPartitions, nil
}

func (h *HashAggregate) NumOutputPartitions() int { return h.OutputPartitions }

func (h *HashAggregate) InitLocal(partition int) (state.LocalState, error) {
	return state.NewHashAggregateLocal(), nil
}

func (h *HashAggregate) InitGlobal() (state.GlobalState, error) {
	return state.NewHashAggregateGlobalState(h.OutputPartitions, h.InputPartitions), nil
}

func (h *HashAggregate) newTable() (*state.HashTable, error) {
	keys := make([]state.GroupKeyColumn, len(h.KeyIndices))
	for i, idx := range h.KeyIndices {
		k, err := NewGroupKeyColumn(h.InputSchema.Fields[idx].Type.ArrowType(), h.allocator())
		if err != nil {
			return nil, err
		}
		keys[i] = k
	}
	aggs := make([]state.AggregateColumn, len(h.AggIndices))
	for i, idx := range h.AggIndices {
		a, err := NewAggregateColumn(h.AggKinds[i], h.InputSchema.Fields[idx].Type.ArrowType(), h.allocator())
		if err != nil {
			return nil, err
		}
		aggs[i] = a
	}
	return &state.HashTable{
		Index:      intintmap.New(16, 0.6),
		Keys:       keys,
		Aggregates: aggs,
	}, nil
}

// hashKeyRow computes the combined fnv1a hash of the key columns at
// rowIndex. Grounded on group_by.go's MakeKeyHasher.
func (h *HashAggregate) hashKeyRow(keyCols []arrow.Array, rowIndex int) uint64 {
	hash := fnv1a.Init64
	for _, col := range keyCols {
		switch col.DataType().ID() {
		case arrow.INT64:
			hash = hashInt64KeyRow(col, rowIndex, hash)
		case arrow.STRING:
			hash = hashStringKeyRow(col, rowIndex, hash)
		}
	}
	return hash
}

func (h *HashAggregate) PollPush(ctx operator.Context, local state.LocalState, global state.GlobalState, b batch.Batch, input, partition int) (operator.PollPush, error) {
	loc, err := local.AsHashAggregate()
	if err != nil {
		return operator.PollPush{}, err
	}
	if loc.Local == nil {
		t, err := h.newTable()
		if err != nil {
			return operator.PollPush{}, err
		}
		loc.Local = t
	}

	keyCols := make([]arrow.Array, len(h.KeyIndices))
	for i, idx := range h.KeyIndices {
		keyCols[i] = b.Column(idx)
	}
	aggCols := make([]arrow.Array, len(h.AggIndices))
	for i, idx := range h.AggIndices {
		aggCols[i] = b.Column(idx)
	}

	table := loc.Local
	rows := int(b.NumRows())
	for row := 0; row < rows; row++ {
		hash := h.hashKeyRow(keyCols, row)
		entryIndex, ok := table.Index.Get(int64(hash))
		if !ok {
			entryIndex = int64(table.EntryCount)
			table.EntryCount++
			table.Index.Put(int64(hash), entryIndex)
			table.EntryHashes = append(table.EntryHashes, hash)
			for i, k := range table.Keys {
				k.AddFrom(keyCols[i], row)
			}
		} else {
			for i, k := range table.Keys {
				if !k.Equal(int(entryIndex), keyCols[i], row) {
					return operator.PollPush{}, execerrors.Internalf("hash_aggregate: hash collision on grouping key")
				}
			}
		}
		for i, a := range table.Aggregates {
			a.Consume(int(entryIndex), aggCols[i], row)
		}
	}

	return operator.NewPushed(), nil
}

// Finish drains the partition's local table and redistributes its
// groups to the OutputPartitions destination queues in Global State,
// keyed by hash(key) mod P, per spec.md §4.3's repartition phase.
func (h *HashAggregate) Finish(local state.LocalState, global state.GlobalState, input, partition int) error {
	loc, err := local.AsHashAggregate()
	if err != nil {
		return err
	}
	glob, err := global.AsHashAggregate()
	if err != nil {
		return err
	}
	if loc.Repartitioned {
		return nil
	}
	loc.Repartitioned = true

	if loc.Local == nil || loc.Local.EntryCount == 0 {
		glob.FinishBuilder()
		return nil
	}
	table := loc.Local

	byDestination := make(map[int][]int64)
	for i, hash := range table.EntryHashes {
		d := int(hash % uint64(h.OutputPartitions))
		byDestination[d] = append(byDestination[d], int64(i))
	}

	fullKeys := make([]arrow.Array, len(table.Keys))
	for i, k := range table.Keys {
		fullKeys[i] = k.Finish(0, table.EntryCount)
	}
	fullAggs := make([]arrow.Array, len(table.Aggregates))
	for i, a := range table.Aggregates {
		fullAggs[i] = a.Finish(0, table.EntryCount)
	}
	defer func() {
		for _, c := range fullKeys {
			c.Release()
		}
		for _, c := range fullAggs {
			c.Release()
		}
	}()

	ctx := context.Background()
	for d, indices := range byDestination {
		idxArr, err := buildIndicesArray(h.allocator(), indices)
		if err != nil {
			return err
		}

		payload := state.AggregatePartitionPayload{
			Keys:       make([]arrow.Array, len(fullKeys)),
			Aggregates: make([]arrow.Array, len(fullAggs)),
			NumRows:    len(indices),
		}
		for i, col := range fullKeys {
			taken, err := takeArray(ctx, col, idxArr)
			if err != nil {
				idxArr.Release()
				return fmt.Errorf("couldn't gather repartitioned key column: %w", err)
			}
			payload.Keys[i] = taken
		}
		for i, col := range fullAggs {
			taken, err := takeArray(ctx, col, idxArr)
			if err != nil {
				idxArr.Release()
				return fmt.Errorf("couldn't gather repartitioned aggregate column: %w", err)
			}
			payload.Aggregates[i] = taken
		}
		idxArr.Release()

		glob.Deposit(d, payload)
	}

	glob.FinishBuilder()
	return nil
}

func buildIndicesArray(alloc memory.Allocator, indices []int64) (arrow.Array, error) {
	bldr := array.NewInt64Builder(alloc)
	defer bldr.Release()
	bldr.AppendValues(indices, nil)
	return bldr.NewArray(), nil
}

func takeArray(ctx context.Context, values, indices arrow.Array) (arrow.Array, error) {
	result, err := compute.CallFunction(ctx, "take", nil,
		compute.NewDatumWithoutOwning(values), compute.NewDatumWithoutOwning(indices))
	if err != nil {
		return nil, err
	}
	return extractArray(result)
}

// PollPull merges this partition's destination queue into a final
// table and streams finalized groups out, per spec.md §4.3's final
// phase. Exhausted once every upstream partition has finished its
// local phase and the destination queue is (and stays) empty.
func (h *HashAggregate) PollPull(ctx operator.Context, local state.LocalState, global state.GlobalState, partition int) (operator.PollPull, error) {
	loc, err := local.AsHashAggregate()
	if err != nil {
		return operator.PollPull{}, err
	}
	glob, err := global.AsHashAggregate()
	if err != nil {
		return operator.PollPull{}, err
	}

	if loc.Final == nil {
		t, err := h.newTable()
		if err != nil {
			return operator.PollPull{}, err
		}
		loc.Final = t
	}

	buildersDone := !glob.BuildersRemaining()
	payloads := glob.Drain(partition)
	for _, payload := range payloads {
		if err := h.mergePayload(loc.Final, payload); err != nil {
			return operator.PollPull{}, err
		}
		for _, c := range payload.Keys {
			c.Release()
		}
		for _, c := range payload.Aggregates {
			c.Release()
		}
	}

	// A group is final only once every builder has deposited its
	// partials; buildersDone was read before Drain, and each builder
	// deposits before it decrements, so nothing is left unmerged here.
	if !buildersDone {
		glob.RegisterPuller(partition, ctx.Waker())
		return operator.NewPendingPull(), nil
	}

	if loc.StreamedUpTo < loc.Final.EntryCount {
		length := loc.Final.EntryCount - loc.StreamedUpTo
		b, err := h.buildOutputBatch(loc.Final, loc.StreamedUpTo, length)
		if err != nil {
			return operator.PollPull{}, err
		}
		loc.StreamedUpTo = loc.Final.EntryCount
		return operator.BatchOf(b), nil
	}

	return operator.ExhaustedPull(), nil
}

// mergePayload folds a repartitioned partial-aggregate payload into
// the final table, grouping by key equality the same way the local
// phase groups rows, but calling AggregateColumn.Merge instead of
// Consume since each payload row is itself already a partial
// aggregate, not a single raw row.
func (h *HashAggregate) mergePayload(final *state.HashTable, payload state.AggregatePartitionPayload) error {
	for row := 0; row < payload.NumRows; row++ {
		hash := h.hashKeyRow(payload.Keys, row)
		entryIndex, ok := final.Index.Get(int64(hash))
		if !ok {
			entryIndex = int64(final.EntryCount)
			final.EntryCount++
			final.Index.Put(int64(hash), entryIndex)
			final.EntryHashes = append(final.EntryHashes, hash)
			for i, k := range final.Keys {
				k.AddFrom(payload.Keys[i], row)
			}
		} else {
			for i, k := range final.Keys {
				if !k.Equal(int(entryIndex), payload.Keys[i], row) {
					return execerrors.Internalf("hash_aggregate: hash collision merging repartitioned groups")
				}
			}
		}
		for i, a := range final.Aggregates {
			a.Merge(int(entryIndex), payload.Aggregates[i], row)
		}
	}
	return nil
}

func (h *HashAggregate) buildOutputBatch(table *state.HashTable, offset, length int) (batch.Batch, error) {
	cols := make([]arrow.Array, 0, len(table.Keys)+len(table.Aggregates))
	for _, k := range table.Keys {
		cols = append(cols, k.Finish(offset, length))
	}
	for _, a := range table.Aggregates {
		cols = append(cols, a.Finish(offset, length))
	}
	out, err := batch.New(h.OutputSchema, cols)
	for _, c := range cols {
		c.Release()
	}
	return out, err
}
