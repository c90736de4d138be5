package operators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vecql/engine/operator"
	"github.com/vecql/engine/state"
)

func TestHashAggregateSumsWithinOnePartition(t *testing.T) {
	h := &HashAggregate{
		InputSchema:      twoIntSchema,
		OutputSchema:     twoIntSchema,
		KeyIndices:       []int{0},
		AggIndices:       []int{1},
		AggKinds:         []AggregateKind{AggregateSum},
		InputPartitions:  1,
		OutputPartitions: 1,
	}

	local, err := h.InitLocal(0)
	require.NoError(t, err)
	global, err := h.InitGlobal()
	require.NoError(t, err)
	ctx := testContext()

	_, err = h.PollPush(ctx, local, global, twoIntBatch([]int64{1, 2, 1}, []int64{10, 20, 5}), 0, 0)
	require.NoError(t, err)

	require.NoError(t, h.Finish(local, global, 0, 0))

	pull, err := h.PollPull(ctx, local, global, 0)
	require.NoError(t, err)
	require.Equal(t, operator.BatchReady, pull.Status)
	assert.Equal(t, int64(2), pull.Batch.NumRows())

	totals := map[int64]int64{}
	keys := intColumnAt(pull.Batch, 0)
	vals := intColumnAt(pull.Batch, 1)
	for i := range keys {
		totals[keys[i]] = vals[i]
	}
	assert.Equal(t, int64(15), totals[1])
	assert.Equal(t, int64(20), totals[2])

	exhausted, err := h.PollPull(ctx, local, global, 0)
	require.NoError(t, err)
	assert.Equal(t, operator.Exhausted, exhausted.Status)
}

func TestHashAggregateMergesAcrossPartitionsByHashedKey(t *testing.T) {
	h := &HashAggregate{
		InputSchema:      twoIntSchema,
		OutputSchema:     twoIntSchema,
		KeyIndices:       []int{0},
		AggIndices:       []int{1},
		AggKinds:         []AggregateKind{AggregateCount},
		InputPartitions:  2,
		OutputPartitions: 2,
	}

	global, err := h.InitGlobal()
	require.NoError(t, err)
	local0, err := h.InitLocal(0)
	require.NoError(t, err)
	local1, err := h.InitLocal(1)
	require.NoError(t, err)
	ctx := testContext()

	_, err = h.PollPush(ctx, local0, global, twoIntBatch([]int64{1, 2}, []int64{1, 1}), 0, 0)
	require.NoError(t, err)
	_, err = h.PollPush(ctx, local1, global, twoIntBatch([]int64{1, 1}, []int64{1, 1}), 0, 1)
	require.NoError(t, err)

	require.NoError(t, h.Finish(local0, global, 0, 0))
	require.NoError(t, h.Finish(local1, global, 0, 1))

	// Every repartitioned group for a given key lands on exactly one
	// destination (hash(key) mod OutputPartitions), so summing the
	// counts pulled from every output partition recovers the true
	// per-key total regardless of how the hash distributes them.
	// Partition p's output phase shares the same LocalState as
	// partition p's input phase, matching how a planner wires a
	// single operator instance across two Pipelines (see
	// pipeline.Stage.Locals).
	destLocals := []state.LocalState{local0, local1}
	counts := map[int64]int64{}
	for dest := 0; dest < 2; dest++ {
		for {
			pull, err := h.PollPull(ctx, destLocals[dest], global, dest)
			require.NoError(t, err)
			if pull.Status == operator.Exhausted {
				break
			}
			require.Equal(t, operator.BatchReady, pull.Status)
			keys := intColumnAt(pull.Batch, 0)
			vals := intColumnAt(pull.Batch, 1)
			for i := range keys {
				counts[keys[i]] += vals[i]
			}
		}
	}
	assert.Equal(t, int64(3), counts[1])
	assert.Equal(t, int64(1), counts[2])
}

func TestHashAggregatePullParksUntilAllBuildersFinish(t *testing.T) {
	h := &HashAggregate{
		InputSchema:      twoIntSchema,
		OutputSchema:     twoIntSchema,
		KeyIndices:       []int{0},
		AggIndices:       []int{1},
		AggKinds:         []AggregateKind{AggregateSum},
		InputPartitions:  2,
		OutputPartitions: 1,
	}

	global, err := h.InitGlobal()
	require.NoError(t, err)
	local0, err := h.InitLocal(0)
	require.NoError(t, err)
	local1, err := h.InitLocal(1)
	require.NoError(t, err)
	ctx := testContext()

	_, err = h.PollPush(ctx, local0, global, twoIntBatch([]int64{1}, []int64{10}), 0, 0)
	require.NoError(t, err)
	require.NoError(t, h.Finish(local0, global, 0, 0))

	// Partition 1 hasn't finished yet: the sole output partition must
	// park rather than report Exhausted prematurely.
	pull, err := h.PollPull(ctx, local0, global, 0)
	require.NoError(t, err)
	assert.Equal(t, operator.PendingPull, pull.Status)

	_, err = h.PollPush(ctx, local1, global, twoIntBatch([]int64{1}, []int64{5}), 0, 1)
	require.NoError(t, err)
	require.NoError(t, h.Finish(local1, global, 0, 1))

	pull2, err := h.PollPull(ctx, local0, global, 0)
	require.NoError(t, err)
	require.Equal(t, operator.BatchReady, pull2.Status)
	assert.Equal(t, int64(15), intColumnAt(pull2.Batch, 1)[0])
}
