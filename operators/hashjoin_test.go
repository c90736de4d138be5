package operators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vecql/engine/batch"
	"github.com/vecql/engine/operator"
)

// buildProbeOutputSchema is the 4-column (buildKey, buildVal, probeKey,
// probeVal) schema HashJoin's probe side assembles when BuildIsLeftSide is
// true — the build side's two columns followed by the probe side's.
var buildProbeOutputSchema = batch.NewSchema([]batch.Field{
	{Name: "bk", Type: batch.Int64},
	{Name: "bv", Type: batch.Int64},
	{Name: "pk", Type: batch.Int64},
	{Name: "pv", Type: batch.Int64},
})

func newTestHashJoin(buildPartitions, probePartitions int) *HashJoin {
	return &HashJoin{
		BuildSchema:     twoIntSchema,
		ProbeSchema:     twoIntSchema,
		OutputSchema:    buildProbeOutputSchema,
		BuildKeyIndices: []int{0},
		ProbeKeyIndices: []int{0},
		BuildIsLeftSide: true,
		BuildPartitions: buildPartitions,
		ProbePartitions: probePartitions,
	}
}

func TestHashJoinProbeParksUntilBuildSideReady(t *testing.T) {
	h := newTestHashJoin(1, 1)
	global, err := h.InitGlobal()
	require.NoError(t, err)
	local, err := h.InitLocal(0)
	require.NoError(t, err)
	ctx := testContext()

	// Probe side arrives before the build side has finished: it must
	// park with PendingPush, representing the exact same batch.
	probeBatch := twoIntBatch([]int64{1, 2}, []int64{100, 200})
	res, err := h.PollPush(ctx, local, global, probeBatch, 1, 0)
	require.NoError(t, err)
	require.Equal(t, operator.PendingPush, res.Status)
	assert.True(t, res.Batch.Equal(probeBatch))

	// Push the build side and finish it — the only build partition, so
	// the table becomes ready immediately.
	_, err = h.PollPush(ctx, local, global, twoIntBatch([]int64{1, 2, 3}, []int64{1, 2, 3}), 0, 0)
	require.NoError(t, err)
	require.NoError(t, h.Finish(local, global, 0, 0))

	res2, err := h.PollPush(ctx, local, global, probeBatch, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, operator.Pushed, res2.Status)

	pull, err := h.PollPull(ctx, local, global, 0)
	require.NoError(t, err)
	require.Equal(t, operator.BatchReady, pull.Status)
	assert.Equal(t, int64(2), pull.Batch.NumRows())
	assert.Equal(t, []int64{1, 2}, intColumnAt(pull.Batch, 0))  // build key
	assert.Equal(t, []int64{1, 2}, intColumnAt(pull.Batch, 1))  // build value
	assert.Equal(t, []int64{1, 2}, intColumnAt(pull.Batch, 2))  // probe key
	assert.Equal(t, []int64{100, 200}, intColumnAt(pull.Batch, 3)) // probe value
}

func TestHashJoinPullParksThenExhaustsOnceProbeFinishes(t *testing.T) {
	h := newTestHashJoin(1, 1)
	global, err := h.InitGlobal()
	require.NoError(t, err)
	local, err := h.InitLocal(0)
	require.NoError(t, err)
	ctx := testContext()

	require.NoError(t, h.Finish(local, global, 0, 0)) // empty build side

	pull, err := h.PollPull(ctx, local, global, 0)
	require.NoError(t, err)
	assert.Equal(t, operator.PendingPull, pull.Status)

	require.NoError(t, h.Finish(local, global, 1, 0))

	pull2, err := h.PollPull(ctx, local, global, 0)
	require.NoError(t, err)
	assert.Equal(t, operator.Exhausted, pull2.Status)
}

func TestHashJoinBuildSideWaitsForEveryBuildPartition(t *testing.T) {
	h := newTestHashJoin(2, 1)
	global, err := h.InitGlobal()
	require.NoError(t, err)
	build0, err := h.InitLocal(0)
	require.NoError(t, err)
	build1, err := h.InitLocal(1)
	require.NoError(t, err)
	// Probe partition 0 shares LocalState with build partition 0 — the
	// same slot in a shared Stage.Locals slice (see pipeline.Stage).
	probe := build0
	ctx := testContext()

	_, err = h.PollPush(ctx, build0, global, twoIntBatch([]int64{1}, []int64{11}), 0, 0)
	require.NoError(t, err)
	require.NoError(t, h.Finish(build0, global, 0, 0))

	// Only one of two build partitions has finished: the probe side
	// must still park.
	res, err := h.PollPush(ctx, probe, global, twoIntBatch([]int64{1}, []int64{99}), 1, 0)
	require.NoError(t, err)
	assert.Equal(t, operator.PendingPush, res.Status)

	_, err = h.PollPush(ctx, build1, global, twoIntBatch([]int64{2}, []int64{22}), 0, 1)
	require.NoError(t, err)
	require.NoError(t, h.Finish(build1, global, 0, 1))

	res2, err := h.PollPush(ctx, probe, global, twoIntBatch([]int64{1}, []int64{99}), 1, 0)
	require.NoError(t, err)
	assert.Equal(t, operator.Pushed, res2.Status)
}
