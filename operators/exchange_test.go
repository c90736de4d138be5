package operators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vecql/engine/operator"
)

func TestExchangeRoundRobinRotatesDestinations(t *testing.T) {
	e := &Exchange{
		Schema:           intSchema,
		Strategy:         ExchangeRoundRobin,
		InputPartitions:  1,
		OutputPartitions: 2,
		SoftBound:        10,
	}
	local, err := e.InitLocal(0)
	require.NoError(t, err)
	global, err := e.InitGlobal()
	require.NoError(t, err)
	ctx := testContext()

	_, err = e.PollPush(ctx, local, global, intBatch(1), 0, 0)
	require.NoError(t, err)
	_, err = e.PollPush(ctx, local, global, intBatch(2), 0, 0)
	require.NoError(t, err)
	require.NoError(t, e.Finish(local, global, 0, 0))

	dest0Local, err := e.InitLocal(0)
	require.NoError(t, err)
	pull0, err := e.PollPull(ctx, dest0Local, global, 0)
	require.NoError(t, err)
	require.Equal(t, operator.BatchReady, pull0.Status)
	assert.Equal(t, []int64{1}, intColumn(pull0.Batch))

	dest1Local, err := e.InitLocal(1)
	require.NoError(t, err)
	pull1, err := e.PollPull(ctx, dest1Local, global, 1)
	require.NoError(t, err)
	require.Equal(t, operator.BatchReady, pull1.Status)
	assert.Equal(t, []int64{2}, intColumn(pull1.Batch))
}

func TestExchangeBroadcastSendsEveryBatchToEveryDestination(t *testing.T) {
	e := &Exchange{
		Schema:           intSchema,
		Strategy:         ExchangeBroadcast,
		InputPartitions:  1,
		OutputPartitions: 2,
		SoftBound:        10,
	}
	local, err := e.InitLocal(0)
	require.NoError(t, err)
	global, err := e.InitGlobal()
	require.NoError(t, err)
	ctx := testContext()

	_, err = e.PollPush(ctx, local, global, intBatch(7), 0, 0)
	require.NoError(t, err)
	require.NoError(t, e.Finish(local, global, 0, 0))

	for dest := 0; dest < 2; dest++ {
		destLocal, err := e.InitLocal(dest)
		require.NoError(t, err)
		pull, err := e.PollPull(ctx, destLocal, global, dest)
		require.NoError(t, err)
		require.Equal(t, operator.BatchReady, pull.Status)
		assert.Equal(t, []int64{7}, intColumn(pull.Batch))
	}
}

func TestExchangeHashRoutesMatchingKeysToSameDestination(t *testing.T) {
	e := &Exchange{
		Schema:           intSchema,
		Strategy:         ExchangeHash,
		HashKeyIndices:   []int{0},
		InputPartitions:  1,
		OutputPartitions: 4,
		SoftBound:        10,
	}
	local, err := e.InitLocal(0)
	require.NoError(t, err)
	global, err := e.InitGlobal()
	require.NoError(t, err)
	ctx := testContext()

	_, err = e.PollPush(ctx, local, global, intBatch(1, 1, 2), 0, 0)
	require.NoError(t, err)
	require.NoError(t, e.Finish(local, global, 0, 0))

	seen := map[int64]int{}
	destsOfKey := map[int64]map[int]bool{}
	for dest := 0; dest < 4; dest++ {
		destLocal, err := e.InitLocal(dest)
		require.NoError(t, err)
		pull, err := e.PollPull(ctx, destLocal, global, dest)
		require.NoError(t, err)
		if pull.Status == operator.Exhausted {
			continue
		}
		require.Equal(t, operator.BatchReady, pull.Status)
		for _, v := range intColumn(pull.Batch) {
			seen[v]++
			if destsOfKey[v] == nil {
				destsOfKey[v] = map[int]bool{}
			}
			destsOfKey[v][dest] = true
		}
	}
	// Both rows with key 1 land on the same destination, so they are
	// both present and the total row count is preserved regardless of
	// how the hash spreads across 4 output partitions.
	assert.Len(t, destsOfKey[1], 1)
	assert.Equal(t, 2, seen[1])
	assert.Equal(t, 1, seen[2])
}

func TestExchangePullParksUntilInputFinishes(t *testing.T) {
	e := &Exchange{
		Schema:           intSchema,
		Strategy:         ExchangeRoundRobin,
		InputPartitions:  1,
		OutputPartitions: 1,
		SoftBound:        10,
	}
	local, err := e.InitLocal(0)
	require.NoError(t, err)
	global, err := e.InitGlobal()
	require.NoError(t, err)
	ctx := testContext()

	pull, err := e.PollPull(ctx, local, global, 0)
	require.NoError(t, err)
	assert.Equal(t, operator.PendingPull, pull.Status)

	require.NoError(t, e.Finish(local, global, 0, 0))

	pull2, err := e.PollPull(ctx, local, global, 0)
	require.NoError(t, err)
	assert.Equal(t, operator.Exhausted, pull2.Status)
}

func TestExchangeBackPressuresProducerAboveSoftBound(t *testing.T) {
	e := &Exchange{
		Schema:           intSchema,
		Strategy:         ExchangeRoundRobin,
		InputPartitions:  1,
		OutputPartitions: 1,
		SoftBound:        1,
	}
	local, err := e.InitLocal(0)
	require.NoError(t, err)
	global, err := e.InitGlobal()
	require.NoError(t, err)
	ctx := testContext()

	res, err := e.PollPush(ctx, local, global, intBatch(1), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, operator.Pushed, res.Status)

	second := intBatch(2)
	res2, err := e.PollPush(ctx, local, global, second, 0, 0)
	require.NoError(t, err)
	require.Equal(t, operator.PendingPush, res2.Status)
	assert.True(t, res2.Batch.Equal(second))

	// Draining the queue below SoftBound lets the retry through.
	_, err = e.PollPull(ctx, local, global, 0)
	require.NoError(t, err)

	res3, err := e.PollPush(ctx, local, global, second, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, operator.Pushed, res3.Status)
}
