package operators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vecql/engine/batch"
	"github.com/vecql/engine/operator"
)

func TestTableScanDrainsProducerThenExhausts(t *testing.T) {
	producer := NewSliceProducer([][]batch.Batch{
		{intBatch(1, 2), intBatch(3)},
	})
	scan := &TableScan{OutputSchema: intSchema, Source: producer}

	assert.Equal(t, 1, scan.NumOutputPartitions())

	local, err := scan.InitLocal(0)
	require.NoError(t, err)
	global, err := scan.InitGlobal()
	require.NoError(t, err)
	ctx := testContext()

	r1, err := scan.PollPull(ctx, local, global, 0)
	require.NoError(t, err)
	require.Equal(t, operator.BatchReady, r1.Status)
	assert.Equal(t, []int64{1, 2}, intColumn(r1.Batch))

	r2, err := scan.PollPull(ctx, local, global, 0)
	require.NoError(t, err)
	require.Equal(t, operator.BatchReady, r2.Status)
	assert.Equal(t, []int64{3}, intColumn(r2.Batch))

	r3, err := scan.PollPull(ctx, local, global, 0)
	require.NoError(t, err)
	assert.Equal(t, operator.Exhausted, r3.Status)

	// Exhaustion is terminal: a further call reports it again rather
	// than re-consulting the producer.
	r4, err := scan.PollPull(ctx, local, global, 0)
	require.NoError(t, err)
	assert.Equal(t, operator.Exhausted, r4.Status)
}

func TestTableScanRejectsPushAndFinish(t *testing.T) {
	producer := NewSliceProducer([][]batch.Batch{{}})
	scan := &TableScan{OutputSchema: intSchema, Source: producer}

	local, err := scan.InitLocal(0)
	require.NoError(t, err)
	global, err := scan.InitGlobal()
	require.NoError(t, err)
	ctx := testContext()

	_, err = scan.PollPush(ctx, local, global, intBatch(1), 0, 0)
	assert.Error(t, err)

	err = scan.Finish(local, global, 0, 0)
	assert.Error(t, err)
}

func TestTableScanMultiplePartitionsAreIndependent(t *testing.T) {
	producer := NewSliceProducer([][]batch.Batch{
		{intBatch(1)},
		{intBatch(2), intBatch(3)},
	})
	scan := &TableScan{OutputSchema: intSchema, Source: producer}
	require.Equal(t, 2, scan.NumOutputPartitions())

	ctx := testContext()
	global, err := scan.InitGlobal()
	require.NoError(t, err)

	local0, err := scan.InitLocal(0)
	require.NoError(t, err)
	local1, err := scan.InitLocal(1)
	require.NoError(t, err)

	r0, err := scan.PollPull(ctx, local0, global, 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, intColumn(r0.Batch))

	r1, err := scan.PollPull(ctx, local1, global, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, intColumn(r1.Batch))

	exhausted0, err := scan.PollPull(ctx, local0, global, 0)
	require.NoError(t, err)
	assert.Equal(t, operator.Exhausted, exhausted0.Status)

	r2, err := scan.PollPull(ctx, local1, global, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, intColumn(r2.Batch))
}
