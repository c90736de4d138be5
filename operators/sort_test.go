package operators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vecql/engine/operator"
)

func TestSortLocalOrdersOnePartitionByKeyDescending(t *testing.T) {
	s := &Sort{
		Schema:     intSchema,
		Keys:       []SortKey{{ColumnIndex: 0, Descending: true}},
		Partitions: 1,
		Global:     false,
	}

	local, err := s.InitLocal(0)
	require.NoError(t, err)
	global, err := s.InitGlobal()
	require.NoError(t, err)
	ctx := testContext()

	_, err = s.PollPush(ctx, local, global, intBatch(3, 1), 0, 0)
	require.NoError(t, err)
	_, err = s.PollPush(ctx, local, global, intBatch(2, 4), 0, 0)
	require.NoError(t, err)
	require.NoError(t, s.Finish(local, global, 0, 0))

	pull, err := s.PollPull(ctx, local, global, 0)
	require.NoError(t, err)
	require.Equal(t, operator.BatchReady, pull.Status)
	assert.Equal(t, []int64{4, 3, 2, 1}, intColumn(pull.Batch))

	exhausted, err := s.PollPull(ctx, local, global, 0)
	require.NoError(t, err)
	assert.Equal(t, operator.Exhausted, exhausted.Status)
}

func TestSortNonMergerPartitionExhaustsImmediately(t *testing.T) {
	s := &Sort{
		Schema:          intSchema,
		Keys:            []SortKey{{ColumnIndex: 0}},
		Partitions:      2,
		Global:          true,
		MergerPartition: 0,
	}
	global, err := s.InitGlobal()
	require.NoError(t, err)
	local1, err := s.InitLocal(1)
	require.NoError(t, err)
	ctx := testContext()

	_, err = s.PollPush(ctx, local1, global, intBatch(5, 6), 0, 1)
	require.NoError(t, err)
	require.NoError(t, s.Finish(local1, global, 0, 1))

	pull, err := s.PollPull(ctx, local1, global, 1)
	require.NoError(t, err)
	assert.Equal(t, operator.Exhausted, pull.Status)
}

func TestSortMergerPartitionMergesEveryDepositedRun(t *testing.T) {
	s := &Sort{
		Schema:          intSchema,
		Keys:            []SortKey{{ColumnIndex: 0}},
		Partitions:      2,
		Global:          true,
		MergerPartition: 0,
	}
	global, err := s.InitGlobal()
	require.NoError(t, err)
	merger, err := s.InitLocal(0)
	require.NoError(t, err)
	other, err := s.InitLocal(1)
	require.NoError(t, err)
	ctx := testContext()

	_, err = s.PollPush(ctx, merger, global, intBatch(5, 1), 0, 0)
	require.NoError(t, err)
	require.NoError(t, s.Finish(merger, global, 0, 0))

	// Only one of two runs deposited: the merger must park.
	pull, err := s.PollPull(ctx, merger, global, 0)
	require.NoError(t, err)
	assert.Equal(t, operator.PendingPull, pull.Status)

	_, err = s.PollPush(ctx, other, global, intBatch(3, 2), 0, 1)
	require.NoError(t, err)
	require.NoError(t, s.Finish(other, global, 0, 1))

	var merged []int64
	for {
		p, err := s.PollPull(ctx, merger, global, 0)
		require.NoError(t, err)
		if p.Status == operator.Exhausted {
			break
		}
		require.Equal(t, operator.BatchReady, p.Status)
		merged = append(merged, intColumn(p.Batch)...)
	}
	assert.Equal(t, []int64{1, 2, 3, 5}, merged)
}
