package batch_test

import (
	"testing"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"
	"github.com/apache/arrow/go/v13/arrow/memory"
	"github.com/stretchr/testify/require"

	"github.com/vecql/engine/batch"
)

func int64Col(vals ...int64) arrow.Array {
	b := array.NewInt64Builder(memory.DefaultAllocator)
	defer b.Release()
	b.AppendValues(vals, nil)
	return b.NewInt64Array()
}

func strCol(vals ...string) arrow.Array {
	b := array.NewStringBuilder(memory.DefaultAllocator)
	defer b.Release()
	b.AppendValues(vals, nil)
	return b.NewStringArray()
}

func intSchema(names ...string) batch.Schema {
	fields := make([]batch.Field, len(names))
	for i, n := range names {
		fields[i] = batch.Field{Name: n, Type: batch.Int64}
	}
	return batch.NewSchema(fields)
}

func TestNewAccessors(t *testing.T) {
	schema := intSchema("a", "b")
	b, err := batch.New(schema, []arrow.Array{int64Col(1, 2, 3), int64Col(4, 5, 6)})
	require.NoError(t, err)
	require.EqualValues(t, 3, b.NumRows())

	col, ok := b.ColumnByName("b")
	require.True(t, ok)
	require.Equal(t, int64(4), col.(*array.Int64).Value(0))

	_, ok = b.ColumnByName("missing")
	require.False(t, ok)
}

func TestNewRejectsColumnCountMismatch(t *testing.T) {
	schema := intSchema("a", "b")
	_, err := batch.New(schema, []arrow.Array{int64Col(1)})
	require.Error(t, err)
}

func TestNewRejectsLengthMismatch(t *testing.T) {
	schema := intSchema("a", "b")
	_, err := batch.New(schema, []arrow.Array{int64Col(1, 2), int64Col(1)})
	require.Error(t, err)
}

func TestNewRejectsTypeMismatch(t *testing.T) {
	schema := intSchema("a")
	_, err := batch.New(schema, []arrow.Array{strCol("x")})
	require.Error(t, err)
}

func TestSliceSharesStorage(t *testing.T) {
	schema := intSchema("a")
	b, err := batch.New(schema, []arrow.Array{int64Col(10, 20, 30, 40)})
	require.NoError(t, err)

	s := b.Slice(1, 2)
	require.EqualValues(t, 2, s.NumRows())
	require.Equal(t, int64(20), s.Column(0).(*array.Int64).Value(0))
	require.Equal(t, int64(30), s.Column(0).(*array.Int64).Value(1))
}

func TestConcat(t *testing.T) {
	schema := intSchema("a")
	b1, err := batch.New(schema, []arrow.Array{int64Col(1, 2)})
	require.NoError(t, err)
	b2, err := batch.New(schema, []arrow.Array{int64Col(3, 4, 5)})
	require.NoError(t, err)

	out, err := batch.Concat(schema, []batch.Batch{b1, b2})
	require.NoError(t, err)
	require.EqualValues(t, 5, out.NumRows())
	col := out.Column(0).(*array.Int64)
	require.Equal(t, []int64{1, 2, 3, 4, 5}, col.Int64Values())
}

func TestConcatEmpty(t *testing.T) {
	schema := intSchema("a")
	out, err := batch.Concat(schema, nil)
	require.NoError(t, err)
	require.EqualValues(t, 0, out.NumRows())
}

func TestEqual(t *testing.T) {
	schema := intSchema("a", "b")
	b1, err := batch.New(schema, []arrow.Array{int64Col(1, 2), int64Col(3, 4)})
	require.NoError(t, err)
	b2, err := batch.New(schema, []arrow.Array{int64Col(1, 2), int64Col(3, 4)})
	require.NoError(t, err)
	b3, err := batch.New(schema, []arrow.Array{int64Col(1, 2), int64Col(9, 9)})
	require.NoError(t, err)

	require.True(t, b1.Equal(b2))
	require.False(t, b1.Equal(b3))
}
