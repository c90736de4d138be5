package operators

import (
	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"
	"github.com/apache/arrow/go/v13/arrow/memory"

	"github.com/vecql/engine/batch"
)

var intSchema = batch.NewSchema([]batch.Field{{Name: "v", Type: batch.Int64}})

func intBatch(values ...int64) batch.Batch {
	b := array.NewInt64Builder(memory.DefaultAllocator)
	for _, v := range values {
		b.Append(v)
	}
	arr := b.NewArray()
	b.Release()
	defer arr.Release()

	out, err := batch.New(intSchema, []arrow.Array{arr})
	if err != nil {
		panic(err)
	}
	return out
}

func intColumn(b batch.Batch) []int64 {
	return intColumnAt(b, 0)
}

func intColumnAt(b batch.Batch, i int) []int64 {
	col := b.Column(i).(*array.Int64)
	out := make([]int64, col.Len())
	for i := range out {
		out[i] = col.Value(i)
	}
	return out
}

// twoIntSchema is a two-column int64 schema used by operators that
// combine a grouping/join key column with a second value column.
var twoIntSchema = batch.NewSchema([]batch.Field{
	{Name: "k", Type: batch.Int64},
	{Name: "v", Type: batch.Int64},
})

func twoIntBatch(keys, vals []int64) batch.Batch {
	kb := array.NewInt64Builder(memory.DefaultAllocator)
	kb.AppendValues(keys, nil)
	ka := kb.NewArray()
	kb.Release()
	defer ka.Release()

	vb := array.NewInt64Builder(memory.DefaultAllocator)
	vb.AppendValues(vals, nil)
	va := vb.NewArray()
	vb.Release()
	defer va.Release()

	out, err := batch.New(twoIntSchema, []arrow.Array{ka, va})
	if err != nil {
		panic(err)
	}
	return out
}
