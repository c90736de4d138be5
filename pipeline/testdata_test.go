package pipeline

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
