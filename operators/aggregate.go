package operators

import (
	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"
	"github.com/apache/arrow/go/v13/arrow/bitutil"
	"github.com/apache/arrow/go/v13/arrow/memory"

	"github.com/vecql/engine/execerrors"
	"github.com/vecql/engine/state"
)

// AggregateKind is the closed set of aggregate functions HashAggregate
// supports.
type AggregateKind int

const (
	AggregateSum AggregateKind = iota
	AggregateCount
)

// NewAggregateColumn builds the state.AggregateColumn implementation
// for kind over a column of type dt, grounded on
// arrowexec/nodes/group_by.go's SumInt/Count — same growable-buffer
// storage, generalized with a Merge method so partial aggregates
// deposited from other partitions during repartitioning fold in the
// same way a row does.
func NewAggregateColumn(kind AggregateKind, dt arrow.DataType, alloc memory.Allocator) (state.AggregateColumn, error) {
	switch kind {
	case AggregateSum:
		switch dt.ID() {
		case arrow.INT64:
			return &sumInt64Column{data: memory.NewResizableBuffer(alloc)}, nil
		case arrow.FLOAT64:
			return &sumFloat64Column{data: memory.NewResizableBuffer(alloc)}, nil
		default:
			return nil, execerrors.Dataf("hash_aggregate: unsupported type %s for sum", dt)
		}
	case AggregateCount:
		return &countColumn{data: memory.NewResizableBuffer(alloc)}, nil
	default:
		return nil, execerrors.Internalf("hash_aggregate: unknown aggregate kind %d", kind)
	}
}

type sumInt64Column struct {
	data  *memory.Buffer
	state []int64
}

func (a *sumInt64Column) grow(entryIndex int) {
	if entryIndex >= len(a.state) {
		a.data.Resize(arrow.Int64Traits.BytesRequired(bitutil.NextPowerOf2(entryIndex + 1)))
		a.state = arrow.Int64Traits.CastFromBytes(a.data.Bytes())
	}
}

func (a *sumInt64Column) Consume(entryIndex int, src arrow.Array, rowIndex int) {
	a.grow(entryIndex)
	a.state[entryIndex] += src.(*array.Int64).Value(rowIndex)
}

func (a *sumInt64Column) Merge(entryIndex int, src arrow.Array, rowIndex int) {
	a.Consume(entryIndex, src, rowIndex)
}

func (a *sumInt64Column) Finish(offset, length int) arrow.Array {
	return array.NewInt64Data(array.NewData(arrow.PrimitiveTypes.Int64, length, []*memory.Buffer{nil, a.data}, nil, 0, offset))
}

type sumFloat64Column struct {
	data  *memory.Buffer
	state []float64
}

func (a *sumFloat64Column) grow(entryIndex int) {
	if entryIndex >= len(a.state) {
		a.data.Resize(arrow.Float64Traits.BytesRequired(bitutil.NextPowerOf2(entryIndex + 1)))
		a.state = arrow.Float64Traits.CastFromBytes(a.data.Bytes())
	}
}

func (a *sumFloat64Column) Consume(entryIndex int, src arrow.Array, rowIndex int) {
	a.grow(entryIndex)
	a.state[entryIndex] += src.(*array.Float64).Value(rowIndex)
}

func (a *sumFloat64Column) Merge(entryIndex int, src arrow.Array, rowIndex int) {
	a.Consume(entryIndex, src, rowIndex)
}

func (a *sumFloat64Column) Finish(offset, length int) arrow.Array {
	return array.NewFloat64Data(array.NewData(arrow.PrimitiveTypes.Float64, length, []*memory.Buffer{nil, a.data}, nil, 0, offset))
}

type countColumn struct {
	data  *memory.Buffer
	state []int64
}

func (a *countColumn) grow(entryIndex int) {
	if entryIndex >= len(a.state) {
		a.data.Resize(arrow.Int64Traits.BytesRequired(bitutil.NextPowerOf2(entryIndex + 1)))
		a.state = arrow.Int64Traits.CastFromBytes(a.data.Bytes())
	}
}

func (a *countColumn) Consume(entryIndex int, src arrow.Array, rowIndex int) {
	a.grow(entryIndex)
	a.state[entryIndex]++
}

// Merge folds a partial count (not a single row) into entryIndex, read
// from src[rowIndex] — unlike Consume, which always adds exactly one.
func (a *countColumn) Merge(entryIndex int, src arrow.Array, rowIndex int) {
	a.grow(entryIndex)
	a.state[entryIndex] += src.(*array.Int64).Value(rowIndex)
}

func (a *countColumn) Finish(offset, length int) arrow.Array {
	return array.NewInt64Data(array.NewData(arrow.PrimitiveTypes.Int64, length, []*memory.Buffer{nil, a.data}, nil, 0, offset))
}
