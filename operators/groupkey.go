package operators

import (
	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"
	"github.com/apache/arrow/go/v13/arrow/bitutil"
	"github.com/apache/arrow/go/v13/arrow/memory"
	"github.com/segmentio/fasthash/fnv1a"

	"github.com/vecql/engine/execerrors"
	"github.com/vecql/engine/state"
)

// NewGroupKeyColumn builds the state.GroupKeyColumn implementation
// matching dt, grounded on arrowexec/nodes/group_by.go's MakeKey — the
// same per-type growable-buffer storage, generalized to the
// AddFrom/Equal/Finish shape the closed state registry declares
// instead of group_by.go's three separately-constructed closures.
func NewGroupKeyColumn(dt arrow.DataType, alloc memory.Allocator) (state.GroupKeyColumn, error) {
	switch dt.ID() {
	case arrow.INT64:
		return &int64KeyColumn{data: memory.NewResizableBuffer(alloc)}, nil
	case arrow.STRING:
		return &stringKeyColumn{alloc: alloc}, nil
	default:
		return nil, execerrors.Dataf("hash_aggregate: unsupported group key type %s", dt)
	}
}

type int64KeyColumn struct {
	data  *memory.Buffer
	state []int64
	count int
}

func (k *int64KeyColumn) AddFrom(src arrow.Array, rowIndex int) {
	typed := src.(*array.Int64)
	if k.count >= len(k.state) {
		k.data.Resize(arrow.Int64Traits.BytesRequired(bitutil.NextPowerOf2(k.count + 1)))
		k.state = arrow.Int64Traits.CastFromBytes(k.data.Bytes())
	}
	k.state[k.count] = typed.Value(rowIndex)
	k.count++
}

func (k *int64KeyColumn) Equal(entryIndex int, src arrow.Array, rowIndex int) bool {
	typed := src.(*array.Int64)
	return k.state[entryIndex] == typed.Value(rowIndex)
}

func (k *int64KeyColumn) Finish(offset, length int) arrow.Array {
	return array.NewInt64Data(array.NewData(arrow.PrimitiveTypes.Int64, length, []*memory.Buffer{nil, k.data}, nil, 0, offset))
}

// hashInt64KeyRow returns the fnv1a contribution of an Int64 group key
// value at rowIndex, for use by the repartition hash.
func hashInt64KeyRow(src arrow.Array, rowIndex int, hash uint64) uint64 {
	typed := src.(*array.Int64)
	return fnv1a.AddUint64(hash, uint64(typed.Value(rowIndex)))
}

// stringKeyColumn stores group keys as plain Go strings rather than
// arena-backed buffers (unlike int64KeyColumn) because Arrow string
// arrays are builder-append-only: rebuilding a fresh array from
// `values` on every Finish call, instead of reusing one builder's
// array, is what lets the final phase call Finish repeatedly as it
// streams groups out incrementally.
type stringKeyColumn struct {
	alloc  memory.Allocator
	values []string
}

func (k *stringKeyColumn) AddFrom(src arrow.Array, rowIndex int) {
	typed := src.(*array.String)
	k.values = append(k.values, typed.Value(rowIndex))
}

func (k *stringKeyColumn) Equal(entryIndex int, src arrow.Array, rowIndex int) bool {
	typed := src.(*array.String)
	return k.values[entryIndex] == typed.Value(rowIndex)
}

func (k *stringKeyColumn) Finish(offset, length int) arrow.Array {
	bldr := array.NewStringBuilder(k.alloc)
	defer bldr.Release()
	bldr.AppendValues(k.values[offset:offset+length], nil)
	return bldr.NewArray()
}

func hashStringKeyRow(src arrow.Array, rowIndex int, hash uint64) uint64 {
	typed := src.(*array.String)
	return fnv1a.AddString64(hash, typed.Value(rowIndex))
}
