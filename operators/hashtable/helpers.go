// Package hashtable implements the partitioned, hash-indexed build
// side shared by HashJoin, grounded on
// arrowexec/nodes/hashtable/join_hashtable.go and arrowexec/helpers.
package hashtable

import (
	"fmt"
	"math"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"
	"github.com/segmentio/fasthash/fnv1a"
)

// MakeRowHasher returns a per-row fnv1a hash function over columns,
// grounded on arrowexec/helpers/key_hasher.go's MakeRowHasher.
func MakeRowHasher(columns []arrow.Array) func(rowIndex uint) uint64 {
	subHashers := make([]func(hash uint64, rowIndex uint) uint64, len(columns))
	for i := range columns {
		switch columns[i].DataType().ID() {
		case arrow.INT64:
			typedArr := columns[i].(*array.Int64).Int64Values()
			subHashers[i] = func(hash uint64, rowIndex uint) uint64 {
				return fnv1a.AddUint64(hash, uint64(typedArr[rowIndex]))
			}
		case arrow.FLOAT64:
			typedArr := columns[i].(*array.Float64).Float64Values()
			subHashers[i] = func(hash uint64, rowIndex uint) uint64 {
				return fnv1a.AddUint64(hash, math.Float64bits(typedArr[rowIndex]))
			}
		case arrow.STRING:
			typedArr := columns[i].(*array.String)
			subHashers[i] = func(hash uint64, rowIndex uint) uint64 {
				return fnv1a.AddString64(hash, typedArr.Value(int(rowIndex)))
			}
		case arrow.BOOL:
			typedArr := columns[i].(*array.Boolean)
			subHashers[i] = func(hash uint64, rowIndex uint) uint64 {
				if typedArr.Value(int(rowIndex)) {
					return fnv1a.AddUint64(hash, 1)
				}
				return fnv1a.AddUint64(hash, 0)
			}
		default:
			panic(fmt.Errorf("hashtable: unsupported key column type %s", columns[i].DataType()))
		}
	}
	return func(rowIndex uint) uint64 {
		hash := fnv1a.Init64
		for _, hasher := range subHashers {
			hash = hasher(hash, rowIndex)
		}
		return hash
	}
}

// MakeRecordRowHasher hashes the columns at keyIndices of rec.
func MakeRecordRowHasher(rec arrow.Record, keyIndices []int) func(rowIndex uint) uint64 {
	columns := make([]arrow.Array, len(keyIndices))
	for i := range columns {
		columns[i] = rec.Column(keyIndices[i])
	}
	return MakeRowHasher(columns)
}

// MakeRowEqualityChecker compares a row of leftKeys against a row of
// rightKeys column-by-column. Grounded on
// arrowexec/helpers/equality_checker.go.
func MakeRowEqualityChecker(leftKeys, rightKeys []arrow.Array) func(leftRowIndex, rightRowIndex int) bool {
	if len(leftKeys) != len(rightKeys) {
		panic(fmt.Errorf("hashtable: key column count mismatch in equality checker: %d != %d", len(leftKeys), len(rightKeys)))
	}
	checkers := make([]func(l, r int) bool, len(leftKeys))
	for i := range leftKeys {
		switch leftKeys[i].DataType().ID() {
		case arrow.INT64:
			lt := leftKeys[i].(*array.Int64).Int64Values()
			rt := rightKeys[i].(*array.Int64).Int64Values()
			checkers[i] = func(l, r int) bool { return lt[l] == rt[r] }
		case arrow.FLOAT64:
			lt := leftKeys[i].(*array.Float64).Float64Values()
			rt := rightKeys[i].(*array.Float64).Float64Values()
			checkers[i] = func(l, r int) bool { return lt[l] == rt[r] }
		case arrow.STRING:
			lt := leftKeys[i].(*array.String)
			rt := rightKeys[i].(*array.String)
			checkers[i] = func(l, r int) bool { return lt.Value(l) == rt.Value(r) }
		case arrow.BOOL:
			lt := leftKeys[i].(*array.Boolean)
			rt := rightKeys[i].(*array.Boolean)
			checkers[i] = func(l, r int) bool { return lt.Value(l) == rt.Value(r) }
		default:
			panic(fmt.Errorf("hashtable: unsupported key column type %s", leftKeys[i].DataType()))
		}
	}
	return func(l, r int) bool {
		for _, check := range checkers {
			if !check(l, r) {
				return false
			}
		}
		return true
	}
}

// MakeColumnRewriter returns a function appending the value at
// rowIndex of arr into builder. Grounded on
// arrowexec/helpers/rewriter.go, generalized over the four key/value
// types the core's LogicalType enum closes over.
func MakeColumnRewriter(builder array.Builder, arr arrow.Array) func(rowIndex int) {
	switch builder.Type().ID() {
	case arrow.INT16:
		return rewriterForType[int16](builder.(*array.Int16Builder), arr.(*array.Int16))
	case arrow.INT32:
		return rewriterForType[int32](builder.(*array.Int32Builder), arr.(*array.Int32))
	case arrow.INT64:
		return rewriterForType[int64](builder.(*array.Int64Builder), arr.(*array.Int64))
	case arrow.FLOAT32:
		return rewriterForType[float32](builder.(*array.Float32Builder), arr.(*array.Float32))
	case arrow.FLOAT64:
		return rewriterForType[float64](builder.(*array.Float64Builder), arr.(*array.Float64))
	case arrow.BOOL:
		return rewriterForType[bool](builder.(*array.BooleanBuilder), arr.(*array.Boolean))
	case arrow.STRING:
		return rewriterForType[string](builder.(*array.StringBuilder), arr.(*array.String))
	default:
		panic(fmt.Errorf("hashtable: unsupported type for rewriting: %s", builder.Type()))
	}
}

func rewriterForType[T any, BuilderType interface{ Append(v T) }, ArrayType interface{ Value(i int) T }](builder BuilderType, arr ArrayType) func(rowIndex int) {
	return func(rowIndex int) {
		builder.Append(arr.Value(rowIndex))
	}
}
