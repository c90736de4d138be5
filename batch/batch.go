package batch

import (
	"fmt"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"
	"github.com/apache/arrow/go/v13/arrow/memory"

	"github.com/vecql/engine/execerrors"
)

// Batch is an immutable columnar block of rows: a fixed schema, a row
// count, and one column vector per field. Batches are shared by
// reference and never mutated in place; slicing and concatenation both
// produce new Batch values.
type Batch struct {
	schema Schema
	rec    arrow.Record
}

// New validates cols against schema and wraps them into a Batch. Once
// schema validation passes, construction cannot fail: the returned
// error is only ever a KindData error describing a column/schema
// mismatch caught before any row is touched.
func New(schema Schema, cols []arrow.Array) (Batch, error) {
	if len(cols) != len(schema.Fields) {
		return Batch{}, execerrors.Dataf("batch: column count %d does not match schema field count %d", len(cols), len(schema.Fields))
	}
	var rows int64 = -1
	for i, col := range cols {
		if rows == -1 {
			rows = int64(col.Len())
		} else if int64(col.Len()) != rows {
			return Batch{}, execerrors.Dataf("batch: column %q has length %d, expected %d", schema.Fields[i].Name, col.Len(), rows)
		}
		want := schema.Fields[i].Type.ArrowType()
		if !arrow.TypeEqual(col.DataType(), want) {
			return Batch{}, execerrors.Dataf("batch: column %q has type %s, expected %s", schema.Fields[i].Name, col.DataType(), want)
		}
	}
	if rows == -1 {
		rows = 0
	}
	rec := array.NewRecord(schema.Arrow(), cols, rows)
	return Batch{schema: schema, rec: rec}, nil
}

// FromRecord wraps an already-built arrow.Record produced by a compute
// kernel (filter, cast, ...) whose schema is known to match schema.
func FromRecord(schema Schema, rec arrow.Record) Batch {
	return Batch{schema: schema, rec: rec}
}

func (b Batch) Schema() Schema { return b.schema }

func (b Batch) NumRows() int64 { return b.rec.NumRows() }

func (b Batch) Column(i int) arrow.Array { return b.rec.Column(i) }

func (b Batch) ColumnByName(name string) (arrow.Array, bool) {
	i := b.schema.IndexOf(name)
	if i < 0 {
		return nil, false
	}
	return b.rec.Column(i), true
}

// Record exposes the underlying arrow.Record for operators that need
// to hand it to an Arrow compute kernel directly.
func (b Batch) Record() arrow.Record { return b.rec }

// Slice produces a cheap view over rows [offset, offset+length)
// sharing the same underlying column storage.
func (b Batch) Slice(offset, length int64) Batch {
	return Batch{schema: b.schema, rec: b.rec.NewSlice(offset, offset+length)}
}

// Concat concatenates batches sharing the same schema into one fresh
// Batch. It is an error (KindInternal — a planner/operator bug, not a
// data error) to concatenate batches of differing schema.
func Concat(schema Schema, batches []Batch) (Batch, error) {
	if len(batches) == 0 {
		return Empty(schema), nil
	}
	recs := make([]arrow.Record, len(batches))
	var rows int64
	for i, b := range batches {
		if !b.schema.Equal(schema) {
			return Batch{}, execerrors.Internalf("concat: batch %d has schema %v, expected %v", i, b.schema, schema)
		}
		recs[i] = b.rec
		rows += b.NumRows()
	}
	cols := make([]arrow.Array, len(schema.Fields))
	for i := range cols {
		parts := make([]arrow.Array, len(recs))
		for j, r := range recs {
			parts[j] = r.Column(i)
		}
		col, err := array.Concatenate(parts, memory.DefaultAllocator)
		if err != nil {
			return Batch{}, execerrors.Internalf("concat: column %d: %v", i, err)
		}
		defer col.Release()
		cols[i] = col
	}
	return Batch{schema: schema, rec: array.NewRecord(schema.Arrow(), cols, rows)}, nil
}

// Empty returns a zero-row Batch for schema.
func Empty(schema Schema) Batch {
	cols := make([]arrow.Array, len(schema.Fields))
	for i, f := range schema.Fields {
		b := array.NewBuilder(memory.DefaultAllocator, f.Type.ArrowType())
		defer b.Release()
		cols[i] = b.NewArray()
	}
	rec := array.NewRecord(schema.Arrow(), cols, 0)
	return Batch{schema: schema, rec: rec}
}

// Equal compares two batches by value over column contents. Used only
// in tests.
func (b Batch) Equal(other Batch) bool {
	if !b.schema.Equal(other.schema) {
		return false
	}
	if b.NumRows() != other.NumRows() {
		return false
	}
	for i := range b.schema.Fields {
		if !array.Equal(b.rec.Column(i), other.rec.Column(i)) {
			return false
		}
	}
	return true
}

func (b Batch) String() string {
	return fmt.Sprintf("Batch{rows=%d, schema=%v}", b.NumRows(), b.schema.Fields)
}
