// Package batch defines the unit of data passed between operators: an
// immutable columnar chunk of rows with a typed schema. A Batch is a
// thin, schema-validating wrapper around an arrow.Record, the same
// representation the pack's own vectorized engine uses, so every
// operator gets Arrow's compute kernels (filter, cast, comparisons)
// instead of hand-rolled per-column loops.
package batch

import (
	"fmt"

	"github.com/apache/arrow/go/v13/arrow"
)

// LogicalType is the closed set of logical column types the core
// understands. Logical types map one-to-one to Arrow execution types.
type LogicalType int

const (
	Int16 LogicalType = iota
	Int32
	Int64
	Float32
	Float64
	Bool
	Utf8
)

func (t LogicalType) String() string {
	switch t {
	case Int16:
		return "Int16"
	case Int32:
		return "Int32"
	case Int64:
		return "Int64"
	case Float32:
		return "Float32"
	case Float64:
		return "Float64"
	case Bool:
		return "Bool"
	case Utf8:
		return "Utf8"
	default:
		return "Unknown"
	}
}

// ArrowType returns the Arrow data type a LogicalType is represented
// with on the wire.
func (t LogicalType) ArrowType() arrow.DataType {
	switch t {
	case Int16:
		return arrow.PrimitiveTypes.Int16
	case Int32:
		return arrow.PrimitiveTypes.Int32
	case Int64:
		return arrow.PrimitiveTypes.Int64
	case Float32:
		return arrow.PrimitiveTypes.Float32
	case Float64:
		return arrow.PrimitiveTypes.Float64
	case Bool:
		return arrow.FixedWidthTypes.Boolean
	case Utf8:
		return arrow.BinaryTypes.String
	default:
		panic(fmt.Errorf("unknown logical type %d", t))
	}
}

// LogicalTypeFromArrow maps an Arrow type ID back to a LogicalType. It
// panics on an Arrow type the core doesn't support — used only at
// schema-construction time, never on the hot path.
func LogicalTypeFromArrow(dt arrow.DataType) LogicalType {
	switch dt.ID() {
	case arrow.INT16:
		return Int16
	case arrow.INT32:
		return Int32
	case arrow.INT64:
		return Int64
	case arrow.FLOAT32:
		return Float32
	case arrow.FLOAT64:
		return Float64
	case arrow.BOOL:
		return Bool
	case arrow.STRING:
		return Utf8
	default:
		panic(fmt.Errorf("unsupported arrow type: %s", dt.Name()))
	}
}

// Field is one (name, logical type, nullable) entry of a Schema.
type Field struct {
	Name     string
	Type     LogicalType
	Nullable bool
}

// Schema is the ordered list of fields shared by every Batch flowing
// through one edge of the operator graph.
type Schema struct {
	Fields []Field

	arrow *arrow.Schema
}

// NewSchema constructs a Schema from its fields, pre-building the
// equivalent Arrow schema once so it can be reused for every Batch.
func NewSchema(fields []Field) Schema {
	arrowFields := make([]arrow.Field, len(fields))
	for i, f := range fields {
		arrowFields[i] = arrow.Field{
			Name:     f.Name,
			Type:     f.Type.ArrowType(),
			Nullable: f.Nullable,
		}
	}
	return Schema{
		Fields: fields,
		arrow:  arrow.NewSchema(arrowFields, nil),
	}
}

// SchemaFromArrow builds a Schema from an existing Arrow schema,
// recovering LogicalTypes from the Arrow type IDs.
func SchemaFromArrow(s *arrow.Schema) Schema {
	fields := make([]Field, s.NumFields())
	for i, f := range s.Fields() {
		fields[i] = Field{
			Name:     f.Name,
			Type:     LogicalTypeFromArrow(f.Type),
			Nullable: f.Nullable,
		}
	}
	return Schema{Fields: fields, arrow: s}
}

func (s Schema) Arrow() *arrow.Schema { return s.arrow }

func (s Schema) NumFields() int { return len(s.Fields) }

// IndexOf returns the index of the named field, or -1 if absent.
func (s Schema) IndexOf(name string) int {
	for i, f := range s.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Equal reports whether two schemas have the same fields in the same
// order — used to validate a Batch against its declared output schema.
func (s Schema) Equal(other Schema) bool {
	if len(s.Fields) != len(other.Fields) {
		return false
	}
	for i := range s.Fields {
		if s.Fields[i] != other.Fields[i] {
			return false
		}
	}
	return true
}
