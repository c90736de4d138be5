// Package operators implements the concrete physical operator kinds
// named in spec.md §3: Filter, Projection, Scan (TableScan), Limit,
// HashAggregate, HashJoin, NestedLoopJoin, Sort, Exchange.
package operators

import (
	"context"
	"fmt"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"
	"github.com/apache/arrow/go/v13/arrow/compute"
	"github.com/apache/arrow/go/v13/arrow/memory"
	"github.com/apache/arrow/go/v13/arrow/scalar"

	"github.com/vecql/engine/batch"
)

// Expression is a scalar expression evaluated vectorized, once per
// Batch, producing one output column. Grounded on
// arrowexec/execution/expression.go's Expression interface
// (Evaluate(ctx, record) (arrow.Array, error)), generalized to take an
// explicit allocator instead of a package-level default one.
type Expression interface {
	Evaluate(ctx context.Context, alloc memory.Allocator, b batch.Batch) (arrow.Array, error)
}

// ColumnRef reads one input column unchanged.
type ColumnRef struct {
	Index int
}

func (c *ColumnRef) Evaluate(ctx context.Context, alloc memory.Allocator, b batch.Batch) (arrow.Array, error) {
	arr := b.Column(c.Index)
	arr.Retain()
	return arr, nil
}

// Literal broadcasts a scalar value to every row of the batch.
type Literal struct {
	Value scalar.Scalar
}

func (l *Literal) Evaluate(ctx context.Context, alloc memory.Allocator, b batch.Batch) (arrow.Array, error) {
	return scalar.MakeArrayFromScalar(l.Value, int(b.NumRows()), alloc)
}

// BinaryFunc dispatches to a named Arrow compute kernel ("greater",
// "multiply", "equal", "and", ...), the same kernel-name dispatch
// isotope's expression evaluator uses (pkg/expr/eval.go) in place of
// the pack's own commented-out ArrowComputeFunctionCall.
type BinaryFunc struct {
	Kernel      string
	Left, Right Expression
}

func (f *BinaryFunc) Evaluate(ctx context.Context, alloc memory.Allocator, b batch.Batch) (arrow.Array, error) {
	left, err := f.Left.Evaluate(ctx, alloc, b)
	if err != nil {
		return nil, fmt.Errorf("couldn't evaluate left operand of %q: %w", f.Kernel, err)
	}
	defer left.Release()

	right, err := f.Right.Evaluate(ctx, alloc, b)
	if err != nil {
		return nil, fmt.Errorf("couldn't evaluate right operand of %q: %w", f.Kernel, err)
	}
	defer right.Release()

	result, err := compute.CallFunction(ctx, f.Kernel, nil,
		compute.NewDatumWithoutOwning(left), compute.NewDatumWithoutOwning(right))
	if err != nil {
		return nil, fmt.Errorf("couldn't evaluate kernel %q: %w", f.Kernel, err)
	}
	return extractArray(result)
}

// Negate computes arithmetic negation of its operand.
type Negate struct {
	Operand Expression
}

func (n *Negate) Evaluate(ctx context.Context, alloc memory.Allocator, b batch.Batch) (arrow.Array, error) {
	inner, err := n.Operand.Evaluate(ctx, alloc, b)
	if err != nil {
		return nil, fmt.Errorf("couldn't evaluate negate operand: %w", err)
	}
	defer inner.Release()

	result, err := compute.Negate(ctx, compute.ArithmeticOptions{}, compute.NewDatumWithoutOwning(inner))
	if err != nil {
		return nil, fmt.Errorf("couldn't negate: %w", err)
	}
	return extractArray(result)
}

// Not computes boolean inversion. Arrow Go's compute registry has no
// "invert" kernel for every build, so this walks the validity/value
// bitmaps by hand rather than dispatching through CallFunction.
type Not struct {
	Operand Expression
}

func (n *Not) Evaluate(ctx context.Context, alloc memory.Allocator, b batch.Batch) (arrow.Array, error) {
	inner, err := n.Operand.Evaluate(ctx, alloc, b)
	if err != nil {
		return nil, fmt.Errorf("couldn't evaluate not operand: %w", err)
	}
	defer inner.Release()

	boolArr, ok := inner.(*array.Boolean)
	if !ok {
		return nil, fmt.Errorf("not: expected a boolean array, got %s", inner.DataType())
	}
	return invertBool(alloc, boolArr), nil
}

// invertBool builds the boolean complement of in, preserving nulls.
func invertBool(alloc memory.Allocator, in *array.Boolean) arrow.Array {
	bldr := array.NewBooleanBuilder(alloc)
	defer bldr.Release()
	bldr.Reserve(in.Len())
	for i := 0; i < in.Len(); i++ {
		if in.IsNull(i) {
			bldr.AppendNull()
			continue
		}
		bldr.Append(!in.Value(i))
	}
	return bldr.NewArray()
}

func extractArray(d compute.Datum) (arrow.Array, error) {
	switch v := d.(type) {
	case *compute.ArrayDatum:
		return v.MakeArray(), nil
	default:
		return nil, fmt.Errorf("unexpected datum kind %T from compute kernel", d)
	}
}
