package operators

import (
	"container/heap"
	"context"
	"sort"
	"strings"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"
	"github.com/apache/arrow/go/v13/arrow/memory"

	"github.com/vecql/engine/batch"
	"github.com/vecql/engine/execerrors"
	"github.com/vecql/engine/operator"
	"github.com/vecql/engine/operators/hashtable"
	"github.com/vecql/engine/state"
)

// SortKey names one ORDER BY column and its direction/null placement.
type SortKey struct {
	ColumnIndex int
	Descending  bool
	NullsFirst  bool
}

// Sort implements spec.md §4.3's blocking Sort: every partition
// accumulates its input and sorts it locally on finish; if a global
// order is required, one designated partition additionally performs a
// k-way merge of every partition's sorted run, while the rest report
// Exhausted immediately once their own local sort is done.
// Grounded on spec.md §4.3's Sort description and state/sort.go's
// SortLocal/SortGlobal split (run accumulation plus a deposit-all,
// wake-the-merger barrier).
type Sort struct {
	Schema          batch.Schema
	Keys            []SortKey
	Partitions      int
	Global          bool
	MergerPartition int
	IdealBatchSize  int
	Alloc           memory.Allocator
}

func (s *Sort) allocator() memory.Allocator {
	if s.Alloc != nil {
		return s.Alloc
	}
	return memory.DefaultAllocator
}

func (s *Sort) idealBatchSize() int {
	if s.IdealBatchSize > 0 {
		return s.IdealBatchSize
	}
	return 16 * 1024
}

func (s *Sort) NumInputs() int { return 1 }

func (s *Sort) NumInputPartitions(input int) (int, error) {
	if input != 0 {
		return 0, execerrors.Internalf("sort: invalid input index %d", input)
	}
	return s.Partitions, nil
}

func (s *Sort) NumOutputPartitions() int { return s.Partitions }

func (s *Sort) InitLocal(partition int) (state.LocalState, error) {
	l := state.NewSortLocal()
	loc, err := l.AsSort()
	if err != nil {
		return state.LocalState{}, err
	}
	loc.IsMerger = !s.Global || partition == s.MergerPartition
	return l, nil
}

func (s *Sort) InitGlobal() (state.GlobalState, error) {
	return state.NewSortGlobalState(s.Partitions), nil
}

func (s *Sort) PollPush(ctx operator.Context, local state.LocalState, global state.GlobalState, b batch.Batch, input, partition int) (operator.PollPush, error) {
	l, err := local.AsSort()
	if err != nil {
		return operator.PollPush{}, err
	}
	l.Collected = append(l.Collected, b)
	return operator.NewPushed(), nil
}

func (s *Sort) Finish(local state.LocalState, global state.GlobalState, input, partition int) error {
	l, err := local.AsSort()
	if err != nil {
		return err
	}
	whole, err := batch.Concat(s.Schema, l.Collected)
	if err != nil {
		return err
	}
	sorted, err := s.sortBatch(whole)
	if err != nil {
		return err
	}
	l.Sorted = sorted
	l.Ready = true

	if s.Global {
		g, err := global.AsSort()
		if err != nil {
			return err
		}
		g.DepositRun(sorted)
	}
	return nil
}

func (s *Sort) PollPull(ctx operator.Context, local state.LocalState, global state.GlobalState, partition int) (operator.PollPull, error) {
	l, err := local.AsSort()
	if err != nil {
		return operator.PollPull{}, err
	}

	if !l.IsMerger {
		return operator.ExhaustedPull(), nil
	}

	if !s.Global {
		if l.Cursor >= l.Sorted.NumRows() {
			return operator.ExhaustedPull(), nil
		}
		take := int64(s.idealBatchSize())
		if remaining := l.Sorted.NumRows() - l.Cursor; remaining < take {
			take = remaining
		}
		out := l.Sorted.Slice(l.Cursor, take)
		l.Cursor += take
		return operator.BatchOf(out), nil
	}

	if l.MergeCursor == nil {
		g, err := global.AsSort()
		if err != nil {
			return operator.PollPull{}, err
		}
		runs, allDeposited := g.AllRuns()
		if !allDeposited {
			g.RegisterMergerWaker(ctx.Waker())
			return operator.NewPendingPull(), nil
		}
		l.MergeCursor = s.newMergeCursor(runs)
	}

	cursor := l.MergeCursor.(*mergeCursor)
	out, _ := cursor.next(s.idealBatchSize())
	if out.Record() == nil {
		return operator.ExhaustedPull(), nil
	}
	return operator.BatchOf(out), nil
}

// sortBatch returns a new Batch holding b's rows reordered by s.Keys,
// computing the permutation with a comparator built the way
// hashtable.MakeRowEqualityChecker builds per-column comparisons, then
// physically reordering via the "take" kernel rather than a manual
// column-by-column copy loop.
func (s *Sort) sortBatch(b batch.Batch) (batch.Batch, error) {
	numRows := int(b.NumRows())
	if numRows == 0 {
		return b, nil
	}

	cols := make([]arrow.Array, len(s.Keys))
	for i, k := range s.Keys {
		cols[i] = b.Column(k.ColumnIndex)
	}
	cmp := makeMultiKeyComparator(s.Keys, cols, cols)

	perm := make([]int, numRows)
	for i := range perm {
		perm[i] = i
	}
	sort.SliceStable(perm, func(i, j int) bool { return cmp(perm[i], perm[j]) < 0 })

	idx := make([]int64, numRows)
	for i, p := range perm {
		idx[i] = int64(p)
	}
	alloc := s.allocator()
	idxArr, err := buildIndicesArray(alloc, idx)
	if err != nil {
		return batch.Batch{}, err
	}
	defer idxArr.Release()

	rec := b.Record()
	outCols := make([]arrow.Array, rec.NumCols())
	for i := 0; i < int(rec.NumCols()); i++ {
		gathered, err := takeArray(context.Background(), rec.Column(i), idxArr)
		if err != nil {
			return batch.Batch{}, execerrors.Internal("sort: couldn't gather sorted rows", err)
		}
		outCols[i] = gathered
	}
	defer func() {
		for _, c := range outCols {
			c.Release()
		}
	}()

	out := array.NewRecord(s.Schema.Arrow(), outCols, int64(numRows))
	return batch.FromRecord(s.Schema, out), nil
}

// mergeCursor drives the merger partition's k-way merge across every
// deposited run, keeping the run with the next-smallest key at the top
// of a min-heap and emitting picks in idealBatchSize chunks.
type mergeCursor struct {
	schema     batch.Schema
	runRecords []arrow.Record
	heap       *mergeHeap

	bldr      *array.RecordBuilder
	rewriters [][]func(int) // [run][column]
}

func (s *Sort) newMergeCursor(runs []batch.Batch) *mergeCursor {
	c := &mergeCursor{schema: s.schema()}
	c.runRecords = make([]arrow.Record, len(runs))
	runKeyCols := make([][]arrow.Array, len(runs))

	items := make([]mergeHeapItem, 0, len(runs))
	for i, r := range runs {
		c.runRecords[i] = r.Record()
		keyCols := make([]arrow.Array, len(s.Keys))
		for j, k := range s.Keys {
			keyCols[j] = r.Column(k.ColumnIndex)
		}
		runKeyCols[i] = keyCols
		if r.NumRows() > 0 {
			items = append(items, mergeHeapItem{run: i, row: 0})
		}
	}

	h := &mergeHeap{items: items}
	h.less = func(a, b mergeHeapItem) bool {
		return makeMultiKeyComparator(s.Keys, runKeyCols[a.run], runKeyCols[b.run])(a.row, b.row) < 0
	}
	heap.Init(h)
	c.heap = h

	c.bldr = array.NewRecordBuilder(s.allocator(), s.Schema.Arrow())
	numCols := len(c.schema.Fields)
	c.rewriters = make([][]func(int), len(c.runRecords))
	for ri, rec := range c.runRecords {
		c.rewriters[ri] = make([]func(int), numCols)
		for ci := 0; ci < numCols; ci++ {
			c.rewriters[ri][ci] = hashtable.MakeColumnRewriter(c.bldr.Field(ci), rec.Column(ci))
		}
	}
	return c
}

func (s *Sort) schema() batch.Schema { return s.Schema }

// next pops up to chunkSize rows off the heap in sorted order and
// returns the assembled batch plus whether the merge is now fully
// drained.
func (c *mergeCursor) next(chunkSize int) (batch.Batch, bool) {
	if c.heap.Len() == 0 {
		return batch.Batch{}, true
	}

	picked := 0
	for c.heap.Len() > 0 && picked < chunkSize {
		top := heap.Pop(c.heap).(mergeHeapItem)
		for ci := range c.rewriters[top.run] {
			c.rewriters[top.run][ci](top.row)
		}
		picked++

		nextRow := top.row + 1
		if nextRow < int(c.runRecords[top.run].NumRows()) {
			heap.Push(c.heap, mergeHeapItem{run: top.run, row: nextRow})
		}
	}

	rec := c.bldr.NewRecord()
	return batch.FromRecord(c.schema, rec), c.heap.Len() == 0
}

type mergeHeapItem struct {
	run, row int
}

type mergeHeap struct {
	items []mergeHeapItem
	less  func(a, b mergeHeapItem) bool
}

func (h *mergeHeap) Len() int            { return len(h.items) }
func (h *mergeHeap) Less(i, j int) bool  { return h.less(h.items[i], h.items[j]) }
func (h *mergeHeap) Swap(i, j int)       { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *mergeHeap) Push(x interface{})  { h.items = append(h.items, x.(mergeHeapItem)) }
func (h *mergeHeap) Pop() interface{} {
	old := h.items
	n := len(old)
	it := old[n-1]
	h.items = old[:n-1]
	return it
}

// makeMultiKeyComparator compares row leftRow of leftCols against row
// rightRow of rightCols across every sort key in order, returning the
// first nonzero per-key result (or 0 if every key ties).
func makeMultiKeyComparator(keys []SortKey, leftCols, rightCols []arrow.Array) func(leftRow, rightRow int) int {
	comparators := make([]func(l, r int) int, len(keys))
	for i, k := range keys {
		comparators[i] = makeColumnComparator(k, leftCols[i], rightCols[i])
	}
	return func(l, r int) int {
		for _, c := range comparators {
			if v := c(l, r); v != 0 {
				return v
			}
		}
		return 0
	}
}

func makeColumnComparator(key SortKey, a, b arrow.Array) func(aRow, bRow int) int {
	raw := rawColumnComparator(a, b)
	return func(aRow, bRow int) int {
		aNull, bNull := a.IsNull(aRow), b.IsNull(bRow)
		if aNull || bNull {
			switch {
			case aNull && bNull:
				return 0
			case aNull:
				if key.NullsFirst {
					return -1
				}
				return 1
			default:
				if key.NullsFirst {
					return 1
				}
				return -1
			}
		}
		c := raw(aRow, bRow)
		if key.Descending {
			return -c
		}
		return c
	}
}

// rawColumnComparator compares non-null values of a and b, which must
// share a data type. Covers the engine's closed LogicalType set.
func rawColumnComparator(a, b arrow.Array) func(aRow, bRow int) int {
	switch a.DataType().ID() {
	case arrow.INT16:
		at, bt := a.(*array.Int16).Int16Values(), b.(*array.Int16).Int16Values()
		return func(i, j int) int { return compareInt64(int64(at[i]), int64(bt[j])) }
	case arrow.INT32:
		at, bt := a.(*array.Int32).Int32Values(), b.(*array.Int32).Int32Values()
		return func(i, j int) int { return compareInt64(int64(at[i]), int64(bt[j])) }
	case arrow.INT64:
		at, bt := a.(*array.Int64).Int64Values(), b.(*array.Int64).Int64Values()
		return func(i, j int) int { return compareInt64(at[i], bt[j]) }
	case arrow.FLOAT32:
		at, bt := a.(*array.Float32).Float32Values(), b.(*array.Float32).Float32Values()
		return func(i, j int) int { return compareFloat64(float64(at[i]), float64(bt[j])) }
	case arrow.FLOAT64:
		at, bt := a.(*array.Float64).Float64Values(), b.(*array.Float64).Float64Values()
		return func(i, j int) int { return compareFloat64(at[i], bt[j]) }
	case arrow.BOOL:
		at, bt := a.(*array.Boolean), b.(*array.Boolean)
		return func(i, j int) int {
			av, bv := at.Value(i), bt.Value(j)
			if av == bv {
				return 0
			}
			if !av {
				return -1
			}
			return 1
		}
	case arrow.STRING:
		at, bt := a.(*array.String), b.(*array.String)
		return func(i, j int) int { return strings.Compare(at.Value(i), bt.Value(j)) }
	default:
		panic(execerrors.Internalf("sort: unsupported key column type %s", a.DataType()))
	}
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareFloat64(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
