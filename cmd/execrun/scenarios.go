package main

import (
	"context"
	"fmt"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"
	"github.com/apache/arrow/go/v13/arrow/memory"
	"github.com/apache/arrow/go/v13/arrow/scalar"

	"github.com/vecql/engine/batch"
	"github.com/vecql/engine/operator"
	"github.com/vecql/engine/operators"
	"github.com/vecql/engine/pipeline"
	"github.com/vecql/engine/scheduler"
	"github.com/vecql/engine/state"
)

var alloc = memory.DefaultAllocator

func int64Batch(schema batch.Schema, values ...int64) batch.Batch {
	b := array.NewInt64Builder(alloc)
	b.AppendValues(values, nil)
	arr := b.NewArray()
	b.Release()
	defer arr.Release()

	out, err := batch.New(schema, []arrow.Array{arr})
	if err != nil {
		panic(err)
	}
	return out
}

func stringKeyValueBatch(schema batch.Schema, keys []string, values []int64) batch.Batch {
	kb := array.NewStringBuilder(alloc)
	kb.AppendValues(keys, nil)
	ka := kb.NewArray()
	kb.Release()
	defer ka.Release()

	vb := array.NewInt64Builder(alloc)
	vb.AppendValues(values, nil)
	va := vb.NewArray()
	vb.Release()
	defer va.Release()

	out, err := batch.New(schema, []arrow.Array{ka, va})
	if err != nil {
		panic(err)
	}
	return out
}

// op is the subset of operator.Operator buildChain needs to assemble a
// Stage for one operator in a linear chain.
type op = operator.Operator

// buildChain builds a single Pipeline's Stages for a linear run of
// operators sharing one partition count: a source (Stage 0, pulled),
// zero or more stateless/globally-coordinated transforms, and a
// terminal sink (pushed). Initializes each operator's Global/Local
// State exactly once via pipeline.NewOperatorState/NewOperatorLocals,
// the discipline every multi-Pipeline plan in this package follows
// even where, as here, one Pipeline is the whole plan.
func buildChain(partitions int, ops ...op) ([]pipeline.Stage, error) {
	stages := make([]pipeline.Stage, len(ops))
	for i, o := range ops {
		global, err := pipeline.NewOperatorState(o)
		if err != nil {
			return nil, err
		}
		locals, err := pipeline.NewOperatorLocals(o, partitions)
		if err != nil {
			return nil, err
		}
		stages[i] = pipeline.Stage{Op: o, Input: 0, Global: global, Locals: locals}
	}
	return stages, nil
}

// runChain runs one single-Pipeline chain to completion across every
// partition, via a real Scheduler.
func runChain(ctx context.Context, workers, partitions int, ops ...op) error {
	stages, err := buildChain(partitions, ops...)
	if err != nil {
		return err
	}
	p, err := pipeline.NewPipeline(stages)
	if err != nil {
		return err
	}
	tasks := make([]scheduler.Task, partitions)
	for part := range tasks {
		tasks[part] = scheduler.Task{Pipeline: p, Partition: part}
	}
	s, err := scheduler.New(ctx, tasks, workers)
	if err != nil {
		return err
	}
	return s.Run()
}

// runPipelines runs several independently-partitioned Pipelines
// (stages already built, and sharing State across Pipelines where an
// operator spans more than one of them) as one Scheduler batch — the
// shape a pipeline-breaker's build/final split needs.
func runPipelines(ctx context.Context, workers int, pipelines ...[]pipeline.Stage) error {
	var tasks []scheduler.Task
	for _, stages := range pipelines {
		p, err := pipeline.NewPipeline(stages)
		if err != nil {
			return err
		}
		for part := 0; part < p.Partitions; part++ {
			tasks = append(tasks, scheduler.Task{Pipeline: p, Partition: part})
		}
	}
	s, err := scheduler.New(ctx, tasks, workers)
	if err != nil {
		return err
	}
	return s.Run()
}

func printInt64Column(batches []batch.Batch, colIndex int, label string) {
	var values []int64
	for _, b := range batches {
		col := b.Column(colIndex).(*array.Int64)
		for i := 0; i < col.Len(); i++ {
			values = append(values, col.Value(i))
		}
	}
	fmt.Printf("%s: %v\n", label, values)
}

// runFilterProjection is spec.md §8 scenario S1: Scan -> Filter(x>2) ->
// Project(x*10) over one batch of 5 rows, expecting [30,40,50].
func runFilterProjection(ctx context.Context) error {
	inSchema := batch.NewSchema([]batch.Field{{Name: "x", Type: batch.Int64}})
	outSchema := batch.NewSchema([]batch.Field{{Name: "x10", Type: batch.Int64}})

	producer := operators.NewSliceProducer([][]batch.Batch{
		{int64Batch(inSchema, 1, 2, 3, 4, 5)},
	})
	scan := &operators.TableScan{OutputSchema: inSchema, Source: producer}
	filter := &operators.Filter{
		InputSchema:  inSchema,
		OutputSchema: inSchema,
		Partitions:   1,
		Predicate: &operators.BinaryFunc{
			Kernel: "greater",
			Left:   &operators.ColumnRef{Index: 0},
			Right:  &operators.Literal{Value: scalar.NewInt64Scalar(2)},
		},
	}
	project := &operators.Projection{
		OutputSchema: outSchema,
		Partitions:   1,
		Exprs: []operators.Expression{
			&operators.BinaryFunc{
				Kernel: "multiply",
				Left:   &operators.ColumnRef{Index: 0},
				Right:  &operators.Literal{Value: scalar.NewInt64Scalar(10)},
			},
		},
	}
	sink := &operators.Collector{Partitions: 1}

	if err := runChain(ctx, 2, 1, scan, filter, project, sink); err != nil {
		return err
	}
	printInt64Column(sink.Batches(), 0, "filter-projection")
	return nil
}

// runLimit is spec.md §8 scenario S4: 1000 rows across 8 partitions,
// Limit 10, expecting exactly 10 output rows total.
func runLimit(ctx context.Context) error {
	schema := batch.NewSchema([]batch.Field{{Name: "x", Type: batch.Int64}})
	partitions := 8

	perPartition := make([][]batch.Batch, partitions)
	n := int64(0)
	for p := 0; p < partitions; p++ {
		values := make([]int64, 125)
		for i := range values {
			values[i] = n
			n++
		}
		perPartition[p] = []batch.Batch{int64Batch(schema, values...)}
	}

	producer := operators.NewSliceProducer(perPartition)
	scan := &operators.TableScan{OutputSchema: schema, Source: producer}
	limit := &operators.Limit{Schema: schema, Partitions: partitions, Offset: 0, K: 10}
	sink := &operators.Collector{Partitions: partitions}

	if err := runChain(ctx, 4, partitions, scan, limit, sink); err != nil {
		return err
	}
	got := sink.Batches()
	var total int64
	for _, b := range got {
		total += b.NumRows()
	}
	printInt64Column(got, 0, "limit")
	fmt.Printf("limit: %d total rows kept across %d partitions\n", total, partitions)
	return nil
}

// runSort is spec.md §8 scenario S5: shuffled integers across 4
// partitions, Sort ASC, globally merged by one designated partition.
func runSort(ctx context.Context) error {
	schema := batch.NewSchema([]batch.Field{{Name: "v", Type: batch.Int64}})

	producer := operators.NewSliceProducer([][]batch.Batch{
		{int64Batch(schema, 9, 3)},
		{int64Batch(schema, 7, 1)},
		{int64Batch(schema, 5, 2)},
		{int64Batch(schema, 8, 4, 6)},
	})
	scan := &operators.TableScan{OutputSchema: schema, Source: producer}
	sort := &operators.Sort{
		Schema:          schema,
		Keys:            []operators.SortKey{{ColumnIndex: 0}},
		Partitions:      4,
		Global:          true,
		MergerPartition: 0,
	}
	sink := &operators.Collector{Partitions: 4}

	if err := runChain(ctx, 4, 4, scan, sort, sink); err != nil {
		return err
	}
	printInt64Column(sink.Batches(), 0, "sort")
	return nil
}

// runHashAggregate is spec.md §8 scenario S2: keys across 4 partitions
// grouped and summed, repartitioned down to 2 output partitions on the
// way to the final merge phase — deliberately InputPartitions !=
// OutputPartitions, the shape that drove pipeline.NewPipeline's
// Locals-length check from an exact match to a minimum.
func runHashAggregate(ctx context.Context) error {
	inSchema := batch.NewSchema([]batch.Field{
		{Name: "key", Type: batch.Utf8},
		{Name: "value", Type: batch.Int64},
	})
	outSchema := batch.NewSchema([]batch.Field{
		{Name: "key", Type: batch.Utf8},
		{Name: "sum", Type: batch.Int64},
	})

	producer := operators.NewSliceProducer([][]batch.Batch{
		{stringKeyValueBatch(inSchema, []string{"a", "a"}, []int64{1, 2})},
		{stringKeyValueBatch(inSchema, []string{"b", "a"}, []int64{3, 4})},
		{stringKeyValueBatch(inSchema, []string{"b", "c"}, []int64{5, 6})},
		{stringKeyValueBatch(inSchema, []string{"c", "a"}, []int64{7, 8})},
	})
	scan := &operators.TableScan{OutputSchema: inSchema, Source: producer}

	agg := &operators.HashAggregate{
		InputSchema:      inSchema,
		OutputSchema:     outSchema,
		KeyIndices:       []int{0},
		AggIndices:       []int{1},
		AggKinds:         []operators.AggregateKind{operators.AggregateSum},
		InputPartitions:  4,
		OutputPartitions: 2,
	}

	localPhase, err := buildChain(4, scan, agg)
	if err != nil {
		return err
	}
	// Share agg's Global/Local State across both Pipelines: InitLocal
	// builds enough slots for the larger of the two partition counts.
	aggGlobal := localPhase[1].Global
	aggLocals := localPhase[1].Locals

	sink := &operators.Collector{Partitions: 2}
	sinkGlobal, err := pipeline.NewOperatorState(sink)
	if err != nil {
		return err
	}
	sinkLocals, err := pipeline.NewOperatorLocals(sink, 2)
	if err != nil {
		return err
	}
	finalPhase := []pipeline.Stage{
		{Op: agg, Input: 0, Global: aggGlobal, Locals: aggLocals},
		{Op: sink, Input: 0, Global: sinkGlobal, Locals: sinkLocals},
	}

	if err := runPipelines(ctx, 4, localPhase, finalPhase); err != nil {
		return err
	}

	var keys []string
	var sums []int64
	for _, b := range sink.Batches() {
		keyCol := b.Column(0).(*array.String)
		sumCol := b.Column(1).(*array.Int64)
		for i := 0; int64(i) < b.NumRows(); i++ {
			keys = append(keys, keyCol.Value(i))
			sums = append(sums, sumCol.Value(i))
		}
	}
	fmt.Printf("hash-aggregate keys: %v\n", keys)
	fmt.Printf("hash-aggregate sums: %v\n", sums)
	return nil
}

// runHashJoin is spec.md §8 scenario S3: a 3-row build side and a
// 4-row probe side, inner-joined on key, one partition each for
// simplicity.
func runHashJoin(ctx context.Context) error {
	buildSchema := batch.NewSchema([]batch.Field{
		{Name: "key", Type: batch.Int64},
		{Name: "label", Type: batch.Utf8},
	})
	probeSchema := batch.NewSchema([]batch.Field{
		{Name: "key", Type: batch.Int64},
		{Name: "tag", Type: batch.Utf8},
	})
	outSchema := batch.NewSchema([]batch.Field{
		{Name: "build_key", Type: batch.Int64},
		{Name: "label", Type: batch.Utf8},
		{Name: "probe_key", Type: batch.Int64},
		{Name: "tag", Type: batch.Utf8},
	})

	buildProducer := operators.NewSliceProducer([][]batch.Batch{
		{intStringBatch(buildSchema, []int64{1, 2, 3}, []string{"x", "y", "z"})},
	})
	probeProducer := operators.NewSliceProducer([][]batch.Batch{
		{intStringBatch(probeSchema, []int64{2, 1, 4, 2}, []string{"P", "Q", "R", "S"})},
	})

	join := &operators.HashJoin{
		BuildSchema:     buildSchema,
		ProbeSchema:     probeSchema,
		OutputSchema:    outSchema,
		BuildKeyIndices: []int{0},
		ProbeKeyIndices: []int{0},
		BuildIsLeftSide: true,
		BuildPartitions: 1,
		ProbePartitions: 1,
	}
	joinGlobal, err := pipeline.NewOperatorState(join)
	if err != nil {
		return err
	}
	joinLocals, err := pipeline.NewOperatorLocals(join, 1)
	if err != nil {
		return err
	}

	buildScan := &operators.TableScan{OutputSchema: buildSchema, Source: buildProducer}
	buildScanGlobal, buildScanLocals, err := initOp(buildScan, 1)
	if err != nil {
		return err
	}
	buildPipeline := []pipeline.Stage{
		{Op: buildScan, Global: buildScanGlobal, Locals: buildScanLocals},
		{Op: join, Input: 0, Global: joinGlobal, Locals: joinLocals},
	}

	probeScan := &operators.TableScan{OutputSchema: probeSchema, Source: probeProducer}
	probeScanGlobal, probeScanLocals, err := initOp(probeScan, 1)
	if err != nil {
		return err
	}
	probePipeline := []pipeline.Stage{
		{Op: probeScan, Global: probeScanGlobal, Locals: probeScanLocals},
		{Op: join, Input: 1, Global: joinGlobal, Locals: joinLocals},
	}

	sink := &operators.Collector{Partitions: 1}
	sinkGlobal, sinkLocals, err := initOp(sink, 1)
	if err != nil {
		return err
	}
	outputPipeline := []pipeline.Stage{
		{Op: join, Global: joinGlobal, Locals: joinLocals},
		{Op: sink, Input: 0, Global: sinkGlobal, Locals: sinkLocals},
	}

	if err := runPipelines(ctx, 4, buildPipeline, probePipeline, outputPipeline); err != nil {
		return err
	}

	var buildKeys, probeKeys []int64
	for _, b := range sink.Batches() {
		bk := b.Column(0).(*array.Int64)
		pk := b.Column(2).(*array.Int64)
		for i := 0; int64(i) < b.NumRows(); i++ {
			buildKeys = append(buildKeys, bk.Value(i))
			probeKeys = append(probeKeys, pk.Value(i))
		}
	}
	fmt.Printf("hash-join build keys: %v\n", buildKeys)
	fmt.Printf("hash-join probe keys: %v\n", probeKeys)
	return nil
}

func intStringBatch(schema batch.Schema, keys []int64, labels []string) batch.Batch {
	kb := array.NewInt64Builder(alloc)
	kb.AppendValues(keys, nil)
	ka := kb.NewArray()
	kb.Release()
	defer ka.Release()

	lb := array.NewStringBuilder(alloc)
	lb.AppendValues(labels, nil)
	la := lb.NewArray()
	lb.Release()
	defer la.Release()

	out, err := batch.New(schema, []arrow.Array{ka, la})
	if err != nil {
		panic(err)
	}
	return out
}

// initOp is pipeline.NewOperatorState + NewOperatorLocals in one call,
// for callers building Stages by hand instead of via buildChain —
// needed whenever an operator instance spans more than one Pipeline,
// since buildChain only ever builds one Pipeline's worth of Stages.
func initOp(o op, partitions int) (state.GlobalState, []state.LocalState, error) {
	global, err := pipeline.NewOperatorState(o)
	if err != nil {
		return state.GlobalState{}, nil, err
	}
	locals, err := pipeline.NewOperatorLocals(o, partitions)
	if err != nil {
		return state.GlobalState{}, nil, err
	}
	return global, locals, nil
}
