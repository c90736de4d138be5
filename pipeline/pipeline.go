// Package pipeline implements spec.md §4.4's Partition Pipeline: the
// single-threaded state machine that walks one partition's worth of a
// linear operator chain from source to sink, and the shared Pipeline
// shape every partition of that chain walks identically.
package pipeline

import (
	"github.com/vecql/engine/execerrors"
	"github.com/vecql/engine/operator"
	"github.com/vecql/engine/state"
)

// Stage binds one operator into a Pipeline's chain: which of its
// logical inputs this chain feeds (ignored for Stage 0, which is
// pulled rather than pushed), and the Global and Local State shared by
// every partition — and every other Pipeline — touching this same
// operator instance. Global is built once by the caller (InitGlobal is
// called exactly once per operator across a whole query plan, never
// per Pipeline); Locals, one LocalState per partition, for the same
// reason: a pipeline-breaker (a join, an aggregate) is typically the
// terminal stage of one or two upstream Pipelines and the source stage
// of exactly one downstream Pipeline, and the two PartitionPipelines
// driving those roles for the same partition must hand data across
// through the exact same LocalState value, not two independently
// InitLocal'd copies.
type Stage struct {
	Op     operator.Operator
	Input  int
	Global state.GlobalState
	Locals []state.LocalState
}

// Pipeline is the immutable shape shared by every partition: an
// ordered chain where Stages[0] is pulled (the chain's producer — a
// true source, or another operator's output phase) and Stages[1:] are
// pushed in order. Per spec.md §9's ambiguity 2, partition-count
// agreement across the whole chain is enforced once here rather than
// discovered later by the scheduler: every stage must declare the same
// partition count as Stages[0]'s output, an Exchange being the only
// operator allowed to change it — which it does by being the terminal
// stage of one Pipeline and Stage 0 of the next, never spanning both
// roles within one Pipeline.
//
// Only stateless single-buffer transforms (Filter, Projection, Limit)
// may appear as a non-terminal Stage: the chain's "continue the sweep"
// step pulls at most one buffered output per successful push, which
// those operators satisfy by construction. Stateful operators
// (HashAggregate, HashJoin, NestedLoopJoin, Sort, Exchange) are always
// either Stage 0 or the last stage of whichever Pipelines touch them —
// a planner-level precondition, not something enforced at runtime
// here.
type Pipeline struct {
	Stages     []Stage
	Partitions int
}

// NewPipeline validates and wraps stages into a Pipeline.
func NewPipeline(stages []Stage) (*Pipeline, error) {
	if len(stages) == 0 {
		return nil, execerrors.Internalf("pipeline: a pipeline needs at least one stage")
	}
	partitions := stages[0].Op.NumOutputPartitions()
	if len(stages[0].Locals) < partitions {
		return nil, execerrors.Internalf(
			"pipeline: stage 0 has %d Locals entries, but the chain carries %d partitions",
			len(stages[0].Locals), partitions)
	}
	for i := 1; i < len(stages); i++ {
		want, err := stages[i].Op.NumInputPartitions(stages[i].Input)
		if err != nil {
			return nil, err
		}
		if want != partitions {
			return nil, execerrors.Internalf(
				"pipeline: stage %d expects %d input partitions on input %d, but the chain carries %d",
				i, want, stages[i].Input, partitions)
		}
		// >= rather than ==: a repartitioning pipeline-breaker (e.g.
		// HashAggregate with InputPartitions != OutputPartitions) is
		// built with one Locals slice sized to the larger of its two
		// partition counts, shared across both the Pipeline that feeds
		// it and the Pipeline that drains it — each only ever indexes
		// the prefix matching its own partition count.
		if len(stages[i].Locals) < partitions {
			return nil, execerrors.Internalf(
				"pipeline: stage %d has %d Locals entries, but the chain carries %d partitions",
				i, len(stages[i].Locals), partitions)
		}
	}
	return &Pipeline{Stages: stages, Partitions: partitions}, nil
}

// NewOperatorState calls op.InitGlobal exactly once. Callers building a
// multi-Pipeline plan call this once per distinct operator instance and
// reuse the returned value across every Stage referencing that
// operator, so Global State is never duplicated across Pipelines.
func NewOperatorState(op operator.Operator) (state.GlobalState, error) {
	return op.InitGlobal()
}

// NewOperatorLocals calls op.InitLocal exactly once per partition in
// [0, partitions). Like NewOperatorState, callers build this once per
// distinct operator instance — using that operator's partition count
// within the overall plan, which every Pipeline referencing it agrees
// on by construction (NewPipeline's partition-count check) — and reuse
// the returned slice across every Stage referencing that operator.
func NewOperatorLocals(op operator.Operator, partitions int) ([]state.LocalState, error) {
	locals := make([]state.LocalState, partitions)
	for p := 0; p < partitions; p++ {
		l, err := op.InitLocal(p)
		if err != nil {
			return nil, err
		}
		locals[p] = l
	}
	return locals, nil
}
