package pipeline

import (
	"github.com/vecql/engine/batch"
	"github.com/vecql/engine/execerrors"
	"github.com/vecql/engine/operator"
	"github.com/vecql/engine/state"
)

// Status is the four-valued result of one Advance call.
type Status int

const (
	// MadeProgress: one batch was carried as far as it could go this
	// call (through the terminal stage, or into a Pending stash at an
	// intermediate one). Call Advance again to keep going.
	MadeProgress Status = iota
	// Pending: every stage that could run is blocked on a registered
	// waker. The caller should stop scheduling this handle until woken.
	Pending
	// Finished: the source is exhausted (or a Break cut the chain
	// short) and every stage's Finish has run. Terminal.
	Finished
	// Failed: an operator returned an error, or the query was
	// cancelled. Terminal.
	Failed
)

// Result is the return value of Advance. Batch is only meaningful for
// a MadeProgress result from a single-stage Pipeline — the case where
// Stage 0 has nothing within this chain to push into and its output is
// this Pipeline's own externally visible result (the query's root
// pipeline, or a bridge reading a pipeline-breaker's output phase for
// an external driver to consume). A multi-stage Pipeline's last stage
// is always reached by push, never by pull, from this chain — some
// other Pipeline owns pulling it — so Batch is empty there.
type Result struct {
	Status Status
	Batch  batch.Batch
	Err    error
}

func madeProgress() Result          { return Result{Status: MadeProgress} }
func madeProgressWith(b batch.Batch) Result { return Result{Status: MadeProgress, Batch: b} }
func pendingResult() Result         { return Result{Status: Pending} }
func finishedResult() Result        { return Result{Status: Finished} }
func failedResult(err error) Result { return Result{Status: Failed, Err: err} }

// PartitionPipeline is one partition's walk of a Pipeline's chain: the
// state machine described in spec.md §4.4. It is single-threaded — the
// scheduler never runs two Advance calls for the same handle
// concurrently, and never runs Advance again after a terminal Result —
// so no locking happens here; all cross-partition coordination lives
// behind the Global State the operators share.
type PartitionPipeline struct {
	pipeline  *Pipeline
	partition int

	done <-chan struct{}
	wake func()

	// haveCarry/carry: the batch currently in hand, if any.
	// pullFrom: the stage whose output feeds the next push (0 is the
	// chain's producer, pulled rather than pushed).
	// pushTo: pullFrom+1 once a carry is in hand — the stage the carry
	// is being pushed into.
	haveCarry bool
	carry     batch.Batch
	pullFrom  int
	pushTo    int

	// finishFrom: the first stage in [1, len(stages)) that has not yet
	// had Finish called on it. Stage 0 is never finished — it has no
	// input of its own within this chain.
	finishFrom int

	terminal     bool // Finished or Failed already returned once
	terminalResult Result
}

// NewPartitionPipeline builds a PartitionPipeline for one partition of
// p. Each stage's LocalState for this partition comes from
// Stage.Locals[partition] — already built once per operator instance
// by the caller (see NewOperatorLocals) — rather than being freshly
// InitLocal'd here, so a stage shared with another Pipeline (a
// pipeline-breaker acting as both a terminal push target and a
// downstream pull source) sees the same LocalState value in both
// places. done is closed on query cancellation; wake is called by a
// registered Waker to ask the scheduler to re-run Advance for this
// handle.
func NewPartitionPipeline(p *Pipeline, partition int, done <-chan struct{}, wake func()) (*PartitionPipeline, error) {
	if partition < 0 || partition >= p.Partitions {
		return nil, execerrors.Internalf("pipeline: partition %d out of range [0, %d)", partition, p.Partitions)
	}
	return &PartitionPipeline{
		pipeline:   p,
		partition:  partition,
		done:       done,
		wake:       wake,
		pullFrom:   0,
		finishFrom: 1,
	}, nil
}

// local returns stage i's LocalState for this partition.
func (pp *PartitionPipeline) local(i int) state.LocalState {
	return pp.pipeline.Stages[i].Locals[pp.partition]
}

func (pp *PartitionPipeline) context() operator.Context {
	return operator.NewContext(pp.done, func() *operator.Waker {
		return operator.NewWaker(pp.wake)
	})
}

func (pp *PartitionPipeline) cancelled() bool {
	select {
	case <-pp.done:
		return true
	default:
		return false
	}
}

// Advance runs one step of the state machine, per spec.md §4.4: pull a
// batch from the source, push it through each downstream stage in
// order, stopping to report Pending wherever an operator isn't ready
// yet, and cascading Finish across the chain once the source is
// exhausted (or a Break cuts it short).
func (pp *PartitionPipeline) Advance() Result {
	if pp.terminal {
		return pp.terminalResult
	}
	if pp.cancelled() {
		return pp.terminate(failedResult(execerrors.Cancelled))
	}

	stages := pp.pipeline.Stages
	ctx := pp.context()

	for {
		if !pp.haveCarry {
			src := stages[pp.pullFrom]
			res, err := src.Op.PollPull(ctx, pp.local(pp.pullFrom), src.Global, pp.partition)
			if err != nil {
				return pp.terminate(failedResult(err))
			}
			switch res.Status {
			case operator.PendingPull:
				return pendingResult()
			case operator.Exhausted:
				if pp.pullFrom != pp.finishFrom-1 {
					return pp.terminate(failedResult(execerrors.Internalf(
						"pipeline: stage %d exhausted mid-chain", pp.pullFrom)))
				}
				return pp.runFinishCascade(len(stages))
			case operator.BatchReady:
				if pp.pullFrom+1 >= len(stages) {
					// Stage pullFrom is this chain's last stage and
					// there is nothing downstream of it to push into:
					// its output IS this Pipeline's result, for the
					// caller to consume directly (see Result.Batch).
					return madeProgressWith(res.Batch)
				}
				pp.carry = res.Batch
				pp.haveCarry = true
				pp.pushTo = pp.pullFrom + 1
			}
		}

		dst := stages[pp.pushTo]
		res, err := dst.Op.PollPush(ctx, pp.local(pp.pushTo), dst.Global, pp.carry, dst.Input, pp.partition)
		if err != nil {
			return pp.terminate(failedResult(err))
		}
		switch res.Status {
		case operator.PendingPush:
			return pendingResult()
		case operator.Break:
			if err := dst.Op.Finish(pp.local(pp.pushTo), dst.Global, dst.Input, pp.partition); err != nil {
				return pp.terminate(failedResult(err))
			}
			pp.finishFrom = pp.pushTo + 1
			pp.haveCarry = false
			if pp.pushTo == len(stages)-1 {
				return pp.runFinishCascade(len(stages))
			}
			// A non-terminal stage that breaks (Limit) may still hold
			// output for rows it accepted: from here on it is this
			// chain's producer, pulled until it reports Exhausted.
			pp.pullFrom = pp.pushTo
		case operator.Pushed:
			pp.haveCarry = false
			if pp.pushTo == len(stages)-1 {
				// Pushed into this chain's sink stage. Its own output,
				// if any, belongs to a different Pipeline (one where
				// it is Stage 0) — pulling it here would race that
				// Pipeline's own Advance calls on the same partition.
				pp.pullFrom = pp.finishFrom - 1
				return madeProgress()
			}
			pp.pullFrom = pp.pushTo
		}
	}
}

// runFinishCascade calls Finish on every stage in [finishFrom, upto)
// that hasn't had it called yet, in order, then transitions this
// PartitionPipeline to Finished.
func (pp *PartitionPipeline) runFinishCascade(upto int) Result {
	stages := pp.pipeline.Stages
	for ; pp.finishFrom < upto; pp.finishFrom++ {
		st := stages[pp.finishFrom]
		if err := st.Op.Finish(pp.local(pp.finishFrom), st.Global, st.Input, pp.partition); err != nil {
			return pp.terminate(failedResult(err))
		}
	}
	return pp.terminate(finishedResult())
}

func (pp *PartitionPipeline) terminate(r Result) Result {
	pp.terminal = true
	pp.terminalResult = r
	return r
}
