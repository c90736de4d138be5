package state

import (
	"sync"
	"sync/atomic"

	"github.com/vecql/engine/batch"
)

// SortLocal is the per-partition state for a Sort operator: batches
// accumulate here until finish(), at which point they are
// concatenated and sorted in place. If the plan demands a global
// sort, every partition but the designated merger then reports
// Exhausted immediately and IsMerger distinguishes the one partition
// that streams the final merged output.
type SortLocal struct {
	Collected []batch.Batch

	Sorted batch.Batch
	Cursor int64
	Ready  bool

	IsMerger    bool
	MergeCursor any // merger-only: *operators.mergeCursor once runs are all deposited
}

// SortGlobal collects one sorted run per partition when a global sort
// is required; the designated merger partition's poll_pull performs
// the k-way merge once every run has been deposited.
type SortGlobal struct {
	mu          sync.Mutex
	runs        []batch.Batch
	remaining   atomic.Int32
	mergerWaker Waker
}

func NewSortGlobal(partitions int) *SortGlobal {
	g := &SortGlobal{}
	g.remaining.Store(int32(partitions))
	return g
}

// DepositRun adds partition's sorted run and, if it was the last
// expected run, wakes the merger. The decrement and the waker handoff
// happen under the same lock as RegisterMergerWaker's check, so a
// merger that registers concurrently with the last deposit can never
// miss its wake.
func (g *SortGlobal) DepositRun(run batch.Batch) {
	g.mu.Lock()
	g.runs = append(g.runs, run)
	last := g.remaining.Add(-1) == 0
	var w Waker
	if last {
		w = g.mergerWaker
		g.mergerWaker = nil
	}
	g.mu.Unlock()
	if w != nil {
		w.Wake()
	}
}

// AllRuns returns every deposited run plus whether every partition has
// deposited.
func (g *SortGlobal) AllRuns() ([]batch.Batch, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	runs := make([]batch.Batch, len(g.runs))
	copy(runs, g.runs)
	return runs, g.remaining.Load() == 0
}

// RegisterMergerWaker registers w to be woken once every run is
// deposited. If that has already happened by the time this is called,
// it wakes w immediately instead of losing the registration in a race
// with DepositRun.
func (g *SortGlobal) RegisterMergerWaker(w Waker) {
	g.mu.Lock()
	if g.remaining.Load() == 0 {
		g.mu.Unlock()
		w.Wake()
		return
	}
	g.mergerWaker = w
	g.mu.Unlock()
}
