package state

import (
	"sync"
	"sync/atomic"

	"github.com/vecql/engine/batch"
)

// NestedLoopJoinLocal mirrors HashJoinLocal but the probe side
// compares every build row against every probe row instead of hashing
// — no JoinTable, just the raw accumulated build batches.
type NestedLoopJoinLocal struct {
	BuildBatches []batch.Batch

	BuildSnapshot      []batch.Batch
	Output             []batch.Batch
	ProbeInputFinished bool
	PullWaker          Waker
}

// NestedLoopJoinGlobal is the build-completion barrier, structurally
// identical to HashJoinGlobal but storing plain batches as the
// finalized build side rather than a hash table.
type NestedLoopJoinGlobal struct {
	mu                sync.Mutex
	buildBatches      []batch.Batch
	remainingBuilders atomic.Int32
	probeWakers       []Waker
	ready             bool
}

func NewNestedLoopJoinGlobal(buildPartitions int) *NestedLoopJoinGlobal {
	g := &NestedLoopJoinGlobal{}
	g.remainingBuilders.Store(int32(buildPartitions))
	return g
}

func (g *NestedLoopJoinGlobal) AppendBuild(batches []batch.Batch) {
	g.mu.Lock()
	g.buildBatches = append(g.buildBatches, batches...)
	g.mu.Unlock()
}

func (g *NestedLoopJoinGlobal) FinishBuilder() (batches []batch.Batch, last bool) {
	if g.remainingBuilders.Add(-1) != 0 {
		return nil, false
	}
	g.mu.Lock()
	batches = g.buildBatches
	g.mu.Unlock()
	return batches, true
}

func (g *NestedLoopJoinGlobal) MarkReady() {
	g.mu.Lock()
	g.ready = true
	wakers := g.probeWakers
	g.probeWakers = nil
	g.mu.Unlock()
	for _, w := range wakers {
		w.Wake()
	}
}

func (g *NestedLoopJoinGlobal) Ready() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ready
}

func (g *NestedLoopJoinGlobal) BuildBatchesSnapshot() []batch.Batch {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.buildBatches
}

func (g *NestedLoopJoinGlobal) RegisterProbeWaker(w Waker) {
	g.mu.Lock()
	if g.ready {
		g.mu.Unlock()
		w.Wake()
		return
	}
	g.probeWakers = append(g.probeWakers, w)
	g.mu.Unlock()
}
