package state

import (
	"sync"
	"sync/atomic"

	"github.com/vecql/engine/batch"
)

// HashJoinLocal is the per-partition state for a HashJoin operator,
// shared by both its inputs: input 0 (build) appends to BuildBatches
// with no locking; input 1 (probe) uses BuildSnapshot (copied once
// from the finalized Global table) and buffers join output in Output
// until poll_pull drains it.
type HashJoinLocal struct {
	// Build side (input 0).
	BuildBatches []batch.Batch

	// Probe side (input 1).
	BuildSnapshot      any // *hashtable.JoinTable once snapshotted
	Output             []batch.Batch
	ProbeInputFinished bool
	PullWaker          Waker // registered by poll_pull when Output is empty
}

// HashJoinGlobal is the shared build-completion barrier: every build
// partition's finish() appends its batches here under mu, and the
// partition that observes RemainingBuilders reach zero finalizes the
// join table and wakes every registered probe waker exactly once.
type HashJoinGlobal struct {
	mu                sync.Mutex
	buildBatches      []batch.Batch
	remainingBuilders atomic.Int32
	probeWakers       []Waker

	ready bool // guarded by mu
	Table any   // *operators.JoinTable, set exactly once after ready flips true
}

func NewHashJoinGlobal(buildPartitions int) *HashJoinGlobal {
	g := &HashJoinGlobal{}
	g.remainingBuilders.Store(int32(buildPartitions))
	return g
}

// AppendBuild merges one build partition's batches into the shared
// accumulation. Call only from finish(0, p).
func (g *HashJoinGlobal) AppendBuild(batches []batch.Batch) {
	g.mu.Lock()
	g.buildBatches = append(g.buildBatches, batches...)
	g.mu.Unlock()
}

// FinishBuilder decrements the remaining-builder count, returning
// (allBuildBatches, true) exactly once — to the partition whose
// finish() observes the count reach zero, so it alone finalizes the
// table and wakes every probe waker.
func (g *HashJoinGlobal) FinishBuilder() (batches []batch.Batch, last bool) {
	if g.remainingBuilders.Add(-1) != 0 {
		return nil, false
	}
	g.mu.Lock()
	batches = g.buildBatches
	g.mu.Unlock()
	return batches, true
}

// MarkReady stores the finalized join table and wakes every
// previously-registered probe waker. Called exactly once, by the last
// builder's finish().
func (g *HashJoinGlobal) MarkReady(table any) {
	g.mu.Lock()
	g.Table = table
	g.ready = true
	wakers := g.probeWakers
	g.probeWakers = nil
	g.mu.Unlock()
	for _, w := range wakers {
		w.Wake()
	}
}

// Ready reports whether the build side has finished and Table is safe
// to read.
func (g *HashJoinGlobal) Ready() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ready
}

// RegisterProbeWaker registers w to be woken by MarkReady. If the
// table is already ready by the time this is called, it wakes w
// immediately instead of losing the registration in a race.
func (g *HashJoinGlobal) RegisterProbeWaker(w Waker) {
	g.mu.Lock()
	if g.ready {
		g.mu.Unlock()
		w.Wake()
		return
	}
	g.probeWakers = append(g.probeWakers, w)
	g.mu.Unlock()
}
