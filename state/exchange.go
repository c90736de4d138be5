package state

import (
	"sync"
	"sync/atomic"

	"github.com/vecql/engine/batch"
)

// ExchangeLocal carries no persistent data: push-side partitions pick
// a destination per row/batch and deposit directly into
// ExchangeGlobal; pull-side partitions read their own destination
// queue directly. The variant exists for init_local uniformity and so
// round-robin push partitions have somewhere to keep their cursor.
type ExchangeLocal struct {
	RoundRobinCursor int

	// Set by poll_push when a split batch only partially drains before
	// a destination queue reports back-pressure; drained first on the
	// next poll_push call (which the caller is required to re-present
	// with the exact same original batch) before splitting fresh input.
	PendingDestinations []int
	PendingBatches       []batch.Batch
}

// ExchangeGlobal holds one bounded, mutex-protected queue per
// destination (output) partition, fed by every input partition's
// poll_push and drained by that destination's poll_pull. SoftBound
// back-pressures producers: poll_push returns Pending once a
// destination's queue is at or above SoftBound, until the consumer
// dequeues below it again.
type ExchangeGlobal struct {
	mu            sync.Mutex
	queues        [][]batch.Batch
	pullWakers    []Waker
	pushWakers    [][]Waker // producers parked per destination, woken on dequeue
	SoftBound     int
	inputsRunning atomic.Int32
}

func NewExchangeGlobal(outputPartitions, inputPartitions, softBound int) *ExchangeGlobal {
	g := &ExchangeGlobal{
		queues:     make([][]batch.Batch, outputPartitions),
		pullWakers: make([]Waker, outputPartitions),
		pushWakers: make([][]Waker, outputPartitions),
		SoftBound:  softBound,
	}
	g.inputsRunning.Store(int32(inputPartitions))
	return g
}

// TryDeposit appends b to destination's queue if it is below
// SoftBound, returning true on success. On failure it registers w to
// be woken the next time that destination is dequeued.
func (g *ExchangeGlobal) TryDeposit(destination int, b batch.Batch, w Waker) bool {
	g.mu.Lock()
	if len(g.queues[destination]) >= g.SoftBound {
		g.pushWakers[destination] = append(g.pushWakers[destination], w)
		g.mu.Unlock()
		return false
	}
	g.queues[destination] = append(g.queues[destination], b)
	pw := g.pullWakers[destination]
	g.pullWakers[destination] = nil
	g.mu.Unlock()

	if pw != nil {
		pw.Wake()
	}
	return true
}

// Dequeue pops the oldest batch for destination, if any, waking any
// producers parked on that destination's back-pressure.
func (g *ExchangeGlobal) Dequeue(destination int) (batch.Batch, bool) {
	g.mu.Lock()
	q := g.queues[destination]
	if len(q) == 0 {
		g.mu.Unlock()
		return batch.Batch{}, false
	}
	b := q[0]
	g.queues[destination] = q[1:]
	waiting := g.pushWakers[destination]
	g.pushWakers[destination] = nil
	g.mu.Unlock()
	for _, w := range waiting {
		w.Wake()
	}
	return b, true
}

// RegisterPullWaker remembers w to be woken the next time a batch is
// deposited for destination. If a batch is already queued there, or
// every input has already finished, by the time this is called, it
// wakes w immediately instead of losing the registration in a race
// with TryDeposit/WakeAllPullers — both of which this method shares
// its lock with.
func (g *ExchangeGlobal) RegisterPullWaker(destination int, w Waker) {
	g.mu.Lock()
	if len(g.queues[destination]) > 0 || g.inputsRunning.Load() == 0 {
		g.mu.Unlock()
		w.Wake()
		return
	}
	g.pullWakers[destination] = w
	g.mu.Unlock()
}

// QueueLen reports the current depth of destination's queue.
func (g *ExchangeGlobal) QueueLen(destination int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.queues[destination])
}

// FinishInput decrements the count of input partitions still running,
// returning true for the call that observes it reach zero.
func (g *ExchangeGlobal) FinishInput() bool {
	return g.inputsRunning.Add(-1) == 0
}

// WakeAllPullers wakes every destination's registered pull waker.
// Called once, by the finish() that observes FinishInput reach zero,
// since a destination parked on an empty queue would otherwise wait
// forever for a batch that is never coming.
func (g *ExchangeGlobal) WakeAllPullers() {
	g.mu.Lock()
	wakers := g.pullWakers
	g.pullWakers = make([]Waker, len(g.queues))
	g.mu.Unlock()
	for _, w := range wakers {
		if w != nil {
			w.Wake()
		}
	}
}

// InputsFinished reports whether every input partition has finished.
func (g *ExchangeGlobal) InputsFinished() bool {
	return g.inputsRunning.Load() == 0
}
