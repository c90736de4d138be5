// Package scheduler implements spec.md §4.5's cooperative scheduler: a
// fixed worker pool draining an MPMC ready queue of Partition Pipeline
// handles, wired to each handle's wakers so that a handle parked on
// Pending is re-enqueued the moment progress becomes possible, and torn
// down promptly on the first error or cancellation.
package scheduler

import (
	"context"
	"runtime"
	"sync"

	"github.com/vecql/engine/batch"
	"github.com/vecql/engine/execerrors"
	"github.com/vecql/engine/pipeline"
)

// Task describes one Partition Pipeline the scheduler should run to
// completion. OnBatch, if set, is called (from some worker goroutine —
// never concurrently with another call for the same Task) whenever
// this Task's Pipeline produces an externally visible batch, i.e. a
// MadeProgress Result carrying one (see pipeline.Result.Batch's
// doc comment — only single-stage, source-only Pipelines produce
// these, typically the query's root/result-collecting chain).
type Task struct {
	Pipeline  *pipeline.Pipeline
	Partition int
	OnBatch   func(batch.Batch)
}

// handle is a Task bound to its running PartitionPipeline and the
// bookkeeping the scheduler needs to wire its waker and track
// queued/running/done state without ever enqueueing it twice at once.
type handle struct {
	task Task
	pp   *pipeline.PartitionPipeline

	mu      sync.Mutex
	queued  bool
	running bool
	rewake  bool // Woken while running; re-enqueue as soon as the current Advance returns.
	done    bool
}

// Scheduler runs a fixed-size batch of Tasks to completion, each
// stepped by calling its PartitionPipeline.Advance() from a worker
// goroutine whenever it's runnable.
type Scheduler struct {
	workers int

	ctx    context.Context
	cancel context.CancelFunc

	ready chan *handle

	wg sync.WaitGroup

	mu            sync.Mutex
	remaining     int
	err           error
	closeDoneOnce sync.Once
	doneCh        chan struct{}
}

// New builds a Scheduler for tasks. workers <= 0 defaults to the
// host's hardware parallelism, per spec.md §4.5.
func New(ctx context.Context, tasks []Task, workers int) (*Scheduler, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	sctx, cancel := context.WithCancel(ctx)

	s := &Scheduler{
		workers:   workers,
		ctx:       sctx,
		cancel:    cancel,
		ready:     make(chan *handle, len(tasks)),
		remaining: len(tasks),
		doneCh:    make(chan struct{}),
	}

	handles := make([]*handle, len(tasks))
	for i, t := range tasks {
		h := &handle{task: t}
		pp, err := pipeline.NewPartitionPipeline(t.Pipeline, t.Partition, sctx.Done(), func() { s.enqueue(h) })
		if err != nil {
			cancel()
			return nil, err
		}
		h.pp = pp
		handles[i] = h
	}

	if len(tasks) == 0 {
		close(s.doneCh)
	} else {
		for _, h := range handles {
			s.enqueue(h)
		}
	}
	return s, nil
}

// enqueue makes h runnable: pushed onto the ready queue if it is
// neither queued nor currently executing, or flagged for immediate
// re-enqueue (rewake) if a worker is mid-Advance on it right now. This
// is the only place that decides whether a Wake() call actually
// touches the ready queue, keeping every handle present at most once.
func (s *Scheduler) enqueue(h *handle) {
	h.mu.Lock()
	if h.done {
		h.mu.Unlock()
		return
	}
	if h.running {
		h.rewake = true
		h.mu.Unlock()
		return
	}
	if h.queued {
		h.mu.Unlock()
		return
	}
	h.queued = true
	h.mu.Unlock()

	select {
	case s.ready <- h:
	case <-s.ctx.Done():
	}
}

// Run starts the worker pool and blocks until every Task has reached a
// terminal Result or the context/a Task failure cancels the query,
// returning the first error observed (nil on full success).
func (s *Scheduler) Run() error {
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.workerLoop()
	}

	select {
	case <-s.doneCh:
	case <-s.ctx.Done():
	}
	cancelled := s.ctx.Err() != nil
	s.cancel()
	s.wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil && cancelled {
		s.err = execerrors.Cancelled
	}
	return s.err
}

func (s *Scheduler) workerLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case h := <-s.ready:
			s.runOnce(h)
		}
	}
}

// runOnce advances h exactly once and decides what happens next: more
// immediate work gets re-enqueued right away (FIFO: it goes to the back
// of s.ready, behind any handle already waiting), Pending parks the
// handle until some waker fires (or re-enqueues it immediately if it
// was woken while this very call was running), and a terminal Result
// retires it from the query's remaining count.
func (s *Scheduler) runOnce(h *handle) {
	h.mu.Lock()
	h.queued = false
	h.running = true
	h.mu.Unlock()

	res := h.pp.Advance()

	h.mu.Lock()
	h.running = false
	rewake := h.rewake
	h.rewake = false
	h.mu.Unlock()

	switch res.Status {
	case pipeline.MadeProgress:
		if h.task.OnBatch != nil && res.Batch.Record() != nil {
			h.task.OnBatch(res.Batch)
		}
		s.enqueue(h)
	case pipeline.Pending:
		if rewake {
			s.enqueue(h)
		}
	case pipeline.Finished:
		h.mu.Lock()
		h.done = true
		h.mu.Unlock()
		s.retire(nil)
	case pipeline.Failed:
		h.mu.Lock()
		h.done = true
		h.mu.Unlock()
		s.retire(res.Err)
	}
}

// retire accounts for one Task reaching a terminal state. The first
// non-nil err cancels the whole query: remaining handles still parked
// on a waker are simply never woken again (their goroutine-side
// producers, if any, observe ctx.Done() independently), and any handle
// still sitting in s.ready is drained harmlessly by a worker whose
// Advance() immediately sees the cancellation and returns Failed.
func (s *Scheduler) retire(err error) {
	s.mu.Lock()
	if err != nil && s.err == nil {
		s.err = err
	}
	s.remaining--
	remaining := s.remaining
	s.mu.Unlock()

	if err != nil {
		s.cancel()
	}
	if remaining == 0 {
		s.closeDoneOnce.Do(func() { close(s.doneCh) })
	}
}
