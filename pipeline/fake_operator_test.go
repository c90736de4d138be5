package pipeline

import (
	"sync"

	"github.com/vecql/engine/batch"
	"github.com/vecql/engine/execerrors"
	"github.com/vecql/engine/operator"
	"github.com/vecql/engine/state"
)

// scriptedSource is a fake source operator (NumInputs() == 0) that
// hands out a fixed slice of batches per partition, then reports
// Exhausted. Its PollPull never parks; the park-until-release(partition)
// shape, which mimics an external producer becoming ready and firing
// the waker, is gatedSource's (see pollPullWaitable).
type scriptedSource struct {
	mu         sync.Mutex
	partitions [][]batch.Batch
	cursor     []int
	gated      []bool
	gates      []chan struct{}
}

func newScriptedSource(partitions [][]batch.Batch) *scriptedSource {
	s := &scriptedSource{
		partitions: partitions,
		cursor:     make([]int, len(partitions)),
		gated:      make([]bool, len(partitions)),
		gates:      make([]chan struct{}, len(partitions)),
	}
	for i := range s.gates {
		s.gates[i] = make(chan struct{}, 1)
	}
	return s
}

func (s *scriptedSource) release(partition int) {
	s.gates[partition] <- struct{}{}
}

// addBatch appends b to partition's remaining batches under s.mu, so
// it is safe to call concurrently with an in-flight PollPull.
func (s *scriptedSource) addBatch(partition int, b batch.Batch) {
	s.mu.Lock()
	s.partitions[partition] = append(s.partitions[partition], b)
	s.mu.Unlock()
}

func (s *scriptedSource) NumInputs() int { return 0 }
func (s *scriptedSource) NumInputPartitions(input int) (int, error) {
	return 0, execerrors.Internalf("scriptedSource: no inputs")
}
func (s *scriptedSource) NumOutputPartitions() int { return len(s.partitions) }
func (s *scriptedSource) InitLocal(partition int) (state.LocalState, error) {
	return state.LocalState{}, nil
}
func (s *scriptedSource) InitGlobal() (state.GlobalState, error) { return state.GlobalState{}, nil }
func (s *scriptedSource) PollPush(ctx operator.Context, local state.LocalState, global state.GlobalState, b batch.Batch, input, partition int) (operator.PollPush, error) {
	return operator.PollPush{}, execerrors.Internalf("scriptedSource: poll_push on a source")
}
func (s *scriptedSource) Finish(local state.LocalState, global state.GlobalState, input, partition int) error {
	return execerrors.Internalf("scriptedSource: finish on a source")
}

func (s *scriptedSource) PollPull(ctx operator.Context, local state.LocalState, global state.GlobalState, partition int) (operator.PollPull, error) {
	s.mu.Lock()
	if s.cursor[partition] < len(s.partitions[partition]) {
		b := s.partitions[partition][s.cursor[partition]]
		s.cursor[partition]++
		s.mu.Unlock()
		return operator.BatchOf(b), nil
	}
	s.mu.Unlock()
	return operator.ExhaustedPull(), nil
}

// pollPullWaitable is the gated variant: used by tests that first want
// a Pending result before the source ever has more data. It behaves
// like PollPull but, when no batch is ready, registers ctx.Waker() and
// spawns a goroutine waiting on the partition's gate to fire it.
func (s *scriptedSource) pollPullWaitable(ctx operator.Context, partition int) (operator.PollPull, error) {
	s.mu.Lock()
	if s.cursor[partition] < len(s.partitions[partition]) {
		b := s.partitions[partition][s.cursor[partition]]
		s.cursor[partition]++
		s.mu.Unlock()
		return operator.BatchOf(b), nil
	}
	s.mu.Unlock()

	w := ctx.Waker()
	go func() {
		<-s.gates[partition]
		w.Wake()
	}()
	return operator.NewPendingPull(), nil
}

// gatedSource wraps scriptedSource so its first PollPull call per
// partition, when no batch is queued yet, parks on the gate instead of
// immediately reporting Exhausted. Kept as a distinct type rather than
// a flag on scriptedSource to keep the two test shapes (exhaust
// immediately vs. park-then-release) from tripping over each other.
type gatedSource struct {
	*scriptedSource
}

func (g *gatedSource) PollPull(ctx operator.Context, local state.LocalState, global state.GlobalState, partition int) (operator.PollPull, error) {
	g.mu.Lock()
	first := !g.gated[partition]
	g.gated[partition] = true
	g.mu.Unlock()
	if first {
		return g.pollPullWaitable(ctx, partition)
	}
	return g.scriptedSource.PollPull(ctx, local, global, partition)
}

// passThrough buffers exactly one pushed batch per partition and
// replays it on the next pull, the one-batch-in-flight shape
// Filter/Projection/Limit all share. pending, if > 0, makes the first
// N poll_push calls (across all partitions) return PendingPush before
// accepting the batch, to exercise the retry-same-batch path.
type passThrough struct {
	Partitions int

	mu      sync.Mutex
	buf     map[int]batch.Batch
	has     map[int]bool
	pending int
}

func newPassThrough(partitions int) *passThrough {
	return &passThrough{Partitions: partitions, buf: map[int]batch.Batch{}, has: map[int]bool{}}
}

func (p *passThrough) NumInputs() int { return 1 }
func (p *passThrough) NumInputPartitions(input int) (int, error) { return p.Partitions, nil }
func (p *passThrough) NumOutputPartitions() int                  { return p.Partitions }
func (p *passThrough) InitLocal(partition int) (state.LocalState, error) {
	return state.LocalState{}, nil
}
func (p *passThrough) InitGlobal() (state.GlobalState, error) { return state.GlobalState{}, nil }

func (p *passThrough) PollPush(ctx operator.Context, local state.LocalState, global state.GlobalState, b batch.Batch, input, partition int) (operator.PollPush, error) {
	p.mu.Lock()
	if p.pending > 0 {
		p.pending--
		p.mu.Unlock()
		return operator.PendingPushOf(b), nil
	}
	p.buf[partition] = b
	p.has[partition] = true
	p.mu.Unlock()
	return operator.NewPushed(), nil
}

func (p *passThrough) Finish(local state.LocalState, global state.GlobalState, input, partition int) error {
	return nil
}

func (p *passThrough) PollPull(ctx operator.Context, local state.LocalState, global state.GlobalState, partition int) (operator.PollPull, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.has[partition] {
		b := p.buf[partition]
		delete(p.buf, partition)
		p.has[partition] = false
		return operator.BatchOf(b), nil
	}
	return operator.NewPendingPull(), nil
}

// collectSink is a terminal pass-only operator: every pushed batch is
// appended to Batches (guarded by mu, since multiple partitions may
// push into it from concurrently-running PartitionPipelines).
// breakAfter, if > 0, returns Break instead of Pushed once that many
// batches have been accepted in total.
type collectSink struct {
	Partitions int
	breakAfter int
	failAfter  int
	failErr    error

	mu      sync.Mutex
	Batches []batch.Batch
	Pushes  int
	Finishes int
}

func newCollectSink(partitions int) *collectSink {
	return &collectSink{Partitions: partitions}
}

func (c *collectSink) NumInputs() int                             { return 1 }
func (c *collectSink) NumInputPartitions(input int) (int, error)   { return c.Partitions, nil }
func (c *collectSink) NumOutputPartitions() int                    { return c.Partitions }
func (c *collectSink) InitLocal(partition int) (state.LocalState, error) {
	return state.LocalState{}, nil
}
func (c *collectSink) InitGlobal() (state.GlobalState, error) { return state.GlobalState{}, nil }

func (c *collectSink) PollPush(ctx operator.Context, local state.LocalState, global state.GlobalState, b batch.Batch, input, partition int) (operator.PollPush, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Pushes++
	if c.failAfter > 0 && c.Pushes >= c.failAfter {
		return operator.PollPush{}, c.failErr
	}
	if c.breakAfter > 0 && c.Pushes > c.breakAfter {
		return operator.BreakPush(), nil
	}
	c.Batches = append(c.Batches, b)
	return operator.NewPushed(), nil
}

func (c *collectSink) Finish(local state.LocalState, global state.GlobalState, input, partition int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Finishes++
	return nil
}

func (c *collectSink) PollPull(ctx operator.Context, local state.LocalState, global state.GlobalState, partition int) (operator.PollPull, error) {
	return operator.PollPull{}, execerrors.Internalf("collectSink: poll_pull on a terminal sink")
}

var (
	_ operator.Operator = (*scriptedSource)(nil)
	_ operator.Operator = (*gatedSource)(nil)
	_ operator.Operator = (*passThrough)(nil)
	_ operator.Operator = (*collectSink)(nil)
)
