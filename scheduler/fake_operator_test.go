package scheduler

import (
	"sync"

	"github.com/vecql/engine/batch"
	"github.com/vecql/engine/execerrors"
	"github.com/vecql/engine/operator"
	"github.com/vecql/engine/state"
)

// fakeSource hands out a fixed slice of batches per partition, then
// reports Exhausted. A partition created with no batches instead parks
// on a registered waker the first time it is found drained, until
// release(partition) is called, mimicking an external producer that
// isn't ready yet — this is what exercises the scheduler's
// wake-and-reenqueue path end to end rather than just driving Advance
// by hand.
type fakeSource struct {
	mu         sync.Mutex
	partitions [][]batch.Batch
	cursor     []int
	gated      []bool // still to park once; set for partitions created empty
	gates      []chan struct{}
}

func newFakeSource(partitions [][]batch.Batch) *fakeSource {
	s := &fakeSource{
		partitions: partitions,
		cursor:     make([]int, len(partitions)),
		gated:      make([]bool, len(partitions)),
		gates:      make([]chan struct{}, len(partitions)),
	}
	for i := range s.gates {
		s.gates[i] = make(chan struct{}, 1)
		s.gated[i] = len(partitions[i]) == 0
	}
	return s
}

func (s *fakeSource) addBatch(partition int, b batch.Batch) {
	s.mu.Lock()
	s.partitions[partition] = append(s.partitions[partition], b)
	s.mu.Unlock()
}

func (s *fakeSource) release(partition int) {
	s.gates[partition] <- struct{}{}
}

func (s *fakeSource) NumInputs() int { return 0 }
func (s *fakeSource) NumInputPartitions(input int) (int, error) {
	return 0, execerrors.Internalf("fakeSource: no inputs")
}
func (s *fakeSource) NumOutputPartitions() int { return len(s.partitions) }
func (s *fakeSource) InitLocal(partition int) (state.LocalState, error) {
	return state.LocalState{}, nil
}
func (s *fakeSource) InitGlobal() (state.GlobalState, error) { return state.GlobalState{}, nil }
func (s *fakeSource) PollPush(ctx operator.Context, local state.LocalState, global state.GlobalState, b batch.Batch, input, partition int) (operator.PollPush, error) {
	return operator.PollPush{}, execerrors.Internalf("fakeSource: poll_push on a source")
}
func (s *fakeSource) Finish(local state.LocalState, global state.GlobalState, input, partition int) error {
	return execerrors.Internalf("fakeSource: finish on a source")
}

func (s *fakeSource) PollPull(ctx operator.Context, local state.LocalState, global state.GlobalState, partition int) (operator.PollPull, error) {
	s.mu.Lock()
	if s.cursor[partition] < len(s.partitions[partition]) {
		b := s.partitions[partition][s.cursor[partition]]
		s.cursor[partition]++
		s.mu.Unlock()
		return operator.BatchOf(b), nil
	}
	park := s.gated[partition]
	s.gated[partition] = false
	s.mu.Unlock()
	if !park {
		return operator.ExhaustedPull(), nil
	}

	w := ctx.Waker()
	go func() {
		<-s.gates[partition]
		w.Wake()
	}()
	return operator.NewPendingPull(), nil
}

// fakeSink is a terminal operator that collects every pushed batch.
// failAfter, if > 0, fails the push once that many batches have been
// accepted in total — used to exercise the scheduler's first-error
// cancellation path.
type fakeSink struct {
	Partitions int
	failAfter  int
	failErr    error

	mu       sync.Mutex
	Batches  []batch.Batch
	Finishes int
}

func newFakeSink(partitions int) *fakeSink {
	return &fakeSink{Partitions: partitions}
}

func (c *fakeSink) NumInputs() int                           { return 1 }
func (c *fakeSink) NumInputPartitions(input int) (int, error) { return c.Partitions, nil }
func (c *fakeSink) NumOutputPartitions() int                  { return c.Partitions }
func (c *fakeSink) InitLocal(partition int) (state.LocalState, error) {
	return state.LocalState{}, nil
}
func (c *fakeSink) InitGlobal() (state.GlobalState, error) { return state.GlobalState{}, nil }

func (c *fakeSink) PollPush(ctx operator.Context, local state.LocalState, global state.GlobalState, b batch.Batch, input, partition int) (operator.PollPush, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failAfter > 0 && len(c.Batches)+1 >= c.failAfter {
		return operator.PollPush{}, c.failErr
	}
	c.Batches = append(c.Batches, b)
	return operator.NewPushed(), nil
}

func (c *fakeSink) Finish(local state.LocalState, global state.GlobalState, input, partition int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Finishes++
	return nil
}

func (c *fakeSink) PollPull(ctx operator.Context, local state.LocalState, global state.GlobalState, partition int) (operator.PollPull, error) {
	return operator.PollPull{}, execerrors.Internalf("fakeSink: poll_pull on a terminal sink")
}

var (
	_ operator.Operator = (*fakeSource)(nil)
	_ operator.Operator = (*fakeSink)(nil)
)
