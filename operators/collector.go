package operators

import (
	"sync"

	"github.com/vecql/engine/batch"
	"github.com/vecql/engine/execerrors"
	"github.com/vecql/engine/operator"
	"github.com/vecql/engine/state"
)

// Collector is a terminal sink: every pushed batch is appended, in
// push order, to a mutex-protected slice a driver can read once the
// query finishes. It has no output side of its own — poll_pull on it
// is always a programmer error, the same contract cmd/root.go's output
// printers hold (a sink, not a further pipeline stage). Grounded on
// scheduler_test.go's fakeSink, promoted out of test code since
// cmd/execrun needs the same "collect whatever reaches the end of the
// plan" role for real query output instead of only exercising it in
// unit tests.
type Collector struct {
	Partitions int

	mu      sync.Mutex
	batches []batch.Batch
}

func (c *Collector) NumInputs() int { return 1 }

func (c *Collector) NumInputPartitions(input int) (int, error) {
	if input != 0 {
		return 0, execerrors.Internalf("collector: invalid input index %d", input)
	}
	return c.Partitions, nil
}

func (c *Collector) NumOutputPartitions() int { return c.Partitions }

func (c *Collector) InitLocal(partition int) (state.LocalState, error) {
	return state.LocalState{}, nil
}

func (c *Collector) InitGlobal() (state.GlobalState, error) {
	return state.GlobalState{}, nil
}

func (c *Collector) PollPush(ctx operator.Context, local state.LocalState, global state.GlobalState, b batch.Batch, input, partition int) (operator.PollPush, error) {
	c.mu.Lock()
	c.batches = append(c.batches, b)
	c.mu.Unlock()
	return operator.NewPushed(), nil
}

func (c *Collector) Finish(local state.LocalState, global state.GlobalState, input, partition int) error {
	return nil
}

func (c *Collector) PollPull(ctx operator.Context, local state.LocalState, global state.GlobalState, partition int) (operator.PollPull, error) {
	return operator.PollPull{}, execerrors.Internalf("collector: poll_pull called on a terminal sink")
}

// Batches returns every batch collected so far, in push order. Safe to
// call once the owning Scheduler.Run has returned.
func (c *Collector) Batches() []batch.Batch {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]batch.Batch, len(c.batches))
	copy(out, c.batches)
	return out
}

var _ operator.Operator = (*Collector)(nil)
