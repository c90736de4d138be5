package operators

import (
	"sync"

	"github.com/vecql/engine/batch"
	"github.com/vecql/engine/operator"
)

// SliceProducer is an in-memory Producer: each partition is a fixed
// slice of pre-built batches, consumed front-to-back then exhausted.
// Used by tests and the command-line driver in place of a real file
// reader, which is out of scope for the core.
type SliceProducer struct {
	mu      sync.Mutex
	batches [][]batch.Batch
	cursors []int
}

func NewSliceProducer(perPartition [][]batch.Batch) *SliceProducer {
	return &SliceProducer{
		batches: perPartition,
		cursors: make([]int, len(perPartition)),
	}
}

func (p *SliceProducer) NumPartitions() int { return len(p.batches) }

func (p *SliceProducer) PollNext(ctx operator.Context, partition int) (operator.PollPull, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cursor := p.cursors[partition]
	if cursor >= len(p.batches[partition]) {
		return operator.ExhaustedPull(), nil
	}
	b := p.batches[partition][cursor]
	p.cursors[partition] = cursor + 1
	return operator.BatchOf(b), nil
}
