package state

import (
	"sync"
	"sync/atomic"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/brentp/intintmap"
)

// GroupKeyColumn accumulates one grouping-key column of a hash table:
// appending the key value of a newly-seen group, checking whether an
// existing group's key equals an incoming row's, and extracting a
// finished Arrow array for a range of groups. Implemented per Arrow
// type in the operators package; stored here as data, per spec.md
// §4.2 ("state variants may be arbitrarily large").
type GroupKeyColumn interface {
	AddFrom(src arrow.Array, rowIndex int)
	Equal(entryIndex int, src arrow.Array, rowIndex int) bool
	Finish(offset, length int) arrow.Array
}

// AggregateColumn accumulates one aggregate (sum, count, ...) over one
// column, keyed by group entry index.
type AggregateColumn interface {
	Consume(entryIndex int, src arrow.Array, rowIndex int)
	// Merge folds a partial aggregate value read from src[rowIndex]
	// into entryIndex — used when combining per-destination partial
	// aggregates during the final merge phase.
	Merge(entryIndex int, src arrow.Array, rowIndex int)
	Finish(offset, length int) arrow.Array
}

// HashTable is the open-addressing (via intintmap, linear-probe under
// the hood) grouping structure shared by the local and final phases of
// HashAggregate: a hash->entry-index map plus one column per grouping
// key and aggregate.
type HashTable struct {
	Index      *intintmap.Map
	EntryCount int
	Keys       []GroupKeyColumn
	Aggregates []AggregateColumn

	// EntryHashes is the full key hash computed at insertion time for
	// each entry, kept alongside the table so the repartition phase can
	// redistribute groups by hash(key) mod P without recomputing a hash
	// from finished column storage.
	EntryHashes []uint64
}

// HashAggregateLocal is the per-partition state for a HashAggregate
// operator, covering all three phases described in spec.md §4.3.
type HashAggregateLocal struct {
	// Local phase: groups built directly from pushed input batches.
	Local *HashTable

	// Final phase: groups merged from this partition's destination
	// queue in HashAggregateGlobal. Streamed out incrementally as
	// poll_pull is called; StreamedUpTo is the next un-emitted group.
	Final        *HashTable
	StreamedUpTo int

	// Repartitioned is set once finish() has drained Local into the
	// global destination queues, so finish is idempotent against
	// accidental re-invocation (never expected — finish is called at
	// most once per (input, partition) — but cheap to guard).
	Repartitioned bool
}

// AggregatePartitionPayload is one local table's contribution to a
// destination partition's repartition queue: the subset of its groups
// whose key hashes to that destination, still columnar.
type AggregatePartitionPayload struct {
	Keys       []arrow.Array
	Aggregates []arrow.Array
	NumRows    int
}

// HashAggregateGlobal is the shared repartitioning structure: one
// mutex-protected queue per destination partition, fed by every
// partition's finish(), drained by that destination's poll_pull.
type HashAggregateGlobal struct {
	mu     sync.Mutex
	queues [][]AggregatePartitionPayload
	wakers []Waker

	partitions           int
	remainingBuilders    atomic.Int32
}

// NewHashAggregateGlobal allocates the per-destination queues for a
// HashAggregate repartitioning into `partitions` destinations, fed by
// `builders` upstream partitions.
func NewHashAggregateGlobal(partitions, builders int) *HashAggregateGlobal {
	g := &HashAggregateGlobal{
		queues:     make([][]AggregatePartitionPayload, partitions),
		wakers:     make([]Waker, partitions),
		partitions: partitions,
	}
	g.remainingBuilders.Store(int32(builders))
	return g
}

// Deposit appends payload to destination's queue and wakes its
// currently-registered puller, if any.
func (g *HashAggregateGlobal) Deposit(destination int, payload AggregatePartitionPayload) {
	g.mu.Lock()
	g.queues[destination] = append(g.queues[destination], payload)
	w := g.wakers[destination]
	g.mu.Unlock()
	if w != nil {
		w.Wake()
	}
}

// Drain removes and returns every payload currently queued for
// destination.
func (g *HashAggregateGlobal) Drain(destination int) []AggregatePartitionPayload {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := g.queues[destination]
	g.queues[destination] = nil
	return out
}

// RegisterPuller remembers the waker a destination's final phase
// should be woken with on the next deposit. If a payload is already
// queued for destination, or the build side has already finished, by
// the time this is called, it wakes w immediately instead of losing
// the registration in a race with Deposit/FinishBuilder — both of
// which this method shares its lock with.
func (g *HashAggregateGlobal) RegisterPuller(destination int, w Waker) {
	g.mu.Lock()
	if len(g.queues[destination]) > 0 || g.remainingBuilders.Load() == 0 {
		g.mu.Unlock()
		w.Wake()
		return
	}
	g.wakers[destination] = w
	g.mu.Unlock()
}

// FinishBuilder decrements the count of upstream partitions still
// running their local phase. The builder whose call observes the
// count reach zero wakes every destination currently registered as a
// puller — each of those final phases may now be able to reach
// Exhausted even without a further deposit arriving — then returns
// true; every other caller returns false.
func (g *HashAggregateGlobal) FinishBuilder() bool {
	if g.remainingBuilders.Add(-1) != 0 {
		return false
	}
	g.mu.Lock()
	wakers := g.wakers
	g.wakers = make([]Waker, g.partitions)
	g.mu.Unlock()
	for _, w := range wakers {
		if w != nil {
			w.Wake()
		}
	}
	return true
}

// BuildersRemaining reports whether any upstream partition has yet to
// finish its local phase.
func (g *HashAggregateGlobal) BuildersRemaining() bool {
	return g.remainingBuilders.Load() > 0
}
