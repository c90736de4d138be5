package state

import (
	"sync/atomic"

	"github.com/vecql/engine/batch"
)

// LimitLocal is the per-partition state for a Limit operator. The
// enforcement itself lives in the atomic counters of LimitGlobal;
// Produced is kept locally only for diagnostics/metrics. Pending holds
// the batches already sliced down to their surviving rows, waiting for
// the matching poll_pull calls to drain them.
type LimitLocal struct {
	Produced int64
	Pending  []batch.Batch
}

// LimitGlobal holds the atomic countdown shared by every partition of
// a Limit operator: OffsetRemaining rows are skipped first (accounted
// for in the observed output order across all partitions), then
// Remaining rows are emitted before every partition transitions to
// Exhausted.
type LimitGlobal struct {
	OffsetRemaining atomic.Int64
	Remaining       atomic.Int64
}

// NewLimitGlobal builds a LimitGlobal enforcing OFFSET offset, LIMIT k.
func NewLimitGlobal(offset, k int64) *LimitGlobal {
	g := &LimitGlobal{}
	g.OffsetRemaining.Store(offset)
	g.Remaining.Store(k)
	return g
}
