package state

import "github.com/vecql/engine/batch"

// ProjectionLocal is the per-partition state for a Projection operator.
// Same push/pull handoff shape as FilterLocal.
type ProjectionLocal struct {
	Output    batch.Batch
	HasOutput bool
}

// ProjectionGlobal is the per-plan state for a Projection operator.
type ProjectionGlobal struct{}
