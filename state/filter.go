package state

import "github.com/vecql/engine/batch"

// FilterLocal is the per-partition state for a Filter operator. Filter
// carries no state across batches — it's a pure per-batch transform —
// but poll_push and poll_pull are two separate calls, so the one
// filtered batch produced by a push has to sit somewhere until the
// matching pull drains it.
type FilterLocal struct {
	Output    batch.Batch
	HasOutput bool
}

// FilterGlobal is the per-plan state for a Filter operator.
type FilterGlobal struct{}
