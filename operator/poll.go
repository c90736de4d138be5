package operator

import "github.com/vecql/engine/batch"

// PushStatus is the three-valued result of poll_push.
type PushStatus int

const (
	// Pushed: the batch was consumed; further input is accepted.
	Pushed PushStatus = iota
	// PendingPush: the operator cannot accept the batch yet; a waker
	// has been registered and the caller must re-present the same
	// batch on retry.
	PendingPush
	// Break: no further input is wanted on this (input, partition);
	// the caller must call Finish next.
	Break
)

// PollPush is the result of one poll_push call. Batch is only
// meaningful when Status == PendingPush, and is always the exact batch
// the caller passed in — operators never rewrite it.
type PollPush struct {
	Status PushStatus
	Batch  batch.Batch
}

func NewPushed() PollPush { return PollPush{Status: Pushed} }

func PendingPushOf(b batch.Batch) PollPush { return PollPush{Status: PendingPush, Batch: b} }

func BreakPush() PollPush { return PollPush{Status: Break} }

// PullStatus is the three-valued result of poll_pull.
type PullStatus int

const (
	// BatchReady: Batch holds a produced output batch.
	BatchReady PullStatus = iota
	// PendingPull: no output yet; a waker has been registered.
	PendingPull
	// Exhausted: no future output for this partition. Terminal —
	// poll_pull must never again return BatchReady once it has
	// returned Exhausted for this partition.
	Exhausted
)

// PollPull is the result of one poll_pull call.
type PollPull struct {
	Status PullStatus
	Batch  batch.Batch
}

func BatchOf(b batch.Batch) PollPull { return PollPull{Status: BatchReady, Batch: b} }

func NewPendingPull() PollPull { return PollPull{Status: PendingPull} }

func ExhaustedPull() PollPull { return PollPull{Status: Exhausted} }
