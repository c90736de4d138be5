package operators

import (
	"sync/atomic"

	"github.com/vecql/engine/batch"
	"github.com/vecql/engine/execerrors"
	"github.com/vecql/engine/operator"
	"github.com/vecql/engine/state"
)

// Limit enforces OFFSET M, LIMIT K across all partitions via the
// atomic countdown in LimitGlobal (spec.md §4.3). It is a stateful
// source-side pass-through: each pushed batch is sliced down to
// whatever of it survives the global offset/remaining accounting, then
// buffered for the matching pull.
type Limit struct {
	Schema     batch.Schema
	Partitions int
	Offset     int64
	K          int64
}

func (l *Limit) NumInputs() int { return 1 }

func (l *Limit) NumInputPartitions(input int) (int, error) {
	if input != 0 {
		return 0, execerrors.Internalf("limit: invalid input index %d", input)
	}
	return l.Partitions, nil
}

func (l *Limit) NumOutputPartitions() int { return l.Partitions }

func (l *Limit) InitLocal(partition int) (state.LocalState, error) {
	return state.NewLimitLocal(), nil
}

func (l *Limit) InitGlobal() (state.GlobalState, error) {
	return state.NewLimitGlobalState(l.Offset, l.K), nil
}

func (l *Limit) PollPush(ctx operator.Context, local state.LocalState, global state.GlobalState, b batch.Batch, input, partition int) (operator.PollPush, error) {
	loc, err := local.AsLimit()
	if err != nil {
		return operator.PollPush{}, err
	}
	glob, err := global.AsLimit()
	if err != nil {
		return operator.PollPush{}, err
	}

	rows := b.NumRows()
	if rows == 0 {
		// Buffer the empty batch itself rather than nothing: as a
		// non-terminal stage, Limit is pulled exactly once per
		// successful push, and an empty Pending would leave that pull
		// parked on a waker nobody will ever fire.
		loc.Pending = append(loc.Pending, b)
		return operator.NewPushed(), nil
	}

	skip := consumeCountdown(&glob.OffsetRemaining, rows)
	remainingAfterSkip := rows - skip
	if remainingAfterSkip <= 0 {
		// The whole batch fell within OFFSET: still buffer a (now
		// empty) slice so the guaranteed following pull has something
		// to return instead of parking forever.
		loc.Pending = append(loc.Pending, b.Slice(skip, 0))
		return operator.NewPushed(), nil
	}

	take := consumeCountdown(&glob.Remaining, remainingAfterSkip)
	if take <= 0 {
		return operator.BreakPush(), nil
	}

	kept := b.Slice(skip, take)
	loc.Produced += take
	loc.Pending = append(loc.Pending, kept)
	if glob.Remaining.Load() <= 0 {
		return operator.BreakPush(), nil
	}
	return operator.NewPushed(), nil
}

// consumeCountdown atomically claims up to want units from counter,
// never driving it below zero, and returns how many were actually
// claimed.
func consumeCountdown(counter *atomic.Int64, want int64) int64 {
	for {
		cur := counter.Load()
		if cur <= 0 {
			return 0
		}
		claim := want
		if claim > cur {
			claim = cur
		}
		if counter.CompareAndSwap(cur, cur-claim) {
			return claim
		}
	}
}

func (l *Limit) Finish(local state.LocalState, global state.GlobalState, input, partition int) error {
	return nil
}

func (l *Limit) PollPull(ctx operator.Context, local state.LocalState, global state.GlobalState, partition int) (operator.PollPull, error) {
	loc, err := local.AsLimit()
	if err != nil {
		return operator.PollPull{}, err
	}
	glob, err := global.AsLimit()
	if err != nil {
		return operator.PollPull{}, err
	}

	if len(loc.Pending) > 0 {
		b := loc.Pending[0]
		loc.Pending = loc.Pending[1:]
		return operator.BatchOf(b), nil
	}
	if glob.Remaining.Load() <= 0 {
		return operator.ExhaustedPull(), nil
	}
	ctx.Waker()
	return operator.NewPendingPull(), nil
}
