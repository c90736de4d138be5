package operator

import "sync/atomic"

// Waker is the capability registered with ctx.Waker(): a callback
// that, when invoked, tells the scheduler to re-enqueue the Partition
// Pipeline that registered it. An operator that registers a Waker is
// obligated to call it (directly, or transitively through a peer)
// once progress becomes possible.
//
// Wake is idempotent and safe to call from any goroutine, including
// concurrently with itself — the only cross-partition signaling
// primitive operators need is "wake this handle", and the scheduler
// guarantees a handle is never enqueued twice simultaneously.
type Waker struct {
	fired  atomic.Bool
	wakeFn func()
}

// NewWaker wraps a scheduler-provided wake callback. Operators never
// construct a Waker themselves; they receive one from Context.Waker.
func NewWaker(wakeFn func()) *Waker {
	return &Waker{wakeFn: wakeFn}
}

// Wake re-enqueues the owning Partition Pipeline if this is the first
// call to Wake since the waker was handed out, or a no-op otherwise.
// Idempotence lets the last of several peers (e.g. the last hash-join
// builder to finish) wake every registered probe-side waker without
// tracking which have already fired.
func (w *Waker) Wake() {
	if w == nil {
		return
	}
	if w.fired.CompareAndSwap(false, true) {
		w.wakeFn()
	}
}

// Context is the scheduling context handed to every poll_push/poll_pull
// call. Its only capability is registering a waker; it carries no
// other scheduler internals so operator code can't reach into the
// scheduler's state.
type Context struct {
	// Done is closed when the query owning this Partition Pipeline has
	// been cancelled. Operators do not need to check it directly —
	// the Partition Pipeline checks it at advance() entry — but long
	// critical sections inside an operator method (e.g. a big hash
	// build) may select on it to bail out early.
	Done <-chan struct{}

	newWaker func() *Waker
}

// NewContext constructs a Context for one advance() call.
func NewContext(done <-chan struct{}, newWaker func() *Waker) Context {
	return Context{Done: done, newWaker: newWaker}
}

// Waker allocates a fresh waker tied to the calling Partition Pipeline.
// Operators call this exactly when they are about to return Pending
// and need to be woken later; calling it without eventually waking it
// (directly or through a peer) breaks the liveness invariant in
// spec.md §3.
func (c Context) Waker() *Waker {
	return c.newWaker()
}
