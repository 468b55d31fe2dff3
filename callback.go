package flexsched

// Awaitable is the minimal completion contract for suspending work.
//
// Done returns a channel that is closed exactly once, when the work has
// finished (successfully or not). Err returns nil before completion and
// after successful completion; it returns the failure once Done is closed
// if the work failed. [Future] is the canonical implementation.
type Awaitable interface {
	Done() <-chan struct{}
	Err() error
}

// TaskFunc starts a suspending computation. It is invoked on the loop
// goroutine at dispatch time, never before: holding a TaskFunc starts
// nothing, so a cancelled handle simply never invokes it and no half-built
// computation is leaked.
//
// The returned Awaitable completes when the computation does. Returning nil
// means the computation finished synchronously within the call.
type TaskFunc func() Awaitable

// Callback is a unit of work accepted by the scheduling surface. It is a
// closed union of exactly two variants, constructed via [Call] (synchronous)
// or [Async] (suspending). The two are accepted interchangeably everywhere a
// Callback is accepted; the variant decides only how completion is tracked.
//
// The zero Callback is invalid and is rejected with [ErrNilCallback].
type Callback struct {
	fn   func()
	task TaskFunc
}

// Call returns the synchronous Callback variant: fn runs to completion on
// the loop goroutine in a single pass.
func Call(fn func()) Callback {
	return Callback{fn: fn}
}

// Async returns the suspending Callback variant: task is invoked on the
// loop goroutine and its Awaitable is tracked by the runtime, with failures
// routed to the runtime's task-failure handler.
func Async(task TaskFunc) Callback {
	return Callback{task: task}
}

// valid reports whether the callback carries work.
func (c Callback) valid() bool {
	return c.fn != nil || c.task != nil
}
