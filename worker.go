package flexsched

import (
	"context"
)

// RunOnWorker implements Runtime. Every call gets a goroutine of its own;
// there is no shared pool, so one slow call never queues behind another and
// calls are isolated exactly like a dedicated single-thread executor.
//
// The returned future settles on the worker goroutine. It always settles:
// a panic in fn becomes a PanicError rejection, and a goroutine that exits
// via runtime.Goexit (t.FailNow and friends) rejects with ErrGoexit.
//
// ctx is handed through to fn and is the only cancellation mechanism; there
// is no intrinsic timeout, and an abandoned wait does not stop the worker.
func (l *Loop) RunOnWorker(ctx context.Context, fn WorkerFunc) *Future[any] {
	f := NewFuture[any]()
	if fn == nil {
		f.Reject(ErrNilCallback)
		return f
	}
	if !l.state.canAcceptWork() {
		f.Reject(ErrLoopClosed)
		return f
	}
	l.metrics.addWorkerCalls(1)

	go func() {
		completed := false
		defer func() {
			if r := recover(); r != nil {
				f.Reject(PanicError{Value: r})
			} else if !completed {
				f.Reject(ErrGoexit)
			}
		}()

		if err := ctx.Err(); err != nil {
			completed = true
			f.Reject(err)
			return
		}

		v, err := fn(ctx)
		completed = true
		if err != nil {
			f.Reject(err)
			return
		}
		f.Resolve(v)
	}()

	return f
}
