package flexsched

import (
	"context"
	"os"
	"time"
)

// Handle refers to a single scheduled fire that has not necessarily happened
// yet. Cancel is idempotent and safe from any goroutine.
type Handle interface {
	// Cancel prevents the pending fire if it has not been dispatched.
	// Reports whether this call transitioned the entry from pending to
	// cancelled; returns false when the fire already dispatched or a prior
	// Cancel won.
	Cancel() bool
}

// WorkerFunc is blocking or CPU-heavy work offloaded from the loop. It runs
// on a dedicated goroutine; ctx is the caller's cancellation signal and the
// function is expected to honor it for long waits.
type WorkerFunc func(ctx context.Context) (any, error)

// Runtime is the host run-loop contract the scheduling surface is built
// over. [Loop] is the in-package production implementation; tests use a
// hand-driven fake, and an embedder with its own loop (an I/O poller, a UI
// thread) can satisfy this and slot in unchanged.
//
// Guarantees every implementation must honor:
//
//   - Single-goroutine execution: every submitted function runs on the one
//     goroutine inside Run, one at a time. CallSoon preserves submission
//     order; CallAt runs in timestamp order with submission order breaking
//     ties.
//   - Thread-safe submission: CallSoon, CallAt, SpawnTask, RunOnWorker and
//     Stop may be called from any goroutine, including from code already
//     running on the loop.
//   - Clock coherence: Now is the clock CallAt timestamps are interpreted
//     against.
//   - Failure routing: a panic in any submitted function, and the rejection
//     of any Awaitable returned by a spawned task, is reported through the
//     runtime's task-failure handling. Failures never unwind the loop.
type Runtime interface {
	// Now returns the current time on the runtime's scheduling clock.
	Now() time.Time

	// CallSoon schedules fn to run on the next loop pass.
	CallSoon(fn func()) error

	// CallAt schedules fn to run at the absolute time when. Times at or
	// before Now fire on the next timer pass. The returned handle cancels
	// the fire until it is dispatched.
	CallAt(when time.Time, fn func()) (Handle, error)

	// SpawnTask invokes task on the loop goroutine and tracks the returned
	// Awaitable, routing a rejection to the task-failure handling.
	SpawnTask(task TaskFunc) error

	// RunOnWorker runs fn on a goroutine dedicated to this call and returns
	// a future settled with its outcome. The future may settle on the
	// worker goroutine.
	RunOnWorker(ctx context.Context, fn WorkerFunc) *Future[any]

	// Run executes the loop on the calling goroutine until Stop or Close is
	// called or ctx is done. It returns ctx.Err() when the context ended
	// the run, nil otherwise.
	Run(ctx context.Context) error

	// Stop requests a prompt exit of Run. Work already submitted but not
	// yet dispatched is not drained. Idempotent.
	Stop() error

	// Close stops the loop and releases its resources. Submissions after
	// Close fail with ErrLoopClosed. Idempotent.
	Close() error
}

// SignalRegistrar is an optional Runtime capability: registration of OS
// signal handlers that run on the loop goroutine. The facade surfaces
// [ErrUnsupported] when the runtime does not implement it.
type SignalRegistrar interface {
	// AddSignalHandler runs fn on the loop goroutine for each delivery of
	// sig. One handler per signal; re-adding replaces the previous one.
	AddSignalHandler(sig os.Signal, fn func()) error
	// RemoveSignalHandler deregisters the handler for sig, if any.
	RemoveSignalHandler(sig os.Signal) error
}

// IORegistrar is an optional Runtime capability: readiness callbacks for
// file descriptors. [Loop] does not implement it (it has no poller); the
// contract exists so a poller-backed runtime presents the same surface.
type IORegistrar interface {
	AddReader(fd uintptr, fn func()) error
	RemoveReader(fd uintptr) error
	AddWriter(fd uintptr, fn func()) error
	RemoveWriter(fd uintptr) error
}
