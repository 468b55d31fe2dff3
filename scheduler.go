package flexsched

import (
	"context"
	"os"
	"time"

	"github.com/joeycumines/logiface"
)

// loopGoroutineChecker is probed by RunBlocking to refuse a wait that would
// deadlock the loop. Loop implements it; a foreign Runtime that cannot
// answer simply loses the guard.
type loopGoroutineChecker interface {
	isLoopGoroutine() bool
}

// Scheduler is the uniform scheduling surface over a Runtime. It normalizes
// callback submission (synchronous vs suspending, immediate vs delayed),
// constructs flexible timers, offloads blocking work, and passes through
// the runtime's lifecycle and lower-level affordances.
//
// The facade adds no execution semantics of its own: ordering, the
// single-goroutine guarantee, and failure routing are all the runtime's.
// Construction performs no I/O and starts nothing.
type Scheduler struct {
	rt     Runtime
	logger *logiface.Logger[logiface.Event]
}

// New returns a Scheduler over rt.
func New(rt Runtime, opts ...Option) (*Scheduler, error) {
	if rt == nil {
		return nil, ErrNilRuntime
	}
	cfg, err := resolveSchedulerOptions(opts)
	if err != nil {
		return nil, err
	}
	return &Scheduler{rt: rt, logger: cfg.logger}, nil
}

// Runtime returns the injected runtime.
func (s *Scheduler) Runtime() Runtime {
	return s.rt
}

// Now returns the current time on the runtime's scheduling clock.
func (s *Scheduler) Now() time.Time {
	return s.rt.Now()
}

// RegisterCallback submits cb for execution on the next loop pass. The
// synchronous variant runs inline in that pass; the suspending variant is
// started as a task with its completion tracked by the runtime. Errors are
// scheduling errors only, returned synchronously; execution failures of a
// suspending callback go to the runtime's task-failure handling.
func (s *Scheduler) RegisterCallback(cb Callback) error {
	switch {
	case cb.task != nil:
		return s.rt.SpawnTask(cb.task)
	case cb.fn != nil:
		return s.rt.CallSoon(cb.fn)
	default:
		return ErrNilCallback
	}
}

// DelayCallback submits cb for execution delay after Now. The returned
// handle cancels the pending fire only; after dispatch it is a no-op. For
// the suspending variant nothing is constructed until fire time, so a
// cancelled handle means the task function is never invoked at all.
func (s *Scheduler) DelayCallback(delay time.Duration, cb Callback) (Handle, error) {
	if !cb.valid() {
		return nil, ErrNilCallback
	}
	fn := cb.fn
	if cb.task != nil {
		task := cb.task
		fn = func() {
			// Runs at fire time on the loop; the task start hops through
			// the runtime so completion tracking is uniform with
			// RegisterCallback.
			if err := s.rt.SpawnTask(task); err != nil {
				s.logger.Err().
					Str(`component`, `scheduler`).
					Err(err).
					Log(`delayed task dropped`)
			}
		}
	}
	return s.rt.CallAt(s.rt.Now().Add(delay), fn)
}

// CallAt passes through absolute-time scheduling for callers that already
// hold a timestamp on the runtime's clock.
func (s *Scheduler) CallAt(when time.Time, fn func()) (Handle, error) {
	return s.rt.CallAt(when, fn)
}

// SpawnTask passes through deferred task creation.
func (s *Scheduler) SpawnTask(task TaskFunc) error {
	return s.rt.SpawnTask(task)
}

// RegisterTimer returns a stopped Timer driven by cb. It never starts
// automatically; call Start.
func (s *Scheduler) RegisterTimer(cb TimerCallback) *Timer {
	return &Timer{rt: s.rt, callback: cb, logger: s.logger}
}

// RunBlocking offloads fn to a goroutine dedicated to this call and blocks
// the calling goroutine until it completes or ctx is done. There is no
// intrinsic timeout; ctx only abandons the wait, it does not stop the
// worker.
//
// Calling this from the loop goroutine would deadlock the loop and is
// rejected with ErrReentrantCall; suspending callbacks should instead
// return the worker future's completion through their own result.
func (s *Scheduler) RunBlocking(ctx context.Context, fn WorkerFunc) (any, error) {
	if c, ok := s.rt.(loopGoroutineChecker); ok && c.isLoopGoroutine() {
		return nil, ErrReentrantCall
	}
	return s.rt.RunOnWorker(ctx, fn).Wait(ctx)
}

// AddSignalHandler registers fn to run on the loop goroutine for each
// delivery of sig, when the runtime supports signal registration.
func (s *Scheduler) AddSignalHandler(sig os.Signal, fn func()) error {
	if r, ok := s.rt.(SignalRegistrar); ok {
		return r.AddSignalHandler(sig, fn)
	}
	return ErrUnsupported
}

// RemoveSignalHandler deregisters the handler for sig.
func (s *Scheduler) RemoveSignalHandler(sig os.Signal) error {
	if r, ok := s.rt.(SignalRegistrar); ok {
		return r.RemoveSignalHandler(sig)
	}
	return ErrUnsupported
}

// AddReader registers a read-readiness callback for fd, when the runtime
// has a poller.
func (s *Scheduler) AddReader(fd uintptr, fn func()) error {
	if r, ok := s.rt.(IORegistrar); ok {
		return r.AddReader(fd, fn)
	}
	return ErrUnsupported
}

// RemoveReader deregisters the read-readiness callback for fd.
func (s *Scheduler) RemoveReader(fd uintptr) error {
	if r, ok := s.rt.(IORegistrar); ok {
		return r.RemoveReader(fd)
	}
	return ErrUnsupported
}

// AddWriter registers a write-readiness callback for fd, when the runtime
// has a poller.
func (s *Scheduler) AddWriter(fd uintptr, fn func()) error {
	if r, ok := s.rt.(IORegistrar); ok {
		return r.AddWriter(fd, fn)
	}
	return ErrUnsupported
}

// RemoveWriter deregisters the write-readiness callback for fd.
func (s *Scheduler) RemoveWriter(fd uintptr) error {
	if r, ok := s.rt.(IORegistrar); ok {
		return r.RemoveWriter(fd)
	}
	return ErrUnsupported
}

// Run executes the runtime's loop on the calling goroutine until stopped.
func (s *Scheduler) Run(ctx context.Context) error {
	return s.rt.Run(ctx)
}

// Stop requests a prompt exit of Run from any goroutine, including loop
// callbacks.
func (s *Scheduler) Stop() error {
	return s.rt.Stop()
}

// Close stops the runtime and releases its resources.
func (s *Scheduler) Close() error {
	return s.rt.Close()
}
