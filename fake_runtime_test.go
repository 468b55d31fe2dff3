package flexsched

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// fakeHandle is a cancellable entry captured by fakeRuntime.CallAt. It
// shares the real entry's tri-state so Cancel semantics match the loop's.
type fakeHandle struct {
	when  time.Time
	fn    func()
	state atomic.Int32
}

func (h *fakeHandle) Cancel() bool {
	return h.state.CompareAndSwap(timerPending, timerCancelled)
}

// fakeRuntime is a hand-driven Runtime: nothing runs until the test drives
// it, which makes dispatch race windows deterministic instead of timing
// dependent.
type fakeRuntime struct {
	mu     sync.Mutex
	now    time.Time
	soon   []func()
	timers []*fakeHandle
	tasks  []TaskFunc
	onLoop bool
	closed bool
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{now: time.Unix(1000, 0)}
}

func (f *fakeRuntime) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeRuntime) advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func (f *fakeRuntime) CallSoon(fn func()) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrLoopClosed
	}
	f.soon = append(f.soon, fn)
	return nil
}

func (f *fakeRuntime) CallAt(when time.Time, fn func()) (Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrLoopClosed
	}
	h := &fakeHandle{when: when, fn: fn}
	f.timers = append(f.timers, h)
	return h, nil
}

func (f *fakeRuntime) SpawnTask(task TaskFunc) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrLoopClosed
	}
	f.tasks = append(f.tasks, task)
	return nil
}

func (f *fakeRuntime) RunOnWorker(ctx context.Context, fn WorkerFunc) *Future[any] {
	fut := NewFuture[any]()
	go func() {
		v, err := fn(ctx)
		if err != nil {
			fut.Reject(err)
			return
		}
		fut.Resolve(v)
	}()
	return fut
}

func (f *fakeRuntime) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeRuntime) Stop() error { return nil }

func (f *fakeRuntime) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeRuntime) isLoopGoroutine() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.onLoop
}

// fireDue dispatches every non-cancelled entry due at the fake clock, like
// one timer pass of the real loop.
func (f *fakeRuntime) fireDue() int {
	f.mu.Lock()
	now := f.now
	var due, rest []*fakeHandle
	for _, h := range f.timers {
		switch {
		case h.state.Load() == timerCancelled:
		case !h.when.After(now):
			due = append(due, h)
		default:
			rest = append(rest, h)
		}
	}
	f.timers = rest
	f.mu.Unlock()

	fired := 0
	for _, h := range due {
		if h.state.CompareAndSwap(timerPending, timerFired) {
			h.fn()
			fired++
		}
	}
	return fired
}

// startTasks invokes every queued task start, returning the awaitables of
// those that suspended.
func (f *fakeRuntime) startTasks() []Awaitable {
	f.mu.Lock()
	tasks := f.tasks
	f.tasks = nil
	f.mu.Unlock()

	var aws []Awaitable
	for _, task := range tasks {
		if aw := task(); aw != nil {
			aws = append(aws, aw)
		}
	}
	return aws
}

// drainSoon runs queued CallSoon functions until none remain, returning how
// many ran.
func (f *fakeRuntime) drainSoon() int {
	n := 0
	for {
		f.mu.Lock()
		fns := f.soon
		f.soon = nil
		f.mu.Unlock()
		if len(fns) == 0 {
			return n
		}
		for _, fn := range fns {
			fn()
		}
		n += len(fns)
	}
}

// pendingTimers counts entries still awaiting dispatch.
func (f *fakeRuntime) pendingTimers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, h := range f.timers {
		if h.state.Load() == timerPending {
			n++
		}
	}
	return n
}

// nextPending returns the earliest pending entry, or nil.
func (f *fakeRuntime) nextPending() *fakeHandle {
	f.mu.Lock()
	defer f.mu.Unlock()
	var next *fakeHandle
	for _, h := range f.timers {
		if h.state.Load() != timerPending {
			continue
		}
		if next == nil || h.when.Before(next.when) {
			next = h
		}
	}
	return next
}
