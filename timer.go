// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package flexsched

import (
	"errors"
	"sync"
	"time"

	"github.com/joeycumines/logiface"
)

// errZeroNextFire reports a timer callback that returned the zero NextFire,
// which carries neither a fire time nor a pending future.
var errZeroNextFire = errors.New("flexsched: timer callback returned zero NextFire")

// NextFire is the result of a TimerCallback: a closed union of either the
// next absolute fire time, known immediately ([Fire]), or a future that
// delivers it once the callback's suspended work completes ([Await]).
//
// The zero NextFire is invalid and is treated as a callback failure.
type NextFire struct {
	when    time.Time
	pending *Future[time.Time]
}

// Fire returns a NextFire carrying the next absolute fire time on the
// runtime's clock. The zero time is reserved and invalid; a time at or
// before now yields a prompt refire rather than an error.
func Fire(when time.Time) NextFire {
	return NextFire{when: when}
}

// Await returns a NextFire whose fire time arrives via pending. Rejecting
// pending counts as a callback failure: it is routed to the runtime's
// task-failure handling and the timer keeps running with no scheduled fire.
func Await(pending *Future[time.Time]) NextFire {
	return NextFire{pending: pending}
}

// TimerCallback runs on the loop goroutine each time the timer fires. now
// is the runtime's current time at invocation; the returned NextFire
// decides when (and whether immediately) the timer fires next.
type TimerCallback func(now time.Time) NextFire

// Timer is a self-rescheduling timer whose schedule is decided fire by fire
// from its callback's return value. It has exactly two states, stopped and
// running; a running timer holds at most one pending fire at any moment.
//
// Start and Stop are idempotent and safe from any goroutine, including from
// inside the callback. Construct via Scheduler.RegisterTimer.
//
// Dispatch is two-staged: the scheduled fire only clears its pending handle
// and re-submits the actual callback invocation as a fresh loop task. The
// invocation re-checks the running state first, so a Stop that lands
// between the fire and the invocation still wins and the callback does not
// run. Each Start bumps an internal generation; in-flight dispatches from
// an older generation are discarded, which makes Stop-then-Start safe while
// a fire is mid-flight.
type Timer struct {
	rt       Runtime
	callback TimerCallback
	logger   *logiface.Logger[logiface.Event]

	mu      sync.Mutex
	running bool
	pending Handle
	gen     uint64
}

// Start schedules the first fire at Now()+delay and transitions to running.
// Starting a running timer is a no-op returning nil. A scheduling failure
// (closed runtime) is returned synchronously and leaves the timer stopped.
func (t *Timer) Start(delay time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.callback == nil {
		return ErrNilCallback
	}
	if t.running {
		return nil
	}
	t.gen++
	gen := t.gen
	h, err := t.rt.CallAt(t.rt.Now().Add(delay), func() { t.dispatch(gen) })
	if err != nil {
		return err
	}
	t.running = true
	t.pending = h
	return nil
}

// Stop cancels the pending fire, if any, and transitions to stopped. It
// never waits for an in-flight invocation; the invocation's own state
// checks discard it. Stopping a stopped timer is a no-op.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}
	t.running = false
	if t.pending != nil {
		t.pending.Cancel()
		t.pending = nil
	}
}

// IsRunning reports whether the timer is in the running state. A running
// timer whose callback failed has no scheduled fire yet still reports true;
// Stop then Start revives it.
func (t *Timer) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// stillCurrent reports whether generation gen is the live one on a running
// timer.
func (t *Timer) stillCurrent(gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running && gen == t.gen
}

// dispatch is stage one, run at fire time on the loop goroutine. It only
// clears the pending handle and re-submits the invocation as a fresh task;
// no user code runs here.
func (t *Timer) dispatch(gen uint64) {
	t.mu.Lock()
	if !t.running || gen != t.gen {
		t.mu.Unlock()
		return
	}
	t.pending = nil
	t.mu.Unlock()

	if err := t.rt.SpawnTask(func() Awaitable { return t.invoke(gen) }); err != nil {
		t.logger.Debug().
			Str(`component`, `timer`).
			Err(err).
			Log(`timer dispatch dropped`)
	}
}

// invoke is stage two, run as its own loop task. It re-checks state before
// touching user code, invokes the callback, and reschedules from its
// result. A panic in the callback propagates to the loop's containment:
// the failure is reported and the timer is left running with no pending
// fire.
func (t *Timer) invoke(gen uint64) Awaitable {
	if !t.stillCurrent(gen) {
		return nil
	}

	next := t.callback(t.rt.Now())

	// A Stop (or Stop+Start) during the callback wins before the result is
	// interpreted, so a stopped timer never reschedules and the result of a
	// stale invocation is discarded unread.
	if !t.stillCurrent(gen) {
		return nil
	}

	if next.pending != nil {
		return t.awaitNextFire(gen, next.pending)
	}
	if next.when.IsZero() {
		return rejected(errZeroNextFire)
	}
	if err := t.reschedule(gen, next.when); err != nil {
		return rejected(err)
	}
	return nil
}

// awaitNextFire bridges a suspended callback back onto the loop: once the
// future settles, the continuation hops to the loop goroutine and
// reschedules there. The returned awaitable is the task's own completion,
// rejected when the future rejects or the loop is gone.
func (t *Timer) awaitNextFire(gen uint64, pending *Future[time.Time]) Awaitable {
	done := NewFuture[any]()
	pending.whenSettled(func() {
		err := t.rt.CallSoon(func() {
			when, err := pending.Result()
			if err != nil {
				done.Reject(err)
				return
			}
			if !t.stillCurrent(gen) {
				done.Resolve(nil)
				return
			}
			if when.IsZero() {
				done.Reject(errZeroNextFire)
				return
			}
			if err := t.reschedule(gen, when); err != nil {
				done.Reject(err)
				return
			}
			done.Resolve(nil)
		})
		if err != nil {
			done.Reject(err)
		}
	})
	return done
}

// reschedule schedules the next fire at when, unless the timer stopped or
// restarted since gen. A scheduling failure leaves the timer running with
// no pending fire.
func (t *Timer) reschedule(gen uint64, when time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running || gen != t.gen {
		return nil
	}
	h, err := t.rt.CallAt(when, func() { t.dispatch(gen) })
	if err != nil {
		return err
	}
	t.pending = h
	return nil
}

// rejected returns an already-rejected awaitable.
func rejected(err error) Awaitable {
	f := NewFuture[any]()
	f.Reject(err)
	return f
}
