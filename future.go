package flexsched

import (
	"context"
	"sync"
)

// closedSettleChan is shared by every future that settles before Done is
// first requested, avoiding a per-future allocation for the common
// synchronous-completion path.
var closedSettleChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Future is a single-assignment result container: the module's currency for
// suspension. It is settled exactly once, via Resolve or Reject, from any
// goroutine (including the loop goroutine), and satisfies [Awaitable].
//
// The zero value is not usable; construct with [NewFuture].
type Future[T any] struct {
	mu      sync.Mutex
	done    chan struct{} // lazily allocated, closed on settle
	hooks   []func()
	value   T
	err     error
	settled bool
}

// NewFuture returns an unsettled future.
func NewFuture[T any]() *Future[T] {
	return &Future[T]{}
}

// Resolve settles the future with a value. Reports whether this call
// performed the settlement; later calls to Resolve or Reject are no-ops.
func (f *Future[T]) Resolve(v T) bool {
	return f.settle(v, nil)
}

// Reject settles the future with an error. A nil err does not settle and
// returns false. Reports whether this call performed the settlement.
func (f *Future[T]) Reject(err error) bool {
	if err == nil {
		return false
	}
	var zero T
	return f.settle(zero, err)
}

func (f *Future[T]) settle(v T, err error) bool {
	f.mu.Lock()
	if f.settled {
		f.mu.Unlock()
		return false
	}
	f.settled = true
	f.value = v
	f.err = err
	if f.done == nil {
		f.done = closedSettleChan
	} else {
		close(f.done)
	}
	hooks := f.hooks
	f.hooks = nil
	f.mu.Unlock()

	// Hooks run outside the lock, on the settling goroutine, after the
	// settled state is visible. Hooks that need the loop goroutine must hop
	// back themselves.
	for _, fn := range hooks {
		fn()
	}
	return true
}

// Done returns a channel closed once the future settles.
func (f *Future[T]) Done() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.done == nil {
		if f.settled {
			f.done = closedSettleChan
		} else {
			f.done = make(chan struct{})
		}
	}
	return f.done
}

// Err returns nil until the future settles, then the rejection error (nil
// for a resolved future).
func (f *Future[T]) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.settled {
		return nil
	}
	return f.err
}

// Result returns the settled value or error without blocking. Before
// settlement it returns the zero value and [ErrFutureUnresolved].
func (f *Future[T]) Result() (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.settled {
		var zero T
		return zero, ErrFutureUnresolved
	}
	return f.value, f.err
}

// Wait blocks until the future settles or ctx is done, whichever is first.
// On ctx expiry the future is left as-is and ctx.Err() is returned.
//
// Wait must not be called from the loop goroutine when the settlement
// depends on further loop passes; use whenSettled-style continuations via
// the runtime instead (the timer machinery does exactly this).
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.Done():
		return f.Result()
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// settleNotifier is the non-generic view of a Future, letting the loop
// register completion hooks without a watcher goroutine or knowledge of the
// type parameter.
type settleNotifier interface {
	whenSettled(fn func())
}

// whenSettled registers fn to run exactly once after settlement. If the
// future is already settled, fn runs immediately on the calling goroutine.
func (f *Future[T]) whenSettled(fn func()) {
	f.mu.Lock()
	if f.settled {
		f.mu.Unlock()
		fn()
		return
	}
	f.hooks = append(f.hooks, fn)
	f.mu.Unlock()
}
