package flexsched

import (
	"errors"
	"fmt"
)

var (
	// ErrLoopAlreadyRunning is returned when Run is called on a loop that is
	// already running, including from within one of its own callbacks.
	ErrLoopAlreadyRunning = errors.New("flexsched: loop is already running")

	// ErrLoopClosed is returned when work is submitted to a loop that is
	// stopping or has terminated.
	ErrLoopClosed = errors.New("flexsched: loop is closed")

	// ErrReentrantCall is returned when a blocking operation is invoked from
	// the loop goroutine itself, where waiting would deadlock the loop.
	ErrReentrantCall = errors.New("flexsched: cannot block on the loop goroutine")

	// ErrUnsupported is returned by facade passthroughs when the underlying
	// runtime does not implement the optional capability.
	ErrUnsupported = errors.New("flexsched: operation not supported by runtime")

	// ErrNilCallback is returned when a zero or nil callback is submitted.
	ErrNilCallback = errors.New("flexsched: nil callback")

	// ErrNilRuntime is returned by New when no runtime is provided.
	ErrNilRuntime = errors.New("flexsched: nil runtime")

	// ErrFutureUnresolved is returned by Future.Result before settlement.
	ErrFutureUnresolved = errors.New("flexsched: future is not settled")

	// ErrGoexit rejects a worker call whose goroutine exited via
	// runtime.Goexit without returning, so waiters never hang.
	ErrGoexit = errors.New("flexsched: worker goroutine exited via runtime.Goexit")
)

// PanicError wraps a panic value recovered from user code, whether it ran on
// the loop goroutine or on a worker.
type PanicError struct {
	Value any
}

func (e PanicError) Error() string {
	return fmt.Sprintf("flexsched: callback panicked: %v", e.Value)
}

// Unwrap returns the underlying error if the panic value is an error type.
// This enables use with [errors.Is] and [errors.As] for error matching
// through the cause chain.
func (e PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
