package flexsched

import (
	"fmt"
	"os"
	"os/signal"
)

// signalForwarder owns the notification channel and forwarding goroutine
// for one registered signal.
type signalForwarder struct {
	ch   chan os.Signal
	done chan struct{}
}

func (fw *signalForwarder) stop() {
	signal.Stop(fw.ch)
	close(fw.done)
}

// AddSignalHandler implements SignalRegistrar. Delivery stays with the Go
// runtime; this only forwards each notification onto the loop goroutine, so
// fn observes the same single-goroutine guarantees as any other callback.
// One handler per signal; re-adding replaces the previous registration.
func (l *Loop) AddSignalHandler(sig os.Signal, fn func()) error {
	if fn == nil {
		return ErrNilCallback
	}
	if !l.state.canAcceptWork() {
		return ErrLoopClosed
	}

	l.signalMu.Lock()
	defer l.signalMu.Unlock()

	if prev, ok := l.signals[sig]; ok {
		prev.stop()
	}

	fw := &signalForwarder{
		ch:   make(chan os.Signal, 1),
		done: make(chan struct{}),
	}
	signal.Notify(fw.ch, sig)
	go l.forwardSignals(sig, fw, fn)
	l.signals[sig] = fw

	l.logger.Debug().
		Str(`component`, `signal`).
		Str(`signal`, fmt.Sprint(sig)).
		Log(`signal handler registered`)
	return nil
}

// RemoveSignalHandler implements SignalRegistrar. Removing an unregistered
// signal is a no-op.
func (l *Loop) RemoveSignalHandler(sig os.Signal) error {
	l.signalMu.Lock()
	defer l.signalMu.Unlock()

	fw, ok := l.signals[sig]
	if !ok {
		return nil
	}
	fw.stop()
	delete(l.signals, sig)
	return nil
}

// removeAllSignalHandlers releases every registration; called by Close.
func (l *Loop) removeAllSignalHandlers() {
	l.signalMu.Lock()
	defer l.signalMu.Unlock()
	for sig, fw := range l.signals {
		fw.stop()
		delete(l.signals, sig)
	}
}

// forwardSignals pumps deliveries for one signal onto the loop until the
// registration is stopped. A delivery that cannot be submitted (loop
// closed) is dropped.
func (l *Loop) forwardSignals(sig os.Signal, fw *signalForwarder, fn func()) {
	for {
		select {
		case <-fw.done:
			return
		case <-fw.ch:
			if err := l.CallSoon(fn); err != nil {
				l.logger.Debug().
					Str(`component`, `signal`).
					Str(`signal`, fmt.Sprint(sig)).
					Err(err).
					Log(`dropped signal delivery`)
			}
		}
	}
}
