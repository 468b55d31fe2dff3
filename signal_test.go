package flexsched

import (
	"errors"
	"os"
	"syscall"
	"testing"
	"time"
)

// forwarderFor grabs the live registration so tests can inject deliveries
// directly, keeping them independent of OS signal plumbing.
func forwarderFor(l *Loop, sig os.Signal) *signalForwarder {
	l.signalMu.Lock()
	defer l.signalMu.Unlock()
	return l.signals[sig]
}

func forwarderStopped(fw *signalForwarder) bool {
	select {
	case <-fw.done:
		return true
	default:
		return false
	}
}

func TestSignalHandlerRunsOnLoopGoroutine(t *testing.T) {
	l := newRunningLoop(t)

	gids := make(chan uint64, 2)
	if err := l.AddSignalHandler(syscall.SIGHUP, func() {
		gids <- currentGoroutineID()
	}); err != nil {
		t.Fatalf("AddSignalHandler failed: %v", err)
	}

	fw := forwarderFor(l, syscall.SIGHUP)
	if fw == nil {
		t.Fatal("no forwarder registered")
	}
	fw.ch <- syscall.SIGHUP

	if err := l.CallSoon(func() { gids <- currentGoroutineID() }); err != nil {
		t.Fatalf("CallSoon failed: %v", err)
	}

	var handlerGID, loopGID uint64
	for i := 0; i < 2; i++ {
		select {
		case gid := <-gids:
			if i == 0 {
				handlerGID = gid
			} else {
				loopGID = gid
			}
		case <-time.After(5 * time.Second):
			t.Fatal("signal handler never ran")
		}
	}
	if handlerGID != loopGID {
		t.Errorf("handler ran on goroutine %d, loop is %d", handlerGID, loopGID)
	}
}

func TestSignalHandlerReplaceStopsPrevious(t *testing.T) {
	l := newRunningLoop(t)

	aCh := make(chan struct{}, 1)
	if err := l.AddSignalHandler(syscall.SIGHUP, func() { aCh <- struct{}{} }); err != nil {
		t.Fatalf("AddSignalHandler failed: %v", err)
	}
	prev := forwarderFor(l, syscall.SIGHUP)

	bCh := make(chan struct{}, 1)
	if err := l.AddSignalHandler(syscall.SIGHUP, func() { bCh <- struct{}{} }); err != nil {
		t.Fatalf("replacing AddSignalHandler failed: %v", err)
	}
	if !forwarderStopped(prev) {
		t.Error("previous forwarder not stopped on replacement")
	}

	fw := forwarderFor(l, syscall.SIGHUP)
	if fw == prev {
		t.Fatal("forwarder not replaced")
	}
	fw.ch <- syscall.SIGHUP

	select {
	case <-bCh:
	case <-time.After(5 * time.Second):
		t.Fatal("replacement handler never ran")
	}
	select {
	case <-aCh:
		t.Error("replaced handler still ran")
	case <-time.After(30 * time.Millisecond):
	}
}

func TestSignalRemoveHandler(t *testing.T) {
	l := newRunningLoop(t)

	if err := l.AddSignalHandler(syscall.SIGHUP, func() {}); err != nil {
		t.Fatalf("AddSignalHandler failed: %v", err)
	}
	fw := forwarderFor(l, syscall.SIGHUP)

	if err := l.RemoveSignalHandler(syscall.SIGHUP); err != nil {
		t.Fatalf("RemoveSignalHandler failed: %v", err)
	}
	if !forwarderStopped(fw) {
		t.Error("forwarder not stopped on removal")
	}
	if forwarderFor(l, syscall.SIGHUP) != nil {
		t.Error("registration not deleted")
	}

	// Removing an absent registration is a no-op.
	if err := l.RemoveSignalHandler(syscall.SIGHUP); err != nil {
		t.Errorf("second RemoveSignalHandler = %v, want nil", err)
	}
}

func TestSignalCloseRemovesAllHandlers(t *testing.T) {
	l := newRunningLoop(t)

	if err := l.AddSignalHandler(syscall.SIGHUP, func() {}); err != nil {
		t.Fatalf("AddSignalHandler failed: %v", err)
	}
	if err := l.AddSignalHandler(syscall.SIGTERM, func() {}); err != nil {
		t.Fatalf("AddSignalHandler failed: %v", err)
	}
	hup := forwarderFor(l, syscall.SIGHUP)
	term := forwarderFor(l, syscall.SIGTERM)

	if err := l.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !forwarderStopped(hup) || !forwarderStopped(term) {
		t.Error("forwarders not stopped by Close")
	}
	if forwarderFor(l, syscall.SIGHUP) != nil || forwarderFor(l, syscall.SIGTERM) != nil {
		t.Error("registrations not deleted by Close")
	}
}

func TestSignalNilHandler(t *testing.T) {
	l := newRunningLoop(t)
	if err := l.AddSignalHandler(syscall.SIGHUP, nil); !errors.Is(err, ErrNilCallback) {
		t.Errorf("AddSignalHandler(nil) = %v, want ErrNilCallback", err)
	}
}

func TestSignalAddAfterStopFails(t *testing.T) {
	l, err := NewLoop()
	if err != nil {
		t.Fatalf("NewLoop() failed: %v", err)
	}
	if err := l.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := l.AddSignalHandler(syscall.SIGHUP, func() {}); !errors.Is(err, ErrLoopClosed) {
		t.Errorf("AddSignalHandler = %v, want ErrLoopClosed", err)
	}
}
