package flexsched

import (
	"container/heap"
	"context"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"
	catrate "github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

// failureLogCategory keys the rate limiter for task-failure log output.
const failureLogCategory = `task-failure`

// timerEntry states, CAS-transitioned so Cancel and dispatch race safely.
const (
	timerPending int32 = iota
	timerFired
	timerCancelled
)

// timerEntry is one scheduled fire. It doubles as the Handle returned to the
// submitter: Cancel is a CAS on the entry state, and the loop drops cancelled
// entries lazily when they surface at the heap root.
type timerEntry struct {
	when  time.Time
	fn    func()
	seq   uint64
	state atomic.Int32
}

// Cancel implements Handle.
func (t *timerEntry) Cancel() bool {
	return t.state.CompareAndSwap(timerPending, timerCancelled)
}

// timerQueue is a min-heap of pending fires ordered by time, insertion
// sequence breaking ties. Owned by the loop goroutine.
type timerQueue []*timerEntry

func (h timerQueue) Len() int { return len(h) }
func (h timerQueue) Less(i, j int) bool {
	if h[i].when.Equal(h[j].when) {
		return h[i].seq < h[j].seq
	}
	return h[i].when.Before(h[j].when)
}
func (h timerQueue) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *timerQueue) Push(x any) {
	*h = append(*h, x.(*timerEntry))
}

func (h *timerQueue) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}

// Loop is the in-package Runtime implementation: a single-goroutine run
// loop with a FIFO ingress queue, a timer heap, per-call worker offload and
// os/signal-backed signal registration.
//
// All exported methods are safe for concurrent use. Everything submitted
// runs on the goroutine that called Run; blocking that goroutine stalls all
// scheduling.
type Loop struct {
	// Prevent copying
	_ [0]func()

	state atomicState

	// ingress is the cross-goroutine submission queue, drained in batches by
	// the loop goroutine.
	ingressMu sync.Mutex
	ingress   *queue.Queue

	// wake has capacity 1; a failed send means a wake is already pending.
	wake chan struct{}

	// timers and timerSeq are touched only on the loop goroutine.
	timers   timerQueue
	timerSeq uint64

	// batch is the loop-owned drain buffer, reused across passes.
	batch []func()

	loopDone  chan struct{}
	closeDone sync.Once

	loopGoroutineID atomic.Uint64

	debug atomic.Bool

	signalMu sync.Mutex
	signals  map[os.Signal]*signalForwarder

	metrics   *loopMetrics
	onFailure func(error)
	failRate  *catrate.Limiter
	logger    *logiface.Logger[logiface.Event]
}

// NewLoop returns a Loop in the created state. It starts no goroutines; call
// Run to start processing.
func NewLoop(opts ...LoopOption) (*Loop, error) {
	cfg, err := resolveLoopOptions(opts)
	if err != nil {
		return nil, err
	}
	l := &Loop{
		ingress:   queue.New(),
		wake:      make(chan struct{}, 1),
		loopDone:  make(chan struct{}),
		signals:   make(map[os.Signal]*signalForwarder),
		onFailure: cfg.taskFailureHandler,
		logger:    cfg.logger,
		failRate: catrate.NewLimiter(map[time.Duration]int{
			time.Second: 5,
			time.Minute: 30,
		}),
	}
	if cfg.metrics {
		l.metrics = &loopMetrics{}
	}
	return l, nil
}

// Now implements Runtime using the wall clock; CallAt timestamps are
// interpreted against the same clock.
func (l *Loop) Now() time.Time {
	return time.Now()
}

// SetDebug toggles verbose per-pass diagnostics, independent of the
// logger's own level gates.
func (l *Loop) SetDebug(enabled bool) {
	l.debug.Store(enabled)
}

// CallSoon implements Runtime.
func (l *Loop) CallSoon(fn func()) error {
	if fn == nil {
		return ErrNilCallback
	}
	return l.enqueue(fn)
}

// CallAt implements Runtime. The entry lands in the timer heap via the
// ingress queue, so the heap stays loop-goroutine-only; the handle is valid
// (and cancellable) as soon as CallAt returns, even before that happens.
func (l *Loop) CallAt(when time.Time, fn func()) (Handle, error) {
	if fn == nil {
		return nil, ErrNilCallback
	}
	t := &timerEntry{when: when, fn: fn}
	if err := l.enqueue(func() {
		if t.state.Load() == timerCancelled {
			l.metrics.addTimersCancelled(1)
			return
		}
		l.timerSeq++
		t.seq = l.timerSeq
		heap.Push(&l.timers, t)
	}); err != nil {
		return nil, err
	}
	return t, nil
}

// SpawnTask implements Runtime. The task function is not invoked until the
// loop pass that dispatches it.
func (l *Loop) SpawnTask(task TaskFunc) error {
	if task == nil {
		return ErrNilCallback
	}
	return l.enqueue(func() {
		aw := task()
		if aw != nil {
			l.watchTask(aw)
		}
	})
}

// watchTask observes a started task's Awaitable and routes a rejection to
// the task-failure handling. Futures from this package notify via a settle
// hook; foreign Awaitable implementations cost a watcher goroutine.
func (l *Loop) watchTask(aw Awaitable) {
	report := func() {
		if err := aw.Err(); err != nil {
			l.reportFailure(err)
		}
	}
	if n, ok := aw.(settleNotifier); ok {
		n.whenSettled(report)
		return
	}
	go func() {
		<-aw.Done()
		report()
	}()
}

// enqueue admits fn to the ingress queue and wakes the loop.
func (l *Loop) enqueue(fn func()) error {
	if !l.state.canAcceptWork() {
		return ErrLoopClosed
	}
	l.ingressMu.Lock()
	l.ingress.Add(fn)
	depth := l.ingress.Length()
	l.ingressMu.Unlock()
	l.metrics.observeIngressDepth(depth)
	l.wakeup()
	return nil
}

func (l *Loop) wakeup() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run implements Runtime. It executes the loop on the calling goroutine and
// blocks until Stop, Close, or ctx ends it. A Loop runs at most once.
func (l *Loop) Run(ctx context.Context) error {
	if l.isLoopGoroutine() {
		return ErrLoopAlreadyRunning
	}
	if !l.state.tryTransition(stateAwake, stateRunning) {
		if l.state.load() == stateTerminated {
			return ErrLoopClosed
		}
		return ErrLoopAlreadyRunning
	}
	defer func() {
		l.state.store(stateTerminated)
		l.closeDone.Do(func() { close(l.loopDone) })
	}()

	l.logger.Debug().Str(`component`, `loop`).Log(`run started`)
	err := l.run(ctx)
	l.logger.Debug().Str(`component`, `loop`).Err(err).Log(`run finished`)
	return err
}

// maxIdleWait caps a single idle sleep; a wake, a nearer timer, or
// cancellation all end it early.
const maxIdleWait = 10 * time.Second

// run is the loop body. Each pass runs due timers against one clock
// snapshot, drains a bounded ingress batch, and sleeps only when idle.
func (l *Loop) run(ctx context.Context) error {
	l.loopGoroutineID.Store(currentGoroutineID())
	defer l.loopGoroutineID.Store(0)

	idle := time.NewTimer(maxIdleWait)
	idle.Stop()
	defer idle.Stop()

	for {
		if l.state.load() != stateRunning {
			return nil
		}
		select {
		case <-ctx.Done():
			l.beginStopping()
			return ctx.Err()
		default:
		}

		now := time.Now()
		ran := l.runDueTimers(now)
		ran += l.drainIngress()
		if ran > 0 {
			continue
		}

		wait := l.nextWait(now)
		if l.debug.Load() {
			l.logger.Trace().
				Str(`component`, `loop`).
				Dur(`wait`, wait).
				Int(`timers`, len(l.timers)).
				Log(`loop idle`)
		}
		idle.Reset(wait)
		select {
		case <-l.wake:
			idle.Stop()
		case <-idle.C:
		case <-ctx.Done():
			idle.Stop()
			l.beginStopping()
			return ctx.Err()
		}
	}
}

// runDueTimers pops and executes every entry due at now. Cancelled entries
// surfacing at the root are dropped here rather than eagerly on Cancel.
func (l *Loop) runDueTimers(now time.Time) (ran int) {
	for len(l.timers) > 0 {
		next := l.timers[0]
		if next.state.Load() == timerCancelled {
			heap.Pop(&l.timers)
			l.metrics.addTimersCancelled(1)
			continue
		}
		if next.when.After(now) {
			break
		}
		heap.Pop(&l.timers)
		if !next.state.CompareAndSwap(timerPending, timerFired) {
			l.metrics.addTimersCancelled(1)
			continue
		}
		l.safeExecute(next.fn)
		l.metrics.addTimersFired(1)
		ran++
	}
	return ran
}

// drainIngress moves up to one budget of queued functions into the loop
// batch buffer under a single lock hold, then executes them.
func (l *Loop) drainIngress() int {
	const budget = 1024

	l.ingressMu.Lock()
	n := l.ingress.Length()
	if n == 0 {
		l.ingressMu.Unlock()
		return 0
	}
	if n > budget {
		n = budget
	}
	for i := 0; i < n; i++ {
		l.batch = append(l.batch, l.ingress.Remove().(func()))
	}
	l.ingressMu.Unlock()

	for i, fn := range l.batch {
		l.safeExecute(fn)
		l.batch[i] = nil
	}
	l.batch = l.batch[:0]
	l.metrics.addTasksExecuted(uint64(n))
	return n
}

// nextWait computes the idle sleep. Cancelled entries at the heap root are
// scavenged first so they cannot shorten the sleep.
func (l *Loop) nextWait(now time.Time) time.Duration {
	for len(l.timers) > 0 && l.timers[0].state.Load() == timerCancelled {
		heap.Pop(&l.timers)
		l.metrics.addTimersCancelled(1)
	}
	wait := maxIdleWait
	if len(l.timers) > 0 {
		until := l.timers[0].when.Sub(now)
		if until < 0 {
			until = 0
		}
		if until < wait {
			wait = until
		}
	}
	return wait
}

// beginStopping moves a live loop to stateStopping, waking it if asleep.
func (l *Loop) beginStopping() {
	for {
		s := l.state.load()
		if s == stateStopping || s == stateTerminated {
			return
		}
		if l.state.tryTransition(s, stateStopping) {
			l.wakeup()
			return
		}
	}
}

// Stop implements Runtime. The loop finishes its current pass and exits
// without draining queued work. Stopping a loop that never ran terminates
// it immediately.
func (l *Loop) Stop() error {
	for {
		switch l.state.load() {
		case stateAwake:
			if l.state.tryTransition(stateAwake, stateTerminated) {
				l.closeDone.Do(func() { close(l.loopDone) })
				return nil
			}
		case stateRunning:
			if l.state.tryTransition(stateRunning, stateStopping) {
				l.wakeup()
				return nil
			}
		default:
			return nil
		}
	}
}

// Close implements Runtime: Stop plus resource release (signal
// registrations). It does not wait for an active Run to return; Done can be
// used for that.
func (l *Loop) Close() error {
	_ = l.Stop()
	l.removeAllSignalHandlers()
	return nil
}

// Done returns a channel closed once Run has returned (or immediately for a
// loop stopped before it ever ran).
func (l *Loop) Done() <-chan struct{} {
	return l.loopDone
}

// safeExecute runs fn with panic containment; a recovered panic is routed
// as a task failure and never unwinds the loop.
func (l *Loop) safeExecute(fn func()) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			l.reportFailure(PanicError{Value: r})
		}
	}()
	fn()
}

// reportFailure routes an execution failure that has no waiting caller:
// the configured handler if any, otherwise rate-limited error logging.
// May be invoked from the loop goroutine or a task watcher goroutine.
func (l *Loop) reportFailure(err error) {
	l.metrics.addTaskFailures(1)
	if l.onFailure != nil {
		l.onFailure(err)
		return
	}
	if _, ok := l.failRate.Allow(failureLogCategory); ok {
		l.logger.Err().
			Str(`component`, `loop`).
			Err(err).
			Log(`task failure`)
	}
}

// isLoopGoroutine reports whether the caller is the loop goroutine.
func (l *Loop) isLoopGoroutine() bool {
	id := l.loopGoroutineID.Load()
	if id == 0 {
		return false
	}
	return currentGoroutineID() == id
}

// currentGoroutineID parses the goroutine id from the stack header. Only
// used for deadlock guards, never for logic that needs to be fast.
func currentGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] < '0' || buf[i] > '9' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}
