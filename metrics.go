package flexsched

import (
	"sync/atomic"
)

// loopMetrics holds a Loop's counters. A nil receiver records nothing, so
// call sites stay unconditional whether or not metrics were enabled.
type loopMetrics struct {
	tasksExecuted   atomic.Uint64
	timersFired     atomic.Uint64
	timersCancelled atomic.Uint64
	taskFailures    atomic.Uint64
	workerCalls     atomic.Uint64
	maxIngressDepth atomic.Uint64
}

func (m *loopMetrics) addTasksExecuted(n uint64) {
	if m != nil {
		m.tasksExecuted.Add(n)
	}
}

func (m *loopMetrics) addTimersFired(n uint64) {
	if m != nil {
		m.timersFired.Add(n)
	}
}

func (m *loopMetrics) addTimersCancelled(n uint64) {
	if m != nil {
		m.timersCancelled.Add(n)
	}
}

func (m *loopMetrics) addTaskFailures(n uint64) {
	if m != nil {
		m.taskFailures.Add(n)
	}
}

func (m *loopMetrics) addWorkerCalls(n uint64) {
	if m != nil {
		m.workerCalls.Add(n)
	}
}

// observeIngressDepth tracks the high-water mark of the ingress queue.
func (m *loopMetrics) observeIngressDepth(depth int) {
	if m == nil || depth <= 0 {
		return
	}
	d := uint64(depth)
	for {
		cur := m.maxIngressDepth.Load()
		if d <= cur || m.maxIngressDepth.CompareAndSwap(cur, d) {
			return
		}
	}
}

// MetricsSnapshot is a point-in-time copy of a Loop's counters.
//
// TimersCancelled counts entries the loop actually discarded, so it lags
// Handle.Cancel calls until the cancelled entry surfaces in the heap.
type MetricsSnapshot struct {
	// TasksExecuted counts ingress functions dispatched (callbacks, spawned
	// task starts, timer-heap pushes).
	TasksExecuted uint64
	// TimersFired counts timer entries dispatched at their fire time.
	TimersFired uint64
	// TimersCancelled counts timer entries discarded after cancellation.
	TimersCancelled uint64
	// TaskFailures counts failures routed to the task-failure handling,
	// including recovered panics.
	TaskFailures uint64
	// WorkerCalls counts RunOnWorker invocations that spawned a worker.
	WorkerCalls uint64
	// MaxIngressDepth is the high-water mark of the submission queue.
	MaxIngressDepth uint64
}

// Metrics returns a snapshot of the loop's counters, or nil when the loop
// was built without WithMetrics(true).
func (l *Loop) Metrics() *MetricsSnapshot {
	m := l.metrics
	if m == nil {
		return nil
	}
	return &MetricsSnapshot{
		TasksExecuted:   m.tasksExecuted.Load(),
		TimersFired:     m.timersFired.Load(),
		TimersCancelled: m.timersCancelled.Load(),
		TaskFailures:    m.taskFailures.Load(),
		WorkerCalls:     m.workerCalls.Load(),
		MaxIngressDepth: m.maxIngressDepth.Load(),
	}
}
