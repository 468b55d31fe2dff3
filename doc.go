// Package flexsched provides a single-goroutine cooperative scheduling core:
// a [Scheduler] facade that normalizes callback submission over a host run
// loop, and a self-rescheduling [Timer] whose next fire time is decided by
// its own callback, fire by fire.
//
// # Architecture
//
// The package is split along one seam: [Runtime] is the host run-loop
// contract (clock, immediate and absolute-time submission, task spawning,
// worker offload, lifecycle), and [Scheduler] is a thin uniform surface
// over any Runtime. [Loop] is the in-package production Runtime; tests and
// embedders with their own loop supply something else and the rest of the
// package works unchanged.
//
// Everything submitted executes on the single goroutine inside
// [Runtime.Run], one callback at a time. Blocking that goroutine stalls all
// scheduling; blocking work belongs in [Scheduler.RunBlocking], which runs
// it on a goroutine dedicated to the call while the caller waits.
//
// # Callbacks
//
// Work is submitted as a [Callback], a closed union of two variants:
// [Call] wraps a plain function that runs to completion in one pass, and
// [Async] wraps a [TaskFunc] that may suspend, reporting completion via an
// [Awaitable]. Both variants are accepted uniformly by
// [Scheduler.RegisterCallback] and [Scheduler.DelayCallback]. A TaskFunc is
// not invoked until its dispatch pass, so cancelling a delayed submission
// means the computation is never constructed at all.
//
// # Flexible Timers
//
// [Timer] generalizes periodic execution: after each invocation the
// callback returns a [NextFire], either [Fire] with the next absolute fire
// time or [Await] with a future that delivers it after suspended work
// completes. Variable-rate polling, backoff, and calendar schedules
// ([Scheduler.RegisterCronTimer]) all fall out of that one contract.
//
// Timer dispatch is two-staged: the scheduled fire only re-submits the
// callback invocation as a fresh task, and the invocation re-checks the
// timer's state before running user code. Stopping a timer therefore takes
// effect even when a fire is already in flight.
//
// # Thread Safety
//
//   - Submission ([Scheduler.RegisterCallback], [Scheduler.DelayCallback],
//     [Scheduler.CallAt], [Scheduler.SpawnTask]) is safe from any goroutine.
//   - [Timer.Start] and [Timer.Stop] are idempotent and safe from any
//     goroutine, including from inside the timer's own callback.
//   - Execution of everything submitted happens on the loop goroutine only.
//
// # Failure Routing
//
// Scheduling errors are synchronous returns. Execution failures with no
// waiting caller (rejected task awaitables, recovered callback panics) are
// routed to the loop's task-failure handling: a handler installed with
// [WithTaskFailureHandler], or rate-limited error logging otherwise. A
// failed timer callback leaves its timer running with no scheduled fire;
// [Timer.Stop] then [Timer.Start] revives it.
//
// # Usage
//
//	loop, err := flexsched.NewLoop()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer loop.Close()
//
//	sched, err := flexsched.New(loop)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	poll := sched.RegisterTimer(func(now time.Time) flexsched.NextFire {
//	    if busy() {
//	        return flexsched.Fire(now.Add(50 * time.Millisecond))
//	    }
//	    return flexsched.Fire(now.Add(2 * time.Second))
//	})
//	if err := poll.Start(0); err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := loop.Run(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
package flexsched
