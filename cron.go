package flexsched

import (
	"time"

	"github.com/robfig/cron/v3"
)

// RegisterCronTimer returns a stopped Timer that runs fn at each activation
// of schedule. Calendar scheduling is just a special case of the flexible
// timer: the callback runs fn, then returns schedule.Next(now) as the next
// fire time.
//
// Start(delay) controls only the first invocation; to align it with the
// schedule, start with [NextDelay]:
//
//	sched, err := cron.ParseStandard("*/5 * * * *")
//	if err != nil { ... }
//	t := s.RegisterCronTimer(sched, poll)
//	if err := t.Start(flexsched.NextDelay(sched, s.Now())); err != nil { ... }
//
// An exhausted schedule (Next returning the zero time) stops the timer from
// within its own callback; the invocation machinery guarantees no further
// fire after that.
func (s *Scheduler) RegisterCronTimer(schedule cron.Schedule, fn func(now time.Time)) *Timer {
	if schedule == nil || fn == nil {
		return s.RegisterTimer(nil)
	}
	var t *Timer
	t = s.RegisterTimer(func(now time.Time) NextFire {
		fn(now)
		next := schedule.Next(now)
		if next.IsZero() {
			t.Stop()
			return Fire(now)
		}
		return Fire(next)
	})
	return t
}

// NextDelay returns the delay from now until schedule's next activation,
// for aligning Timer.Start with the schedule. An exhausted schedule yields
// zero.
func NextDelay(schedule cron.Schedule, now time.Time) time.Duration {
	next := schedule.Next(now)
	if next.IsZero() {
		return 0
	}
	return next.Sub(now)
}
