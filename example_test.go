package flexsched_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	flexsched "github.com/joeycumines/go-flexsched"
)

// Example_basicUsage demonstrates creating a loop and submitting callbacks.
//
// This shows the fundamental pattern of:
// 1. Creating a loop with NewLoop() and a facade with New()
// 2. Submitting callbacks with RegisterCallback()
// 3. Running the loop in a goroutine
// 4. Stopping it
func Example_basicUsage() {
	loop, err := flexsched.NewLoop()
	if err != nil {
		fmt.Printf("Failed to create loop: %v\n", err)
		return
	}
	sched, err := flexsched.New(loop)
	if err != nil {
		fmt.Printf("Failed to create scheduler: %v\n", err)
		return
	}

	// Track when callbacks complete
	var wg sync.WaitGroup
	wg.Add(2)

	// Submit callbacks before running; they run once the loop starts, in
	// submission order.
	sched.RegisterCallback(flexsched.Call(func() {
		fmt.Println("Task 1 executed")
		wg.Done()
	}))
	sched.RegisterCallback(flexsched.Call(func() {
		fmt.Println("Task 2 executed")
		wg.Done()
	}))

	// Run loop in background
	go sched.Run(context.Background())

	// Wait for callbacks, then stop
	wg.Wait()
	sched.Stop()
	<-loop.Done()

	fmt.Println("Done")

	// Output:
	// Task 1 executed
	// Task 2 executed
	// Done
}

// Example_flexibleTimer demonstrates a timer that decides its own schedule.
//
// The callback's return value is the next absolute fire time; stopping from
// within the callback is honored before that value is interpreted.
func Example_flexibleTimer() {
	loop, _ := flexsched.NewLoop()
	sched, _ := flexsched.New(loop)

	var wg sync.WaitGroup
	wg.Add(1)

	fires := 0
	var timer *flexsched.Timer
	timer = sched.RegisterTimer(func(now time.Time) flexsched.NextFire {
		fires++
		fmt.Printf("Fire %d\n", fires)
		if fires == 3 {
			timer.Stop()
			wg.Done()
			// Discarded: the timer stopped during this invocation.
			return flexsched.Fire(now)
		}
		return flexsched.Fire(now.Add(10 * time.Millisecond))
	})
	timer.Start(0)

	go sched.Run(context.Background())
	wg.Wait()
	sched.Stop()
	<-loop.Done()

	// Output:
	// Fire 1
	// Fire 2
	// Fire 3
}

// Example_suspendingTimer demonstrates the Await variant: the next fire time
// arrives via a future, resolved off-loop.
func Example_suspendingTimer() {
	loop, _ := flexsched.NewLoop()
	sched, _ := flexsched.New(loop)

	var wg sync.WaitGroup
	wg.Add(1)

	fires := 0
	var timer *flexsched.Timer
	timer = sched.RegisterTimer(func(now time.Time) flexsched.NextFire {
		fires++
		fmt.Printf("Fire %d\n", fires)
		if fires == 2 {
			timer.Stop()
			wg.Done()
			return flexsched.Fire(now)
		}

		// The next fire time is computed outside the loop.
		next := flexsched.NewFuture[time.Time]()
		go func() {
			next.Resolve(sched.Now().Add(10 * time.Millisecond))
		}()
		return flexsched.Await(next)
	})
	timer.Start(0)

	go sched.Run(context.Background())
	wg.Wait()
	sched.Stop()
	<-loop.Done()

	// Output:
	// Fire 1
	// Fire 2
}

// Example_delayedCancel demonstrates cancelling a delayed callback before it
// fires.
func Example_delayedCancel() {
	loop, _ := flexsched.NewLoop()
	sched, _ := flexsched.New(loop)

	go sched.Run(context.Background())

	done := make(chan struct{})
	sched.DelayCallback(20*time.Millisecond, flexsched.Call(func() {
		fmt.Println("fired")
		close(done)
	}))

	h, _ := sched.DelayCallback(20*time.Millisecond, flexsched.Call(func() {
		fmt.Println("this line is never printed")
	}))
	fmt.Printf("cancelled: %v\n", h.Cancel())

	<-done
	sched.Stop()
	<-loop.Done()

	// Output:
	// cancelled: true
	// fired
}

// Example_runBlocking demonstrates offloading blocking work while the
// calling goroutine waits.
func Example_runBlocking() {
	loop, _ := flexsched.NewLoop()
	sched, _ := flexsched.New(loop)

	go sched.Run(context.Background())

	v, err := sched.RunBlocking(context.Background(), func(ctx context.Context) (any, error) {
		// Runs on a goroutine dedicated to this call.
		return "offloaded result", nil
	})
	if err != nil {
		fmt.Printf("RunBlocking error: %v\n", err)
		return
	}
	fmt.Printf("Got: %v\n", v)

	sched.Stop()
	<-loop.Done()

	// Output:
	// Got: offloaded result
}
