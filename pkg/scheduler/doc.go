// Package scheduler is a single-threaded cooperative task scheduler.
//
// Tasks are ordered by expiration: a task's priority decides how long it may
// wait before it is considered overdue. Work runs in frames; a running Job
// checks ShouldYield between units of work and, when asked to yield, returns
// a continuation Job that keeps its place in the queue.
//
// # Driving the scheduler
//
// Scheduler itself never starts goroutines. Tests drive it explicitly with
// FlushAll or FlushFrame on top of a ManualClock. Long-running programs wrap
// it in a Loop, which owns one goroutine, accepts work from other goroutines
// through Post, and sleeps until the next delayed task is due.
//
//	s := scheduler.New(scheduler.WithFrameBudget(5 * time.Millisecond))
//	s.ScheduleCallback(scheduler.NormalPriority, scheduler.Func(func() {
//	    fmt.Println("ran")
//	}))
//	if err := s.FlushAll(); err != nil {
//	    log.Fatal(err)
//	}
package scheduler
