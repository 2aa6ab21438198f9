package core

import "time"

type (
	// Timer is a cancellable scheduled task handle.
	Timer interface {
		// Stop cancels the task. It reports whether the call prevented the
		// task from firing.
		Stop() bool
	}

	// Scheduler schedules one-shot tasks. Engines own every handle they
	// create and must stop them on disposal; nothing here is fire-and-forget.
	Scheduler interface {
		AfterFunc(d time.Duration, fn func()) Timer
	}
)

type stdScheduler struct{}

// StdScheduler schedules on the runtime timer heap.
var StdScheduler Scheduler = stdScheduler{}

func (stdScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}
