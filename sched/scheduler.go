// Package sched provides the cooperative low-power sleep primitive the
// node idles on. A watchdog timer is armed for one bounded interval at
// a time; its tick is the only signal that ends a sleep, so suspending
// is interrupt-driven rather than busy-waiting.
package sched

import (
	"context"
	"time"
)

const (
	// MinIntervalMS is the watchdog interrupt granularity. Requested
	// delays are rounded up to it.
	MinIntervalMS = 16

	// MaxIntervalMS caps a single armed interval. Longer logical
	// delays are split into back-to-back intervals.
	MaxIntervalMS = 65000
)

// Watchdog arms a hardware (or simulated) timer for one interval and
// delivers exactly one tick when it elapses. The tick carries no other
// work: anything beyond signalling elapsed time belongs to the caller.
type Watchdog interface {
	Arm(ms int) <-chan struct{}
}

// TimerWatchdog backs the watchdog with a monotonic timer. It stands in
// for the hardware watchdog interrupt when running hosted.
type TimerWatchdog struct{}

func (TimerWatchdog) Arm(ms int) <-chan struct{} {
	tick := make(chan struct{}, 1)
	time.AfterFunc(time.Duration(ms)*time.Millisecond, func() {
		tick <- struct{}{}
	})
	return tick
}

// Scheduler suspends execution in watchdog-interval steps. It is the
// sole suspension point in the system; every other operation is a
// bounded synchronous poll.
type Scheduler struct {
	wd Watchdog
}

func NewScheduler(wd Watchdog) *Scheduler {
	return &Scheduler{wd: wd}
}

// SleepMS suspends for approximately ms milliseconds. Delays above
// MaxIntervalMS are decomposed into consecutive armed intervals whose
// durations sum to ms; delays below MinIntervalMS are rounded up to
// one granule. Cancelling the context ends the sleep early and returns
// the context's error.
func (s *Scheduler) SleepMS(ctx context.Context, ms int) error {
	if ms <= 0 {
		return nil
	}

	remaining := ms
	for remaining > 0 {
		step := remaining
		if step > MaxIntervalMS {
			step = MaxIntervalMS
		}
		if step < MinIntervalMS {
			step = MinIntervalMS
		}

		select {
		case <-s.wd.Arm(step):
		case <-ctx.Done():
			return ctx.Err()
		}
		remaining -= step
	}
	return nil
}
