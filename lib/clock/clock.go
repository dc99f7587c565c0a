// Copyright 2026 The Kotori Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock abstracts the time operations the scheduler and cron dispatcher
// depend on. Production code injects Real(); tests inject Fake() and
// drive time forward deterministically with Advance.
//
// Production functions must not call time.Now, time.AfterFunc, or
// time.NewTicker directly; they accept a Clock (or are methods on a
// struct with a Clock field) instead.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc waits for duration d, then calls f. The returned Timer
	// cancels the pending call via Stop. If d <= 0, f runs immediately
	// (in a new goroutine for the real clock, synchronously for the
	// fake).
	AfterFunc(d time.Duration, f func()) *Timer
}

// Timer represents a scheduled callback created by AfterFunc.
type Timer struct {
	stopFunc func() bool
}

// Stop prevents the timer from firing. Returns true if the call stops
// the timer, false if it has already fired or been stopped.
func (t *Timer) Stop() bool { return t.stopFunc() }
