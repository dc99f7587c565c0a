// Copyright 2026 The Kotori Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sync"
	"time"
)

// Fake returns a FakeClock initialized to the given time. Time stands
// still until Advance is called.
//
// FakeClock is safe for concurrent use by multiple goroutines.
func Fake(initial time.Time) *FakeClock {
	return &FakeClock{current: initial}
}

// FakeClock is a deterministic Clock for testing. Timers fire only when
// Advance moves the clock past their deadline.
//
// AfterFunc callbacks are invoked synchronously during Advance in
// deadline order, with Now reporting each waiter's deadline while it
// fires, so a callback that reads the clock and re-arms schedules from
// the moment it fired, not from the end of the window. Do not call
// Advance from within a callback.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
	waiters []*fakeWaiter
}

// fakeWaiter is a pending AfterFunc callback.
type fakeWaiter struct {
	deadline time.Time
	callback func()
	stopped  bool
	fired    bool
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// AfterFunc schedules f to run after duration d. If d <= 0, f runs
// synchronously before AfterFunc returns.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) *Timer {
	c.mu.Lock()

	if d <= 0 {
		c.mu.Unlock()
		f()
		return &Timer{stopFunc: func() bool { return false }}
	}

	waiter := &fakeWaiter{
		deadline: c.current.Add(d),
		callback: f,
	}
	c.waiters = append(c.waiters, waiter)
	c.mu.Unlock()

	return &Timer{
		stopFunc: func() bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			if waiter.stopped || waiter.fired {
				return false
			}
			waiter.stopped = true
			return true
		},
	}
}

// Advance moves the clock forward by d, firing every waiter whose
// deadline falls within the window in deadline order. Callbacks run
// synchronously in the calling goroutine.
//
// A callback may register new waiters; if their deadlines also fall
// within the window, they fire in the same Advance call.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.current.Add(d)
	c.mu.Unlock()

	for {
		callback, ok := c.popDue(target)
		if !ok {
			break
		}
		callback()
	}

	c.mu.Lock()
	if target.After(c.current) {
		c.current = target
	}
	c.mu.Unlock()
}

// popDue removes the earliest waiter due at or before target and moves
// the clock to its deadline so the waiter observes the time it fires
// at. Reports ok = false when nothing is due.
func (c *FakeClock) popDue(target time.Time) (callback func(), ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var due *fakeWaiter
	for _, waiter := range c.waiters {
		if waiter.stopped || waiter.deadline.After(target) {
			continue
		}
		if due == nil || waiter.deadline.Before(due.deadline) {
			due = waiter
		}
	}
	if due == nil {
		return nil, false
	}

	if due.deadline.After(c.current) {
		c.current = due.deadline
	}

	due.fired = true
	remaining := c.waiters[:0]
	for _, waiter := range c.waiters {
		if waiter != due && !waiter.stopped {
			remaining = append(remaining, waiter)
		}
	}
	c.waiters = remaining

	return due.callback, true
}

// PendingCount returns the number of active (non-stopped) waiters.
// Useful for asserting that a scheduler armed or cancelled a timer.
func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for _, waiter := range c.waiters {
		if !waiter.stopped {
			count++
		}
	}
	return count
}
