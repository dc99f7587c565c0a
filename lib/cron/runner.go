// Copyright 2026 The Kotori Authors
// SPDX-License-Identifier: Apache-2.0

package cron

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kotori-bot/kotori/lib/clock"
)

// Runner fires registered jobs on their cron schedules. All schedule
// arithmetic happens in the configured location, so a "0 7 * * *" job
// fires at 07:00 civil time. Jobs run sequentially on the runner's
// timer callbacks; a slow job delays its own next occurrence, never
// another job's.
type Runner struct {
	clock    clock.Clock
	location *time.Location
	logger   *slog.Logger

	mu      sync.Mutex
	jobs    []*job
	started bool
	stopped bool
}

type job struct {
	name     string
	schedule Schedule
	run      func(ctx context.Context)
	timer    *clock.Timer
}

// NewRunner creates a Runner. All parameters are required.
func NewRunner(clk clock.Clock, location *time.Location, logger *slog.Logger) *Runner {
	return &Runner{
		clock:    clk,
		location: location,
		logger:   logger,
	}
}

// Add registers a job under a cron expression. Must be called before
// Start. The name appears in logs only.
func (r *Runner) Add(name, expression string, run func(ctx context.Context)) error {
	schedule, err := Parse(expression)
	if err != nil {
		return fmt.Errorf("cron: job %s: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return fmt.Errorf("cron: job %s added after Start", name)
	}
	r.jobs = append(r.jobs, &job{name: name, schedule: schedule, run: run})
	return nil
}

// Start arms every registered job. The context is passed to job
// functions; cancelling it does not cancel pending timers, call Stop
// for that.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true

	for _, entry := range r.jobs {
		r.armLocked(ctx, entry)
	}
	r.logger.Info("cron runner started", "jobs", len(r.jobs))
}

// Stop cancels all pending job timers. Jobs already running are not
// interrupted.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	for _, entry := range r.jobs {
		if entry.timer != nil {
			entry.timer.Stop()
			entry.timer = nil
		}
	}
}

// armLocked schedules the job's next occurrence. Caller holds r.mu.
func (r *Runner) armLocked(ctx context.Context, entry *job) {
	now := r.clock.Now().In(r.location)
	next, err := entry.schedule.Next(now)
	if err != nil {
		r.logger.Error("cron job has no next occurrence", "job", entry.name, "error", err)
		return
	}

	entry.timer = r.clock.AfterFunc(next.Sub(now), func() {
		entry.run(ctx)

		r.mu.Lock()
		defer r.mu.Unlock()
		if r.stopped {
			return
		}
		r.armLocked(ctx, entry)
	})
}
