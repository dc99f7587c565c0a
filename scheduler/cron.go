// Copyright 2026 The Kotori Authors
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/kotori-bot/kotori/lib/clock"
	"github.com/kotori-bot/kotori/lib/cron"
	"github.com/kotori-bot/kotori/persona"
	"github.com/kotori-bot/kotori/respond"
	"github.com/kotori-bot/kotori/store"
	"github.com/kotori-bot/kotori/window"
)

// HolidayCalendar is the holiday surface the dispatcher needs: the
// nightly cache refresh and the lookup gating custom reminders.
// *holiday.Service satisfies it.
type HolidayCalendar interface {
	Refresh(ctx context.Context) error
	IsHoliday(t time.Time) bool
}

// CronDispatcher owns the daily schedule: greetings at fixed hours,
// the nightly holiday refresh, the coarse idle scan, and the
// per-minute custom-remind scan. It registers jobs on a cron.Runner
// and applies the gates the expressions cannot express (notification
// windows, public holidays).
type CronDispatcher struct {
	scheduler *Scheduler
	store     *store.Store
	window    *window.Policy
	holidays  HolidayCalendar
	replier   Replier
	deliverer Deliverer
	clock     clock.Clock
	location  *time.Location
	logger    *slog.Logger
}

// DispatcherConfig holds the collaborators for NewCronDispatcher.
// Logger may be nil.
type DispatcherConfig struct {
	Scheduler *Scheduler
	Store     *store.Store
	Window    *window.Policy
	Holidays  HolidayCalendar
	Replier   Replier
	Deliverer Deliverer
	Clock     clock.Clock
	Location  *time.Location
	Logger    *slog.Logger
}

// NewCronDispatcher creates a CronDispatcher.
func NewCronDispatcher(cfg DispatcherConfig) *CronDispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &CronDispatcher{
		scheduler: cfg.Scheduler,
		store:     cfg.Store,
		window:    cfg.Window,
		holidays:  cfg.Holidays,
		replier:   cfg.Replier,
		deliverer: cfg.Deliverer,
		clock:     cfg.Clock,
		location:  cfg.Location,
		logger:    logger,
	}
}

// Register adds every scheduled job to the runner. Call before the
// runner starts.
func (d *CronDispatcher) Register(runner *cron.Runner) error {
	jobs := []struct {
		name       string
		expression string
		run        func(ctx context.Context)
	}{
		{"custom-reminds", "* * * * *", d.customReminds},
		{"idle-scan", "*/10 * * * *", d.scheduler.IdleScan},
		{"holiday-refresh", "0 0 * * *", d.refreshHolidays},
		{"morning-greeting", "0 7 * * *", d.morningGreeting},
		{"work-start-greeting", "0 10 * * 1-5", d.workStartGreeting},
		{"work-end-greeting", "0 19 * * 1-5", d.workEndGreeting},
		{"night-greeting", "0 22 * * *", d.nightGreeting},
	}
	for _, entry := range jobs {
		if err := runner.Add(entry.name, entry.expression, entry.run); err != nil {
			return err
		}
	}
	return nil
}

// customReminds fires every user-registered reminder whose time, day
// set, and holiday setting match this minute. The stored message is
// delivered verbatim; one reminder's failure never blocks another's.
func (d *CronDispatcher) customReminds(ctx context.Context) {
	reminds, err := d.store.EnabledCustomReminds(ctx)
	if err != nil {
		d.logger.Error("custom reminds: listing", "error", err)
		return
	}
	if len(reminds) == 0 {
		return
	}

	now := d.clock.Now().In(d.location)
	minute := now.Format("15:04")
	day := d.window.WeekdayCode(now)
	onHoliday := d.holidays.IsHoliday(now)
	open := d.window.Classify(now).Allowed

	for _, remind := range reminds {
		if remind.Time != minute || !slices.Contains(remind.Days, day) {
			continue
		}
		if onHoliday && !remind.IncludeHolidays {
			continue
		}
		if !open {
			d.logger.Info("custom remind suppressed by window", "remind", remind.ID)
			continue
		}
		if err := d.deliverer.Deliver(ctx, remind.Message); err != nil {
			d.logger.Error("custom remind: delivering", "remind", remind.ID, "error", err)
			continue
		}
		if err := d.store.AddMessage(ctx, store.MessageRoleAssistant, remind.Message); err != nil {
			d.logger.Warn("custom remind: recording message", "error", err)
		}
		d.logger.Info("custom remind sent", "remind", remind.ID)
	}
}

func (d *CronDispatcher) refreshHolidays(ctx context.Context) {
	if err := d.holidays.Refresh(ctx); err != nil {
		d.logger.Error("refreshing holiday cache", "error", err)
	}
}

// morningGreeting fires at 07:00 when the window allows it. The window
// check matters on reconfigured sleep schedules, not in the default
// layout where 07:00 always opens the morning slot.
func (d *CronDispatcher) morningGreeting(ctx context.Context) {
	if !d.window.Classify(d.clock.Now()).Allowed {
		return
	}
	d.greet(ctx, persona.GreetingMorning)
}

// workStartGreeting fires at 10:00 Monday through Friday, skipping
// public holidays. It sends even though the work window is closing:
// the send-off is the point.
func (d *CronDispatcher) workStartGreeting(ctx context.Context) {
	if !d.window.Workday(d.clock.Now()) {
		return
	}
	d.greet(ctx, persona.GreetingWorkStart)
}

// workEndGreeting fires at 19:00 Monday through Friday, skipping
// public holidays.
func (d *CronDispatcher) workEndGreeting(ctx context.Context) {
	if !d.window.Workday(d.clock.Now()) {
		return
	}
	d.greet(ctx, persona.GreetingWorkEnd)
}

// nightGreeting fires at 22:00 every day, holidays included.
func (d *CronDispatcher) nightGreeting(ctx context.Context) {
	d.greet(ctx, persona.GreetingNight)
}

func (d *CronDispatcher) greet(ctx context.Context, kind persona.Greeting) {
	text, err := d.replier.Reply(ctx, persona.DailyGreeting(kind), respond.Options{})
	if err != nil {
		d.logger.Error("greeting: generating message", "kind", kind, "error", err)
		return
	}
	if err := d.deliverer.Deliver(ctx, text); err != nil {
		d.logger.Error("greeting: delivering message", "kind", kind, "error", err)
		return
	}
	if err := d.store.AddMessage(ctx, store.MessageRoleAssistant, text); err != nil {
		d.logger.Warn("greeting: recording message", "error", err)
	}
	d.logger.Info("greeting sent", "kind", kind)
}
