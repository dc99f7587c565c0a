// Copyright 2026 The Kotori Authors
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/kotori-bot/kotori/lib/cron"
)

// newDispatcher wires a fixture's collaborators into a started cron
// runner. The caller advances the fixture clock to fire jobs.
func newDispatcher(t *testing.T, f *fixture) *cron.Runner {
	t.Helper()

	runner := cron.NewRunner(f.clock, tokyo(), slog.New(slog.DiscardHandler))
	dispatcher := NewCronDispatcher(DispatcherConfig{
		Scheduler: f.scheduler,
		Store:     f.store,
		Window:    f.window,
		Holidays:  f.holidays,
		Replier:   f.replier,
		Deliverer: f.deliverer,
		Clock:     f.clock,
		Location:  tokyo(),
	})
	if err := dispatcher.Register(runner); err != nil {
		t.Fatalf("Register: %v", err)
	}
	runner.Start(context.Background())
	t.Cleanup(runner.Stop)
	return runner
}

func TestCustomRemindFiresOnMatch(t *testing.T) {
	f := newFixture(t, mondayMorning)
	ctx := context.Background()

	// A working task keeps the idle scan quiet for the duration.
	f.startTask(t, "write report", 60)

	if _, err := f.store.CreateCustomRemind(ctx, "09:05", []string{"mon", "wed"}, false, "stretch!"); err != nil {
		t.Fatalf("CreateCustomRemind: %v", err)
	}
	if _, err := f.store.CreateCustomRemind(ctx, "09:05", []string{"tue"}, false, "wrong day"); err != nil {
		t.Fatalf("CreateCustomRemind: %v", err)
	}

	newDispatcher(t, f)
	f.clock.Advance(6 * time.Minute)

	if f.deliverer.count() != 1 {
		t.Fatalf("deliveries = %d, want 1: %v", f.deliverer.count(), f.deliverer.texts)
	}
	if f.deliverer.last() != "stretch!" {
		t.Fatalf("delivered %q, want the stored message verbatim", f.deliverer.last())
	}

	// The message lands in the conversation ring too.
	messages, err := f.store.RecentMessages(ctx)
	if err != nil || len(messages) != 1 || messages[0].Content != "stretch!" {
		t.Fatalf("conversation ring = %v, %v", messages, err)
	}
}

func TestCustomRemindHolidayGate(t *testing.T) {
	f := newFixture(t, mondayMorning)
	ctx := context.Background()
	f.startTask(t, "write report", 60)
	f.holidays.holiday = true

	if _, err := f.store.CreateCustomRemind(ctx, "09:05", []string{"mon"}, false, "workday only"); err != nil {
		t.Fatalf("CreateCustomRemind: %v", err)
	}
	if _, err := f.store.CreateCustomRemind(ctx, "09:05", []string{"mon"}, true, "every day"); err != nil {
		t.Fatalf("CreateCustomRemind: %v", err)
	}

	newDispatcher(t, f)
	f.clock.Advance(6 * time.Minute)

	if f.deliverer.count() != 1 || f.deliverer.last() != "every day" {
		t.Fatalf("deliveries = %v, want only the holiday-inclusive remind", f.deliverer.texts)
	}
}

func TestCustomRemindSuppressedByWindow(t *testing.T) {
	// 10:58 Monday: work hours, window closed.
	f := newFixture(t, time.Date(2026, 3, 2, 10, 58, 0, 0, tokyo()))
	ctx := context.Background()
	f.startTask(t, "write report", 60)

	if _, err := f.store.CreateCustomRemind(ctx, "11:00", []string{"mon"}, false, "too loud"); err != nil {
		t.Fatalf("CreateCustomRemind: %v", err)
	}

	newDispatcher(t, f)
	f.clock.Advance(3 * time.Minute)

	if f.deliverer.count() != 0 {
		t.Fatalf("remind delivered inside a closed window: %v", f.deliverer.texts)
	}
}

func TestMorningAndWorkStartGreetings(t *testing.T) {
	f := newFixture(t, time.Date(2026, 3, 2, 6, 58, 0, 0, tokyo()))
	f.startTask(t, "write report", 600)

	newDispatcher(t, f)

	f.clock.Advance(4 * time.Minute)
	if f.deliverer.count() != 1 || !strings.Contains(f.deliverer.last(), "7 in the morning") {
		t.Fatalf("07:00 greeting = %v", f.deliverer.texts)
	}

	// On to 10:00 for the workday send-off.
	f.clock.Advance(3 * time.Hour)
	if f.deliverer.count() != 2 || !strings.Contains(f.deliverer.last(), "start work") {
		t.Fatalf("10:00 greeting = %v", f.deliverer.texts)
	}
}

func TestWorkGreetingsSkipHolidays(t *testing.T) {
	f := newFixture(t, time.Date(2026, 3, 2, 9, 58, 0, 0, tokyo()))
	f.startTask(t, "write report", 60)
	f.holidays.holiday = true

	newDispatcher(t, f)
	f.clock.Advance(3 * time.Minute)

	if f.deliverer.count() != 0 {
		t.Fatalf("work greeting on a holiday: %v", f.deliverer.texts)
	}
}

func TestNightGreetingUnconditional(t *testing.T) {
	f := newFixture(t, time.Date(2026, 3, 2, 21, 58, 0, 0, tokyo()))
	f.holidays.holiday = true

	newDispatcher(t, f)
	f.clock.Advance(3 * time.Minute)

	if f.deliverer.count() != 1 || !strings.Contains(f.deliverer.last(), "bedtime") {
		t.Fatalf("22:00 greeting = %v", f.deliverer.texts)
	}
}

func TestHolidayRefreshAtMidnight(t *testing.T) {
	f := newFixture(t, time.Date(2026, 3, 2, 23, 58, 0, 0, tokyo()))

	newDispatcher(t, f)
	f.clock.Advance(3 * time.Minute)

	if f.holidays.refreshCount() != 1 {
		t.Fatalf("refreshes = %d, want 1", f.holidays.refreshCount())
	}
	if f.deliverer.count() != 0 {
		t.Fatalf("unexpected delivery around midnight: %v", f.deliverer.texts)
	}
}
