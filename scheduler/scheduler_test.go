// Copyright 2026 The Kotori Authors
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kotori-bot/kotori/lib/clock"
	"github.com/kotori-bot/kotori/respond"
	"github.com/kotori-bot/kotori/store"
	"github.com/kotori-bot/kotori/window"
)

func tokyo() *time.Location {
	location, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		panic(err)
	}
	return location
}

// Monday morning, inside an open notification window.
var mondayMorning = time.Date(2026, 3, 2, 9, 0, 0, 0, tokyo())

type fakeCalendar struct {
	configured bool
	hasEvents  bool
	free       int
}

func (f *fakeCalendar) Configured() bool { return f.configured }

func (f *fakeCalendar) HasRemainingEventsToday(ctx context.Context) (bool, error) {
	return f.hasEvents, nil
}

func (f *fakeCalendar) FreeMinutesRemaining(ctx context.Context) (int, error) {
	return f.free, nil
}

// fakeReplier echoes the situation briefing as the generated message,
// so tests can assert on briefing contents through the deliverer.
type fakeReplier struct {
	mu         sync.Mutex
	err        error
	situations []string
}

func (f *fakeReplier) Reply(ctx context.Context, situation string, opts respond.Options) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.situations = append(f.situations, situation)
	return situation, nil
}

func (f *fakeReplier) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type fakeDeliverer struct {
	mu    sync.Mutex
	err   error
	texts []string
}

func (f *fakeDeliverer) Deliver(ctx context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeDeliverer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.texts)
}

func (f *fakeDeliverer) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.texts) == 0 {
		return ""
	}
	return f.texts[len(f.texts)-1]
}

type fakeMemory struct {
	mu       sync.Mutex
	result   string
	searched []string
	saved    []string
}

func (f *fakeMemory) Search(ctx context.Context, query string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searched = append(f.searched, query)
	return f.result
}

func (f *fakeMemory) Save(ctx context.Context, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, content)
}

type fakeHolidays struct {
	mu        sync.Mutex
	holiday   bool
	refreshes int
}

func (f *fakeHolidays) Refresh(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	return nil
}

func (f *fakeHolidays) IsHoliday(t time.Time) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.holiday
}

func (f *fakeHolidays) refreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshes
}

type fixture struct {
	scheduler *Scheduler
	store     *store.Store
	clock     *clock.FakeClock
	calendar  *fakeCalendar
	replier   *fakeReplier
	deliverer *fakeDeliverer
	memory    *fakeMemory
	holidays  *fakeHolidays
	window    *window.Policy
}

func newFixture(t *testing.T, start time.Time) *fixture {
	t.Helper()

	fake := clock.Fake(start)
	st, err := store.Open(store.Config{
		Path:     filepath.Join(t.TempDir(), "kotori.db"),
		Clock:    fake,
		Location: tokyo(),
	})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	holidays := &fakeHolidays{}
	policy := window.NewPolicy(tokyo(), holidays.IsHoliday)
	calendar := &fakeCalendar{configured: true, free: 120}
	replier := &fakeReplier{}
	deliverer := &fakeDeliverer{}
	mem := &fakeMemory{}

	return &fixture{
		scheduler: New(Config{
			Store:     st,
			Window:    policy,
			Calendar:  calendar,
			Replier:   replier,
			Deliverer: deliverer,
			Memory:    mem,
			Clock:     fake,
			Location:  tokyo(),
		}),
		store:     st,
		clock:     fake,
		calendar:  calendar,
		replier:   replier,
		deliverer: deliverer,
		memory:    mem,
		holidays:  holidays,
		window:    policy,
	}
}

func (f *fixture) startTask(t *testing.T, name string, minutes int) store.Task {
	t.Helper()
	task, err := f.store.CreateTask(context.Background(), name, minutes)
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	return task
}

func TestTaskReminderFiresWhenOverdue(t *testing.T) {
	f := newFixture(t, mondayMorning)
	task := f.startTask(t, "write report", 30)
	f.scheduler.StartTaskReminder(task)

	f.clock.Advance(29 * time.Minute)
	if f.deliverer.count() != 0 {
		t.Fatalf("reminder before the plan ran out: %q", f.deliverer.last())
	}

	f.clock.Advance(time.Minute)
	if f.deliverer.count() != 1 {
		t.Fatalf("deliveries = %d, want 1", f.deliverer.count())
	}
	if !strings.Contains(f.deliverer.last(), "Reminder number: 1") {
		t.Errorf("first reminder briefing: %q", f.deliverer.last())
	}
	if len(f.memory.searched) != 1 || f.memory.searched[0] != "write report" {
		t.Errorf("memory searches = %v", f.memory.searched)
	}
	if len(f.memory.saved) != 1 {
		t.Errorf("memory saves = %d, want 1", len(f.memory.saved))
	}

	// The loop keeps checking every ten minutes with rising ordinals.
	f.clock.Advance(10 * time.Minute)
	if f.deliverer.count() != 2 {
		t.Fatalf("deliveries = %d, want 2", f.deliverer.count())
	}
	if !strings.Contains(f.deliverer.last(), "Reminder number: 2") {
		t.Errorf("second reminder briefing: %q", f.deliverer.last())
	}

	count, err := f.store.ReminderCount(context.Background(), task.ID)
	if err != nil || count != 2 {
		t.Errorf("ReminderCount = %d, %v; want 2", count, err)
	}

	messages, err := f.store.RecentMessages(context.Background())
	if err != nil || len(messages) != 2 {
		t.Errorf("conversation ring = %d messages, %v; want 2", len(messages), err)
	}
}

func TestTaskReminderStopsWhenTaskFinishes(t *testing.T) {
	f := newFixture(t, mondayMorning)
	task := f.startTask(t, "write report", 30)
	f.scheduler.StartTaskReminder(task)

	if err := f.store.CompleteTask(context.Background(), task.ID, ""); err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}

	f.clock.Advance(time.Hour)
	if f.deliverer.count() != 0 {
		t.Fatalf("reminder for a finished task: %q", f.deliverer.last())
	}
	if f.clock.PendingCount() != 0 {
		t.Fatalf("pending timers = %d, want 0 after self-termination", f.clock.PendingCount())
	}
}

func TestTaskReminderRestartReplacesLoop(t *testing.T) {
	f := newFixture(t, mondayMorning)
	task := f.startTask(t, "write report", 30)

	f.scheduler.StartTaskReminder(task)
	f.scheduler.StartTaskReminder(task)
	if f.clock.PendingCount() != 1 {
		t.Fatalf("pending timers = %d, want 1 after restart", f.clock.PendingCount())
	}

	f.clock.Advance(30 * time.Minute)
	if f.deliverer.count() != 1 {
		t.Fatalf("deliveries = %d, want 1 (single live loop)", f.deliverer.count())
	}
}

func TestTaskReminderWaitsOutAnExtension(t *testing.T) {
	f := newFixture(t, mondayMorning)
	task := f.startTask(t, "write report", 30)
	f.scheduler.StartTaskReminder(task)

	if err := f.store.ExtendTask(context.Background(), task.ID, 30); err != nil {
		t.Fatalf("ExtendTask: %v", err)
	}

	// The first check at 30 minutes finds the extended plan and stays
	// quiet; the chain keeps checking until the new plan runs out.
	f.clock.Advance(30 * time.Minute)
	if f.deliverer.count() != 0 {
		t.Fatalf("reminder inside the extended plan: %q", f.deliverer.last())
	}
	if f.clock.PendingCount() != 1 {
		t.Fatal("loop did not keep checking after a quiet tick")
	}

	f.clock.Advance(30 * time.Minute)
	if f.deliverer.count() != 1 {
		t.Fatalf("deliveries = %d, want 1 at 60 minutes", f.deliverer.count())
	}
	if !strings.Contains(f.deliverer.last(), "Reminder number: 1") {
		t.Errorf("reminder briefing: %q", f.deliverer.last())
	}
}

func TestBreakTimer(t *testing.T) {
	f := newFixture(t, mondayMorning)
	f.scheduler.StartBreakTimer(15)

	f.clock.Advance(14 * time.Minute)
	if f.deliverer.count() != 0 {
		t.Fatal("break announced early")
	}
	f.clock.Advance(time.Minute)
	if f.deliverer.count() != 1 {
		t.Fatalf("deliveries = %d, want 1", f.deliverer.count())
	}
	if !strings.Contains(f.deliverer.last(), "break time is over") {
		t.Errorf("break briefing: %q", f.deliverer.last())
	}
	if f.clock.PendingCount() != 0 {
		t.Fatal("break timer left a pending waiter")
	}
}

func TestBreakTimerStop(t *testing.T) {
	f := newFixture(t, mondayMorning)
	f.scheduler.StartBreakTimer(15)
	f.scheduler.StopBreakTimer()

	f.clock.Advance(time.Hour)
	if f.deliverer.count() != 0 {
		t.Fatal("stopped break timer still fired")
	}
}

func TestNoScheduleReminderEscalatesAndConfiscates(t *testing.T) {
	f := newFixture(t, mondayMorning)
	ctx := context.Background()
	if _, err := f.store.AddCoins(ctx, 15); err != nil {
		t.Fatalf("AddCoins: %v", err)
	}

	f.scheduler.StartNoScheduleReminder(ctx)

	f.clock.Advance(10 * time.Second)
	if f.deliverer.count() != 1 || !strings.Contains(f.deliverer.last(), "Reminder number: 1") {
		t.Fatalf("first nag = %q (count %d)", f.deliverer.last(), f.deliverer.count())
	}

	f.clock.Advance(10 * time.Minute)
	if !strings.Contains(f.deliverer.last(), "Reminder number: 2") {
		t.Fatalf("second nag = %q", f.deliverer.last())
	}
	if strings.Contains(f.deliverer.last(), "confiscated") {
		t.Fatalf("penalty before the third nag: %q", f.deliverer.last())
	}

	// Third nag confiscates ten coins.
	f.clock.Advance(10 * time.Minute)
	if !strings.Contains(f.deliverer.last(), "-10 coins confiscated (balance: 5)") {
		t.Fatalf("third nag = %q", f.deliverer.last())
	}

	// Fourth nag can only take what is left.
	f.clock.Advance(10 * time.Minute)
	if !strings.Contains(f.deliverer.last(), "-5 coins confiscated (balance: 0)") {
		t.Fatalf("fourth nag = %q", f.deliverer.last())
	}

	balance, err := f.store.CoinBalance(ctx)
	if err != nil || balance != 0 {
		t.Fatalf("CoinBalance = %d, %v; want 0", balance, err)
	}
}

func TestNoScheduleReminderKeepsCoinsWhenGenerationFails(t *testing.T) {
	f := newFixture(t, mondayMorning)
	ctx := context.Background()
	if _, err := f.store.AddCoins(ctx, 100); err != nil {
		t.Fatalf("AddCoins: %v", err)
	}

	f.scheduler.StartNoScheduleReminder(ctx)
	f.clock.Advance(10 * time.Second)
	f.clock.Advance(10 * time.Minute)
	if f.deliverer.count() != 2 {
		t.Fatalf("deliveries = %d, want 2", f.deliverer.count())
	}

	// The third nag would confiscate, but generation is down. Failed
	// ticks must not touch the balance or advance the ordinal.
	f.replier.setErr(errors.New("llm unavailable"))
	for i := 0; i < 3; i++ {
		f.clock.Advance(10 * time.Minute)
	}
	if f.deliverer.count() != 2 {
		t.Fatalf("deliveries during the outage = %d, want 2", f.deliverer.count())
	}
	balance, err := f.store.CoinBalance(ctx)
	if err != nil || balance != 100 {
		t.Fatalf("CoinBalance = %d, %v; want 100 untouched", balance, err)
	}

	// Once generation recovers the same ordinal goes out and charges
	// exactly once.
	f.replier.setErr(nil)
	f.clock.Advance(10 * time.Minute)
	if !strings.Contains(f.deliverer.last(), "Reminder number: 3") {
		t.Fatalf("post-outage nag = %q", f.deliverer.last())
	}
	if !strings.Contains(f.deliverer.last(), "-10 coins confiscated (balance: 90)") {
		t.Fatalf("post-outage penalty = %q", f.deliverer.last())
	}
	balance, err = f.store.CoinBalance(ctx)
	if err != nil || balance != 90 {
		t.Fatalf("CoinBalance = %d, %v; want 90", balance, err)
	}
}

func TestNoScheduleReminderSkipsClosedWindow(t *testing.T) {
	// 18:45 Monday: work hours, window closed until 19:00.
	f := newFixture(t, time.Date(2026, 3, 2, 18, 45, 0, 0, tokyo()))
	f.scheduler.StartNoScheduleReminder(context.Background())

	// Ticks at 18:45:10 and 18:55:10 fall inside the closed window and
	// stay silent without advancing the ordinal.
	f.clock.Advance(21 * time.Minute)
	if f.deliverer.count() != 1 {
		t.Fatalf("deliveries = %d, want 1 (only the 19:05 tick)", f.deliverer.count())
	}
	if !strings.Contains(f.deliverer.last(), "Reminder number: 1") {
		t.Errorf("first open-window nag: %q", f.deliverer.last())
	}
}

func TestNoScheduleReminderStopsWhenTaskStarts(t *testing.T) {
	f := newFixture(t, mondayMorning)
	f.scheduler.StartNoScheduleReminder(context.Background())

	f.clock.Advance(10 * time.Second)
	if f.deliverer.count() != 1 {
		t.Fatalf("deliveries = %d, want 1", f.deliverer.count())
	}

	f.startTask(t, "write report", 30)
	f.clock.Advance(10 * time.Minute)
	if f.deliverer.count() != 1 {
		t.Fatalf("nag continued past task start: %q", f.deliverer.last())
	}
	if f.clock.PendingCount() != 0 {
		t.Fatal("loop did not stop itself")
	}
}

func TestNoScheduleReminderArmsOnlyWithFreeTime(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t, mondayMorning)
	f.calendar.hasEvents = true
	f.scheduler.StartNoScheduleReminder(ctx)
	if f.clock.PendingCount() != 0 {
		t.Fatal("armed despite remaining events")
	}

	f = newFixture(t, mondayMorning)
	f.calendar.free = 20
	f.scheduler.StartNoScheduleReminder(ctx)
	if f.clock.PendingCount() != 0 {
		t.Fatal("armed despite too little free time")
	}

	f = newFixture(t, mondayMorning)
	f.calendar.configured = false
	f.scheduler.StartNoScheduleReminder(ctx)
	if f.clock.PendingCount() != 0 {
		t.Fatal("armed without a calendar")
	}
}

func TestIdleScanStreak(t *testing.T) {
	f := newFixture(t, mondayMorning)
	ctx := context.Background()
	if _, err := f.store.AddCoins(ctx, 10); err != nil {
		t.Fatalf("AddCoins: %v", err)
	}

	f.scheduler.IdleScan(ctx)
	f.scheduler.IdleScan(ctx)
	if f.deliverer.count() != 2 {
		t.Fatalf("deliveries = %d, want 2", f.deliverer.count())
	}
	if strings.Contains(f.deliverer.last(), "confiscated") {
		t.Fatalf("penalty on the second scan: %q", f.deliverer.last())
	}

	f.scheduler.IdleScan(ctx)
	if !strings.Contains(f.deliverer.last(), "-10 coins confiscated (balance: 0)") {
		t.Fatalf("third scan = %q", f.deliverer.last())
	}

	// A running task resets the streak.
	task := f.startTask(t, "write report", 30)
	f.scheduler.IdleScan(ctx)
	if f.deliverer.count() != 3 {
		t.Fatal("scan nagged while a task was running")
	}
	if err := f.store.CompleteTask(ctx, task.ID, ""); err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}
	f.scheduler.IdleScan(ctx)
	if !strings.Contains(f.deliverer.last(), "Reminder number: 1") {
		t.Fatalf("streak not reset: %q", f.deliverer.last())
	}
}

func TestIdleScanQuietInClosedWindow(t *testing.T) {
	// 23:00: sleep hours, the scan resets and stays silent.
	f := newFixture(t, time.Date(2026, 3, 2, 23, 0, 0, 0, tokyo()))
	f.scheduler.IdleScan(context.Background())
	if f.deliverer.count() != 0 {
		t.Fatalf("scan nagged during sleep hours: %q", f.deliverer.last())
	}
}

func TestIdleScanSuppressedWhileNagLive(t *testing.T) {
	f := newFixture(t, mondayMorning)
	ctx := context.Background()

	f.scheduler.StartNoScheduleReminder(ctx)
	f.clock.Advance(10 * time.Second)
	if f.deliverer.count() != 1 {
		t.Fatalf("deliveries = %d, want 1", f.deliverer.count())
	}

	// The calendar-aware loop is talking; the coarse scan defers to it.
	f.scheduler.IdleScan(ctx)
	if f.deliverer.count() != 1 {
		t.Fatalf("coarse scan delivered alongside the live loop: %q", f.deliverer.last())
	}
}

func TestRecoverReArmsWorkingTask(t *testing.T) {
	f := newFixture(t, mondayMorning)
	f.startTask(t, "write report", 30)

	if err := f.scheduler.Recover(context.Background()); err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if f.clock.PendingCount() != 1 {
		t.Fatalf("pending timers = %d, want 1", f.clock.PendingCount())
	}

	f.clock.Advance(30 * time.Minute)
	if f.deliverer.count() != 1 {
		t.Fatalf("deliveries = %d, want 1 after recovery", f.deliverer.count())
	}
}

func TestRecoverIdle(t *testing.T) {
	f := newFixture(t, mondayMorning)
	if err := f.scheduler.Recover(context.Background()); err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if f.clock.PendingCount() != 0 {
		t.Fatal("Recover armed a timer with no working task")
	}
}

func TestShutdownCancelsEverything(t *testing.T) {
	f := newFixture(t, mondayMorning)
	task := f.startTask(t, "write report", 30)
	f.scheduler.StartTaskReminder(task)
	f.scheduler.StartBreakTimer(15)
	f.scheduler.StartNoScheduleReminder(context.Background())
	if f.clock.PendingCount() != 3 {
		t.Fatalf("pending timers = %d, want 3", f.clock.PendingCount())
	}

	f.scheduler.Shutdown()
	if f.clock.PendingCount() != 0 {
		t.Fatalf("pending timers = %d after Shutdown, want 0", f.clock.PendingCount())
	}

	f.clock.Advance(2 * time.Hour)
	if f.deliverer.count() != 0 {
		t.Fatalf("delivery after Shutdown: %q", f.deliverer.last())
	}
}
