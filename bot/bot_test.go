// Copyright 2026 The Kotori Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kotori-bot/kotori/calendar"
	"github.com/kotori-bot/kotori/lib/clock"
	"github.com/kotori-bot/kotori/persona"
	"github.com/kotori-bot/kotori/respond"
	"github.com/kotori-bot/kotori/store"
)

func tokyo() *time.Location {
	location, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		panic(err)
	}
	return location
}

var mondayMorning = time.Date(2026, 3, 2, 9, 0, 0, 0, tokyo())

type fakeReminders struct {
	started    []store.Task
	taskStops  int
	breaks     []int
	nagStarts  int
	nagStops   int
}

func (f *fakeReminders) StartTaskReminder(task store.Task)          { f.started = append(f.started, task) }
func (f *fakeReminders) StopTaskReminder()                          { f.taskStops++ }
func (f *fakeReminders) StartBreakTimer(minutes int)                { f.breaks = append(f.breaks, minutes) }
func (f *fakeReminders) StartNoScheduleReminder(ctx context.Context) { f.nagStarts++ }
func (f *fakeReminders) StopNoScheduleReminder()                    { f.nagStops++ }

type closedEvent struct {
	eventID string
	done    bool
}

type fakeCalendar struct {
	configured bool
	next       *calendar.Event
	createID   string
	created    int
	closed     []closedEvent
}

func (f *fakeCalendar) Configured() bool { return f.configured }

func (f *fakeCalendar) NextEvent(ctx context.Context) (*calendar.Event, error) {
	return f.next, nil
}

func (f *fakeCalendar) CreateTaskEvent(ctx context.Context, taskID int64, taskName string, plannedMinutes int) (string, error) {
	f.created++
	return f.createID, nil
}

func (f *fakeCalendar) CloseTaskEvent(ctx context.Context, eventID, taskName string, actualMinutes int, done bool) error {
	f.closed = append(f.closed, closedEvent{eventID: eventID, done: done})
	return nil
}

// fakeReplier echoes the briefing so tests can assert on its contents.
type fakeReplier struct {
	err error
}

func (f *fakeReplier) Reply(ctx context.Context, situation string, opts respond.Options) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return situation, nil
}

type fakeMemory struct {
	searched []string
	saved    []string
}

func (f *fakeMemory) Search(ctx context.Context, query string) string {
	f.searched = append(f.searched, query)
	return ""
}

func (f *fakeMemory) Save(ctx context.Context, content string) {
	f.saved = append(f.saved, content)
}

type fixture struct {
	service   *Service
	store     *store.Store
	clock     *clock.FakeClock
	reminders *fakeReminders
	calendar  *fakeCalendar
	replier   *fakeReplier
	memory    *fakeMemory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	fake := clock.Fake(mondayMorning)
	st, err := store.Open(store.Config{
		Path:     filepath.Join(t.TempDir(), "kotori.db"),
		Clock:    fake,
		Location: tokyo(),
	})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	reminders := &fakeReminders{}
	cal := &fakeCalendar{configured: true, createID: "evt-1"}
	replier := &fakeReplier{}
	mem := &fakeMemory{}

	return &fixture{
		service: New(Config{
			Store:     st,
			Reminders: reminders,
			Calendar:  cal,
			Replier:   replier,
			Memory:    mem,
			Clock:     fake,
			Location:  tokyo(),
		}),
		store:     st,
		clock:     fake,
		reminders: reminders,
		calendar:  cal,
		replier:   replier,
		memory:    mem,
	}
}

func TestStartTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result := f.service.StartTask(ctx, "write report", 30)
	if !result.OK {
		t.Fatalf("StartTask failed: %q", result.Reply)
	}
	if !strings.Contains(result.Reply, "Task: write report") {
		t.Errorf("reply briefing: %q", result.Reply)
	}

	if f.reminders.nagStops != 1 || len(f.reminders.started) != 1 {
		t.Errorf("reminders = %+v", f.reminders)
	}
	if f.reminders.started[0].Name != "write report" {
		t.Errorf("armed task = %+v", f.reminders.started[0])
	}

	task, err := f.store.CurrentTask(ctx)
	if err != nil {
		t.Fatalf("CurrentTask: %v", err)
	}
	if task.CalendarEventID != "evt-1" {
		t.Errorf("calendar event id = %q", task.CalendarEventID)
	}
	if len(f.memory.saved) != 1 || !strings.Contains(f.memory.saved[0], "[task started] write report (30 min)") {
		t.Errorf("memory saves = %v", f.memory.saved)
	}
}

func TestStartTaskRejectsWhileWorking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if result := f.service.StartTask(ctx, "write report", 30); !result.OK {
		t.Fatalf("first StartTask failed: %q", result.Reply)
	}
	result := f.service.StartTask(ctx, "second thing", 15)
	if result.OK {
		t.Fatal("second StartTask accepted")
	}
	if !strings.Contains(result.Reply, `"write report" is still in progress`) {
		t.Errorf("rejection reply: %q", result.Reply)
	}
}

func TestCompleteTaskCreditsAndArmsNag(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.service.StartTask(ctx, "write report", 30)
	f.clock.Advance(25 * time.Minute)

	result := f.service.CompleteTask(ctx, "went well")
	if !result.OK {
		t.Fatalf("CompleteTask failed: %q", result.Reply)
	}
	if !strings.Contains(result.Reply, "+10 coins (balance: 10)") {
		t.Errorf("coin line missing: %q", result.Reply)
	}
	if !strings.Contains(result.Reply, "went well") {
		t.Errorf("comment missing: %q", result.Reply)
	}

	if f.reminders.taskStops != 1 {
		t.Errorf("task reminder stops = %d", f.reminders.taskStops)
	}
	if len(f.calendar.closed) != 1 || f.calendar.closed[0] != (closedEvent{eventID: "evt-1", done: true}) {
		t.Errorf("calendar closes = %+v", f.calendar.closed)
	}
	// No next event: the free-time reminder takes over.
	if f.reminders.nagStarts != 1 {
		t.Errorf("nag starts = %d, want 1", f.reminders.nagStarts)
	}

	balance, err := f.store.CoinBalance(ctx)
	if err != nil || balance != 10 {
		t.Errorf("CoinBalance = %d, %v", balance, err)
	}
}

func TestCompleteTaskWithUpcomingEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.service.StartTask(ctx, "write report", 30)
	f.calendar.next = &calendar.Event{
		Title: "design review",
		Start: mondayMorning.Add(2 * time.Hour),
		End:   mondayMorning.Add(3 * time.Hour),
	}

	result := f.service.CompleteTask(ctx, "")
	if !result.OK {
		t.Fatalf("CompleteTask failed: %q", result.Reply)
	}
	if !strings.Contains(result.Reply, "design review (in 120 min)") {
		t.Errorf("next event missing: %q", result.Reply)
	}
	if f.reminders.nagStarts != 0 {
		t.Errorf("nag armed despite an upcoming event")
	}
}

func TestCompleteTaskIdle(t *testing.T) {
	f := newFixture(t)
	result := f.service.CompleteTask(context.Background(), "")
	if result.OK || result.Reply != "No task is in progress." {
		t.Fatalf("Result = %+v", result)
	}
}

func TestSkipTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.service.StartTask(ctx, "write report", 30)

	result := f.service.SkipTask(ctx)
	if !result.OK {
		t.Fatalf("SkipTask failed: %q", result.Reply)
	}
	if !strings.Contains(result.Reply, "skipped their task") {
		t.Errorf("reply briefing: %q", result.Reply)
	}
	if len(f.calendar.closed) != 1 || f.calendar.closed[0].done {
		t.Errorf("calendar closes = %+v", f.calendar.closed)
	}

	// Skipping earns nothing.
	balance, err := f.store.CoinBalance(ctx)
	if err != nil || balance != 0 {
		t.Errorf("CoinBalance = %d, %v", balance, err)
	}
}

func TestExtendTaskReArms(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.service.StartTask(ctx, "write report", 30)

	result := f.service.ExtendTask(ctx, 15)
	if !result.OK {
		t.Fatalf("ExtendTask failed: %q", result.Reply)
	}
	if !strings.Contains(result.Reply, "now 45 planned") {
		t.Errorf("extension reply: %q", result.Reply)
	}

	if len(f.reminders.started) != 2 {
		t.Fatalf("reminder arms = %d, want 2", len(f.reminders.started))
	}
	if f.reminders.started[1].PlannedMinutes != 45 {
		t.Errorf("re-armed plan = %d, want 45", f.reminders.started[1].PlannedMinutes)
	}

	if result := f.service.SkipTask(ctx); !result.OK {
		t.Fatalf("SkipTask: %q", result.Reply)
	}
	if result := f.service.ExtendTask(ctx, 15); result.OK {
		t.Fatal("ExtendTask accepted with no working task")
	}
}

func TestStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	idle := f.service.Status(ctx)
	if !idle.OK || !strings.Contains(idle.Reply, "no task is active") {
		t.Fatalf("idle status = %+v", idle)
	}

	f.service.StartTask(ctx, "write report", 30)
	f.clock.Advance(12 * time.Minute)
	working := f.service.Status(ctx)
	if !working.OK || !strings.Contains(working.Reply, "Elapsed: 12 minutes") {
		t.Fatalf("working status = %+v", working)
	}
}

func TestStartBreak(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if result := f.service.StartBreak(ctx, 0); result.OK {
		t.Fatal("zero-minute break accepted")
	}
	if result := f.service.StartBreak(ctx, 61); result.OK {
		t.Fatal("over-long break accepted")
	}

	result := f.service.StartBreak(ctx, 20)
	if !result.OK || !strings.Contains(result.Reply, "Break length: 20 minutes") {
		t.Fatalf("break result = %+v", result)
	}
	if f.reminders.nagStops != 1 || len(f.reminders.breaks) != 1 || f.reminders.breaks[0] != 20 {
		t.Errorf("reminders = %+v", f.reminders)
	}
}

func TestDoneForToday(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.service.StartTask(ctx, "write report", 30)

	result := f.service.DoneForToday(ctx)
	if !result.OK {
		t.Fatalf("DoneForToday failed: %q", result.Reply)
	}
	if !strings.Contains(result.Reply, "Tasks completed today: 0") {
		t.Errorf("day-end reply: %q", result.Reply)
	}

	// The working task was skipped, and everything went quiet.
	if _, err := f.store.CurrentTask(ctx); err == nil {
		t.Error("task still working after DoneForToday")
	}
	if f.reminders.taskStops == 0 || f.reminders.nagStops < 2 {
		t.Errorf("reminders = %+v", f.reminders)
	}
	if len(f.calendar.closed) != 1 || f.calendar.closed[0].done {
		t.Errorf("calendar closes = %+v", f.calendar.closed)
	}
}

func TestHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	empty := f.service.History(ctx, 0)
	if !empty.OK || empty.Reply != "No task history today yet." {
		t.Fatalf("empty history = %+v", empty)
	}

	f.service.StartTask(ctx, "write report", 30)
	f.clock.Advance(20 * time.Minute)
	f.service.CompleteTask(ctx, "")
	f.service.StartTask(ctx, "emails", 15)
	f.service.SkipTask(ctx)

	result := f.service.History(ctx, 0)
	if !result.OK {
		t.Fatalf("History failed: %q", result.Reply)
	}
	for _, want := range []string{
		"1. write report (planned 30 min, actual 20 min, done)",
		"2. emails",
		"History:",
		"[ok] write report (30 min)",
		"[->] emails (15 min)",
	} {
		if !strings.Contains(result.Reply, want) {
			t.Errorf("missing %q in %q", want, result.Reply)
		}
	}
}

func TestCommandFailureApologizes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.replier.err = context.DeadlineExceeded

	result := f.service.Status(ctx)
	if result.OK || result.Reply != persona.Apology {
		t.Fatalf("Result = %+v, want the apology", result)
	}
}

func TestRemindManagement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	added := f.service.AddRemind(ctx, "09:00", []string{"mon", "wed"}, false, "stretch!")
	if !added.OK {
		t.Fatalf("AddRemind failed: %q", added.Reply)
	}
	if !strings.Contains(added.Reply, "(ID: 1)") {
		t.Errorf("add reply: %q", added.Reply)
	}

	bad := f.service.AddRemind(ctx, "9am", []string{"mon"}, false, "stretch!")
	if bad.OK || !strings.Contains(bad.Reply, "doesn't parse") {
		t.Fatalf("malformed add = %+v", bad)
	}

	list := f.service.ListReminds(ctx)
	if !list.OK || !strings.Contains(list.Reply, `1. 09:00 [mon,wed]`) {
		t.Fatalf("list = %+v", list)
	}

	deleted := f.service.DeleteRemind(ctx, 1)
	if !deleted.OK || !strings.Contains(deleted.Reply, `Deleted the reminder "stretch!"`) {
		t.Fatalf("delete = %+v", deleted)
	}
	if missing := f.service.DeleteRemind(ctx, 99); missing.OK || !strings.Contains(missing.Reply, "No reminder with ID 99") {
		t.Fatalf("missing delete = %+v", missing)
	}

	if empty := f.service.ListReminds(ctx); !strings.Contains(empty.Reply, "No reminders registered") {
		t.Fatalf("empty list = %+v", empty)
	}
}
