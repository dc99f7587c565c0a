// Copyright 2026 The Kotori Authors
// SPDX-License-Identifier: Apache-2.0

// Package bot is the command layer: the structured operations a chat
// front-end invokes on the user's behalf. Each command mutates the
// store, adjusts the reminder loops, and returns a reply in Kotori's
// voice. Internal failures come back as a short apology, never as a
// crash; user mistakes (starting over a running task, finishing
// nothing) come back as plain corrections without the generator.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kotori-bot/kotori/calendar"
	"github.com/kotori-bot/kotori/lib/clock"
	"github.com/kotori-bot/kotori/lib/llm"
	"github.com/kotori-bot/kotori/persona"
	"github.com/kotori-bot/kotori/respond"
	"github.com/kotori-bot/kotori/store"
)

// completionReward is credited for every task finished as done.
const completionReward = 10

// maxBreakMinutes bounds a declared break.
const maxBreakMinutes = 60

// Reminders is the timer surface commands drive. *scheduler.Scheduler
// satisfies it.
type Reminders interface {
	StartTaskReminder(task store.Task)
	StopTaskReminder()
	StartBreakTimer(minutes int)
	StartNoScheduleReminder(ctx context.Context)
	StopNoScheduleReminder()
}

// Calendar is the calendar surface commands use. *calendar.Client
// satisfies it.
type Calendar interface {
	Configured() bool
	NextEvent(ctx context.Context) (*calendar.Event, error)
	CreateTaskEvent(ctx context.Context, taskID int64, taskName string, plannedMinutes int) (string, error)
	CloseTaskEvent(ctx context.Context, eventID, taskName string, actualMinutes int, done bool) error
}

// Replier generates replies from situation briefings.
// *respond.Responder satisfies it.
type Replier interface {
	Reply(ctx context.Context, situation string, opts respond.Options) (string, error)
}

// Memory is the long-term memory surface, best-effort on both sides.
// *memory.Client satisfies it.
type Memory interface {
	Search(ctx context.Context, query string) string
	Save(ctx context.Context, content string)
}

// Result is the outcome of one command. OK is false for both user
// mistakes and internal failures; Reply is always presentable.
type Result struct {
	OK    bool
	Reply string
}

// Service executes commands.
type Service struct {
	store     *store.Store
	reminders Reminders
	calendar  Calendar
	replier   Replier
	memory    Memory
	clock     clock.Clock
	location  *time.Location
	logger    *slog.Logger
}

// Config holds the collaborators for New. Logger may be nil.
type Config struct {
	Store     *store.Store
	Reminders Reminders
	Calendar  Calendar
	Replier   Replier
	Memory    Memory
	Clock     clock.Clock
	Location  *time.Location
	Logger    *slog.Logger
}

// New creates a Service.
func New(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		store:     cfg.Store,
		reminders: cfg.Reminders,
		calendar:  cfg.Calendar,
		replier:   cfg.Replier,
		memory:    cfg.Memory,
		clock:     cfg.Clock,
		location:  cfg.Location,
		logger:    logger,
	}
}

// StartTask declares a new focus task. Exactly one task may be working
// at a time; a second start is rejected with the running task's name.
func (s *Service) StartTask(ctx context.Context, name string, minutes int) Result {
	task, err := s.store.CreateTask(ctx, name, minutes)
	if errors.Is(err, store.ErrTaskActive) {
		reply := "A task is still in progress. Finish it or skip it first."
		if current, cerr := s.store.CurrentTask(ctx); cerr == nil {
			reply = fmt.Sprintf("%q is still in progress. Finish it or skip it first.", current.Name)
		}
		return Result{Reply: reply}
	}
	if err != nil {
		return s.apologize("starting task", err)
	}

	s.reminders.StopNoScheduleReminder()
	s.reminders.StartTaskReminder(task)

	if s.calendar.Configured() {
		eventID, err := s.calendar.CreateTaskEvent(ctx, task.ID, name, minutes)
		switch {
		case err != nil:
			s.logger.Warn("mirroring task to calendar", "task", task.ID, "error", err)
		case eventID != "":
			if err := s.store.SetCalendarEventID(ctx, task.ID, eventID); err != nil {
				s.logger.Warn("recording calendar event id", "task", task.ID, "error", err)
			}
		}
	}

	completed, err := s.store.CompletedCountToday(ctx)
	if err != nil {
		s.logger.Warn("counting today's completions", "error", err)
	}

	text, err := s.reply(ctx, persona.TaskStarted(name, minutes, completed), name)
	if err != nil {
		return s.apologize("replying to task start", err)
	}
	s.record(ctx, text)
	s.memory.Save(ctx, fmt.Sprintf("[task started] %s (%d min)", name, minutes))
	return Result{OK: true, Reply: text}
}

// CompleteTask finishes the working task, credits the allowance, and
// hands the free evening to the no-schedule reminder when the calendar
// shows nothing else coming.
func (s *Service) CompleteTask(ctx context.Context, comment string) Result {
	current, err := s.store.CurrentTask(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return Result{Reply: "No task is in progress."}
	}
	if err != nil {
		return s.apologize("loading current task", err)
	}

	elapsed := s.store.ElapsedMinutes(current)
	if err := s.store.CompleteTask(ctx, current.ID, comment); err != nil {
		return s.apologize("completing task", err)
	}
	s.reminders.StopTaskReminder()
	s.closeCalendarEvent(ctx, current, elapsed, true)

	earned := completionReward
	balance, err := s.store.AddCoins(ctx, earned)
	if err != nil {
		s.logger.Warn("crediting completion reward", "error", err)
		earned, balance = 0, 0
	}

	nextEventText := s.nextEventText(ctx)

	situation := persona.TaskCompleted(current.Name, elapsed, current.PlannedMinutes,
		comment, earned, balance, nextEventText)
	text, err := s.reply(ctx, situation, current.Name)
	if err != nil {
		return s.apologize("replying to task completion", err)
	}
	s.record(ctx, text)

	saved := fmt.Sprintf("[task completed] %s (planned %d min, actual %d min)",
		current.Name, current.PlannedMinutes, elapsed)
	if comment != "" {
		saved += " comment: " + comment
	}
	s.memory.Save(ctx, saved)

	if nextEventText == "" {
		s.reminders.StartNoScheduleReminder(ctx)
	}
	return Result{OK: true, Reply: text}
}

// SkipTask abandons the working task.
func (s *Service) SkipTask(ctx context.Context) Result {
	current, err := s.store.CurrentTask(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return Result{Reply: "No task is in progress."}
	}
	if err != nil {
		return s.apologize("loading current task", err)
	}

	elapsed := s.store.ElapsedMinutes(current)
	if err := s.store.SkipTask(ctx, current.ID); err != nil {
		return s.apologize("skipping task", err)
	}
	s.reminders.StopTaskReminder()
	s.closeCalendarEvent(ctx, current, elapsed, false)

	text, err := s.reply(ctx, persona.TaskSkipped(current.Name, elapsed), current.Name)
	if err != nil {
		return s.apologize("replying to task skip", err)
	}
	s.record(ctx, text)
	s.memory.Save(ctx, "[task skipped] "+current.Name)
	return Result{OK: true, Reply: text}
}

// ExtendTask adds minutes to the working task's plan and re-arms the
// overdue reminder against the new planned time.
func (s *Service) ExtendTask(ctx context.Context, minutes int) Result {
	current, err := s.store.CurrentTask(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return Result{Reply: "No task is in progress."}
	}
	if err != nil {
		return s.apologize("loading current task", err)
	}

	if err := s.store.ExtendTask(ctx, current.ID, minutes); err != nil {
		return s.apologize("extending task", err)
	}
	current.PlannedMinutes += minutes
	s.reminders.StartTaskReminder(current)

	return Result{
		OK: true,
		Reply: fmt.Sprintf("Extended %q by %d minutes (now %d planned). Kotori believes in you!",
			current.Name, minutes, current.PlannedMinutes),
	}
}

// Status reports on the working task, or nudges when idle.
func (s *Service) Status(ctx context.Context) Result {
	current, err := s.store.CurrentTask(ctx)
	if errors.Is(err, store.ErrNotFound) {
		text, rerr := s.reply(ctx, persona.Idle(), "")
		if rerr != nil {
			return s.apologize("replying to status", rerr)
		}
		return Result{OK: true, Reply: text}
	}
	if err != nil {
		return s.apologize("loading current task", err)
	}

	elapsed := s.store.ElapsedMinutes(current)
	text, err := s.reply(ctx, persona.Status(current.Name, current.PlannedMinutes, elapsed), "")
	if err != nil {
		return s.apologize("replying to status", err)
	}
	return Result{OK: true, Reply: text}
}

// StartBreak declares a break; its end is announced by the break
// timer. Breaks silence the no-schedule reminder.
func (s *Service) StartBreak(ctx context.Context, minutes int) Result {
	if minutes < 1 || minutes > maxBreakMinutes {
		return Result{Reply: fmt.Sprintf("A break runs from 1 to %d minutes.", maxBreakMinutes)}
	}

	s.reminders.StopNoScheduleReminder()
	s.reminders.StartBreakTimer(minutes)

	text, err := s.reply(ctx, persona.BreakStarted(minutes), "")
	if err != nil {
		return s.apologize("replying to break start", err)
	}
	s.record(ctx, text)
	return Result{OK: true, Reply: text}
}

// DoneForToday closes the day: any working task is skipped and every
// nag goes quiet until tomorrow.
func (s *Service) DoneForToday(ctx context.Context) Result {
	current, err := s.store.CurrentTask(ctx)
	switch {
	case err == nil:
		elapsed := s.store.ElapsedMinutes(current)
		if err := s.store.SkipTask(ctx, current.ID); err != nil {
			return s.apologize("closing the running task", err)
		}
		s.closeCalendarEvent(ctx, current, elapsed, false)
	case !errors.Is(err, store.ErrNotFound):
		return s.apologize("loading current task", err)
	}
	s.reminders.StopTaskReminder()
	s.reminders.StopNoScheduleReminder()

	completed, err := s.store.CompletedCountToday(ctx)
	if err != nil {
		s.logger.Warn("counting today's completions", "error", err)
	}

	text, err := s.reply(ctx, persona.DayEnded(completed), "")
	if err != nil {
		return s.apologize("replying to day end", err)
	}
	s.record(ctx, text)
	s.memory.Save(ctx, fmt.Sprintf("[day ended] %d tasks completed", completed))
	return Result{OK: true, Reply: text}
}

// History reviews recorded tasks: today's when days is zero, the past
// N days otherwise. The generated look-back is followed by the literal
// task list.
func (s *Service) History(ctx context.Context, days int) Result {
	var tasks []store.Task
	var err error
	if days > 0 {
		tasks, err = s.store.TasksSince(ctx, days)
	} else {
		tasks, err = s.store.TodayTasks(ctx)
	}
	if err != nil {
		return s.apologize("loading task history", err)
	}

	if len(tasks) == 0 {
		if days > 0 {
			return Result{OK: true, Reply: fmt.Sprintf("No task history in the past %d days.", days)}
		}
		return Result{OK: true, Reply: "No task history today yet."}
	}

	entries := make([]persona.HistoryEntry, len(tasks))
	var listing strings.Builder
	for i, task := range tasks {
		entries[i] = persona.HistoryEntry{
			Name:           task.Name,
			PlannedMinutes: task.PlannedMinutes,
			ActualMinutes:  s.actualMinutes(task),
			Status:         string(task.Status),
		}
		fmt.Fprintf(&listing, "%s %s (%d min)\n", statusMarker(task.Status), task.Name, task.PlannedMinutes)
	}

	text, err := s.reply(ctx, persona.History(entries), "")
	if err != nil {
		return s.apologize("replying to history", err)
	}
	return Result{OK: true, Reply: text + "\n\nHistory:\n" + strings.TrimRight(listing.String(), "\n")}
}

func statusMarker(status store.Status) string {
	switch status {
	case store.StatusDone:
		return "[ok]"
	case store.StatusSkipped:
		return "[->]"
	default:
		return "[..]"
	}
}

// actualMinutes is time actually spent: start to completion for
// terminal tasks, start to now for a task still working.
func (s *Service) actualMinutes(task store.Task) int {
	if !task.Status.Terminal() || task.CompletedAt.IsZero() {
		return s.store.ElapsedMinutes(task)
	}
	spent := task.CompletedAt.Sub(task.StartedAt)
	if spent < 0 {
		return 0
	}
	return int(spent / time.Minute)
}

// closeCalendarEvent marks the task's mirrored event done or skipped.
// Best-effort.
func (s *Service) closeCalendarEvent(ctx context.Context, task store.Task, elapsed int, done bool) {
	if task.CalendarEventID == "" {
		return
	}
	if err := s.calendar.CloseTaskEvent(ctx, task.CalendarEventID, task.Name, elapsed, done); err != nil {
		s.logger.Warn("closing calendar event", "task", task.ID, "error", err)
	}
}

// nextEventText renders the next upcoming event for reply briefings,
// or "" when the calendar is unconfigured or empty.
func (s *Service) nextEventText(ctx context.Context) string {
	if !s.calendar.Configured() {
		return ""
	}
	next, err := s.calendar.NextEvent(ctx)
	if err != nil {
		s.logger.Warn("loading next event", "error", err)
		return ""
	}
	if next == nil {
		return ""
	}
	minutes := calendar.MinutesUntil(s.clock.Now().In(s.location), *next)
	return fmt.Sprintf("%s (in %d min)", calendar.FormatEvent(*next, s.location), minutes)
}

// reply generates a message, folding in memory hits for the query (if
// any) and the recent conversation.
func (s *Service) reply(ctx context.Context, situation, memoryQuery string) (string, error) {
	var opts respond.Options
	if memoryQuery != "" {
		opts.Memories = s.memory.Search(ctx, memoryQuery)
	}

	recent, err := s.store.RecentMessages(ctx)
	if err != nil {
		s.logger.Warn("loading recent messages", "error", err)
	}
	for _, message := range recent {
		role := llm.RoleAssistant
		if message.Role == store.MessageRoleUser {
			role = llm.RoleUser
		}
		opts.Recent = append(opts.Recent, llm.Message{Role: role, Content: message.Content})
	}

	return s.replier.Reply(ctx, situation, opts)
}

// record appends a sent reply to the conversation ring. Best-effort.
func (s *Service) record(ctx context.Context, text string) {
	if err := s.store.AddMessage(ctx, store.MessageRoleAssistant, text); err != nil {
		s.logger.Warn("recording reply", "error", err)
	}
}

func (s *Service) apologize(doing string, err error) Result {
	s.logger.Error("command failed", "doing", doing, "error", err)
	return Result{Reply: persona.Apology}
}
