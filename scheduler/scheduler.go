// Copyright 2026 The Kotori Authors
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/kotori-bot/kotori/lib/clock"
	"github.com/kotori-bot/kotori/persona"
	"github.com/kotori-bot/kotori/respond"
	"github.com/kotori-bot/kotori/store"
	"github.com/kotori-bot/kotori/window"
)

const (
	// reminderInterval is the spacing between overdue checks once a
	// task reminder loop is running, and between free-time nags.
	reminderInterval = 10 * time.Minute

	// nagFirstDelay is how soon after a task finishes the free-time
	// loop takes its first look.
	nagFirstDelay = 10 * time.Second

	// freeMinutesFloor is the least free time worth nagging about.
	freeMinutesFloor = 30

	// penaltyCoins is confiscated per nag from penaltyFromOrdinal on.
	penaltyCoins       = 10
	penaltyFromOrdinal = 3

	// idleStreakThreshold is how many consecutive idle scans pass
	// before the coarse scan starts confiscating coins.
	idleStreakThreshold = 3

	// tickTimeout bounds the work done by one timer callback.
	tickTimeout = time.Minute
)

// Calendar is the schedule surface the free-time loop consults.
// *calendar.Client satisfies it.
type Calendar interface {
	Configured() bool
	HasRemainingEventsToday(ctx context.Context) (bool, error)
	FreeMinutesRemaining(ctx context.Context) (int, error)
}

// Replier turns a situation briefing into a message in Kotori's voice.
// *respond.Responder satisfies it.
type Replier interface {
	Reply(ctx context.Context, situation string, opts respond.Options) (string, error)
}

// Deliverer pushes a finished message to the user. *messenger.Webhook
// satisfies it.
type Deliverer interface {
	Deliver(ctx context.Context, text string) error
}

// Memory is the long-term memory surface. Both methods are
// best-effort; *memory.Client satisfies it.
type Memory interface {
	Search(ctx context.Context, query string) string
	Save(ctx context.Context, content string)
}

// Scheduler owns the three reminder loops: the per-task overdue
// reminder, the one-shot break timer, and the free-time nag armed when
// a task finishes with open calendar time left. Each loop is a chain
// of AfterFunc callbacks guarded by a generation counter, so starting
// a loop again silently orphans the previous chain and at most one
// chain per kind is ever live. Callbacks re-read persistent state
// before speaking; the in-memory timers are just wake-ups.
type Scheduler struct {
	store     *store.Store
	window    *window.Policy
	calendar  Calendar
	replier   Replier
	deliverer Deliverer
	memory    Memory
	clock     clock.Clock
	location  *time.Location
	logger    *slog.Logger

	mu         sync.Mutex
	taskGen    uint64
	taskTimer  *clock.Timer
	breakGen   uint64
	breakTimer *clock.Timer
	nagGen     uint64
	nagTimer   *clock.Timer
	nagLive    bool
	nagCount   int
	idleStreak int
}

// Config holds the collaborators for New. Logger may be nil.
type Config struct {
	Store     *store.Store
	Window    *window.Policy
	Calendar  Calendar
	Replier   Replier
	Deliverer Deliverer
	Memory    Memory
	Clock     clock.Clock
	Location  *time.Location
	Logger    *slog.Logger
}

// New creates a Scheduler with no loops running. Call Recover to
// re-arm the reminder for a task that survived a restart.
func New(cfg Config) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scheduler{
		store:     cfg.Store,
		window:    cfg.Window,
		calendar:  cfg.Calendar,
		replier:   cfg.Replier,
		deliverer: cfg.Deliverer,
		memory:    cfg.Memory,
		clock:     cfg.Clock,
		location:  cfg.Location,
		logger:    logger,
	}
}

// StartTaskReminder arms the overdue loop for a freshly started (or
// extended) task. The first check lands when the plan runs out, no
// sooner than one minute from now; checks repeat every ten minutes
// until the task leaves the working state.
func (s *Scheduler) StartTaskReminder(task store.Task) {
	remaining := task.PlannedMinutes - s.store.ElapsedMinutes(task)
	if remaining < 1 {
		remaining = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTaskLocked()
	s.taskGen++
	gen := s.taskGen
	s.taskTimer = s.clock.AfterFunc(time.Duration(remaining)*time.Minute, func() {
		s.taskTick(gen, task.ID)
	})
	s.logger.Info("task reminder armed",
		"task", task.ID, "first_check_minutes", remaining)
}

// StopTaskReminder cancels the overdue loop, if any.
func (s *Scheduler) StopTaskReminder() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTaskLocked()
}

func (s *Scheduler) stopTaskLocked() {
	s.taskGen++
	if s.taskTimer != nil {
		s.taskTimer.Stop()
		s.taskTimer = nil
	}
}

func (s *Scheduler) taskTick(gen uint64, taskID int64) {
	s.mu.Lock()
	stale := gen != s.taskGen
	s.mu.Unlock()
	if stale {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), tickTimeout)
	defer cancel()

	task, err := s.store.GetTask(ctx, taskID)
	if err != nil || task.Status != store.StatusWorking {
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			s.logger.Error("task reminder: loading task", "task", taskID, "error", err)
		}
		s.mu.Lock()
		if gen == s.taskGen {
			s.taskTimer = nil
		}
		s.mu.Unlock()
		return
	}

	// An extension can push the plan past the clock again; the loop
	// keeps checking and only speaks while the task is overdue.
	elapsed := s.store.ElapsedMinutes(task)
	if elapsed >= task.PlannedMinutes {
		s.remindOverdue(ctx, task, elapsed)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.taskGen {
		return
	}
	s.taskTimer = s.clock.AfterFunc(reminderInterval, func() {
		s.taskTick(gen, taskID)
	})
}

func (s *Scheduler) remindOverdue(ctx context.Context, task store.Task, elapsed int) {
	ordinal, err := s.store.AddReminder(ctx, task.ID)
	if err != nil {
		s.logger.Error("task reminder: recording reminder", "task", task.ID, "error", err)
		return
	}

	memories := s.memory.Search(ctx, task.Name)
	situation := persona.TaskOverdue(task.Name, elapsed, task.PlannedMinutes, ordinal)
	text, err := s.replier.Reply(ctx, situation, respond.Options{Memories: memories})
	if err != nil {
		s.logger.Error("task reminder: generating message", "task", task.ID, "error", err)
		return
	}
	if err := s.deliverer.Deliver(ctx, text); err != nil {
		s.logger.Error("task reminder: delivering message", "task", task.ID, "error", err)
		return
	}
	s.recordDelivery(ctx, text)
	s.memory.Save(ctx, text)
	s.logger.Info("task reminder sent", "task", task.ID, "ordinal", ordinal)
}

// StartBreakTimer announces the end of a declared break after the
// given number of minutes. One-shot; a new break replaces the old.
func (s *Scheduler) StartBreakTimer(minutes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopBreakLocked()
	s.breakGen++
	gen := s.breakGen
	s.breakTimer = s.clock.AfterFunc(time.Duration(minutes)*time.Minute, func() {
		s.breakTick(gen)
	})
	s.logger.Info("break timer armed", "minutes", minutes)
}

// StopBreakTimer cancels the pending break announcement, if any.
func (s *Scheduler) StopBreakTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopBreakLocked()
}

func (s *Scheduler) stopBreakLocked() {
	s.breakGen++
	if s.breakTimer != nil {
		s.breakTimer.Stop()
		s.breakTimer = nil
	}
}

func (s *Scheduler) breakTick(gen uint64) {
	s.mu.Lock()
	if gen != s.breakGen {
		s.mu.Unlock()
		return
	}
	s.breakTimer = nil
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), tickTimeout)
	defer cancel()

	text, err := s.replier.Reply(ctx, persona.BreakEnded(), respond.Options{})
	if err != nil {
		s.logger.Error("break timer: generating message", "error", err)
		return
	}
	if err := s.deliverer.Deliver(ctx, text); err != nil {
		s.logger.Error("break timer: delivering message", "error", err)
		return
	}
	s.recordDelivery(ctx, text)
}

// StartNoScheduleReminder arms the free-time loop after a task
// finishes. It only arms when a calendar is configured, nothing else
// starts today, and more than thirty free minutes remain before
// bedtime. The first check comes ten seconds in, then every ten
// minutes; the loop stops itself once a task starts, an event
// approaches, or the free time runs out.
func (s *Scheduler) StartNoScheduleReminder(ctx context.Context) {
	if !s.calendar.Configured() {
		return
	}
	hasEvents, err := s.calendar.HasRemainingEventsToday(ctx)
	if err != nil {
		s.logger.Error("free-time reminder: checking calendar", "error", err)
		return
	}
	if hasEvents {
		return
	}
	free, err := s.calendar.FreeMinutesRemaining(ctx)
	if err != nil {
		s.logger.Error("free-time reminder: checking free time", "error", err)
		return
	}
	if free <= freeMinutesFloor {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopNagLocked()
	s.nagGen++
	gen := s.nagGen
	s.nagLive = true
	s.nagCount = 0
	s.nagTimer = s.clock.AfterFunc(nagFirstDelay, func() {
		s.nagTick(gen)
	})
	s.logger.Info("free-time reminder armed", "free_minutes", free)
}

// StopNoScheduleReminder cancels the free-time loop, if any.
func (s *Scheduler) StopNoScheduleReminder() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopNagLocked()
}

func (s *Scheduler) stopNagLocked() {
	s.nagGen++
	s.nagLive = false
	s.nagCount = 0
	if s.nagTimer != nil {
		s.nagTimer.Stop()
		s.nagTimer = nil
	}
}

func (s *Scheduler) nagTick(gen uint64) {
	s.mu.Lock()
	if gen != s.nagGen {
		s.mu.Unlock()
		return
	}
	count := s.nagCount
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), tickTimeout)
	defer cancel()

	stop := false
	switch _, err := s.store.CurrentTask(ctx); {
	case err == nil:
		stop = true
	case !errors.Is(err, store.ErrNotFound):
		// Transient store trouble: skip this tick, keep the loop.
		s.logger.Error("free-time reminder: loading current task", "error", err)
	default:
		if hasEvents, err := s.calendar.HasRemainingEventsToday(ctx); err != nil {
			s.logger.Error("free-time reminder: checking calendar", "error", err)
		} else if hasEvents {
			stop = true
		} else if free, err := s.calendar.FreeMinutesRemaining(ctx); err != nil {
			s.logger.Error("free-time reminder: checking free time", "error", err)
		} else if free <= freeMinutesFloor {
			stop = true
		} else if s.window.Classify(s.clock.Now()).Allowed {
			// The count only advances on a delivered nag, so a failed
			// delivery retries the same ordinal next tick and closed
			// windows never escalate the tone.
			if s.deliverNag(ctx, count+1) {
				s.mu.Lock()
				if gen == s.nagGen {
					s.nagCount = count + 1
				}
				s.mu.Unlock()
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.nagGen {
		return
	}
	if stop {
		s.nagLive = false
		s.nagCount = 0
		s.nagTimer = nil
		s.logger.Info("free-time reminder finished")
		return
	}
	s.nagTimer = s.clock.AfterFunc(reminderInterval, func() {
		s.nagTick(gen)
	})
}

// IdleScan is the coarse free-time check the cron dispatcher runs
// every ten minutes. Unlike the calendar-aware loop it needs no
// calendar: three consecutive idle scans inside an open window start
// costing coins. The streak resets whenever a task is running or the
// window closes, and deliveries are suppressed while the calendar-
// aware loop is already talking.
func (s *Scheduler) IdleScan(ctx context.Context) {
	reset := false
	switch _, err := s.store.CurrentTask(ctx); {
	case err == nil:
		reset = true
	case !errors.Is(err, store.ErrNotFound):
		s.logger.Error("idle scan: loading current task", "error", err)
		return
	}
	if !reset && !s.window.Classify(s.clock.Now()).Allowed {
		reset = true
	}

	s.mu.Lock()
	if reset {
		s.idleStreak = 0
		s.mu.Unlock()
		return
	}
	s.idleStreak++
	streak := s.idleStreak
	suppressed := s.nagLive
	s.mu.Unlock()

	if suppressed {
		return
	}
	s.deliverNag(ctx, streak)
}

// deliverNag sends one no-task reminder, confiscating coins from the
// third one on. The penalty lands only once the message actually went
// out, so a generation or delivery failure costs nothing and the same
// ordinal retries next tick. Returns whether the message went out.
func (s *Scheduler) deliverNag(ctx context.Context, ordinal int) bool {
	coinsLost, balance := 0, 0
	if ordinal >= penaltyFromOrdinal {
		before, err := s.store.CoinBalance(ctx)
		if err != nil {
			s.logger.Error("free-time reminder: reading balance", "error", err)
			return false
		}
		coinsLost = min(penaltyCoins, before)
		balance = before - coinsLost
	}

	situation := persona.NoScheduleNag(ordinal, coinsLost, balance)
	text, err := s.replier.Reply(ctx, situation, respond.Options{})
	if err != nil {
		s.logger.Error("free-time reminder: generating message", "error", err)
		return false
	}
	if err := s.deliverer.Deliver(ctx, text); err != nil {
		s.logger.Error("free-time reminder: delivering message", "error", err)
		return false
	}
	if ordinal >= penaltyFromOrdinal {
		if _, err := s.store.SubtractCoins(ctx, penaltyCoins); err != nil {
			s.logger.Error("free-time reminder: confiscating coins", "error", err)
		}
	}
	s.recordDelivery(ctx, text)
	s.logger.Info("free-time reminder sent",
		"ordinal", ordinal, "coins_lost", coinsLost)
	return true
}

// Recover re-arms the overdue loop for a task that was working when
// the daemon last stopped. Called once at startup.
func (s *Scheduler) Recover(ctx context.Context) error {
	task, err := s.store.CurrentTask(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	s.logger.Info("recovered working task", "task", task.ID, "name", task.Name)
	s.StartTaskReminder(task)
	return nil
}

// Shutdown cancels every pending timer. Callbacks already running
// finish on their own.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTaskLocked()
	s.stopBreakLocked()
	s.stopNagLocked()
}

// recordDelivery appends a sent message to the conversation ring so
// later generations see it as context. Best-effort.
func (s *Scheduler) recordDelivery(ctx context.Context, text string) {
	if err := s.store.AddMessage(ctx, store.MessageRoleAssistant, text); err != nil {
		s.logger.Warn("recording delivered message", "error", err)
	}
}
