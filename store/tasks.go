// Copyright 2026 The Kotori Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"fmt"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Status is a task lifecycle state.
type Status string

const (
	// StatusWorking marks the single in-progress task.
	StatusWorking Status = "working"
	// StatusDone marks a task completed by the user.
	StatusDone Status = "done"
	// StatusSkipped marks a task abandoned without completion.
	StatusSkipped Status = "skipped"
)

// Terminal reports whether the status is done or skipped.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusSkipped
}

// Task is one focus-task row.
type Task struct {
	ID              int64
	Name            string
	PlannedMinutes  int
	StartedAt       time.Time
	CompletedAt     time.Time // zero while working
	Status          Status
	Comment         string
	CalendarEventID string
	CreatedAt       time.Time
}

const taskColumns = `id, name, planned_minutes, started_at,
	COALESCE(completed_at, 0), status, comment, calendar_event_id, created_at`

func (s *Store) scanTask(stmt *sqlite.Stmt) Task {
	return Task{
		ID:              stmt.ColumnInt64(0),
		Name:            stmt.ColumnText(1),
		PlannedMinutes:  int(stmt.ColumnInt64(2)),
		StartedAt:       s.timeColumn(stmt.ColumnInt64(3)),
		CompletedAt:     s.timeColumn(stmt.ColumnInt64(4)),
		Status:          Status(stmt.ColumnText(5)),
		Comment:         stmt.ColumnText(6),
		CalendarEventID: stmt.ColumnText(7),
		CreatedAt:       s.timeColumn(stmt.ColumnInt64(8)),
	}
}

// CreateTask inserts a new working task. Returns ErrTaskActive when a
// working task already exists; the check and the insert share a
// transaction so two concurrent starts cannot both succeed.
func (s *Store) CreateTask(ctx context.Context, name string, plannedMinutes int) (Task, error) {
	if name == "" {
		return Task{}, fmt.Errorf("store: task name is required")
	}
	if plannedMinutes <= 0 {
		return Task{}, fmt.Errorf("store: planned minutes must be positive, got %d", plannedMinutes)
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return Task{}, err
	}
	defer s.pool.Put(conn)

	release := sqlitex.Save(conn)
	var task Task
	err = func() error {
		var active int64
		err := sqlitex.Execute(conn,
			`SELECT COUNT(*) FROM tasks WHERE status = 'working'`,
			&sqlitex.ExecOptions{
				ResultFunc: func(stmt *sqlite.Stmt) error {
					active = stmt.ColumnInt64(0)
					return nil
				},
			})
		if err != nil {
			return fmt.Errorf("store: counting working tasks: %w", err)
		}
		if active > 0 {
			return ErrTaskActive
		}

		now := s.now().Unix()
		err = sqlitex.Execute(conn,
			`INSERT INTO tasks (name, planned_minutes, started_at, status, created_at)
			 VALUES (?, ?, ?, 'working', ?)`,
			&sqlitex.ExecOptions{Args: []any{name, plannedMinutes, now, now}})
		if err != nil {
			return fmt.Errorf("store: inserting task: %w", err)
		}

		task = Task{
			ID:             conn.LastInsertRowID(),
			Name:           name,
			PlannedMinutes: plannedMinutes,
			StartedAt:      s.timeColumn(now),
			Status:         StatusWorking,
			CreatedAt:      s.timeColumn(now),
		}
		return nil
	}()
	release(&err)
	if err != nil {
		return Task{}, err
	}
	return task, nil
}

// GetTask returns the task with the given id, or ErrNotFound.
func (s *Store) GetTask(ctx context.Context, id int64) (Task, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return Task{}, err
	}
	defer s.pool.Put(conn)

	var task Task
	found := false
	err = sqlitex.Execute(conn,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{id},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				task = s.scanTask(stmt)
				found = true
				return nil
			},
		})
	if err != nil {
		return Task{}, fmt.Errorf("store: loading task %d: %w", id, err)
	}
	if !found {
		return Task{}, ErrNotFound
	}
	return task, nil
}

// CurrentTask returns the working task, or ErrNotFound when idle.
func (s *Store) CurrentTask(ctx context.Context) (Task, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return Task{}, err
	}
	defer s.pool.Put(conn)

	var task Task
	found := false
	err = sqlitex.Execute(conn,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE status = 'working' ORDER BY started_at DESC LIMIT 1`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				task = s.scanTask(stmt)
				found = true
				return nil
			},
		})
	if err != nil {
		return Task{}, fmt.Errorf("store: loading current task: %w", err)
	}
	if !found {
		return Task{}, ErrNotFound
	}
	return task, nil
}

// CompleteTask marks the task done with an optional comment. A task
// already in a terminal state is left untouched (idempotent); a
// missing task is ErrNotFound.
func (s *Store) CompleteTask(ctx context.Context, id int64, comment string) error {
	return s.finishTask(ctx, id, StatusDone, comment)
}

// SkipTask marks the task skipped. Idempotent on terminal tasks.
func (s *Store) SkipTask(ctx context.Context, id int64) error {
	return s.finishTask(ctx, id, StatusSkipped, "")
}

func (s *Store) finishTask(ctx context.Context, id int64, status Status, comment string) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`UPDATE tasks SET status = ?, completed_at = ?, comment = ?
		 WHERE id = ? AND status = 'working'`,
		&sqlitex.ExecOptions{Args: []any{string(status), s.now().Unix(), comment, id}})
	if err != nil {
		return fmt.Errorf("store: finishing task %d: %w", id, err)
	}
	if conn.Changes() > 0 {
		return nil
	}

	// Nothing updated: distinguish an already-terminal task from a
	// missing one.
	if _, err := s.GetTask(ctx, id); err != nil {
		return err
	}
	return nil
}

// ExtendTask adds minutes to the task's plan.
func (s *Store) ExtendTask(ctx context.Context, id int64, additionalMinutes int) error {
	if additionalMinutes <= 0 {
		return fmt.Errorf("store: additional minutes must be positive, got %d", additionalMinutes)
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`UPDATE tasks SET planned_minutes = planned_minutes + ? WHERE id = ?`,
		&sqlitex.ExecOptions{Args: []any{additionalMinutes, id}})
	if err != nil {
		return fmt.Errorf("store: extending task %d: %w", id, err)
	}
	if conn.Changes() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetCalendarEventID records the calendar event mirroring the task.
func (s *Store) SetCalendarEventID(ctx context.Context, id int64, eventID string) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`UPDATE tasks SET calendar_event_id = ? WHERE id = ?`,
		&sqlitex.ExecOptions{Args: []any{eventID, id}})
	if err != nil {
		return fmt.Errorf("store: setting calendar event for task %d: %w", id, err)
	}
	if conn.Changes() == 0 {
		return ErrNotFound
	}
	return nil
}

// ElapsedMinutes returns whole minutes since the task started, floored,
// never negative.
func (s *Store) ElapsedMinutes(task Task) int {
	elapsed := s.now().Sub(task.StartedAt)
	if elapsed < 0 {
		return 0
	}
	return int(elapsed / time.Minute)
}

// TodayTasks returns tasks started today, oldest first.
func (s *Store) TodayTasks(ctx context.Context) ([]Task, error) {
	start := s.startOfDay(s.now())
	return s.tasksStartedSince(ctx, start, "ASC")
}

// TasksSince returns tasks started in the past N days, newest first.
func (s *Store) TasksSince(ctx context.Context, days int) ([]Task, error) {
	start := s.now().AddDate(0, 0, -days)
	return s.tasksStartedSince(ctx, start, "DESC")
}

func (s *Store) tasksStartedSince(ctx context.Context, start time.Time, order string) ([]Task, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var tasks []Task
	err = sqlitex.Execute(conn,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE started_at >= ? ORDER BY started_at `+order,
		&sqlitex.ExecOptions{
			Args: []any{start.Unix()},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				tasks = append(tasks, s.scanTask(stmt))
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("store: listing tasks: %w", err)
	}
	return tasks, nil
}

// CompletedCountToday returns the number of tasks finished as done
// among those started today.
func (s *Store) CompletedCountToday(ctx context.Context) (int, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, err
	}
	defer s.pool.Put(conn)

	start := s.startOfDay(s.now())
	var count int
	err = sqlitex.Execute(conn,
		`SELECT COUNT(*) FROM tasks WHERE started_at >= ? AND status = 'done'`,
		&sqlitex.ExecOptions{
			Args: []any{start.Unix()},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				count = int(stmt.ColumnInt64(0))
				return nil
			},
		})
	if err != nil {
		return 0, fmt.Errorf("store: counting completed tasks: %w", err)
	}
	return count, nil
}

// AddReminder appends a reminder row for the task and returns its
// ordinal (1 for the first reminder, 2 for the second, ...). The count
// and insert share a transaction so concurrent ticks cannot claim the
// same ordinal.
func (s *Store) AddReminder(ctx context.Context, taskID int64) (int, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, err
	}
	defer s.pool.Put(conn)

	release := sqlitex.Save(conn)
	ordinal := 0
	err = func() error {
		err := sqlitex.Execute(conn,
			`SELECT COUNT(*) FROM reminders WHERE task_id = ?`,
			&sqlitex.ExecOptions{
				Args: []any{taskID},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					ordinal = int(stmt.ColumnInt64(0)) + 1
					return nil
				},
			})
		if err != nil {
			return fmt.Errorf("store: counting reminders: %w", err)
		}

		err = sqlitex.Execute(conn,
			`INSERT INTO reminders (task_id, ordinal, sent_at) VALUES (?, ?, ?)`,
			&sqlitex.ExecOptions{Args: []any{taskID, ordinal, s.now().Unix()}})
		if err != nil {
			return fmt.Errorf("store: inserting reminder: %w", err)
		}
		return nil
	}()
	release(&err)
	if err != nil {
		return 0, err
	}
	return ordinal, nil
}

// ReminderCount returns how many reminders the task has received.
func (s *Store) ReminderCount(ctx context.Context, taskID int64) (int, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, err
	}
	defer s.pool.Put(conn)

	var count int
	err = sqlitex.Execute(conn,
		`SELECT COUNT(*) FROM reminders WHERE task_id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{taskID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				count = int(stmt.ColumnInt64(0))
				return nil
			},
		})
	if err != nil {
		return 0, fmt.Errorf("store: counting reminders: %w", err)
	}
	return count, nil
}
