// Copyright 2026 The Kotori Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// CustomRemind is a user-defined recurring reminder. Time is "HH:MM"
// in the store's civil timezone; Days holds weekday codes ("mon" ..
// "sun") in the order the user gave them.
type CustomRemind struct {
	ID              int64
	Time            string
	Days            []string
	IncludeHolidays bool
	Message         string
	Enabled         bool
	CreatedAt       time.Time
}

var remindTimePattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

var weekdayCodes = map[string]bool{
	"mon": true, "tue": true, "wed": true, "thu": true,
	"fri": true, "sat": true, "sun": true,
}

// CreateCustomRemind inserts an enabled reminder and returns it.
func (s *Store) CreateCustomRemind(ctx context.Context, remindTime string, days []string, includeHolidays bool, message string) (CustomRemind, error) {
	if !remindTimePattern.MatchString(remindTime) {
		return CustomRemind{}, fmt.Errorf("store: invalid remind time %q, want HH:MM", remindTime)
	}
	if len(days) == 0 {
		return CustomRemind{}, fmt.Errorf("store: at least one weekday is required")
	}
	for _, day := range days {
		if !weekdayCodes[day] {
			return CustomRemind{}, fmt.Errorf("store: invalid weekday code %q", day)
		}
	}
	if message == "" {
		return CustomRemind{}, fmt.Errorf("store: remind message is required")
	}

	encodedDays, err := json.Marshal(days)
	if err != nil {
		return CustomRemind{}, fmt.Errorf("store: encoding days: %w", err)
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return CustomRemind{}, err
	}
	defer s.pool.Put(conn)

	now := s.now().Unix()
	err = sqlitex.Execute(conn,
		`INSERT INTO custom_reminds (time, days, include_holidays, message, enabled, created_at)
		 VALUES (?, ?, ?, ?, 1, ?)`,
		&sqlitex.ExecOptions{Args: []any{
			remindTime, string(encodedDays), boolColumn(includeHolidays), message, now,
		}})
	if err != nil {
		return CustomRemind{}, fmt.Errorf("store: inserting custom remind: %w", err)
	}

	return CustomRemind{
		ID:              conn.LastInsertRowID(),
		Time:            remindTime,
		Days:            days,
		IncludeHolidays: includeHolidays,
		Message:         message,
		Enabled:         true,
		CreatedAt:       s.timeColumn(now),
	}, nil
}

// GetCustomRemind returns the reminder with the given id, or
// ErrNotFound.
func (s *Store) GetCustomRemind(ctx context.Context, id int64) (CustomRemind, error) {
	reminds, err := s.queryCustomReminds(ctx,
		`SELECT id, time, days, include_holidays, message, enabled, created_at
		 FROM custom_reminds WHERE id = ?`, id)
	if err != nil {
		return CustomRemind{}, err
	}
	if len(reminds) == 0 {
		return CustomRemind{}, ErrNotFound
	}
	return reminds[0], nil
}

// EnabledCustomReminds returns every enabled reminder, oldest first.
func (s *Store) EnabledCustomReminds(ctx context.Context) ([]CustomRemind, error) {
	return s.queryCustomReminds(ctx,
		`SELECT id, time, days, include_holidays, message, enabled, created_at
		 FROM custom_reminds WHERE enabled = 1 ORDER BY id ASC`)
}

// DeleteCustomRemind removes the reminder. Returns ErrNotFound when no
// row matched.
func (s *Store) DeleteCustomRemind(ctx context.Context, id int64) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`DELETE FROM custom_reminds WHERE id = ?`,
		&sqlitex.ExecOptions{Args: []any{id}})
	if err != nil {
		return fmt.Errorf("store: deleting custom remind %d: %w", id, err)
	}
	if conn.Changes() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) queryCustomReminds(ctx context.Context, query string, args ...any) ([]CustomRemind, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var reminds []CustomRemind
	var scanErr error
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			remind := CustomRemind{
				ID:              stmt.ColumnInt64(0),
				Time:            stmt.ColumnText(1),
				IncludeHolidays: stmt.ColumnInt64(3) != 0,
				Message:         stmt.ColumnText(4),
				Enabled:         stmt.ColumnInt64(5) != 0,
				CreatedAt:       s.timeColumn(stmt.ColumnInt64(6)),
			}
			if err := json.Unmarshal([]byte(stmt.ColumnText(2)), &remind.Days); err != nil {
				scanErr = fmt.Errorf("store: decoding days for remind %d: %w", remind.ID, err)
				return scanErr
			}
			reminds = append(reminds, remind)
			return nil
		},
	})
	if err != nil {
		if scanErr != nil {
			return nil, scanErr
		}
		return nil, fmt.Errorf("store: querying custom reminds: %w", err)
	}
	return reminds, nil
}

func boolColumn(value bool) int64 {
	if value {
		return 1
	}
	return 0
}
