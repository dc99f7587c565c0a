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

// Holiday is one cached public-holiday row.
type Holiday struct {
	Date string // YYYY-MM-DD
	Name string
}

// ReplaceHolidays swaps the holiday cache for a fresh dataset in one
// transaction, so a crash mid-refresh never leaves a half-empty cache.
func (s *Store) ReplaceHolidays(ctx context.Context, holidays []Holiday) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	release := sqlitex.Save(conn)
	err = func() error {
		if err := sqlitex.Execute(conn, `DELETE FROM holidays`, nil); err != nil {
			return fmt.Errorf("store: clearing holiday cache: %w", err)
		}
		now := s.now().Unix()
		for _, holiday := range holidays {
			err := sqlitex.Execute(conn,
				`INSERT INTO holidays (date, name, fetched_at) VALUES (?, ?, ?)`,
				&sqlitex.ExecOptions{Args: []any{holiday.Date, holiday.Name, now}})
			if err != nil {
				return fmt.Errorf("store: caching holiday %s: %w", holiday.Date, err)
			}
		}
		return nil
	}()
	release(&err)
	return err
}

// CachedHolidays returns the persisted holiday rows, ordered by date.
func (s *Store) CachedHolidays(ctx context.Context) ([]Holiday, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var holidays []Holiday
	err = sqlitex.Execute(conn,
		`SELECT date, name FROM holidays ORDER BY date ASC`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				holidays = append(holidays, Holiday{
					Date: stmt.ColumnText(0),
					Name: stmt.ColumnText(1),
				})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("store: loading holiday cache: %w", err)
	}
	return holidays, nil
}

// MessageRole identifies the author of a recent message.
type MessageRole string

const (
	// MessageRoleUser marks messages from the user.
	MessageRoleUser MessageRole = "user"
	// MessageRoleAssistant marks messages the daemon sent.
	MessageRoleAssistant MessageRole = "assistant"
)

// Message is one recent-conversation row.
type Message struct {
	ID        int64
	Role      MessageRole
	Content   string
	CreatedAt time.Time
}

// recentMessageLimit bounds the conversation ring.
const recentMessageLimit = 10

// AddMessage appends to the recent-message ring, evicting the oldest
// rows beyond the last ten.
func (s *Store) AddMessage(ctx context.Context, role MessageRole, content string) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	release := sqlitex.Save(conn)
	err = func() error {
		err := sqlitex.Execute(conn,
			`INSERT INTO recent_messages (role, content, created_at) VALUES (?, ?, ?)`,
			&sqlitex.ExecOptions{Args: []any{string(role), content, s.now().Unix()}})
		if err != nil {
			return fmt.Errorf("store: inserting message: %w", err)
		}

		err = sqlitex.Execute(conn,
			`DELETE FROM recent_messages WHERE id NOT IN (
				SELECT id FROM recent_messages ORDER BY id DESC LIMIT ?
			)`,
			&sqlitex.ExecOptions{Args: []any{recentMessageLimit}})
		if err != nil {
			return fmt.Errorf("store: trimming message ring: %w", err)
		}
		return nil
	}()
	release(&err)
	return err
}

// RecentMessages returns the ring contents, oldest first.
func (s *Store) RecentMessages(ctx context.Context) ([]Message, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var messages []Message
	err = sqlitex.Execute(conn,
		`SELECT id, role, content, created_at FROM recent_messages ORDER BY id ASC`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				messages = append(messages, Message{
					ID:        stmt.ColumnInt64(0),
					Role:      MessageRole(stmt.ColumnText(1)),
					Content:   stmt.ColumnText(2),
					CreatedAt: s.timeColumn(stmt.ColumnInt64(3)),
				})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("store: loading recent messages: %w", err)
	}
	return messages, nil
}

// ClearMessages empties the recent-message ring.
func (s *Store) ClearMessages(ctx context.Context) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	if err := sqlitex.Execute(conn, `DELETE FROM recent_messages`, nil); err != nil {
		return fmt.Errorf("store: clearing messages: %w", err)
	}
	return nil
}

// AddCoins credits the allowance ledger and returns the new balance.
func (s *Store) AddCoins(ctx context.Context, amount int) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("store: coin amount must be positive, got %d", amount)
	}
	return s.adjustCoins(ctx, amount)
}

// SubtractCoins debits the allowance ledger, clamping the balance at
// zero, and returns the new balance.
func (s *Store) SubtractCoins(ctx context.Context, amount int) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("store: coin amount must be positive, got %d", amount)
	}
	return s.adjustCoins(ctx, -amount)
}

func (s *Store) adjustCoins(ctx context.Context, delta int) (int, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`UPDATE coins SET balance = MAX(0, balance + ?) WHERE id = 1`,
		&sqlitex.ExecOptions{Args: []any{delta}})
	if err != nil {
		return 0, fmt.Errorf("store: adjusting coins: %w", err)
	}
	return s.coinBalance(conn)
}

// CoinBalance returns the current allowance balance.
func (s *Store) CoinBalance(ctx context.Context) (int, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, err
	}
	defer s.pool.Put(conn)
	return s.coinBalance(conn)
}

func (s *Store) coinBalance(conn *sqlite.Conn) (int, error) {
	balance := 0
	err := sqlitex.Execute(conn,
		`SELECT balance FROM coins WHERE id = 1`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				balance = int(stmt.ColumnInt64(0))
				return nil
			},
		})
	if err != nil {
		return 0, fmt.Errorf("store: reading coin balance: %w", err)
	}
	return balance, nil
}
