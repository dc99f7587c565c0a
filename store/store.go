// Copyright 2026 The Kotori Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/kotori-bot/kotori/lib/clock"
	"github.com/kotori-bot/kotori/lib/sqlitepool"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrTaskActive is returned by CreateTask while another task is
// working. The caller turns it into a user-visible rejection.
var ErrTaskActive = errors.New("store: a task is already working")

// Store persists tasks, reminders, custom reminds, the holiday cache,
// the recent-message ring, and the coin ledger in SQLite.
//
// All day-boundary arithmetic ("today", elapsed minutes) happens in
// the configured civil timezone, never the host's.
type Store struct {
	pool     *sqlitepool.Pool
	clock    clock.Clock
	location *time.Location
	logger   *slog.Logger
}

// Config holds the parameters for opening a Store.
type Config struct {
	// Path is the SQLite database file.
	Path string

	// Clock supplies the current time. Required.
	Clock clock.Clock

	// Location is the civil timezone for day boundaries. Required.
	Location *time.Location

	// Logger receives store lifecycle messages. Nil means discard.
	Logger *slog.Logger

	// PoolSize overrides the connection pool size. Zero uses the
	// pool default. Tests use 1 with an in-memory path.
	PoolSize int
}

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	planned_minutes INTEGER NOT NULL,
	started_at INTEGER NOT NULL,
	completed_at INTEGER,
	status TEXT NOT NULL DEFAULT 'working',
	comment TEXT NOT NULL DEFAULT '',
	calendar_event_id TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS tasks_by_status ON tasks (status);
CREATE INDEX IF NOT EXISTS tasks_by_started_at ON tasks (started_at);

CREATE TABLE IF NOT EXISTS reminders (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id INTEGER NOT NULL REFERENCES tasks (id),
	ordinal INTEGER NOT NULL,
	sent_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS reminders_by_task ON reminders (task_id);

CREATE TABLE IF NOT EXISTS custom_reminds (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	time TEXT NOT NULL,
	days TEXT NOT NULL,
	include_holidays INTEGER NOT NULL DEFAULT 0,
	message TEXT NOT NULL,
	enabled INTEGER NOT NULL DEFAULT 1,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS holidays (
	date TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	fetched_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS recent_messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS coins (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	balance INTEGER NOT NULL DEFAULT 0
);
INSERT OR IGNORE INTO coins (id, balance) VALUES (1, 0);
`

// Open opens the database, creating the schema if needed.
func Open(cfg Config) (*Store, error) {
	if cfg.Clock == nil {
		return nil, fmt.Errorf("store: Clock is required")
	}
	if cfg.Location == nil {
		return nil, fmt.Errorf("store: Location is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: cfg.PoolSize,
		Logger:   logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}

	return &Store{
		pool:     pool,
		clock:    cfg.Clock,
		location: cfg.Location,
		logger:   logger,
	}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

// now returns the current time in the store's civil timezone.
func (s *Store) now() time.Time {
	return s.clock.Now().In(s.location)
}

// startOfDay returns midnight of t's day in the store's timezone.
func (s *Store) startOfDay(t time.Time) time.Time {
	t = t.In(s.location)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, s.location)
}

// timeColumn converts a unix-seconds column to a time in the store's
// timezone. Zero stays the zero time.
func (s *Store) timeColumn(seconds int64) time.Time {
	if seconds == 0 {
		return time.Time{}
	}
	return time.Unix(seconds, 0).In(s.location)
}
