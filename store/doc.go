// Copyright 2026 The Kotori Authors
// SPDX-License-Identifier: Apache-2.0

// Package store persists the daemon's state in SQLite: the focus-task
// lifecycle, the reminder audit trail, user-defined recurring
// reminders, the public-holiday cache, the recent-conversation ring,
// and the allowance coin ledger.
package store
