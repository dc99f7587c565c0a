// Copyright 2026 The Kotori Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool opens SQLite connection pools with the pragmas
// the daemon's store depends on (WAL, foreign keys, busy timeout).
package sqlitepool
