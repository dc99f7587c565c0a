// Copyright 2026 The Kotori Authors
// SPDX-License-Identifier: Apache-2.0

// Package scheduler runs the daemon's reminder machinery: the overdue
// loop attached to the working task, the one-shot break timer, the
// free-time nag that arms when a task ends with open calendar time,
// and the cron-driven daily schedule (greetings, holiday refresh,
// idle scan, custom reminders).
//
// Timers are wake-ups, not state: every callback re-reads the store
// before speaking, so a stale timer observing a finished task simply
// goes quiet. Generation counters keep at most one live loop per kind
// across restarts of the same loop.
package scheduler
