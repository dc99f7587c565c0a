// Copyright 2026 The Kotori Authors
// SPDX-License-Identifier: Apache-2.0

// Package cron parses 5-field cron expressions and runs jobs on their
// schedules in a fixed civil timezone, driven by an injectable clock.
package cron
