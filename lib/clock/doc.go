// Copyright 2026 The Kotori Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source so that every timer
// in the reminder scheduler can be driven deterministically in tests.
// Production code uses Real(); tests use Fake() and call Advance to
// fire due timers synchronously.
package clock
