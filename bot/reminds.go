// Copyright 2026 The Kotori Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kotori-bot/kotori/persona"
	"github.com/kotori-bot/kotori/store"
)

// AddRemind registers a recurring reminder. The time is HH:MM in the
// daemon's timezone; days are weekday codes ("mon" .. "sun"). The
// stored message is later delivered verbatim by the per-minute scan.
func (s *Service) AddRemind(ctx context.Context, timeOfDay string, days []string, includeHolidays bool, message string) Result {
	remind, err := s.store.CreateCustomRemind(ctx, timeOfDay, days, includeHolidays, message)
	if err != nil {
		// Create only fails on malformed input here; tell the user
		// what to fix instead of apologizing.
		return Result{Reply: "That reminder doesn't parse: " + strings.TrimPrefix(err.Error(), "store: ")}
	}

	situation := persona.CustomRemindRegistered(remind.Time, remind.Days, remind.IncludeHolidays, remind.Message)
	text, err := s.reply(ctx, situation, "")
	if err != nil {
		return s.apologize("replying to remind add", err)
	}
	return Result{OK: true, Reply: fmt.Sprintf("%s\n\n(ID: %d)", text, remind.ID)}
}

// ListReminds shows every enabled reminder with its ID, for deleting.
func (s *Service) ListReminds(ctx context.Context) Result {
	reminds, err := s.store.EnabledCustomReminds(ctx)
	if err != nil {
		return s.apologize("listing reminders", err)
	}
	if len(reminds) == 0 {
		return Result{OK: true, Reply: "No reminders registered."}
	}

	var listing strings.Builder
	listing.WriteString("Registered reminders:\n")
	for _, remind := range reminds {
		note := ""
		if remind.IncludeHolidays {
			note = " (holidays too)"
		}
		fmt.Fprintf(&listing, "\n%d. %s [%s]%s\n   %q\n",
			remind.ID, remind.Time, strings.Join(remind.Days, ","), note, remind.Message)
	}
	return Result{OK: true, Reply: strings.TrimRight(listing.String(), "\n")}
}

// DeleteRemind removes a reminder by ID.
func (s *Service) DeleteRemind(ctx context.Context, id int64) Result {
	remind, err := s.store.GetCustomRemind(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return Result{Reply: fmt.Sprintf("No reminder with ID %d.", id)}
	}
	if err != nil {
		return s.apologize("loading reminder", err)
	}

	if err := s.store.DeleteCustomRemind(ctx, id); err != nil && !errors.Is(err, store.ErrNotFound) {
		return s.apologize("deleting reminder", err)
	}
	return Result{OK: true, Reply: fmt.Sprintf("Deleted the reminder %q.", remind.Message)}
}
