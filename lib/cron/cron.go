// Copyright 2026 The Kotori Authors
// SPDX-License-Identifier: Apache-2.0

package cron

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Schedule is a parsed 5-field cron expression (minute, hour,
// day-of-month, month, day-of-week). Use Parse to create one, then
// Next to compute the next matching time.
type Schedule struct {
	minutes     fieldSet
	hours       fieldSet
	daysOfMonth fieldSet
	months      fieldSet
	daysOfWeek  fieldSet
}

// fieldSet is a compact set of integers 0-63.
type fieldSet uint64

func (s fieldSet) has(value int) bool { return s&(1<<uint(value)) != 0 }
func (s *fieldSet) add(value int)     { *s |= 1 << uint(value) }

// Parse parses a standard 5-field cron expression. Fields may contain
// comma-separated terms of the forms *, */N, V, V-V, and V-V/N.
func Parse(expression string) (Schedule, error) {
	fields := strings.Fields(expression)
	if len(fields) != 5 {
		return Schedule{}, fmt.Errorf("cron: expected 5 fields, got %d", len(fields))
	}

	var schedule Schedule
	specs := []struct {
		name     string
		field    string
		min, max int
		target   *fieldSet
	}{
		{"minute", fields[0], 0, 59, &schedule.minutes},
		{"hour", fields[1], 0, 23, &schedule.hours},
		{"day-of-month", fields[2], 1, 31, &schedule.daysOfMonth},
		{"month", fields[3], 1, 12, &schedule.months},
		{"day-of-week", fields[4], 0, 6, &schedule.daysOfWeek},
	}
	for _, spec := range specs {
		parsed, err := parseField(spec.field, spec.min, spec.max)
		if err != nil {
			return Schedule{}, fmt.Errorf("cron: %s field: %w", spec.name, err)
		}
		*spec.target = parsed
	}
	return schedule, nil
}

// Next returns the earliest time strictly after t that matches the
// schedule. The computation happens in t's location, so callers that
// operate in a fixed civil timezone pass t already converted; the
// daily 07:00 job then fires at 07:00 civil time regardless of the
// host timezone.
//
// Returns an error when no matching time exists within 400 days of t
// (guards against impossible schedules like Feb 31).
func (s Schedule) Next(t time.Time) (time.Time, error) {
	location := t.Location()

	// Candidate starts at the next whole minute.
	candidate := t.Truncate(time.Minute).Add(time.Minute)

	for day := 0; day < 400; day++ {
		if !s.matchesDay(candidate) {
			// Jump to midnight of the next day.
			candidate = time.Date(candidate.Year(), candidate.Month(),
				candidate.Day()+1, 0, 0, 0, 0, location)
			continue
		}

		// Within a matching day, find the first matching hour and
		// minute at or after the candidate.
		currentDay := candidate.Day()
		for candidate.Day() == currentDay {
			if !s.hours.has(candidate.Hour()) {
				candidate = time.Date(candidate.Year(), candidate.Month(),
					candidate.Day(), candidate.Hour()+1, 0, 0, 0, location)
				continue
			}
			if !s.minutes.has(candidate.Minute()) {
				candidate = candidate.Add(time.Minute)
				continue
			}
			return candidate, nil
		}
		// Rolled into the next day while scanning hours.
	}

	return time.Time{}, fmt.Errorf("cron: no matching time within 400 days of %s", t.Format(time.RFC3339))
}

// matchesDay reports whether the date part of t satisfies the month,
// day-of-month, and day-of-week fields. Unlike classic cron's OR
// semantics for restricted dom+dow, both constraints always apply;
// wildcard fields have all bits set, so this behaves as expected for
// every schedule with at most one restricted day field.
func (s Schedule) matchesDay(t time.Time) bool {
	return s.months.has(int(t.Month())) &&
		s.daysOfMonth.has(t.Day()) &&
		s.daysOfWeek.has(int(t.Weekday()))
}

// parseField parses one comma-separated cron field into a fieldSet.
func parseField(field string, minimum, maximum int) (fieldSet, error) {
	var result fieldSet
	for _, term := range strings.Split(field, ",") {
		if err := parseTerm(term, minimum, maximum, &result); err != nil {
			return 0, err
		}
	}
	if result == 0 {
		return 0, fmt.Errorf("field %q produces empty set", field)
	}
	return result, nil
}

// parseTerm parses a single term (*, */N, V, V-V, V-V/N) into result.
func parseTerm(term string, minimum, maximum int, result *fieldSet) error {
	rangePart, stepPart, hasStep := strings.Cut(term, "/")

	step := 1
	if hasStep {
		parsed, err := strconv.Atoi(stepPart)
		if err != nil {
			return fmt.Errorf("invalid step %q: %w", stepPart, err)
		}
		if parsed <= 0 {
			return fmt.Errorf("step must be positive, got %d", parsed)
		}
		step = parsed
	}

	start, end := minimum, maximum
	switch {
	case rangePart == "*":
		// Full range.
	case strings.Contains(rangePart, "-"):
		startText, endText, _ := strings.Cut(rangePart, "-")
		var err error
		if start, err = strconv.Atoi(startText); err != nil {
			return fmt.Errorf("invalid range start %q: %w", startText, err)
		}
		if end, err = strconv.Atoi(endText); err != nil {
			return fmt.Errorf("invalid range end %q: %w", endText, err)
		}
		if start > end {
			return fmt.Errorf("range start %d > end %d", start, end)
		}
	default:
		value, err := strconv.Atoi(rangePart)
		if err != nil {
			return fmt.Errorf("invalid value %q: %w", rangePart, err)
		}
		start, end = value, value
	}

	if start < minimum || end > maximum {
		return fmt.Errorf("value out of range [%d-%d]: got %d-%d", minimum, maximum, start, end)
	}

	for value := start; value <= end; value += step {
		result.add(value)
	}
	return nil
}
