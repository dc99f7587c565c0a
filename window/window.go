// Copyright 2026 The Kotori Authors
// SPDX-License-Identifier: Apache-2.0

// Package window decides when the daemon may speak. The day is split
// into fixed slots in the configured civil timezone; notifications are
// suppressed during sleep hours and during work hours on workdays.
// Every timer tick re-evaluates the window against the current time,
// nothing is cached.
package window

import "time"

// Slot is a named segment of the day.
type Slot string

const (
	// SlotSleep covers [22:00, 07:00).
	SlotSleep Slot = "sleep"
	// SlotMorning covers [07:00, 10:00).
	SlotMorning Slot = "morning"
	// SlotWork covers [10:00, 19:00).
	SlotWork Slot = "work"
	// SlotEvening covers [19:00, 22:00).
	SlotEvening Slot = "evening"
)

// Window is the notification decision for a moment in time.
type Window struct {
	Slot    Slot
	Allowed bool
}

// HolidayFunc reports whether a date is a public holiday.
type HolidayFunc func(t time.Time) bool

// Policy classifies times into notification windows.
type Policy struct {
	location  *time.Location
	isHoliday HolidayFunc
}

// NewPolicy creates a Policy. isHoliday may be nil, which treats every
// day as a non-holiday.
func NewPolicy(location *time.Location, isHoliday HolidayFunc) *Policy {
	if isHoliday == nil {
		isHoliday = func(time.Time) bool { return false }
	}
	return &Policy{location: location, isHoliday: isHoliday}
}

// Classify returns the slot containing now and whether notifications
// are allowed: suppressed while sleeping, and during work hours on a
// workday. Evenings, mornings, and non-workday work hours are open.
func (p *Policy) Classify(now time.Time) Window {
	slot := p.SlotAt(now)

	if slot == SlotSleep {
		return Window{Slot: slot, Allowed: false}
	}
	if slot == SlotWork && p.Workday(now) {
		return Window{Slot: slot, Allowed: false}
	}
	return Window{Slot: slot, Allowed: true}
}

// SlotAt returns the slot containing now.
func (p *Policy) SlotAt(now time.Time) Slot {
	hour := now.In(p.location).Hour()
	switch {
	case hour >= 22 || hour < 7:
		return SlotSleep
	case hour < 10:
		return SlotMorning
	case hour < 19:
		return SlotWork
	default:
		return SlotEvening
	}
}

// Workday reports whether now falls on a working day: not a weekend
// and not a public holiday.
func (p *Policy) Workday(now time.Time) bool {
	now = now.In(p.location)
	weekday := now.Weekday()
	if weekday == time.Saturday || weekday == time.Sunday {
		return false
	}
	return !p.isHoliday(now)
}

// WeekdayCode returns the three-letter lowercase code ("mon" .. "sun")
// used by custom-remind day sets.
func (p *Policy) WeekdayCode(now time.Time) string {
	codes := [...]string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"}
	return codes[now.In(p.location).Weekday()]
}
