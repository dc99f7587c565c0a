// Copyright 2026 The Kotori Authors
// SPDX-License-Identifier: Apache-2.0

package window

import (
	"testing"
	"time"
)

func tokyo(t *testing.T) *time.Location {
	t.Helper()
	location, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	return location
}

func TestClassify(t *testing.T) {
	location := tokyo(t)
	holidays := map[string]bool{"2026-03-20": true} // a Friday
	policy := NewPolicy(location, func(at time.Time) bool {
		return holidays[at.Format("2006-01-02")]
	})

	tests := []struct {
		name        string
		at          time.Time
		wantSlot    Slot
		wantAllowed bool
	}{
		{
			name:        "weekday work hours suppressed",
			at:          time.Date(2026, 3, 3, 14, 0, 0, 0, location), // Tuesday
			wantSlot:    SlotWork,
			wantAllowed: false,
		},
		{
			name:        "weekend work hours open",
			at:          time.Date(2026, 3, 7, 14, 0, 0, 0, location), // Saturday
			wantSlot:    SlotWork,
			wantAllowed: true,
		},
		{
			name:        "holiday work hours open",
			at:          time.Date(2026, 3, 20, 14, 0, 0, 0, location), // holiday Friday
			wantSlot:    SlotWork,
			wantAllowed: true,
		},
		{
			name:        "sleep hours always suppressed",
			at:          time.Date(2026, 3, 7, 23, 30, 0, 0, location), // Saturday night
			wantSlot:    SlotSleep,
			wantAllowed: false,
		},
		{
			name:        "early morning is sleep",
			at:          time.Date(2026, 3, 3, 6, 59, 0, 0, location),
			wantSlot:    SlotSleep,
			wantAllowed: false,
		},
		{
			name:        "morning open on weekdays",
			at:          time.Date(2026, 3, 3, 8, 0, 0, 0, location),
			wantSlot:    SlotMorning,
			wantAllowed: true,
		},
		{
			name:        "evening open on weekdays",
			at:          time.Date(2026, 3, 3, 20, 0, 0, 0, location),
			wantSlot:    SlotEvening,
			wantAllowed: true,
		},
		{
			name:        "work starts at ten",
			at:          time.Date(2026, 3, 3, 10, 0, 0, 0, location),
			wantSlot:    SlotWork,
			wantAllowed: false,
		},
		{
			name:        "evening starts at nineteen",
			at:          time.Date(2026, 3, 3, 19, 0, 0, 0, location),
			wantSlot:    SlotEvening,
			wantAllowed: true,
		},
		{
			name:        "sleep starts at twenty-two",
			at:          time.Date(2026, 3, 3, 22, 0, 0, 0, location),
			wantSlot:    SlotSleep,
			wantAllowed: false,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := policy.Classify(test.at)
			if got.Slot != test.wantSlot || got.Allowed != test.wantAllowed {
				t.Fatalf("Classify(%s) = %+v, want {%s %t}",
					test.at, got, test.wantSlot, test.wantAllowed)
			}
		})
	}
}

func TestWorkday(t *testing.T) {
	location := tokyo(t)
	policy := NewPolicy(location, func(at time.Time) bool {
		return at.Format("2006-01-02") == "2026-03-20"
	})

	if !policy.Workday(time.Date(2026, 3, 3, 12, 0, 0, 0, location)) {
		t.Error("Tuesday reported as non-workday")
	}
	if policy.Workday(time.Date(2026, 3, 7, 12, 0, 0, 0, location)) {
		t.Error("Saturday reported as workday")
	}
	if policy.Workday(time.Date(2026, 3, 20, 12, 0, 0, 0, location)) {
		t.Error("holiday reported as workday")
	}
}

func TestWeekdayCode(t *testing.T) {
	location := tokyo(t)
	policy := NewPolicy(location, nil)

	want := map[int]string{2: "mon", 3: "tue", 4: "wed", 5: "thu", 6: "fri", 7: "sat", 8: "sun"}
	for day, code := range want {
		at := time.Date(2026, 3, day, 12, 0, 0, 0, location)
		if got := policy.WeekdayCode(at); got != code {
			t.Errorf("WeekdayCode(March %d) = %q, want %q", day, got, code)
		}
	}
}

func TestNilHolidayFunc(t *testing.T) {
	location := tokyo(t)
	policy := NewPolicy(location, nil)

	// Without holiday data every weekday is a workday.
	if !policy.Workday(time.Date(2026, 3, 20, 12, 0, 0, 0, location)) {
		t.Error("weekday reported as non-workday with nil holiday func")
	}
}
