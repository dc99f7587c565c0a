// Copyright 2026 The Kotori Authors
// SPDX-License-Identifier: Apache-2.0

// Package calendar reads the user's Google Calendar to make reminders
// schedule-aware, and mirrors focus tasks into it as events. All
// lookups run against the configured civil timezone's notion of
// "today". An unconfigured client is a valid no-op: every lookup
// reports no events.
package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/kotori-bot/kotori/lib/clock"
)

// bedtimeHour is the end of the usable day; free time is measured
// against it when no event is coming up.
const bedtimeHour = 22

// Event is a calendar event in the daemon's terms.
type Event struct {
	ID          string
	Title       string
	Start       time.Time
	End         time.Time
	Location    string
	Description string
}

// Client wraps the Calendar API. The zero-value-like disabled client
// (empty calendar ID) reports Configured() == false and returns empty
// results everywhere.
type Client struct {
	service    *gcal.Service
	calendarID string
	clock      clock.Clock
	location   *time.Location
	logger     *slog.Logger
}

// Config holds the parameters for creating a Client.
type Config struct {
	// CredentialsFile is the service-account JSON key path.
	CredentialsFile string

	// CalendarID selects the calendar. Empty disables the client.
	CalendarID string

	// Clock supplies the current time. Required.
	Clock clock.Clock

	// Location is the civil timezone. Required.
	Location *time.Location

	// Logger receives client messages. Nil means discard.
	Logger *slog.Logger
}

// NewClient creates a Client. When no calendar ID is configured the
// returned client is disabled rather than an error, since running
// without a calendar is a supported setup.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	client := &Client{
		calendarID: cfg.CalendarID,
		clock:      cfg.Clock,
		location:   cfg.Location,
		logger:     logger,
	}
	if cfg.CalendarID == "" {
		return client, nil
	}

	service, err := gcal.NewService(ctx,
		option.WithCredentialsFile(cfg.CredentialsFile),
		option.WithScopes(gcal.CalendarScope))
	if err != nil {
		return nil, fmt.Errorf("calendar: creating service: %w", err)
	}
	client.service = service
	return client, nil
}

// Configured reports whether the client can talk to a calendar.
func (c *Client) Configured() bool {
	return c.service != nil && c.calendarID != ""
}

// TodayEvents returns today's events, earliest first.
func (c *Client) TodayEvents(ctx context.Context) ([]Event, error) {
	if !c.Configured() {
		return nil, nil
	}

	now := c.clock.Now().In(c.location)
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, c.location)
	return c.listEvents(ctx, start, start.AddDate(0, 0, 1), 0)
}

// UpcomingEvents returns events starting within the window from now.
func (c *Client) UpcomingEvents(ctx context.Context, window time.Duration) ([]Event, error) {
	if !c.Configured() {
		return nil, nil
	}

	now := c.clock.Now().In(c.location)
	return c.listEvents(ctx, now, now.Add(window), 5)
}

// NextEvent returns the next event within 24 hours, or nil.
func (c *Client) NextEvent(ctx context.Context) (*Event, error) {
	events, err := c.UpcomingEvents(ctx, 24*time.Hour)
	if err != nil || len(events) == 0 {
		return nil, err
	}
	return &events[0], nil
}

// NextEventToday returns the next event starting before the end of
// today, or nil.
func (c *Client) NextEventToday(ctx context.Context) (*Event, error) {
	next, err := c.NextEvent(ctx)
	if err != nil || next == nil {
		return nil, err
	}

	now := c.clock.Now().In(c.location)
	endOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, c.location).AddDate(0, 0, 1)
	if next.Start.Before(endOfDay) {
		return next, nil
	}
	return nil, nil
}

// HasRemainingEventsToday reports whether any event still starts today.
func (c *Client) HasRemainingEventsToday(ctx context.Context) (bool, error) {
	next, err := c.NextEventToday(ctx)
	if err != nil {
		return false, err
	}
	return next != nil, nil
}

// FreeMinutesRemaining returns whole minutes until the next event, or
// until the 22:00 bedtime when nothing is scheduled. Never negative.
func (c *Client) FreeMinutesRemaining(ctx context.Context) (int, error) {
	next, err := c.NextEvent(ctx)
	if err != nil {
		return 0, err
	}
	return freeMinutes(c.clock.Now().In(c.location), next, c.location), nil
}

// freeMinutes computes the free span from now: to the next event's
// start when one exists, otherwise to today's bedtime. Floored at 0.
func freeMinutes(now time.Time, next *Event, location *time.Location) int {
	var until time.Time
	if next != nil {
		until = next.Start
	} else {
		until = time.Date(now.Year(), now.Month(), now.Day(), bedtimeHour, 0, 0, 0, location)
	}

	remaining := until.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int(remaining / time.Minute)
}

// CreateTaskEvent inserts an event spanning the task's planned time
// and returns its event ID.
func (c *Client) CreateTaskEvent(ctx context.Context, taskID int64, taskName string, plannedMinutes int) (string, error) {
	if !c.Configured() {
		return "", nil
	}

	now := c.clock.Now().In(c.location)
	end := now.Add(time.Duration(plannedMinutes) * time.Minute)

	event := &gcal.Event{
		Summary:     "[task] " + taskName,
		Description: fmt.Sprintf("kotori task %d", taskID),
		Start: &gcal.EventDateTime{
			DateTime: now.Format(time.RFC3339),
			TimeZone: c.location.String(),
		},
		End: &gcal.EventDateTime{
			DateTime: end.Format(time.RFC3339),
			TimeZone: c.location.String(),
		},
		ColorId: "9",
	}

	created, err := c.service.Events.Insert(c.calendarID, event).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("calendar: inserting task event: %w", err)
	}
	return created.Id, nil
}

// CloseTaskEvent rewrites the task's event after it finishes: the end
// time shrinks or grows to the actual minutes spent, and the title and
// color reflect done versus skipped.
func (c *Client) CloseTaskEvent(ctx context.Context, eventID, taskName string, actualMinutes int, done bool) error {
	if !c.Configured() || eventID == "" {
		return nil
	}

	existing, err := c.service.Events.Get(c.calendarID, eventID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("calendar: loading task event: %w", err)
	}
	if existing.Start == nil || existing.Start.DateTime == "" {
		return fmt.Errorf("calendar: task event %s has no start time", eventID)
	}

	start, err := time.Parse(time.RFC3339, existing.Start.DateTime)
	if err != nil {
		return fmt.Errorf("calendar: parsing event start: %w", err)
	}
	end := start.Add(time.Duration(actualMinutes) * time.Minute)

	marker, colorID, verdict := "->", "8", "skipped"
	if done {
		marker, colorID, verdict = "ok", "10", "done"
	}

	patch := &gcal.Event{
		Summary:     fmt.Sprintf("[%s] %s", marker, taskName),
		Description: fmt.Sprintf("%s\n%s: %d min", existing.Description, verdict, actualMinutes),
		End: &gcal.EventDateTime{
			DateTime: end.In(c.location).Format(time.RFC3339),
			TimeZone: c.location.String(),
		},
		ColorId: colorID,
	}
	if _, err := c.service.Events.Patch(c.calendarID, eventID, patch).Context(ctx).Do(); err != nil {
		return fmt.Errorf("calendar: patching task event: %w", err)
	}
	return nil
}

// listEvents queries the API and converts the results, dropping
// malformed entries.
func (c *Client) listEvents(ctx context.Context, from, to time.Time, maxResults int64) ([]Event, error) {
	call := c.service.Events.List(c.calendarID).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx)
	if maxResults > 0 {
		call = call.MaxResults(maxResults)
	}

	listed, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("calendar: listing events: %w", err)
	}

	events := make([]Event, 0, len(listed.Items))
	for _, item := range listed.Items {
		if event, ok := parseEvent(item, c.location); ok {
			events = append(events, event)
		}
	}
	return events, nil
}

// parseEvent converts an API event, handling both timed events
// (dateTime) and all-day events (date). Events without an id, title,
// or usable times are dropped.
func parseEvent(item *gcal.Event, location *time.Location) (Event, bool) {
	if item == nil || item.Id == "" || item.Summary == "" {
		return Event{}, false
	}

	start, ok := parseEventTime(item.Start, location)
	if !ok {
		return Event{}, false
	}
	end, ok := parseEventTime(item.End, location)
	if !ok {
		return Event{}, false
	}

	return Event{
		ID:          item.Id,
		Title:       item.Summary,
		Start:       start,
		End:         end,
		Location:    item.Location,
		Description: item.Description,
	}, true
}

func parseEventTime(at *gcal.EventDateTime, location *time.Location) (time.Time, bool) {
	if at == nil {
		return time.Time{}, false
	}
	if at.DateTime != "" {
		parsed, err := time.Parse(time.RFC3339, at.DateTime)
		if err != nil {
			return time.Time{}, false
		}
		return parsed.In(location), true
	}
	if at.Date != "" {
		parsed, err := time.ParseInLocation("2006-01-02", at.Date, location)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	}
	return time.Time{}, false
}

// FormatEvent renders an event for user-facing messages, e.g.
// "14:00-15:00 design review (room 3)".
func FormatEvent(event Event, location *time.Location) string {
	text := fmt.Sprintf("%s-%s %s",
		event.Start.In(location).Format("15:04"),
		event.End.In(location).Format("15:04"),
		event.Title)
	if event.Location != "" {
		text += " (" + event.Location + ")"
	}
	return text
}

// MinutesUntil returns whole minutes from now until the event starts,
// floored at 0.
func MinutesUntil(now time.Time, event Event) int {
	remaining := event.Start.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int(remaining / time.Minute)
}
