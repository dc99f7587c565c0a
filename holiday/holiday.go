// Copyright 2026 The Kotori Authors
// SPDX-License-Identifier: Apache-2.0

// Package holiday tracks public holidays. The dataset comes from a
// JSON API mapping YYYY-MM-DD dates to holiday names; a fetched copy
// is persisted so the daemon keeps working through API outages and
// restarts.
package holiday

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/kotori-bot/kotori/store"
)

// Service answers holiday lookups from an in-memory map refreshed
// daily. Safe for concurrent use.
type Service struct {
	url        string
	httpClient *http.Client
	store      *store.Store
	location   *time.Location
	logger     *slog.Logger

	mu       sync.RWMutex
	holidays map[string]string // YYYY-MM-DD -> name
}

// NewService creates a Service. httpClient may be nil to use
// http.DefaultClient; logger may be nil to discard.
func NewService(url string, httpClient *http.Client, st *store.Store, location *time.Location, logger *slog.Logger) *Service {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		url:        url,
		httpClient: httpClient,
		store:      st,
		location:   location,
		logger:     logger,
		holidays:   map[string]string{},
	}
}

// Refresh fetches the holiday dataset. On success the in-memory map
// and the persisted cache are both replaced. On failure the persisted
// cache is loaded instead, so a dataset survives restarts without
// network access; the fetch error is returned either way.
func (s *Service) Refresh(ctx context.Context) error {
	fetched, err := s.fetch(ctx)
	if err != nil {
		s.logger.Warn("holiday fetch failed, loading persisted cache", "error", err)
		if cacheErr := s.loadCache(ctx); cacheErr != nil {
			s.logger.Error("holiday cache load failed", "error", cacheErr)
		}
		return err
	}

	s.mu.Lock()
	s.holidays = fetched
	s.mu.Unlock()

	rows := make([]store.Holiday, 0, len(fetched))
	for date, name := range fetched {
		rows = append(rows, store.Holiday{Date: date, Name: name})
	}
	if err := s.store.ReplaceHolidays(ctx, rows); err != nil {
		s.logger.Error("persisting holiday cache failed", "error", err)
	}

	s.logger.Info("holidays refreshed", "count", len(fetched))
	return nil
}

// IsHoliday reports whether t's date is a public holiday.
func (s *Service) IsHoliday(t time.Time) bool {
	date := t.In(s.location).Format("2006-01-02")
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.holidays[date]
	return ok
}

// HolidayName returns the holiday name for t's date, or "".
func (s *Service) HolidayName(t time.Time) string {
	date := t.In(s.location).Format("2006-01-02")
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.holidays[date]
}

func (s *Service) fetch(ctx context.Context) (map[string]string, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("holiday: creating request: %w", err)
	}

	response, err := s.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("holiday: fetching %s: %w", s.url, err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(response.Body, 4096))
		return nil, fmt.Errorf("holiday: %s returned HTTP %d", s.url, response.StatusCode)
	}

	var dataset map[string]string
	if err := json.NewDecoder(response.Body).Decode(&dataset); err != nil {
		return nil, fmt.Errorf("holiday: decoding dataset: %w", err)
	}
	return dataset, nil
}

func (s *Service) loadCache(ctx context.Context) error {
	rows, err := s.store.CachedHolidays(ctx)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	loaded := make(map[string]string, len(rows))
	for _, row := range rows {
		loaded[row.Date] = row.Name
	}

	s.mu.Lock()
	s.holidays = loaded
	s.mu.Unlock()

	s.logger.Info("holidays loaded from cache", "count", len(loaded))
	return nil
}
