// Copyright 2026 The Kotori Authors
// SPDX-License-Identifier: Apache-2.0

// Package memory is a client for a mem0-style long-term memory HTTP
// API. The daemon searches it before phrasing reminders so replies can
// reference what the user has been up to, and saves conversation
// snippets back after commands.
package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// Client talks to the memory service. A Client with an empty base URL
// is disabled: Search returns "" and Save does nothing.
type Client struct {
	baseURL    string
	apiKey     string
	userID     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Client. httpClient may be nil to use
// http.DefaultClient; logger may be nil to discard.
func NewClient(baseURL, apiKey, userID string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		userID:     userID,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Enabled reports whether a memory service is configured.
func (c *Client) Enabled() bool {
	return c.baseURL != ""
}

// searchLimit caps how many memories a search returns.
const searchLimit = 5

// Search returns matching memories joined by newlines, or "" when the
// service is disabled, nothing matches, or the request fails. Memory
// is flavor, not correctness, so errors are logged and swallowed.
func (c *Client) Search(ctx context.Context, query string) string {
	if !c.Enabled() {
		return ""
	}

	payload := map[string]any{
		"query":   query,
		"user_id": c.userID,
		"limit":   searchLimit,
	}
	body, err := c.post(ctx, "/memories/search/", payload)
	if err != nil {
		c.logger.Warn("memory search failed", "error", err)
		return ""
	}

	return joinMemories(body)
}

// Save stores a conversation snippet. Best effort: failures are logged
// and swallowed.
func (c *Client) Save(ctx context.Context, content string) {
	if !c.Enabled() {
		return
	}

	payload := map[string]any{
		"messages": []map[string]string{{"role": "user", "content": content}},
		"user_id":  c.userID,
	}
	if _, err := c.post(ctx, "/memories/", payload); err != nil {
		c.logger.Warn("memory save failed", "error", err)
	}
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("memory: marshaling request: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("memory: creating request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		request.Header.Set("Authorization", "Token "+c.apiKey)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("memory: sending request: %w", err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(io.LimitReader(response.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("memory: reading response: %w", err)
	}
	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("memory: HTTP %d: %s", response.StatusCode, body)
	}
	return body, nil
}

// joinMemories extracts memory strings from either response shape the
// service uses: a bare array or {"results": [...]}.
func joinMemories(body []byte) string {
	type entry struct {
		Memory string `json:"memory"`
	}

	var entries []entry
	if err := json.Unmarshal(body, &entries); err != nil {
		var wrapped struct {
			Results []entry `json:"results"`
		}
		if err := json.Unmarshal(body, &wrapped); err != nil {
			return ""
		}
		entries = wrapped.Results
	}

	texts := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Memory != "" {
			texts = append(texts, e.Memory)
		}
	}
	return strings.Join(texts, "\n")
}
