// Copyright 2026 The Kotori Authors
// SPDX-License-Identifier: Apache-2.0

// Package messenger delivers outgoing messages to the user through a
// webhook. Delivery is fire-and-forget: callers log failures and move
// on, nothing is queued or retried.
package messenger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Webhook POSTs each message as JSON to a configured URL.
type Webhook struct {
	url        string
	httpClient *http.Client
}

// NewWebhook creates a Webhook. timeout bounds each delivery attempt;
// zero means no client-side timeout.
func NewWebhook(url string, timeout time.Duration) *Webhook {
	return &Webhook{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Deliver sends one message. Any 2xx status counts as delivered.
func (w *Webhook) Deliver(ctx context.Context, text string) error {
	payload, err := json.Marshal(map[string]string{"content": text})
	if err != nil {
		return fmt.Errorf("messenger: marshaling payload: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost,
		w.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("messenger: creating request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := w.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("messenger: sending message: %w", err)
	}
	defer response.Body.Close()
	io.Copy(io.Discard, io.LimitReader(response.Body, 4096))

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return fmt.Errorf("messenger: webhook returned HTTP %d", response.StatusCode)
	}
	return nil
}
