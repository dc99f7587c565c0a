// Copyright 2026 The Kotori Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Provider is the interface for chat-completion backends.
// Implementations translate between the common types in this package
// and the vendor's wire format.
type Provider interface {
	// Complete sends a request and blocks until the full response is
	// available.
	Complete(ctx context.Context, request Request) (*Response, error)
}

// Role identifies the author of a message.
type Role string

const (
	// RoleUser marks input from the user's side of the conversation.
	RoleUser Role = "user"
	// RoleAssistant marks prior output from the model.
	RoleAssistant Role = "assistant"
	// RoleSystem marks instruction messages injected by the daemon.
	RoleSystem Role = "system"
)

// Message is a single conversation turn.
type Message struct {
	Role    Role
	Content string
}

// Request is a provider-independent completion request.
type Request struct {
	// Model is the model identifier.
	Model string

	// System is the system prompt. Sent as the first message when
	// non-empty.
	System string

	// Messages is the conversation so far, oldest first.
	Messages []Message

	// MaxTokens caps the response length. Zero lets the provider pick.
	MaxTokens int

	// Temperature overrides the sampling temperature when non-nil.
	Temperature *float64
}

// Usage reports token consumption for a completion.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// Response is a provider-independent completion response.
type Response struct {
	// Text is the assistant's reply.
	Text string

	// Model is the model that produced the reply, as reported by the
	// provider.
	Model string

	// Usage reports token consumption.
	Usage Usage
}

// ProviderError is returned when the API responds with an error.
type ProviderError struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Type is the provider-specific error type string
	// (e.g., "invalid_request_error", "rate_limit_error").
	Type string

	// Message is the human-readable error description.
	Message string
}

func (err *ProviderError) Error() string {
	if err.Type != "" {
		return fmt.Sprintf("llm: HTTP %d: %s: %s", err.StatusCode, err.Type, err.Message)
	}
	return fmt.Sprintf("llm: HTTP %d: %s", err.StatusCode, err.Message)
}

// IsRateLimited reports whether the error is a rate limit response.
func (err *ProviderError) IsRateLimited() bool {
	return err.StatusCode == http.StatusTooManyRequests
}

// doProviderRequest marshals wireRequest as JSON, POSTs it to endpoint
// via httpClient, and returns the HTTP response. Non-200 status codes
// become a ProviderError with the body already closed; on success the
// caller closes the body.
func doProviderRequest(ctx context.Context, httpClient *http.Client, endpoint, apiKey string, wireRequest any, prefix string) (*http.Response, error) {
	body, err := json.Marshal(wireRequest)
	if err != nil {
		return nil, fmt.Errorf("%s: marshaling request: %w", prefix, err)
	}

	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost,
		endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: creating request: %w", prefix, err)
	}
	httpRequest.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		httpRequest.Header.Set("Authorization", "Bearer "+apiKey)
	}

	httpResponse, err := httpClient.Do(httpRequest)
	if err != nil {
		return nil, fmt.Errorf("%s: sending request: %w", prefix, err)
	}

	if httpResponse.StatusCode != http.StatusOK {
		defer httpResponse.Body.Close()
		return nil, readProviderError(httpResponse)
	}

	return httpResponse, nil
}

// readProviderError parses an error response body in the common
// provider format {"error":{"type":"...","message":"..."}}. Extra
// fields in the error object are ignored.
func readProviderError(httpResponse *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(httpResponse.Body, 4096))

	var wireError struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &wireError) == nil && wireError.Error.Message != "" {
		return &ProviderError{
			StatusCode: httpResponse.StatusCode,
			Type:       wireError.Error.Type,
			Message:    wireError.Error.Message,
		}
	}

	return &ProviderError{
		StatusCode: httpResponse.StatusCode,
		Message:    string(body),
	}
}
