// Copyright 2026 The Kotori Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// OpenAI implements [Provider] for the OpenAI Chat Completions wire
// format. Any compatible API works (OpenAI, xAI, OpenRouter, vLLM,
// Ollama, llama.cpp); the daemon talks to xAI's Grok by default.
type OpenAI struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewOpenAI creates an OpenAI-compatible provider. baseURL is the API
// root (e.g. "https://api.x.ai/v1"); the /chat/completions path is
// appended. A nil httpClient uses http.DefaultClient.
func NewOpenAI(httpClient *http.Client, baseURL, apiKey string) *OpenAI {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &OpenAI{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
	}
}

// Complete sends a non-streaming request and returns the full response.
func (provider *OpenAI) Complete(ctx context.Context, request Request) (*Response, error) {
	wireRequest := provider.buildRequest(request)

	httpResponse, err := doProviderRequest(ctx, provider.httpClient,
		provider.baseURL+"/chat/completions", provider.apiKey, wireRequest, "llm/openai")
	if err != nil {
		return nil, err
	}
	defer httpResponse.Body.Close()

	var wireResponse openaiResponse
	if err := json.NewDecoder(httpResponse.Body).Decode(&wireResponse); err != nil {
		return nil, fmt.Errorf("llm/openai: decoding response: %w", err)
	}

	return wireResponse.toResponse(), nil
}

// buildRequest converts the common types to the OpenAI wire format.
// The system prompt becomes the first message with role "system".
func (provider *OpenAI) buildRequest(request Request) openaiRequest {
	wireRequest := openaiRequest{
		Model:       request.Model,
		MaxTokens:   request.MaxTokens,
		Temperature: request.Temperature,
	}

	if request.System != "" {
		wireRequest.Messages = append(wireRequest.Messages, openaiMessage{
			Role:    "system",
			Content: request.System,
		})
	}
	for _, message := range request.Messages {
		wireRequest.Messages = append(wireRequest.Messages, openaiMessage{
			Role:    string(message.Role),
			Content: message.Content,
		})
	}

	return wireRequest
}

// --- OpenAI wire types ---
//
// These map directly to the Chat Completions JSON format. They are
// separate from the public types because the wire format uses
// different field names and conventions.

type openaiRequest struct {
	Model       string          `json:"model"`
	Messages    []openaiMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiResponse struct {
	ID      string         `json:"id"`
	Model   string         `json:"model"`
	Choices []openaiChoice `json:"choices"`
	Usage   openaiUsage    `json:"usage"`
}

type openaiChoice struct {
	Index        int           `json:"index"`
	Message      openaiMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type openaiUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
}

func (wireResponse *openaiResponse) toResponse() *Response {
	response := &Response{
		Model: wireResponse.Model,
		Usage: Usage{
			InputTokens:  wireResponse.Usage.PromptTokens,
			OutputTokens: wireResponse.Usage.CompletionTokens,
		},
	}
	if len(wireResponse.Choices) > 0 {
		response.Text = wireResponse.Choices[0].Message.Content
	}
	return response
}
