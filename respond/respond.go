// Copyright 2026 The Kotori Authors
// SPDX-License-Identifier: Apache-2.0

// Package respond turns situation briefings into messages in Kotori's
// voice. It assembles the completion request: persona system prompt
// stamped with the current civil time, an optional memory-context
// message, the recent conversation, then the briefing as the user turn.
package respond

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kotori-bot/kotori/lib/clock"
	"github.com/kotori-bot/kotori/lib/llm"
	"github.com/kotori-bot/kotori/persona"
)

const (
	replyMaxTokens   = 300
	replyTemperature = 0.8
)

// Responder generates replies through a chat-completion provider.
type Responder struct {
	provider llm.Provider
	model    string
	clock    clock.Clock
	location *time.Location
	logger   *slog.Logger
}

// New creates a Responder. logger may be nil to discard.
func New(provider llm.Provider, model string, clk clock.Clock, location *time.Location, logger *slog.Logger) *Responder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Responder{
		provider: provider,
		model:    model,
		clock:    clk,
		location: location,
		logger:   logger,
	}
}

// Options carries the optional context for a reply.
type Options struct {
	// Memories is newline-joined memory text. Empty omits the memory
	// message.
	Memories string

	// Recent is the recent conversation, oldest first.
	Recent []llm.Message
}

// Reply generates a message for the situation briefing. Errors
// propagate: background callers log and skip the delivery, the command
// path substitutes persona.Apology.
func (r *Responder) Reply(ctx context.Context, situation string, opts Options) (string, error) {
	now := r.clock.Now().In(r.location)
	temperature := replyTemperature

	request := llm.Request{
		Model: r.model,
		System: fmt.Sprintf("%s\n\nCurrent time: %s",
			persona.SystemPrompt, now.Format("Monday 2006-01-02 15:04")),
		MaxTokens:   replyMaxTokens,
		Temperature: &temperature,
	}
	if opts.Memories != "" {
		request.Messages = append(request.Messages, llm.Message{
			Role:    llm.RoleSystem,
			Content: "What you remember about the user:\n" + opts.Memories,
		})
	}
	request.Messages = append(request.Messages, opts.Recent...)
	request.Messages = append(request.Messages, llm.Message{
		Role:    llm.RoleUser,
		Content: situation,
	})

	response, err := r.provider.Complete(ctx, request)
	if err != nil {
		return "", fmt.Errorf("respond: generating reply: %w", err)
	}

	text := strings.TrimSpace(response.Text)
	if text == "" {
		return "", fmt.Errorf("respond: provider returned an empty reply")
	}
	return text, nil
}
