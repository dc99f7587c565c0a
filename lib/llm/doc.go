// Copyright 2026 The Kotori Authors
// SPDX-License-Identifier: Apache-2.0

// Package llm provides a minimal chat-completion client for
// OpenAI-compatible APIs. The daemon uses it to phrase every outgoing
// message in the companion's voice.
package llm
