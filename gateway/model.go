// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package gateway is the only place in the core that talks to a chat
// model. It presents a narrow, model-agnostic capability set — chat and
// chat_stream — with retries, a process-wide concurrency cap, and layered
// JSON recovery, to the rest of the core (§4.L).
package gateway

import (
	"context"
	"iter"
)

// LLM is the provider-specific client the Gateway drives. Implementations
// (openai, gemini) speak their own wire format internally but expose only
// this shape.
type LLM interface {
	// Complete performs a synchronous single-turn completion.
	Complete(ctx context.Context, req Request) (*Completion, error)
	// Stream performs a streaming completion; the returned sequence yields
	// one TokenChunk per delta and a single terminal error (nil on clean
	// completion). The sequence is finite and non-restartable.
	Stream(ctx context.Context, req Request) iter.Seq2[TokenChunk, error]
	// Name identifies the provider for logging/metrics ("openai", "gemini").
	Name() string
}

// Request is the model-agnostic shape passed to an LLM implementation.
type Request struct {
	System      string
	User        string
	Model       string
	Temperature float64
	MaxTokens   int
	ExpectJSON  bool
}

// Completion is a synchronous chat result.
type Completion struct {
	Text         string
	FinishReason string
	PromptTokens int
	OutputTokens int
}

// TokenChunk is one increment of a streamed reply.
type TokenChunk struct {
	Delta string
	Done  bool
}

// Options configures a single Chat/ChatStream call on top of the gateway's
// process-wide defaults (§4.L).
type Options struct {
	Model          string
	Temperature    float64
	MaxTokens      int
	Timeout        int // milliseconds; 0 means use the gateway default
	ExpectJSON     bool
	JSONSchemaHint string // flat-field names used by the field-regex recovery stage
}

// CompletionResult is what Chat returns to callers.
type CompletionResult struct {
	Text         string
	Raw          string // the unmodified model output, before JSON recovery
	Recovered    bool   // true if recovery stages 2 or 3 were needed
	FinishReason string
}
