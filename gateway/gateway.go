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

package gateway

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/semaphore"

	"github.com/aurelius-labs/tutorcore/config"
	"github.com/aurelius-labs/tutorcore/coreerrors"
	"github.com/aurelius-labs/tutorcore/observability"
)

// Gateway is the process-wide front door to the chat model. There is
// exactly one Gateway per process; its concurrency limiter is the single
// global throttle in front of the model (§5).
type Gateway struct {
	llm     LLM
	cfg     config.GatewayConfig
	sem     *semaphore.Weighted
	log     *slog.Logger
	metrics *observability.Metrics
	tracer  *observability.Tracer
}

// New builds a Gateway around an LLM implementation.
func New(llm LLM, cfg config.GatewayConfig, log *slog.Logger, metrics *observability.Metrics, tracer *observability.Tracer) *Gateway {
	return &Gateway{
		llm:     llm,
		cfg:     cfg,
		sem:     semaphore.NewWeighted(int64(cfg.MaxConcurrency)),
		log:     log,
		metrics: metrics,
		tracer:  tracer,
	}
}

func (g *Gateway) resolveOptions(opts Options) Options {
	if opts.Model == "" {
		opts.Model = g.cfg.Model
	}
	if opts.Timeout == 0 {
		opts.Timeout = g.cfg.RequestTimeoutMs
	}
	return opts
}

// Chat performs a synchronous single-turn completion (§4.L).
func (g *Gateway) Chat(ctx context.Context, system, user string, opts Options) (*CompletionResult, error) {
	opts = g.resolveOptions(opts)

	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, coreerrors.Wrap(coreerrors.ErrTimeout, "gateway: concurrency limiter wait exceeded", err)
	}
	defer g.sem.Release(1)

	ctx, end := g.tracer.StartSpan(ctx, "gateway.chat")

	var result *CompletionResult
	start := time.Now()
	var finalErr error
	attempt := 0
	op := func() error {
		attempt++
		callCtx := ctx
		var cancel context.CancelFunc
		if opts.Timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, time.Duration(opts.Timeout)*time.Millisecond)
			defer cancel()
		}

		req := Request{System: system, User: user, Model: opts.Model, Temperature: opts.Temperature, MaxTokens: opts.MaxTokens, ExpectJSON: opts.ExpectJSON}
		completion, err := g.llm.Complete(callCtx, req)
		if err != nil {
			kind := classifyErr(err, callCtx)
			if kind == coreerrors.ErrUpstream || kind == coreerrors.ErrTimeout {
				g.metrics.GatewayRetries.WithLabelValues(string(kind)).Inc()
				return coreerrors.Wrap(kind, "gateway: completion call failed", err)
			}
			return backoff.Permanent(coreerrors.Wrap(kind, "gateway: completion call failed", err))
		}

		text := completion.Text
		recovered := false
		if opts.ExpectJSON {
			fields := splitFields(opts.JSONSchemaHint)
			var jerr error
			text, recovered, jerr = recoverJSON(completion.Text, fields)
			if jerr != nil {
				return backoff.Permanent(jerr)
			}
		}

		result = &CompletionResult{Text: text, Raw: completion.Text, Recovered: recovered, FinishReason: completion.FinishReason}
		return nil
	}

	bo := newFullJitterBackoff(g.cfg)
	finalErr = backoff.Retry(op, backoff.WithMaxRetries(bo, uint64(g.cfg.RetryMax)))
	g.metrics.GatewayLatency.WithLabelValues(opts.Model).Observe(time.Since(start).Seconds())

	outcome := "ok"
	if finalErr != nil {
		outcome = string(classifyFinal(finalErr))
	}
	g.metrics.GatewayCalls.WithLabelValues(opts.Model, outcome).Inc()
	end(&finalErr)

	if finalErr != nil {
		g.log.Warn("gateway chat failed", "model", opts.Model, "attempts", attempt, "error", finalErr)
		return nil, unwrapCoreErr(finalErr)
	}
	return result, nil
}

// ChatStream performs a streaming completion (§4.L). Streaming calls are
// not retried at the gateway layer: a partially-delivered stream cannot be
// safely replayed, so callers that need a retry must fall back to Chat.
func (g *Gateway) ChatStream(ctx context.Context, system, user string, opts Options) iter.Seq2[TokenChunk, error] {
	opts = g.resolveOptions(opts)
	return func(yield func(TokenChunk, error) bool) {
		if err := g.sem.Acquire(ctx, 1); err != nil {
			yield(TokenChunk{}, coreerrors.Wrap(coreerrors.ErrTimeout, "gateway: concurrency limiter wait exceeded", err))
			return
		}
		defer g.sem.Release(1)

		callCtx := ctx
		if opts.Timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, time.Duration(opts.Timeout)*time.Millisecond)
			defer cancel()
		}

		req := Request{System: system, User: user, Model: opts.Model, Temperature: opts.Temperature, MaxTokens: opts.MaxTokens}
		for chunk, err := range g.llm.Stream(callCtx, req) {
			if err != nil {
				if !yield(TokenChunk{}, unwrapCoreErr(coreerrors.Wrap(classifyErr(err, callCtx), "gateway: stream failed", err))) {
					return
				}
				return
			}
			if !yield(chunk, nil) {
				return
			}
		}
	}
}

// classifyErr maps a provider error to a Kind. Implementations are
// expected to surface context.DeadlineExceeded/context.Canceled directly
// so the gateway can distinguish timeouts from other failures without
// depending on provider-specific error types.
func classifyErr(err error, ctx context.Context) coreerrors.Kind {
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
		return coreerrors.ErrTimeout
	}
	var ce *coreerrors.Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	var re RequestError
	if errors.As(err, &re) {
		return coreerrors.ErrRequest
	}
	return coreerrors.ErrUpstream
}

func classifyFinal(err error) coreerrors.Kind {
	k := coreerrors.KindOf(err)
	if k == "" {
		return coreerrors.ErrUpstream
	}
	return k
}

func unwrapCoreErr(err error) error {
	var ce *coreerrors.Error
	if errors.As(err, &ce) {
		return ce
	}
	return err
}

// RequestError is returned by an LLM implementation for 4xx/invalid-input
// failures; the gateway classifies it as ErrRequest and never retries it.
type RequestError struct{ Err error }

func (e RequestError) Error() string { return e.Err.Error() }
func (e RequestError) Unwrap() error { return e.Err }

// newFullJitterBackoff builds a backoff.BackOff whose NextBackOff implements
// full jitter (delay = random(0, base*2^attempt)) rather than the library's
// default equal-jitter, per §4.L's explicit requirement.
func newFullJitterBackoff(cfg config.GatewayConfig) backoff.BackOff {
	return &fullJitterBackoff{
		base:    time.Duration(cfg.RetryBaseDelayMs) * time.Millisecond,
		attempt: 0,
	}
}

type fullJitterBackoff struct {
	base    time.Duration
	attempt int
}

func (b *fullJitterBackoff) NextBackOff() time.Duration {
	cap := b.base << uint(min(b.attempt, 20))
	b.attempt++
	return time.Duration(rand.Int63n(int64(cap) + 1))
}

func (b *fullJitterBackoff) Reset() { b.attempt = 0 }

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func splitFields(hint string) []string {
	if hint == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(hint); i++ {
		if i == len(hint) || hint[i] == ',' {
			if i > start {
				out = append(out, hint[start:i])
			}
			start = i + 1
		}
	}
	return out
}
