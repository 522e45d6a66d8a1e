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

// Package observability wires structured logging, OpenTelemetry tracing,
// and Prometheus metrics for the orchestration core. Components receive
// their collectors as constructor arguments rather than reaching for
// globals (gateway, generator, tutor and analyst take a *Metrics; gateway
// also takes a *Tracer), so tests can substitute fresh or no-op instances.
package observability

import (
	"context"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	stdouttrace "go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/aurelius-labs/tutorcore/config"
)

// NewLogger builds a slog.Logger per the configured level/format. JSON
// output is the default, matching a service meant to run behind a log
// aggregator rather than a terminal.
func NewLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// Tracer wraps an OpenTelemetry tracer with a convenience span helper so
// call sites don't repeat the start/defer-end boilerplate.
type Tracer struct {
	tracer oteltrace.Tracer
}

// NewTracer wraps an already-constructed TracerProvider. The caller owns
// exporter choice (stdout via NewStdoutTracerProvider, a noop provider for
// tests, or an OTLP provider assembled outside this core) since wiring a
// concrete observability backend is the outer deployment's concern, not
// this library's.
func NewTracer(serviceName string, tp oteltrace.TracerProvider) *Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Tracer{tracer: tp.Tracer(serviceName)}
}

// NewStdoutTracerProvider builds a TracerProvider that pretty-prints spans
// to stdout, for local development and debugging sessions where standing up
// a collector isn't worth it.
func NewStdoutTracerProvider() (oteltrace.TracerProvider, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}
	return trace.NewTracerProvider(trace.WithBatcher(exporter)), nil
}

// StartSpan starts a span named name and returns a context carrying it plus
// a function that ends the span, recording err (if non-nil) as a span
// error. Typical use: `ctx, end := tr.StartSpan(ctx, "gateway.chat"); defer end(&err)`.
func (t *Tracer) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(*error)) {
	ctx, span := t.tracer.Start(ctx, name, oteltrace.WithAttributes(attrs...))
	return ctx, func(errp *error) {
		if errp != nil && *errp != nil {
			span.RecordError(*errp)
			span.SetStatus(codes.Error, (*errp).Error())
		}
		span.End()
	}
}

// NewNoopTracerProvider is used by tests that want spans to be created
// (exercising the same code paths) without exporting them anywhere.
func NewNoopTracerProvider() oteltrace.TracerProvider {
	return trace.NewTracerProvider()
}

// Metrics groups the Prometheus collectors shared across components.
// Registered against a private registry so tests can instantiate many
// without colliding on the global default registry.
type Metrics struct {
	Registry *prometheus.Registry

	GatewayCalls       *prometheus.CounterVec
	GatewayRetries     *prometheus.CounterVec
	GatewayLatency     *prometheus.HistogramVec
	JobPhaseTransition *prometheus.CounterVec
	TutorSessionsTotal prometheus.Counter
	TutorSends         *prometheus.CounterVec
	AnalystAudits      *prometheus.CounterVec
}

// NewMetrics registers and returns the core's collector set.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		GatewayCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tutorcore_gateway_calls_total",
			Help: "LLM gateway calls by model and outcome.",
		}, []string{"model", "outcome"}),
		GatewayRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tutorcore_gateway_retries_total",
			Help: "LLM gateway retry attempts by reason.",
		}, []string{"reason"}),
		GatewayLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tutorcore_gateway_latency_seconds",
			Help:    "LLM gateway call latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"model"}),
		JobPhaseTransition: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tutorcore_job_phase_transitions_total",
			Help: "Generation job phase transitions.",
		}, []string{"from", "to"}),
		TutorSessionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tutorcore_tutor_sessions_total",
			Help: "Tutor sessions opened.",
		}),
		TutorSends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tutorcore_tutor_sends_total",
			Help: "Tutor send() calls by outcome (ok, degraded).",
		}, []string{"outcome"}),
		AnalystAudits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tutorcore_analyst_audits_total",
			Help: "Analyst audits by status.",
		}, []string{"status"}),
	}
	reg.MustRegister(
		m.GatewayCalls, m.GatewayRetries, m.GatewayLatency,
		m.JobPhaseTransition, m.TutorSessionsTotal, m.TutorSends, m.AnalystAudits,
	)
	return m
}
