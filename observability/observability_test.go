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

package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aurelius-labs/tutorcore/config"
)

func TestNewLogger_DefaultsToJSON(t *testing.T) {
	cfg := config.LoggingConfig{}
	cfg.SetDefaults()
	log := NewLogger(cfg)
	require.NotNil(t, log)
}

func TestNewMetrics_RegistersAllCollectors(t *testing.T) {
	m := NewMetrics()
	require.NotNil(t, m.Registry)
	m.GatewayCalls.WithLabelValues("gpt-4o", "ok").Inc()
	m.TutorSessionsTotal.Inc()
	families, err := m.Registry.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}

func TestStartSpan_RecordsErrorOnNonNil(t *testing.T) {
	tr := NewTracer("test", NewNoopTracerProvider())
	ctx, end := tr.StartSpan(context.Background(), "gateway.chat")
	require.NotNil(t, ctx)
	err := errors.New("boom")
	end(&err)
}

func TestStartSpan_NoErrorOnNilPointer(t *testing.T) {
	tr := NewTracer("test", NewNoopTracerProvider())
	_, end := tr.StartSpan(context.Background(), "gateway.chat")
	end(nil)
}

func TestNewStdoutTracerProvider_BuildsUsableProvider(t *testing.T) {
	tp, err := NewStdoutTracerProvider()
	require.NoError(t, err)
	require.NotNil(t, tp)

	tr := NewTracer("test", tp)
	_, end := tr.StartSpan(context.Background(), "test.span")
	end(nil)
}
