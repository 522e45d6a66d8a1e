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

package analyst

import (
	"context"
	"encoding/json"
	"io"
	"iter"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aurelius-labs/tutorcore/config"
	"github.com/aurelius-labs/tutorcore/gateway"
	"github.com/aurelius-labs/tutorcore/observability"
	riskpkg "github.com/aurelius-labs/tutorcore/risk"
	"github.com/aurelius-labs/tutorcore/store"
)

type fakeLLM struct {
	completion *gateway.Completion
	err        error
}

func (f *fakeLLM) Complete(ctx context.Context, req gateway.Request) (*gateway.Completion, error) {
	return f.completion, f.err
}

func (f *fakeLLM) Stream(ctx context.Context, req gateway.Request) iter.Seq2[gateway.TokenChunk, error] {
	return func(yield func(gateway.TokenChunk, error) bool) {}
}

func (f *fakeLLM) Name() string { return "fake" }

func testGateway(t *testing.T, respJSON string) *gateway.Gateway {
	t.Helper()
	cfg := config.GatewayConfig{}
	cfg.SetDefaults()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetrics()
	tracer := observability.NewTracer("test", observability.NewNoopTracerProvider())
	llm := &fakeLLM{completion: &gateway.Completion{Text: respJSON, FinishReason: "stop"}}
	return gateway.New(llm, cfg, log, metrics, tracer)
}

func testStore(t *testing.T) *store.Store {
	t.Helper()
	dsn := "file:" + t.Name() + "?mode=memory&cache=shared&_fk=1"
	s, err := store.Open(config.StoreConfig{Dialect: "sqlite", DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedSessionAndMessages(t *testing.T, s *store.Store) {
	t.Helper()
	ctx := context.Background()
	sess := &store.TutorSession{SessionID: "sess-1", StudentID: "stu-1", ActivityID: "act-1", CourseID: "c-1", IsActive: true, CreatedAt: time.Now()}
	require.NoError(t, s.SaveSession(ctx, sess))
	msg := &store.Message{
		MessageID: "msg-1", SessionID: "sess-1", Sender: store.SenderStudent,
		Content: "I keep getting a nil pointer when I recurse past the base case.",
		Phase:   store.PhaseDebugging, CreatedAt: time.Now(),
	}
	require.NoError(t, s.AppendMessage(ctx, msg))
}

func analystCfg() config.AnalystConfig {
	cfg := config.AnalystConfig{}
	cfg.SetDefaults()
	return cfg
}

func TestAudit_GroundedQuotesSurviveAndCompletes(t *testing.T) {
	s := testStore(t)
	seedSessionAndMessages(t, s)

	resp, err := json.Marshal(auditResponse{
		DiagnosisCategory: "LOGIC",
		DiagnosisDetail:    "Student misunderstands the base case termination.",
		Evidence:           []string{"nil pointer when I recurse past the base case", "this quote is not in the trace at all"},
		Intervention:       "Walk through a small recursive example by hand.",
		Confidence:         0.8,
	})
	require.NoError(t, err)

	gw := testGateway(t, string(resp))
	e := New(s, gw, riskpkg.Static{Signal: riskpkg.Signal{Score: 0.6, Level: "MEDIUM"}}, analystCfg(), slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetrics())

	audit, err := e.Audit(context.Background(), "stu-1", nil)
	require.NoError(t, err)
	require.Equal(t, store.AuditCompleted, audit.Status)
	require.Len(t, audit.EvidenceQuotes, 1)
	require.Equal(t, store.RiskLevel("MEDIUM"), audit.RiskLevel)
}

func TestAudit_FewerThanOneGroundedQuoteFailsAsUngrounded(t *testing.T) {
	s := testStore(t)
	seedSessionAndMessages(t, s)

	resp, err := json.Marshal(auditResponse{
		DiagnosisCategory: "LOGIC",
		DiagnosisDetail:    "placeholder",
		Evidence:           []string{"not a real quote", "also fabricated"},
		Intervention:       "placeholder",
		Confidence:         0.5,
	})
	require.NoError(t, err)

	gw := testGateway(t, string(resp))
	e := New(s, gw, riskpkg.Static{}, analystCfg(), slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetrics())

	audit, err := e.Audit(context.Background(), "stu-1", nil)
	require.NoError(t, err)
	require.Equal(t, store.AuditFailed, audit.Status)
	require.Equal(t, "ungrounded", audit.FailureReason)
}
