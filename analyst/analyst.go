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

// Package analyst implements the pedagogical analyst pipeline (§4.A):
// given a student's trace history, it explains *why* they are at risk,
// grounding every claim in a literal quote from the trace. Risk scoring
// itself is an external collaborator (risk.Source); the analyst only
// diagnoses.
package analyst

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/invopop/jsonschema"

	"github.com/aurelius-labs/tutorcore/config"
	"github.com/aurelius-labs/tutorcore/gateway"
	"github.com/aurelius-labs/tutorcore/observability"
	"github.com/aurelius-labs/tutorcore/risk"
	"github.com/aurelius-labs/tutorcore/store"
)

// auditSchemaDoc documents the strict-JSON shape the auditor prompt
// requires, and feeds the gateway's field-regex JSON-recovery stage.
var auditSchemaDoc string

func init() {
	reflector := &jsonschema.Reflector{DoNotReference: true}
	schema := reflector.Reflect(&auditResponse{})
	b, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		panic(err)
	}
	auditSchemaDoc = string(b)
}

type auditResponse struct {
	DiagnosisCategory string   `json:"diagnosis_category" jsonschema:"required,enum=SYNTAX,enum=LOGIC,enum=CONCEPTUAL,enum=COGNITIVE_OVERLOAD,enum=BEHAVIORAL"`
	DiagnosisDetail   string   `json:"diagnosis_detail" jsonschema:"required"`
	Evidence          []string `json:"evidence" jsonschema:"required"`
	Intervention      string   `json:"intervention" jsonschema:"required"`
	Confidence        float64  `json:"confidence" jsonschema:"required"`
}

var requiredFields = []string{"diagnosis_category", "diagnosis_detail", "evidence", "intervention", "confidence"}

// Engine is the analyst collaborator.
type Engine struct {
	store   *store.Store
	gw      *gateway.Gateway
	risk    risk.Source
	cfg     config.AnalystConfig
	log     *slog.Logger
	metrics *observability.Metrics
}

// New builds an Engine from its collaborators.
func New(st *store.Store, gw *gateway.Gateway, riskSource risk.Source, cfg config.AnalystConfig, log *slog.Logger, metrics *observability.Metrics) *Engine {
	return &Engine{store: st, gw: gw, risk: riskSource, cfg: cfg, log: log, metrics: metrics}
}

func newID(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
}

// Audit runs the full §4.A algorithm for studentID, optionally scoped to
// one activityID, and returns the persisted PedagogicalAudit.
func (e *Engine) Audit(ctx context.Context, studentID string, activityID *string) (*store.PedagogicalAudit, error) {
	// Step 1: pull the last N messages.
	history, err := e.store.MessagesByStudent(ctx, studentID, activityID, e.cfg.TraceWindow)
	if err != nil {
		return nil, err
	}

	// Step 2: derive metrics.
	metrics := deriveMetrics(history)

	// Step 3: summarize the trace window.
	traceText := traceWindowText(history)
	summary := summarizeTrace(history, e.cfg.SummaryLines, metrics)

	// Step 4: call the LLM at low temperature requesting strict JSON.
	system := "You are an instructional auditor. You diagnose why a student is struggling, " +
		"grounding every claim only in the conversation trace supplied. You never speculate beyond it."
	user := buildUserPrompt(summary, e.cfg.MinQuotes)

	result, callErr := e.gw.Chat(ctx, system, user, gateway.Options{
		Temperature:    e.cfg.Temperature,
		ExpectJSON:     true,
		JSONSchemaHint: strings.Join(requiredFields, ","),
	})

	audit := &store.PedagogicalAudit{
		AnalysisID: newID("audit"),
		StudentID:  studentID,
		ActivityID: activityID,
		CreatedAt:  time.Now(),
	}

	if sig, sigErr := e.risk.Current(ctx, studentID, activityID); sigErr == nil {
		audit.RiskScore = sig.Score
		audit.RiskLevel = store.RiskLevel(sig.Level)
	} else {
		e.log.Warn("analyst: risk signal unavailable", "student_id", studentID, "error", sigErr)
	}

	if callErr != nil {
		audit.Status = store.AuditFailed
		audit.FailureReason = "diagnosis call failed: " + callErr.Error()
		if saveErr := e.store.SaveAudit(ctx, audit); saveErr != nil {
			return nil, saveErr
		}
		return audit, nil
	}

	var resp auditResponse
	if err := json.Unmarshal([]byte(result.Text), &resp); err != nil {
		audit.Status = store.AuditFailed
		audit.FailureReason = "malformed diagnosis response"
		if saveErr := e.store.SaveAudit(ctx, audit); saveErr != nil {
			return nil, saveErr
		}
		return audit, nil
	}

	// Step 5: validate evidence quotes are literal substrings of the
	// trace window; drop any that are not.
	grounded := make([]string, 0, len(resp.Evidence))
	for _, q := range resp.Evidence {
		q = strings.TrimSpace(q)
		if q != "" && strings.Contains(traceText, q) {
			grounded = append(grounded, q)
		}
	}

	audit.DiagnosisCategory = store.DiagnosisCategory(resp.DiagnosisCategory)
	audit.Diagnosis = resp.DiagnosisDetail
	audit.EvidenceQuotes = grounded
	audit.Intervention = resp.Intervention
	audit.Confidence = resp.Confidence

	if len(grounded) < 1 {
		audit.Status = store.AuditFailed
		audit.FailureReason = "ungrounded"
	} else {
		audit.Status = store.AuditCompleted
	}

	// Step 6: persist and return.
	if err := e.store.SaveAudit(ctx, audit); err != nil {
		return nil, err
	}
	e.metrics.AnalystAudits.WithLabelValues(string(audit.Status)).Inc()
	return audit, nil
}

func buildUserPrompt(summary string, minQuotes int) string {
	var b strings.Builder
	b.WriteString("Trace summary:\n")
	b.WriteString(summary)
	b.WriteString("\n\nRespond with a single JSON object matching this schema:\n")
	b.WriteString(auditSchemaDoc)
	fmt.Fprintf(&b, "\n\nevidence must contain at least %d short quotes copied verbatim from the trace summary above. Strict JSON only, no prose.", minQuotes)
	return b.String()
}
