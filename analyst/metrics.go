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
	"fmt"
	"strings"

	"github.com/aurelius-labs/tutorcore/store"
)

// traceMetrics are the lightweight derived signals from §4.A step 2.
type traceMetrics struct {
	TotalInteractions int
	ErrorCount        int
	HintCount         int
	TimeInPhase       map[store.Phase]int
	FinalFrustration  float64
	FinalUnderstanding float64
}

func deriveMetrics(history []store.Message) traceMetrics {
	m := traceMetrics{TimeInPhase: make(map[store.Phase]int)}
	for _, msg := range history {
		m.TimeInPhase[msg.Phase]++
		if msg.Sender == store.SenderStudent {
			m.TotalInteractions++
			if msg.ErrorContext != nil {
				m.ErrorCount++
			}
		}
		if msg.Sender == store.SenderTutor && containsHintLanguage(msg.Content) {
			m.HintCount++
		}
		m.FinalFrustration = msg.Frustration
		m.FinalUnderstanding = msg.Understanding
	}
	return m
}

func containsHintLanguage(content string) bool {
	lower := strings.ToLower(content)
	for _, verb := range []string{"try", "consider", "think about", "check", "look at"} {
		if strings.Contains(lower, verb) {
			return true
		}
	}
	return false
}

// traceWindowText concatenates the raw content of every message in the
// window, used as the substring-grounding surface for evidence quotes
// (§4.A step 5).
func traceWindowText(history []store.Message) string {
	var b strings.Builder
	for _, m := range history {
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return b.String()
}

// summarizeTrace builds the compact text block fed to the auditor
// prompt: timestamped lines for the last summaryLines messages plus the
// metrics block (§4.A step 3).
func summarizeTrace(history []store.Message, summaryLines int, m traceMetrics) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Metrics: total_interactions=%d error_count=%d hint_count=%d frustration=%.2f understanding=%.2f\n",
		m.TotalInteractions, m.ErrorCount, m.HintCount, m.FinalFrustration, m.FinalUnderstanding)
	b.WriteString("Time in phase:")
	for _, phase := range []store.Phase{
		store.PhaseExploration, store.PhaseDecomposition, store.PhasePlanning,
		store.PhaseImplementation, store.PhaseDebugging, store.PhaseValidation, store.PhaseReflection,
	} {
		fmt.Fprintf(&b, " %s=%d", phase, m.TimeInPhase[phase])
	}
	b.WriteString("\n\nRecent messages:\n")

	start := 0
	if len(history) > summaryLines {
		start = len(history) - summaryLines
	}
	for _, msg := range history[start:] {
		fmt.Fprintf(&b, "[%s] %s: %s\n", msg.CreatedAt.Format("15:04:05"), msg.Sender, truncate(msg.Content, 300))
	}
	return b.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
