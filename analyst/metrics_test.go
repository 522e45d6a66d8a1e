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
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aurelius-labs/tutorcore/store"
)

func sampleHistory() []store.Message {
	now := time.Now()
	errCtx := &store.ErrorContext{Message: "nil pointer dereference"}
	return []store.Message{
		{Sender: store.SenderStudent, Content: "I don't understand recursion", Phase: store.PhaseExploration, CreatedAt: now},
		{Sender: store.SenderTutor, Content: "What part feels unclear?", Phase: store.PhaseExploration, CreatedAt: now.Add(time.Second)},
		{Sender: store.SenderStudent, Content: "My code keeps crashing", ErrorContext: errCtx, Phase: store.PhaseDebugging, CreatedAt: now.Add(2 * time.Second)},
		{Sender: store.SenderTutor, Content: "Try checking what happens when the list is empty.", Phase: store.PhaseDebugging, Frustration: 0.4, Understanding: 0.3, CreatedAt: now.Add(3 * time.Second)},
	}
}

func TestDeriveMetrics_CountsInteractionsErrorsAndHints(t *testing.T) {
	m := deriveMetrics(sampleHistory())
	require.Equal(t, 2, m.TotalInteractions)
	require.Equal(t, 1, m.ErrorCount)
	require.Equal(t, 1, m.HintCount)
	require.Equal(t, 2, m.TimeInPhase[store.PhaseExploration])
	require.Equal(t, 2, m.TimeInPhase[store.PhaseDebugging])
}

func TestTraceWindowText_ContainsEveryMessage(t *testing.T) {
	text := traceWindowText(sampleHistory())
	require.Contains(t, text, "I don't understand recursion")
	require.Contains(t, text, "Try checking what happens when the list is empty.")
}

func TestSummarizeTrace_IncludesMetricsAndRecentMessages(t *testing.T) {
	history := sampleHistory()
	m := deriveMetrics(history)
	summary := summarizeTrace(history, 2, m)
	require.Contains(t, summary, "total_interactions=2")
	require.Contains(t, summary, "My code keeps crashing")
	require.Contains(t, summary, "Try checking what happens when the list is empty.")
	require.NotContains(t, summary, "What part feels unclear?")
}
