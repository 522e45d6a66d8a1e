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

package tutor

import (
	"fmt"
	"strings"

	"github.com/aurelius-labs/tutorcore/rag"
	"github.com/aurelius-labs/tutorcore/store"
)

// phaseFallback is the static canned Socratic reply used when the gateway
// degrades (§4.T step 6), keyed by phase.
var phaseFallback = map[store.Phase]string{
	store.PhaseExploration:    "Before we dive in, can you describe the problem in your own words?",
	store.PhaseDecomposition:  "What smaller pieces would you break this problem into?",
	store.PhasePlanning:       "Which of those pieces would you tackle first, and why?",
	store.PhaseImplementation: "What's the smallest piece of code you could write to test your idea?",
	store.PhaseDebugging:      "What does the error message tell you about where to look?",
	store.PhaseValidation:     "How would you convince yourself this works for every case, not just one?",
	store.PhaseReflection:     "Looking back, what was the key idea that made this click?",
}

func fallbackReply(phase store.Phase) string {
	if msg, ok := phaseFallback[phase]; ok {
		return msg
	}
	return "What have you tried so far?"
}

const systemPromptTemplate = `You are a Socratic programming tutor. You never output a complete solution, full function body, or working answer — you ask guiding questions that help the student reach the answer themselves. You anchor every reply in the course material provided below when it is relevant. You adapt your tone to the student's affect: warmer and more encouraging when frustration is high, more challenging when understanding is high.`

func buildSystemPrompt() string {
	return systemPromptTemplate
}

// buildUserPrompt assembles the §4.T step 5 user prompt: phase, affect,
// hint count, recent history, current code (truncated), RAG context, and
// a closing directive.
func buildUserPrompt(cog store.CognitiveState, history []store.Message, currentCode string, chunks []rag.RetrievedChunk, studentMessage string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Phase: %s\nFrustration: %.2f\nUnderstanding: %.2f\nHints given this phase: %d\n\n",
		cog.Phase, cog.Frustration, cog.Understanding, cog.HintCountInPhase)

	if len(history) > 0 {
		b.WriteString("Recent conversation:\n")
		for _, m := range history {
			fmt.Fprintf(&b, "%s: %s\n", m.Sender, m.Content)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Student's latest message: %s\n\n", studentMessage)

	if currentCode != "" {
		b.WriteString("Student's current code:\n```\n")
		b.WriteString(truncateTokens(currentCode, 500))
		b.WriteString("\n```\n\n")
	}

	if len(chunks) > 0 {
		b.WriteString("Relevant course material:\n")
		for _, c := range chunks {
			fmt.Fprintf(&b, "- (p.%d) %s\n", c.Page, truncateTokens(c.Content, 100))
		}
		b.WriteString("\n")
	}

	b.WriteString("Ask one guiding question that moves the student forward without revealing the answer.")
	return b.String()
}
