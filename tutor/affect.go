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
	"strings"

	"github.com/aurelius-labs/tutorcore/config"
	"github.com/aurelius-labs/tutorcore/store"
)

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// updateAffect applies §4.T step 3's frustration/understanding rules,
// clipping every change to [0,1].
func updateAffect(cog store.CognitiveState, cfg config.TutorConfig, lex Lexicon, sig turnSignal, newConcept, restatesResolvedConfusion bool) store.CognitiveState {
	if containsAny(sig.Message, lex.FrustrationMarkers) || sig.RepeatedError {
		cog.Frustration = clip01(cog.Frustration + cfg.FrustrationStep)
	} else if showsProgress(sig, lex) {
		cog.Frustration = clip01(cog.Frustration - cfg.FrustrationDecay)
	}

	if newConcept {
		cog.Understanding = clip01(cog.Understanding + cfg.UnderstandingStep)
	} else if restatesResolvedConfusion {
		cog.Understanding = clip01(cog.Understanding - cfg.UnderstandingDecay)
	}

	return cog
}

// showsProgress approximates "new code lines, a clarifying question, or
// explicit reflection" (§4.T step 3) with lightweight textual checks.
func showsProgress(sig turnSignal, lex Lexicon) bool {
	if containsAny(sig.Message, lex.ProgressMarkers) {
		return true
	}
	if nonTrivialCodeChange(sig.CurrentCode, sig.PriorCode) {
		return true
	}
	return strings.Contains(sig.Message, "?") && len(sig.Message) > 12
}

// mentionsConcept reports whether message references concept by a
// case-insensitive substring match.
func mentionsConcept(message, concept string) bool {
	return strings.Contains(strings.ToLower(message), strings.ToLower(concept))
}

// repeatsLastError reports whether current is the same reported error as
// the immediately preceding student submission, implementing the
// "repeated identical errors across two consecutive submissions"
// frustration trigger (§4.T step 3).
func repeatsLastError(history []store.Message, current *store.ErrorContext) bool {
	if current == nil || current.Message == "" {
		return false
	}
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Sender != store.SenderStudent {
			continue
		}
		prev := history[i].ErrorContext
		return prev != nil && prev.Message == current.Message
	}
	return false
}

// restatesResolvedConfusion reports whether message shows frustration
// again after an earlier frustration episode in history was already
// followed by a sign of progress — the student stuck once more on
// something they had previously worked through (§4.T step 3).
func restatesResolvedConfusion(history []store.Message, message string, lex Lexicon) bool {
	if !containsAny(message, lex.FrustrationMarkers) {
		return false
	}
	sawConfusion, sawResolution := false, false
	for _, m := range history {
		if m.Sender != store.SenderStudent {
			continue
		}
		switch {
		case containsAny(m.Content, lex.FrustrationMarkers):
			sawConfusion, sawResolution = true, false
		case sawConfusion && containsAny(m.Content, lex.ProgressMarkers):
			sawResolution = true
		}
	}
	return sawConfusion && sawResolution
}
