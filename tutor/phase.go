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

import "github.com/aurelius-labs/tutorcore/store"

// phaseOrder lists phases in the forward progression used to resolve ties
// toward the later phase (§4.T: "Ties resolve toward the later phase in
// the list above").
var phaseOrder = []store.Phase{
	store.PhaseExploration, store.PhaseDecomposition, store.PhasePlanning,
	store.PhaseImplementation, store.PhaseDebugging, store.PhaseValidation,
	store.PhaseReflection,
}

func phaseIndex(p store.Phase) int {
	for i, q := range phaseOrder {
		if q == p {
			return i
		}
	}
	return 0
}

// turnSignal carries the per-message facts the phase table's triggers
// are evaluated against.
type turnSignal struct {
	Message       string
	CurrentCode   string
	PriorCode     string
	ErrorContext  *store.ErrorContext
	TestsRun      bool
	TestsPassed   bool
	RequestBack   bool
	RepeatedError bool
}

func nonTrivialCodeChange(current, prior string) bool {
	if current == "" {
		return false
	}
	if current == prior {
		return false
	}
	return len(current) >= len(prior)+8 || len(current) <= len(prior)-8
}

// nextPhase applies the phase table from §4.T, returning the next phase
// (possibly unchanged) given the current phase and a turn's signals.
func nextPhase(current store.Phase, lex Lexicon, sig turnSignal) store.Phase {
	if sig.RequestBack || containsAny(sig.Message, lex.BackRequestMarkers) {
		if idx := phaseIndex(current); idx > 0 {
			return phaseOrder[idx-1]
		}
		return current
	}

	candidates := []store.Phase{current}

	switch current {
	case store.PhaseExploration:
		if containsAny(sig.Message, lex.SubGoalMarkers) {
			candidates = append(candidates, store.PhaseDecomposition)
		}
	case store.PhaseDecomposition:
		if containsAny(sig.Message, lex.OrderingMarkers) {
			candidates = append(candidates, store.PhasePlanning)
		}
	case store.PhasePlanning:
		if nonTrivialCodeChange(sig.CurrentCode, sig.PriorCode) {
			candidates = append(candidates, store.PhaseImplementation)
		}
	case store.PhaseImplementation:
		if sig.ErrorContext != nil {
			candidates = append(candidates, store.PhaseDebugging)
		}
		if sig.TestsRun && sig.TestsPassed {
			candidates = append(candidates, store.PhaseValidation)
		}
	case store.PhaseDebugging:
		if sig.ErrorContext == nil && nonTrivialCodeChange(sig.CurrentCode, sig.PriorCode) {
			candidates = append(candidates, store.PhaseImplementation)
		}
		if sig.TestsRun && sig.TestsPassed {
			candidates = append(candidates, store.PhaseValidation)
		}
	case store.PhaseValidation:
		if sig.TestsRun && sig.TestsPassed {
			candidates = append(candidates, store.PhaseReflection)
		}
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if phaseIndex(c) > phaseIndex(best) {
			best = c
		}
	}
	return best
}
