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

import "strings"

// Lexicon is the configuration-driven keyword/regex table backing the
// phase-transition predicates and affect markers from §4.T: a concrete,
// swappable default rather than a hidden magic-constant set.
type Lexicon struct {
	FrustrationMarkers []string
	ProgressMarkers    []string
	SubGoalMarkers     []string
	OrderingMarkers    []string
	HintVerbs          []string
	BackRequestMarkers []string
}

// DefaultLexicon returns the built-in marker set.
func DefaultLexicon() Lexicon {
	return Lexicon{
		FrustrationMarkers: []string{
			"i don't understand", "i dont understand", "this makes no sense",
			"i give up", "this is so confusing", "i'm stuck", "im stuck",
			"this is stupid", "i hate this", "nothing works", "still not working",
			"still doesn't work", "ugh", "why isn't this working",
		},
		ProgressMarkers: []string{
			"i think i see", "that makes sense", "oh i get it", "let me try",
			"what if i", "i see now", "got it",
		},
		SubGoalMarkers: []string{
			"first,", "first i", "step 1", "the sub-problems are", "i need to",
			"so i need", "the steps are", "breaking this down",
		},
		OrderingMarkers: []string{
			"first,", "then,", "after that", "finally,", "in this order",
			"step 1", "step 2",
		},
		HintVerbs: []string{
			"try", "consider", "think about", "check", "look at", "review",
		},
		BackRequestMarkers: []string{
			"go back", "previous phase", "can we go back", "back to the",
			"let's revisit", "lets revisit",
		},
	}
}

func containsAny(text string, markers []string) bool {
	lower := strings.ToLower(text)
	for _, m := range markers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
