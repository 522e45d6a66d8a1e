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
	"testing"

	"github.com/stretchr/testify/require"
)

func fence(lines int) string {
	var b strings.Builder
	b.WriteString("```\n")
	for i := 0; i < lines; i++ {
		b.WriteString("line\n")
	}
	b.WriteString("```")
	return b.String()
}

func TestStripLongFences_UnderCapPassesThrough(t *testing.T) {
	text := "here:\n" + fence(2)
	out, consumed := stripLongFences(text, 5, 100)
	require.Equal(t, text, out)
	require.Equal(t, 2, consumed)
}

func TestStripLongFences_OverLineCapReplaced(t *testing.T) {
	text := fence(10)
	out, consumed := stripLongFences(text, 3, 100)
	require.Contains(t, out, leakageMarker)
	require.NotContains(t, out, "line")
	require.Equal(t, 10, consumed)
}

func TestStripLongFences_OverBudgetReplacedEvenUnderLineCap(t *testing.T) {
	text := fence(4)
	out, _ := stripLongFences(text, 10, 2)
	require.Contains(t, out, leakageMarker)
}

func TestStripLongFences_KeptFencesAccumulateConsumed(t *testing.T) {
	text := fence(3) + "\n" + fence(3)
	out, consumed := stripLongFences(text, 10, 100)
	require.NotContains(t, out, leakageMarker)
	require.Equal(t, 6, consumed)
}

func TestStripLongFences_SecondKeptFenceTripsCumulativeBudget(t *testing.T) {
	text := fence(3) + "\n" + fence(3)
	out, consumed := stripLongFences(text, 10, 4)
	require.Contains(t, out, leakageMarker)
	require.Equal(t, 6, consumed)
}

func TestCountFenceLines_SumsAllFences(t *testing.T) {
	text := fence(3) + "\n" + fence(5)
	require.Equal(t, 8, countFenceLines(text))
}

func TestContainsHintVerb(t *testing.T) {
	lex := DefaultLexicon()
	require.True(t, containsHintVerb("Try looking at the loop bounds.", lex))
	require.False(t, containsHintVerb("What do you think happens here?", lex))
}

func TestEscalationSuffix_MentionsHintCount(t *testing.T) {
	out := escalationSuffix(3)
	require.Contains(t, out, "3 hints")
}
