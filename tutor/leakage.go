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
	"strconv"
	"strings"
)

const leakageMarker = "[a complete solution was withheld here — ask a more specific question to get a targeted hint]"

// stripLongFences implements the answer-leakage guard (§4.T step 7, §4.T
// invariant): any fenced code block whose line count exceeds lineCap, or
// that would push the running line total past budget (the remaining
// cumulative cross-session line allowance), is replaced with
// leakageMarker. Returns the rewritten text and the total line count of
// every terminated fence, kept or replaced.
func stripLongFences(text string, lineCap, budget int) (string, int) {
	lines := strings.Split(text, "\n")
	var out []string
	consumed := 0
	i := 0
	for i < len(lines) {
		line := lines[i]
		if isFenceOpen(line) {
			end := i + 1
			for end < len(lines) && !isFenceClose(lines[end]) {
				end++
			}
			fenceLen := end - i - 1
			if end >= len(lines) {
				// Unterminated fence: pass through unchanged; nothing to guard.
				out = append(out, lines[i:]...)
				break
			}
			if fenceLen > lineCap || consumed+fenceLen > budget {
				out = append(out, leakageMarker)
			} else {
				out = append(out, lines[i:end+1]...)
			}
			consumed += fenceLen
			i = end + 1
			continue
		}
		out = append(out, line)
		i++
	}
	return strings.Join(out, "\n"), consumed
}

func isFenceOpen(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "```")
}

func isFenceClose(line string) bool {
	return strings.TrimSpace(line) == "```"
}

// containsHintVerb reports whether text opens with (or contains) an
// imperative built from one of lex.HintVerbs, approximating "a hint"
// classification per §4.T step 8.
func containsHintVerb(text string, lex Lexicon) bool {
	lower := strings.ToLower(text)
	for _, verb := range lex.HintVerbs {
		if strings.Contains(lower, verb+" ") {
			return true
		}
	}
	return false
}

// countFenceLines sums the line counts of every fenced code block in
// text, used to reconstruct a session's cumulative leakage-guard spend
// directly from stored history rather than an unpersisted counter.
func countFenceLines(text string) int {
	lines := strings.Split(text, "\n")
	total := 0
	i := 0
	for i < len(lines) {
		if isFenceOpen(lines[i]) {
			end := i + 1
			for end < len(lines) && !isFenceClose(lines[end]) {
				end++
			}
			if end < len(lines) {
				total += end - i - 1
			}
			i = end + 1
			continue
		}
		i++
	}
	return total
}

func escalationSuffix(hintCount int) string {
	return "\n\n(You've received " + strconv.Itoa(hintCount) + " hints in this phase — " +
		"if you're still stuck, it may help to ask your human tutor for a closer look.)"
}
