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

package gateway

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/aurelius-labs/tutorcore/coreerrors"
)

// recoverJSON implements the three-stage recovery pipeline from §4.L:
// strict parse, then longest-balanced-brace extraction, then (for a flat
// schema) field-level regex extraction. fields is the set of required
// top-level field names used only by stage 3; it may be empty, in which
// case stage 3 is skipped.
func recoverJSON(raw string, fields []string) (recovered string, wasRecovered bool, err error) {
	trimmed := strings.TrimSpace(raw)

	if json.Valid([]byte(trimmed)) {
		return trimmed, false, nil
	}

	if balanced := extractBalancedObject(trimmed); balanced != "" && json.Valid([]byte(balanced)) {
		return balanced, true, nil
	}

	if len(fields) > 0 {
		if built, ok := extractFlatFields(trimmed, fields); ok {
			return built, true, nil
		}
	}

	return "", false, coreerrors.New(coreerrors.ErrContract, "model output failed all JSON recovery stages")
}

// extractBalancedObject returns the longest substring of s that is a
// balanced `{ ... }` span, honoring string literals so braces inside
// quoted text don't throw off the depth count. Returns "" if no closed
// span is found.
func extractBalancedObject(s string) string {
	best := ""
	for start, r := range s {
		if r != '{' {
			continue
		}
		depth := 0
		inString := false
		escaped := false
		for i := start; i < len(s); i++ {
			c := s[i]
			if inString {
				if escaped {
					escaped = false
				} else if c == '\\' {
					escaped = true
				} else if c == '"' {
					inString = false
				}
				continue
			}
			switch c {
			case '"':
				inString = true
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					candidate := s[start : i+1]
					if len(candidate) > len(best) {
						best = candidate
					}
					goto nextStart
				}
			}
		}
	nextStart:
	}
	return best
}

var fieldValuePattern = `"?\b%s\b"?\s*:\s*(".*?(?:[^\\]"|\\\\")|[-+0-9.eE]+|true|false|null|\[[^\]]*\])`

// extractFlatFields runs a field-level regex extractor keyed by required
// field names, used when the declared schema is flat (no nested objects).
// Keys are matched whether or not they are quoted. It rebuilds a minimal JSON object from whatever fields it can locate;
// missing fields cause the extraction to fail outright rather than produce
// a partially-populated object silently.
func extractFlatFields(s string, fields []string) (string, bool) {
	values := make(map[string]string, len(fields))
	for _, f := range fields {
		re, err := regexp.Compile(fmt.Sprintf(fieldValuePattern, regexp.QuoteMeta(f)))
		if err != nil {
			return "", false
		}
		m := re.FindStringSubmatch(s)
		if m == nil {
			return "", false
		}
		values[f] = m[1]
	}

	var b strings.Builder
	b.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(fmt.Sprintf("%q:%s", f, values[f]))
	}
	b.WriteByte('}')

	built := b.String()
	if !json.Valid([]byte(built)) {
		return "", false
	}
	return built, true
}
