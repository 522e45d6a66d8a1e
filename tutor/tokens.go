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

import "github.com/pkoukk/tiktoken-go"

// encoding is the shared tokenizer used to keep the current-code and RAG
// excerpt blocks within a token budget rather than a blunt byte count,
// since the gateway's MaxTokens is itself token-denominated.
var encoding *tiktoken.Tiktoken

func init() {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		panic(err)
	}
	encoding = enc
}

// truncateTokens returns s trimmed to at most maxTokens tokens, appending
// an ellipsis when truncation occurred.
func truncateTokens(s string, maxTokens int) string {
	tokens := encoding.Encode(s, nil, nil)
	if len(tokens) <= maxTokens {
		return s
	}
	return encoding.Decode(tokens[:maxTokens]) + "…"
}
