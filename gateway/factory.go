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
	"context"
	"fmt"

	"github.com/aurelius-labs/tutorcore/config"
)

// NewLLMFromConfig builds the provider-specific LLM client named by
// cfg.Provider, adapted from the embedder package's
// NewFromConfig switch-on-provider pattern.
func NewLLMFromConfig(ctx context.Context, cfg config.GatewayConfig) (LLM, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIClient(cfg)
	case "gemini":
		return NewGeminiClient(ctx, cfg)
	default:
		return nil, fmt.Errorf("gateway: unsupported provider %q", cfg.Provider)
	}
}
