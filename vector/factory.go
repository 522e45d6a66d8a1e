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

package vector

import (
	"fmt"

	"github.com/aurelius-labs/tutorcore/config"
)

// NewFromConfig builds the Provider named by cfg.Provider.
func NewFromConfig(cfg config.VectorConfig) (Provider, error) {
	switch cfg.Provider {
	case "qdrant":
		return NewQdrantProvider(cfg)
	case "pinecone":
		return NewPineconeProvider(cfg)
	case "chromem":
		return NewChromemProvider(cfg)
	default:
		return nil, fmt.Errorf("vector: unsupported provider %q", cfg.Provider)
	}
}
