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

package catalog

import (
	"context"
	"fmt"
	"sync"
)

// InMemory is a reference Writer for tests, not a production integration.
// It tracks published jobs by JobID to honor the idempotent-publish
// contract without a real catalog service behind it.
type InMemory struct {
	mu        sync.Mutex
	published map[string]PublishResult
	nextID    int
}

// NewInMemory builds an empty InMemory catalog.
func NewInMemory() *InMemory {
	return &InMemory{published: make(map[string]PublishResult)}
}

// Publish implements Writer.
func (m *InMemory) Publish(ctx context.Context, header ActivityHeader, exercises []Exercise) (PublishResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.published[header.JobID]; ok {
		return existing, nil
	}

	m.nextID++
	result := PublishResult{
		ActivityID:  fmt.Sprintf("activity-%d", m.nextID),
		ExerciseIDs: make([]string, len(exercises)),
	}
	for i := range exercises {
		m.nextID++
		result.ExerciseIDs[i] = fmt.Sprintf("exercise-%d", m.nextID)
	}
	m.published[header.JobID] = result
	return result, nil
}

var _ Writer = (*InMemory)(nil)
