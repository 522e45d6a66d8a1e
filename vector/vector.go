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

// Package vector abstracts the vector store collaborator (§6.3): upsert,
// top-k search (optionally filtered), and delete by collection key.
// Collections are string-keyed namespaces, opaque to the rest of the
// core.
package vector

import "context"

// Result is one retrieved point.
type Result struct {
	ID       string
	Content  string
	Score    float32
	Metadata map[string]any
}

// Filter is an equality filter over metadata fields, AND-combined.
type Filter map[string]string

// Provider is the vector store collaborator contract.
type Provider interface {
	// Upsert writes or replaces a single point, creating the collection on
	// first write if the backend requires explicit creation.
	Upsert(ctx context.Context, collection, id string, embedding []float32, metadata map[string]any) error

	// Search returns the topK nearest points to embedding in collection.
	Search(ctx context.Context, collection string, embedding []float32, topK int) ([]Result, error)

	// SearchWithFilter is Search narrowed to points matching filter.
	SearchWithFilter(ctx context.Context, collection string, embedding []float32, topK int, filter Filter) ([]Result, error)

	// DeleteByFilter removes every point in collection matching filter.
	DeleteByFilter(ctx context.Context, collection string, filter Filter) error

	// DeleteCollection removes collection entirely; a no-op if it does not exist.
	DeleteCollection(ctx context.Context, collection string) error

	// Name identifies the backend for logging/metrics ("qdrant", "chromem", "pinecone").
	Name() string
}
