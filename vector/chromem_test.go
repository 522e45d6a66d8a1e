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

package vector_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aurelius-labs/tutorcore/config"
	"github.com/aurelius-labs/tutorcore/vector"
)

func TestChromemProvider_UpsertAndSearch(t *testing.T) {
	cfg := config.VectorConfig{Provider: "chromem"}
	cfg.SetDefaults()
	provider, err := vector.NewChromemProvider(cfg)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, provider.Upsert(ctx, "lesson-1", "chunk-1", []float32{1, 0, 0}, map[string]any{"content": "first chunk", "page": 1}))
	require.NoError(t, provider.Upsert(ctx, "lesson-1", "chunk-2", []float32{0, 1, 0}, map[string]any{"content": "second chunk", "page": 2}))

	results, err := provider.Search(ctx, "lesson-1", []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "chunk-1", results[0].ID)
	require.Equal(t, "first chunk", results[0].Content)
}

func TestChromemProvider_SearchWithFilter(t *testing.T) {
	cfg := config.VectorConfig{Provider: "chromem"}
	cfg.SetDefaults()
	provider, err := vector.NewChromemProvider(cfg)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, provider.Upsert(ctx, "lesson-2", "a", []float32{1, 0}, map[string]any{"content": "alpha", "topic": "loops"}))
	require.NoError(t, provider.Upsert(ctx, "lesson-2", "b", []float32{1, 0}, map[string]any{"content": "beta", "topic": "recursion"}))

	results, err := provider.SearchWithFilter(ctx, "lesson-2", []float32{1, 0}, 5, vector.Filter{"topic": "recursion"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "b", results[0].ID)
}

func TestChromemProvider_DeleteCollection(t *testing.T) {
	cfg := config.VectorConfig{Provider: "chromem"}
	cfg.SetDefaults()
	provider, err := vector.NewChromemProvider(cfg)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, provider.Upsert(ctx, "lesson-3", "a", []float32{1, 0}, map[string]any{"content": "alpha"}))
	require.NoError(t, provider.DeleteCollection(ctx, "lesson-3"))

	results, err := provider.Search(ctx, "lesson-3", []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Empty(t, results)
}
