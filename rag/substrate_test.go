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

package rag_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aurelius-labs/tutorcore/config"
	"github.com/aurelius-labs/tutorcore/pdfextract"
	"github.com/aurelius-labs/tutorcore/rag"
	"github.com/aurelius-labs/tutorcore/vector"
)

// hashEmbedder is a deterministic test double: it sums rune values into
// a small fixed-size vector, avoiding any network dependency in tests.
type hashEmbedder struct{}

func (hashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, 8)
	for _, r := range text {
		vec[int(r)%8]++
	}
	return vec, nil
}

func (e hashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, _ := e.Embed(ctx, t)
		out[i] = v
	}
	return out, nil
}

func (hashEmbedder) Dimension() int { return 8 }
func (hashEmbedder) Model() string  { return "hash-test" }
func (hashEmbedder) Close() error   { return nil }

func TestSubstrate_QueryEmptyCollectionReturnsNoResults(t *testing.T) {
	cfg := config.RAGConfig{}
	cfg.SetDefaults()
	provider, err := vector.NewChromemProvider(config.VectorConfig{Provider: "chromem"})
	require.NoError(t, err)

	substrate := rag.New(provider, hashEmbedder{}, cfg)
	results, err := substrate.Query(context.Background(), "lesson-1", "loops", 5)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestSubstrate_QueryCoercesNumericMetadataFromProvider(t *testing.T) {
	cfg := config.RAGConfig{}
	cfg.SetDefaults()
	provider, err := vector.NewChromemProvider(config.VectorConfig{Provider: "chromem"})
	require.NoError(t, err)

	substrate := rag.New(provider, hashEmbedder{}, cfg)
	collectionKey := "lesson-1"

	// Bypass Ingest and populate the provider directly the way it would be
	// after a real ingest: metadata values go in as Go ints, the way
	// chromem's own Upsert call would be invoked from Ingest.
	ctx := context.Background()
	for i, text := range []string{"loops are iteration", "recursion calls itself", "closures capture state"} {
		emb, err := hashEmbedder{}.Embed(ctx, text)
		require.NoError(t, err)
		err = provider.Upsert(ctx, collectionKey+"::a", fmt.Sprintf("%s:chunk:%d", collectionKey, i), emb, map[string]any{
			"source": "doc.pdf", "page": i + 1, "page_ordinal": 0, "global_ordinal": i, "content": text,
		})
		require.NoError(t, err)
	}

	results, err := substrate.Query(ctx, collectionKey, "loops recursion closures", 3)
	require.NoError(t, err)
	require.Len(t, results, 3)

	seenOrdinals := make(map[int]bool)
	for _, r := range results {
		require.NotZero(t, r.Page)
		require.Equal(t, "doc.pdf", r.Source)
		seenOrdinals[r.Ordinal] = true
	}
	require.Len(t, seenOrdinals, 3, "each chunk must keep its own global_ordinal instead of collapsing to 0")
}

func TestChunker_RespectsPageBoundaries(t *testing.T) {
	chunker := rag.NewChunker(rag.ChunkerConfig{TargetWords: 10, OverlapWords: 3})

	words := make([]string, 25)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	text := ""
	for i, w := range words {
		if i > 0 {
			text += " "
		}
		text += w
	}

	chunks := chunker.Chunk([]pdfextract.Page{{Number: 1, Text: text}})
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		require.Equal(t, 1, c.Page)
	}
	require.Equal(t, 0, chunks[0].GlobalOrdinal)
}

func TestChunker_SkipsEmptyPages(t *testing.T) {
	chunker := rag.NewChunker(rag.ChunkerConfig{TargetWords: 500, OverlapWords: 100})
	chunks := chunker.Chunk([]pdfextract.Page{
		{Number: 1, Text: ""},
		{Number: 2, Text: "the quick brown fox"},
	})
	require.Len(t, chunks, 1)
	require.Equal(t, 2, chunks[0].Page)
}
