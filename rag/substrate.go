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

package rag

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/aurelius-labs/tutorcore/config"
	"github.com/aurelius-labs/tutorcore/coreerrors"
	"github.com/aurelius-labs/tutorcore/embedder"
	"github.com/aurelius-labs/tutorcore/pdfextract"
	"github.com/aurelius-labs/tutorcore/vector"
)

// RetrievedChunk is one result of a Query call.
type RetrievedChunk struct {
	Content string
	Page    int
	Ordinal int
	Source  string
	Score   float32
}

// IngestResult reports the outcome of Ingest.
type IngestResult struct {
	ChunkCount int
}

// Substrate is the RAG collaborator: ingest(collection_key, source),
// query(collection_key, query_text, k), delete(collection_key).
//
// A collection_key is a logical name; it maps to one of two physical
// provider collections ("<key>::a" / "<key>::b"). Re-ingestion builds
// the inactive physical collection in full, then flips the logical
// pointer under a lock — a concurrent Query always resolves to either
// the fully-old or the fully-new physical collection, never a
// partially-built one.
type Substrate struct {
	provider vector.Provider
	embed    embedder.Embedder
	chunker  *Chunker

	mu     sync.RWMutex
	active map[string]bool // collectionKey -> true selects slot "b", false/absent selects slot "a"
}

// New builds a Substrate from its collaborators and chunking policy.
func New(provider vector.Provider, embed embedder.Embedder, cfg config.RAGConfig) *Substrate {
	return &Substrate{
		provider: provider,
		embed:    embed,
		chunker:  NewChunker(ChunkerConfig{TargetWords: cfg.ChunkWords, OverlapWords: cfg.OverlapWords}),
		active:   make(map[string]bool),
	}
}

// intMeta coerces a vector.Result metadata value to int, accepting every
// numeric shape the Provider implementations actually hand back: chromem
// round-trips metadata through strings, qdrant yields int64, pinecone
// yields float64.
func intMeta(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	case string:
		n, err := strconv.Atoi(t)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

func slot(collectionKey string, useB bool) string {
	if useB {
		return collectionKey + "::b"
	}
	return collectionKey + "::a"
}

func (s *Substrate) activeSlot(collectionKey string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slot(collectionKey, s.active[collectionKey])
}

func (s *Substrate) inactiveSlot(collectionKey string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slot(collectionKey, !s.active[collectionKey])
}

// Ingest extracts, chunks, embeds, and stores pdfBytes under
// collectionKey. It is idempotent per key: a second call on the same
// key replaces the collection via the staged-slot swap described on
// Substrate.
func (s *Substrate) Ingest(ctx context.Context, collectionKey, sourceName string, pdfBytes []byte) (IngestResult, error) {
	pages, err := pdfextract.Extract(ctx, pdfBytes)
	if err != nil {
		return IngestResult{}, err
	}

	chunks := s.chunker.Chunk(pages)
	if len(chunks) == 0 {
		return IngestResult{}, coreerrors.New(coreerrors.ErrCorruptSource, "rag: document produced no chunks")
	}

	staged := s.inactiveSlot(collectionKey)
	if err := s.provider.DeleteCollection(ctx, staged); err != nil {
		return IngestResult{}, coreerrors.Wrap(coreerrors.ErrUpstream, "rag: failed to clear staged collection", err)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(8)
	for i := range chunks {
		chunk := chunks[i]
		group.Go(func() error {
			embedding, err := s.embed.Embed(groupCtx, chunk.Content)
			if err != nil {
				return coreerrors.Wrap(coreerrors.ErrUpstream, "rag: failed to embed chunk", err)
			}
			metadata := map[string]any{
				"collection_key": collectionKey,
				"source":         sourceName,
				"page":           chunk.Page,
				"page_ordinal":   chunk.PageOrdinal,
				"global_ordinal": chunk.GlobalOrdinal,
				"content":        chunk.Content,
			}
			id := fmt.Sprintf("%s:chunk:%d", collectionKey, chunk.GlobalOrdinal)
			if err := s.provider.Upsert(groupCtx, staged, id, embedding, metadata); err != nil {
				return coreerrors.Wrap(coreerrors.ErrUpstream, "rag: failed to upsert staged chunk", err)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		_ = s.provider.DeleteCollection(ctx, staged)
		return IngestResult{}, err
	}

	s.mu.Lock()
	s.active[collectionKey] = !s.active[collectionKey]
	retired := slot(collectionKey, !s.active[collectionKey])
	s.mu.Unlock()

	// The previously-active slot is now orphaned; dropping it is a
	// best-effort cleanup, not load-bearing for correctness.
	_ = s.provider.DeleteCollection(ctx, retired)

	return IngestResult{ChunkCount: len(chunks)}, nil
}

// Query retrieves the topK chunks most similar to queryText within
// collectionKey, ordered by descending score.
func (s *Substrate) Query(ctx context.Context, collectionKey, queryText string, topK int) ([]RetrievedChunk, error) {
	embedding, err := s.embed.Embed(ctx, queryText)
	if err != nil {
		return nil, err
	}
	results, err := s.provider.Search(ctx, s.activeSlot(collectionKey), embedding, topK)
	if err != nil {
		if coreerrors.Is(err, coreerrors.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	chunks := make([]RetrievedChunk, 0, len(results))
	for _, r := range results {
		page := intMeta(r.Metadata["page"])
		ordinal := intMeta(r.Metadata["global_ordinal"])
		source, _ := r.Metadata["source"].(string)
		chunks = append(chunks, RetrievedChunk{
			Content: r.Content,
			Page:    page,
			Ordinal: ordinal,
			Source:  source,
			Score:   r.Score,
		})
	}
	sort.SliceStable(chunks, func(i, j int) bool { return chunks[i].Score > chunks[j].Score })
	return chunks, nil
}

// Delete removes collectionKey entirely, including any staged slot.
func (s *Substrate) Delete(ctx context.Context, collectionKey string) error {
	s.mu.Lock()
	delete(s.active, collectionKey)
	s.mu.Unlock()

	if err := s.provider.DeleteCollection(ctx, slot(collectionKey, true)); err != nil {
		return err
	}
	return s.provider.DeleteCollection(ctx, slot(collectionKey, false))
}
