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

// Package vector: in-process default provider backed by chromem-go, the
// provider referenced by VectorConfig.Provider == "chromem" so that RAG
// ingestion works with zero external services before reaching for a
// networked store.
package vector

import (
	"context"
	"strconv"
	"sync"

	"github.com/philippgille/chromem-go"

	"github.com/aurelius-labs/tutorcore/config"
	"github.com/aurelius-labs/tutorcore/coreerrors"
)

// ChromemProvider is a Provider backed by an in-process chromem-go DB.
// Embeddings are supplied by the caller; chromem's own embedding func is
// never invoked because Upsert always carries a precomputed vector.
type ChromemProvider struct {
	mu   sync.Mutex
	db   *chromem.DB
	path string
}

// NewChromemProvider opens (or creates) a chromem-go database at cfg.Path,
// or an in-memory one if Path is empty.
func NewChromemProvider(cfg config.VectorConfig) (*ChromemProvider, error) {
	if cfg.Path == "" {
		return &ChromemProvider{db: chromem.NewDB()}, nil
	}
	db, err := chromem.NewPersistentDB(cfg.Path, false)
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.ErrUpstream, "vector: failed to open chromem db", err)
	}
	return &ChromemProvider{db: db, path: cfg.Path}, nil
}

func (p *ChromemProvider) Name() string { return "chromem" }

func noopEmbeddingFunc(context.Context, string) ([]float32, error) {
	return nil, coreerrors.New(coreerrors.ErrContract, "vector: chromem embedding func invoked without a precomputed embedding")
}

func (p *ChromemProvider) collection(name string) (*chromem.Collection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	col, err := p.db.GetOrCreateCollection(name, nil, noopEmbeddingFunc)
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.ErrUpstream, "vector: failed to get/create collection", err)
	}
	return col, nil
}

func (p *ChromemProvider) Upsert(ctx context.Context, collection, id string, embedding []float32, metadata map[string]any) error {
	col, err := p.collection(collection)
	if err != nil {
		return err
	}
	content, _ := metadata["content"].(string)
	strMeta := make(map[string]string, len(metadata))
	for k, v := range metadata {
		strMeta[k] = toStringMeta(v)
	}
	doc := chromem.Document{ID: id, Content: content, Embedding: embedding, Metadata: strMeta}
	if err := col.AddDocument(ctx, doc); err != nil {
		return coreerrors.Wrap(coreerrors.ErrUpstream, "vector: failed to add document", err)
	}
	return nil
}

func (p *ChromemProvider) Search(ctx context.Context, collection string, embedding []float32, topK int) ([]Result, error) {
	return p.search(ctx, collection, embedding, topK, nil)
}

func (p *ChromemProvider) SearchWithFilter(ctx context.Context, collection string, embedding []float32, topK int, filter Filter) ([]Result, error) {
	return p.search(ctx, collection, embedding, topK, filter)
}

func (p *ChromemProvider) search(ctx context.Context, collection string, embedding []float32, topK int, filter Filter) ([]Result, error) {
	col, err := p.collection(collection)
	if err != nil {
		return nil, err
	}
	n := topK
	if count := col.Count(); count < n {
		n = count
	}
	if n <= 0 {
		return nil, nil
	}
	where := map[string]string(filter)
	res, err := col.QueryEmbedding(ctx, embedding, n, where, nil)
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.ErrUpstream, "vector: query failed", err)
	}
	results := make([]Result, 0, len(res))
	for _, r := range res {
		metadata := make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			metadata[k] = v
		}
		results = append(results, Result{ID: r.ID, Content: r.Content, Score: r.Similarity, Metadata: metadata})
	}
	return results, nil
}

func (p *ChromemProvider) DeleteByFilter(ctx context.Context, collection string, filter Filter) error {
	col, err := p.collection(collection)
	if err != nil {
		return err
	}
	if err := col.Delete(ctx, map[string]string(filter), nil); err != nil {
		return coreerrors.Wrap(coreerrors.ErrUpstream, "vector: delete by filter failed", err)
	}
	return nil
}

func (p *ChromemProvider) DeleteCollection(ctx context.Context, collection string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.db.DeleteCollection(collection)
	return nil
}

func toStringMeta(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}
