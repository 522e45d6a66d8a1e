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

// Package vector: Pinecone-backed Provider, the secondary cloud option.
package vector

import (
	"context"

	"github.com/pinecone-io/go-pinecone/pinecone"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/aurelius-labs/tutorcore/config"
	"github.com/aurelius-labs/tutorcore/coreerrors"
)

// PineconeProvider is a Provider backed by a single Pinecone index; each
// collection maps to a namespace within that index.
type PineconeProvider struct {
	client *pinecone.Client
	host   string
	conns  map[string]*pinecone.IndexConnection
}

// NewPineconeProvider connects to the Pinecone index at cfg.Host using
// cfg.APIKey.
func NewPineconeProvider(cfg config.VectorConfig) (*PineconeProvider, error) {
	client, err := pinecone.NewClient(pinecone.NewClientParams{ApiKey: cfg.APIKey})
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.ErrUpstream, "vector: failed to create pinecone client", err)
	}
	return &PineconeProvider{client: client, host: cfg.Host, conns: make(map[string]*pinecone.IndexConnection)}, nil
}

func (p *PineconeProvider) Name() string { return "pinecone" }

func (p *PineconeProvider) namespace(ctx context.Context, collection string) (*pinecone.IndexConnection, error) {
	if conn, ok := p.conns[collection]; ok {
		return conn, nil
	}
	conn, err := p.client.Index(pinecone.NewIndexConnParams{Host: p.host, Namespace: collection})
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.ErrUpstream, "vector: failed to connect to pinecone index", err)
	}
	p.conns[collection] = conn
	return conn, nil
}

func (p *PineconeProvider) Upsert(ctx context.Context, collection, id string, embedding []float32, metadata map[string]any) error {
	conn, err := p.namespace(ctx, collection)
	if err != nil {
		return err
	}
	meta, err := structpb.NewStruct(metadata)
	if err != nil {
		return coreerrors.Wrap(coreerrors.ErrRequest, "vector: failed to convert metadata", err)
	}
	_, err = conn.UpsertVectors(ctx, []*pinecone.Vector{{Id: id, Values: &embedding, Metadata: meta}})
	if err != nil {
		return coreerrors.Wrap(coreerrors.ErrUpstream, "vector: upsert failed", err)
	}
	return nil
}

func (p *PineconeProvider) Search(ctx context.Context, collection string, embedding []float32, topK int) ([]Result, error) {
	return p.search(ctx, collection, embedding, topK, nil)
}

func (p *PineconeProvider) SearchWithFilter(ctx context.Context, collection string, embedding []float32, topK int, filter Filter) ([]Result, error) {
	return p.search(ctx, collection, embedding, topK, filter)
}

func (p *PineconeProvider) search(ctx context.Context, collection string, embedding []float32, topK int, filter Filter) ([]Result, error) {
	conn, err := p.namespace(ctx, collection)
	if err != nil {
		return nil, err
	}
	req := &pinecone.QueryByVectorValuesRequest{
		Vector:          embedding,
		TopK:            uint32(topK),
		IncludeValues:   false,
		IncludeMetadata: true,
	}
	if len(filter) > 0 {
		fields := make(map[string]any, len(filter))
		for k, v := range filter {
			fields[k] = v
		}
		metaFilter, err := structpb.NewStruct(fields)
		if err != nil {
			return nil, coreerrors.Wrap(coreerrors.ErrRequest, "vector: failed to convert filter", err)
		}
		req.MetadataFilter = metaFilter
	}
	resp, err := conn.QueryByVectorValues(ctx, req)
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.ErrUpstream, "vector: query failed", err)
	}
	results := make([]Result, 0, len(resp.Matches))
	for _, match := range resp.Matches {
		metadata := map[string]any{}
		if match.Vector.Metadata != nil {
			for k, v := range match.Vector.Metadata.AsMap() {
				metadata[k] = v
			}
		}
		content := ""
		if c, ok := metadata["content"].(string); ok {
			content = c
		}
		results = append(results, Result{ID: match.Vector.Id, Content: content, Score: match.Score, Metadata: metadata})
	}
	return results, nil
}

func (p *PineconeProvider) DeleteByFilter(ctx context.Context, collection string, filter Filter) error {
	conn, err := p.namespace(ctx, collection)
	if err != nil {
		return err
	}
	fields := make(map[string]any, len(filter))
	for k, v := range filter {
		fields[k] = v
	}
	metaFilter, err := structpb.NewStruct(fields)
	if err != nil {
		return coreerrors.Wrap(coreerrors.ErrRequest, "vector: failed to convert filter", err)
	}
	if err := conn.DeleteVectorsByFilter(ctx, metaFilter); err != nil {
		return coreerrors.Wrap(coreerrors.ErrUpstream, "vector: delete by filter failed", err)
	}
	return nil
}

func (p *PineconeProvider) DeleteCollection(ctx context.Context, collection string) error {
	conn, err := p.namespace(ctx, collection)
	if err != nil {
		return err
	}
	if err := conn.DeleteAllVectorsInNamespace(ctx); err != nil {
		return coreerrors.Wrap(coreerrors.ErrUpstream, "vector: delete namespace failed", err)
	}
	delete(p.conns, collection)
	return nil
}
