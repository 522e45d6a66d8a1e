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

// Package vector: Qdrant-backed Provider, with filtered search/delete.
package vector

import (
	"context"
	"fmt"
	"strings"

	"github.com/qdrant/go-client/qdrant"

	"github.com/aurelius-labs/tutorcore/config"
	"github.com/aurelius-labs/tutorcore/coreerrors"
)

// QdrantProvider is a Provider backed by the official Qdrant client.
type QdrantProvider struct {
	client *qdrant.Client
}

// NewQdrantProvider dials a Qdrant instance per cfg.
func NewQdrantProvider(cfg config.VectorConfig) (*QdrantProvider, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.ErrUpstream, "vector: failed to create qdrant client", err)
	}
	return &QdrantProvider{client: client}, nil
}

func (p *QdrantProvider) Name() string { return "qdrant" }

func (p *QdrantProvider) Upsert(ctx context.Context, collection, id string, embedding []float32, metadata map[string]any) error {
	exists, err := p.client.CollectionExists(ctx, collection)
	if err != nil {
		return coreerrors.Wrap(coreerrors.ErrUpstream, "vector: failed to check collection", err)
	}
	if !exists {
		err = p.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(len(embedding)),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil && !strings.Contains(err.Error(), "already exists") {
			return coreerrors.Wrap(coreerrors.ErrUpstream, "vector: failed to create collection", err)
		}
	}

	payload := make(map[string]*qdrant.Value, len(metadata))
	for key, value := range metadata {
		val, err := qdrant.NewValue(value)
		if err != nil {
			return coreerrors.Wrapf(coreerrors.ErrRequest, err, "vector: failed to convert metadata key %s", key)
		}
		payload[key] = val
	}

	point := &qdrant.PointStruct{
		Id:      qdrant.NewID(id),
		Vectors: qdrant.NewVectors(embedding...),
		Payload: payload,
	}
	if _, err := p.client.Upsert(ctx, &qdrant.UpsertPoints{CollectionName: collection, Points: []*qdrant.PointStruct{point}}); err != nil {
		return coreerrors.Wrap(coreerrors.ErrUpstream, "vector: failed to upsert point", err)
	}
	return nil
}

func (p *QdrantProvider) Search(ctx context.Context, collection string, embedding []float32, topK int) ([]Result, error) {
	return p.search(ctx, collection, embedding, topK, nil)
}

func (p *QdrantProvider) SearchWithFilter(ctx context.Context, collection string, embedding []float32, topK int, filter Filter) ([]Result, error) {
	return p.search(ctx, collection, embedding, topK, toQdrantFilter(filter))
}

func (p *QdrantProvider) search(ctx context.Context, collection string, embedding []float32, topK int, filter *qdrant.Filter) ([]Result, error) {
	req := &qdrant.SearchPoints{
		CollectionName: collection,
		Vector:         embedding,
		Limit:          uint64(topK),
		WithPayload:    qdrant.NewWithPayload(true),
		Filter:         filter,
	}
	resp, err := p.client.GetPointsClient().Search(ctx, req)
	if err != nil {
		if strings.Contains(err.Error(), "doesn't exist") || strings.Contains(err.Error(), "not found") {
			return nil, coreerrors.Wrap(coreerrors.ErrNotFound, "vector: collection not found", err)
		}
		return nil, coreerrors.Wrap(coreerrors.ErrUpstream, "vector: search failed", err)
	}

	results := make([]Result, 0, len(resp.Result))
	for _, point := range resp.Result {
		var id string
		if point.Id != nil {
			switch t := point.Id.PointIdOptions.(type) {
			case *qdrant.PointId_Uuid:
				id = t.Uuid
			case *qdrant.PointId_Num:
				id = fmt.Sprintf("%d", t.Num)
			}
		}

		metadata := make(map[string]any, len(point.Payload))
		for key, value := range point.Payload {
			metadata[key] = fromQdrantValue(value)
		}

		content := ""
		if c, ok := metadata["content"].(string); ok {
			content = c
		}

		results = append(results, Result{ID: id, Content: content, Score: point.Score, Metadata: metadata})
	}
	return results, nil
}

func (p *QdrantProvider) DeleteByFilter(ctx context.Context, collection string, filter Filter) error {
	_, err := p.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{Filter: toQdrantFilter(filter)},
		},
	})
	if err != nil {
		return coreerrors.Wrap(coreerrors.ErrUpstream, "vector: delete by filter failed", err)
	}
	return nil
}

func (p *QdrantProvider) DeleteCollection(ctx context.Context, collection string) error {
	if err := p.client.DeleteCollection(ctx, collection); err != nil {
		if strings.Contains(err.Error(), "doesn't exist") || strings.Contains(err.Error(), "not found") {
			return nil
		}
		return coreerrors.Wrap(coreerrors.ErrUpstream, "vector: delete collection failed", err)
	}
	return nil
}

func toQdrantFilter(filter Filter) *qdrant.Filter {
	if len(filter) == 0 {
		return nil
	}
	conditions := make([]*qdrant.Condition, 0, len(filter))
	for key, value := range filter {
		conditions = append(conditions, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key:   key,
					Match: &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: value}},
				},
			},
		})
	}
	return &qdrant.Filter{Must: conditions}
}

func fromQdrantValue(value *qdrant.Value) any {
	switch v := value.Kind.(type) {
	case *qdrant.Value_StringValue:
		return v.StringValue
	case *qdrant.Value_IntegerValue:
		return v.IntegerValue
	case *qdrant.Value_DoubleValue:
		return v.DoubleValue
	case *qdrant.Value_BoolValue:
		return v.BoolValue
	case *qdrant.Value_ListValue:
		if v.ListValue == nil {
			return nil
		}
		list := make([]any, len(v.ListValue.Values))
		for i, item := range v.ListValue.Values {
			list[i] = fromQdrantValue(item)
		}
		return list
	default:
		return nil
	}
}
