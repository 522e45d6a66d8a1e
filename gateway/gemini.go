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
	"errors"
	"iter"

	"google.golang.org/genai"

	"github.com/aurelius-labs/tutorcore/config"
)

// GeminiClient adapts google.golang.org/genai to the gateway's LLM
// interface; it is the secondary chat provider alongside OpenAIClient, so
// the core is never committed to a single upstream vendor.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient builds a GeminiClient from gateway configuration.
func NewGeminiClient(ctx context.Context, cfg config.GatewayConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gateway: gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return &GeminiClient{client: client, model: cfg.Model}, nil
}

func (c *GeminiClient) Name() string { return "gemini" }

func (c *GeminiClient) Complete(ctx context.Context, req Request) (*Completion, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.System, genai.RoleUser),
		Temperature:       genai.Ptr(float32(req.Temperature)),
	}
	if req.ExpectJSON {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := c.client.Models.GenerateContent(ctx, model, genai.Text(req.User), cfg)
	if err != nil {
		return nil, err
	}
	return &Completion{Text: resp.Text()}, nil
}

func (c *GeminiClient) Stream(ctx context.Context, req Request) iter.Seq2[TokenChunk, error] {
	model := req.Model
	if model == "" {
		model = c.model
	}
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.System, genai.RoleUser),
		Temperature:       genai.Ptr(float32(req.Temperature)),
	}

	return func(yield func(TokenChunk, error) bool) {
		for chunk, err := range c.client.Models.GenerateContentStream(ctx, model, genai.Text(req.User), cfg) {
			if err != nil {
				yield(TokenChunk{}, err)
				return
			}
			if !yield(TokenChunk{Delta: chunk.Text()}, nil) {
				return
			}
		}
		yield(TokenChunk{Done: true}, nil)
	}
}
