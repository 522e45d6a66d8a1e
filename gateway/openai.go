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
	"io"
	"iter"

	openai "github.com/sashabaranov/go-openai"

	"github.com/aurelius-labs/tutorcore/config"
)

// OpenAIClient adapts sashabaranov/go-openai to the gateway's LLM
// interface.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient builds an OpenAIClient from gateway configuration.
func NewOpenAIClient(cfg config.GatewayConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gateway: openai api key is required")
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return &OpenAIClient{client: openai.NewClientWithConfig(oc), model: cfg.Model}, nil
}

func (c *OpenAIClient) Name() string { return "openai" }

func (c *OpenAIClient) Complete(ctx context.Context, req Request) (*Completion, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	chatReq := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
		Temperature: float32(req.Temperature),
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}
	if req.ExpectJSON {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, classifyOpenAIErr(err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("gateway: openai returned no choices")
	}
	choice := resp.Choices[0]
	return &Completion{
		Text:         choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		PromptTokens: resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}

func (c *OpenAIClient) Stream(ctx context.Context, req Request) iter.Seq2[TokenChunk, error] {
	model := req.Model
	if model == "" {
		model = c.model
	}
	return func(yield func(TokenChunk, error) bool) {
		stream, err := c.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
			Model: model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: req.System},
				{Role: openai.ChatMessageRoleUser, Content: req.User},
			},
			Temperature: float32(req.Temperature),
			Stream:      true,
		})
		if err != nil {
			yield(TokenChunk{}, classifyOpenAIErr(err))
			return
		}
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				yield(TokenChunk{Done: true}, nil)
				return
			}
			if err != nil {
				yield(TokenChunk{}, classifyOpenAIErr(err))
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			if !yield(TokenChunk{Delta: resp.Choices[0].Delta.Content}, nil) {
				return
			}
		}
	}
}

// classifyOpenAIErr maps an openai.APIError's status code to a
// RequestError when the failure is caller-attributable (4xx); every other
// failure (including transport errors) is left as-is so the gateway's
// default classification (ErrUpstream) applies.
func classifyOpenAIErr(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode >= 400 && apiErr.HTTPStatusCode < 500 {
			return RequestError{Err: err}
		}
	}
	return err
}
