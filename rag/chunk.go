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

// Package rag implements the RAG substrate (§4.R): PDF/text ingestion,
// chunking, embedding, and per-collection semantic retrieval, with
// page-indexed prose chunking per source.
package rag

import (
	"strings"

	"github.com/aurelius-labs/tutorcore/pdfextract"
)

// Chunk is one overlapping span of source text, scoped to a single page.
type Chunk struct {
	Content       string
	Page          int
	PageOrdinal   int // 0-based position within its page
	GlobalOrdinal int // 0-based position within the whole ingestion
}

// ChunkerConfig parameterizes the chunking policy.
type ChunkerConfig struct {
	TargetWords int
	OverlapWords int
}

// Chunker splits page-indexed text into overlapping, page-scoped chunks.
type Chunker struct {
	cfg ChunkerConfig
}

// NewChunker builds a Chunker; zero-valued fields fall back to the
// spec's defaults (500 words target, 100 words overlap).
func NewChunker(cfg ChunkerConfig) *Chunker {
	if cfg.TargetWords <= 0 {
		cfg.TargetWords = 500
	}
	if cfg.OverlapWords <= 0 || cfg.OverlapWords >= cfg.TargetWords {
		cfg.OverlapWords = 100
	}
	return &Chunker{cfg: cfg}
}

// Chunk splits every page independently, so chunks never cross page
// boundaries. Each page's text is cut on whitespace into windows of
// TargetWords words, consecutive windows sharing OverlapWords words.
// Sentence boundaries are not considered: a window may start or end
// mid-sentence.
func (c *Chunker) Chunk(pages []pdfextract.Page) []Chunk {
	var chunks []Chunk
	globalOrdinal := 0
	for _, page := range pages {
		words := strings.Fields(page.Text)
		if len(words) == 0 {
			continue
		}
		pageOrdinal := 0
		stride := c.cfg.TargetWords - c.cfg.OverlapWords
		if stride <= 0 {
			stride = c.cfg.TargetWords
		}
		for start := 0; start < len(words); start += stride {
			end := start + c.cfg.TargetWords
			if end > len(words) {
				end = len(words)
			}
			content := strings.Join(words[start:end], " ")
			chunks = append(chunks, Chunk{
				Content:       content,
				Page:          page.Number,
				PageOrdinal:   pageOrdinal,
				GlobalOrdinal: globalOrdinal,
			})
			pageOrdinal++
			globalOrdinal++
			if end == len(words) {
				break
			}
		}
	}
	return chunks
}
