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

// Package config provides configuration types and utilities for the tutoring core.
// This file contains the per-component configuration sections.
package config

import "fmt"

// ============================================================================
// GATEWAY CONFIGURATION
// ============================================================================

// GatewayConfig configures the LLM gateway (§4.L).
type GatewayConfig struct {
	Provider         string `yaml:"provider"`            // "openai" or "gemini"
	Model            string `yaml:"model"`               // default chat model tag
	APIKey           string `yaml:"api_key"`             // expanded from env via ${VAR}
	BaseURL          string `yaml:"base_url,omitempty"`  // override for self-hosted/proxy endpoints
	MaxConcurrency   int    `yaml:"max_concurrency"`     // process-wide concurrency cap
	RequestTimeoutMs int    `yaml:"request_timeout_ms"`  // per-call wall-clock budget
	RetryMax         int    `yaml:"retry_max"`           // retry cap for ErrUpstream/ErrTimeout
	RetryBaseDelayMs int    `yaml:"retry_base_delay_ms"` // full-jitter backoff starting delay
}

func (c *GatewayConfig) SetDefaults() {
	if c.Provider == "" {
		c.Provider = "openai"
	}
	if c.Model == "" {
		c.Model = "gpt-4o-mini"
	}
	if c.MaxConcurrency == 0 {
		c.MaxConcurrency = 8
	}
	if c.RequestTimeoutMs == 0 {
		c.RequestTimeoutMs = 30000
	}
	if c.RetryMax == 0 {
		c.RetryMax = 3
	}
	if c.RetryBaseDelayMs == 0 {
		c.RetryBaseDelayMs = 250
	}
}

func (c *GatewayConfig) Validate() error {
	switch c.Provider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("unsupported gateway provider: %s", c.Provider)
	}
	if c.MaxConcurrency <= 0 {
		return fmt.Errorf("max_concurrency must be positive")
	}
	if c.RetryMax < 0 {
		return fmt.Errorf("retry_max must not be negative")
	}
	return nil
}

// ============================================================================
// RAG CONFIGURATION
// ============================================================================

// RAGConfig configures the RAG substrate (§4.R).
type RAGConfig struct {
	ChunkWords   int            `yaml:"chunk_words"`   // target chunk length in words
	OverlapWords int            `yaml:"overlap_words"` // overlap between consecutive chunks
	TopK         int            `yaml:"top_k"`         // default retrieval width
	Embedder     EmbedderConfig `yaml:"embedder"`
	Vector       VectorConfig   `yaml:"vector"`
}

func (c *RAGConfig) SetDefaults() {
	if c.ChunkWords == 0 {
		c.ChunkWords = 500
	}
	if c.OverlapWords == 0 {
		c.OverlapWords = 100
	}
	if c.TopK == 0 {
		c.TopK = 5
	}
	c.Embedder.SetDefaults()
	c.Vector.SetDefaults()
}

func (c *RAGConfig) Validate() error {
	if c.ChunkWords <= 0 {
		return fmt.Errorf("chunk_words must be positive")
	}
	if c.OverlapWords < 0 || c.OverlapWords >= c.ChunkWords {
		return fmt.Errorf("overlap_words must be in [0, chunk_words)")
	}
	if err := c.Embedder.Validate(); err != nil {
		return fmt.Errorf("embedder: %w", err)
	}
	if err := c.Vector.Validate(); err != nil {
		return fmt.Errorf("vector: %w", err)
	}
	return nil
}

// EmbedderConfig configures the embedding provider.
type EmbedderConfig struct {
	Provider  string `yaml:"provider"` // "openai" or "ollama"
	Model     string `yaml:"model"`
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url,omitempty"`
	Dimension int    `yaml:"dimension,omitempty"`
	BatchSize int    `yaml:"batch_size"`
}

func (c *EmbedderConfig) SetDefaults() {
	if c.Provider == "" {
		c.Provider = "openai"
	}
	if c.Model == "" {
		c.Model = "text-embedding-3-small"
	}
	if c.BatchSize == 0 {
		c.BatchSize = 100
	}
}

func (c *EmbedderConfig) Validate() error {
	switch c.Provider {
	case "openai", "ollama":
	default:
		return fmt.Errorf("unsupported embedder provider: %s", c.Provider)
	}
	return nil
}

// VectorConfig configures the vector store provider.
type VectorConfig struct {
	Provider string `yaml:"provider"` // "qdrant", "pinecone", "chromem"
	Host     string `yaml:"host,omitempty"`
	Port     int    `yaml:"port,omitempty"`
	APIKey   string `yaml:"api_key,omitempty"`
	UseTLS   bool   `yaml:"use_tls,omitempty"`
	Path     string `yaml:"path,omitempty"` // chromem on-disk persistence path
}

func (c *VectorConfig) SetDefaults() {
	if c.Provider == "" {
		c.Provider = "chromem"
	}
	if c.Provider == "qdrant" && c.Port == 0 {
		c.Port = 6334
	}
}

func (c *VectorConfig) Validate() error {
	switch c.Provider {
	case "qdrant", "pinecone", "chromem":
	default:
		return fmt.Errorf("unsupported vector provider: %s", c.Provider)
	}
	return nil
}

// ============================================================================
// GENERATOR CONFIGURATION
// ============================================================================

// GeneratorConfig configures the generator workflow engine (§4.J).
type GeneratorConfig struct {
	TargetCount      int `yaml:"target_count"` // exercises per draft, default 10
	EasyCount        int `yaml:"easy_count"`
	MediumCount      int `yaml:"medium_count"`
	HardCount        int `yaml:"hard_count"`
	RetrievalQueries int `yaml:"retrieval_queries"` // k queries built from topic+concepts
	RetrievalTopK    int `yaml:"retrieval_top_k"`
	CheckpointTTLMin int `yaml:"checkpoint_ttl_minutes"` // AWAITING_REVIEW expiry
}

func (c *GeneratorConfig) SetDefaults() {
	if c.TargetCount == 0 {
		c.TargetCount = 10
	}
	if c.EasyCount == 0 && c.MediumCount == 0 && c.HardCount == 0 {
		c.EasyCount, c.MediumCount, c.HardCount = 3, 4, 3
	}
	if c.RetrievalQueries == 0 {
		c.RetrievalQueries = 5
	}
	if c.RetrievalTopK == 0 {
		c.RetrievalTopK = 5
	}
	if c.CheckpointTTLMin == 0 {
		c.CheckpointTTLMin = 60 * 24 * 7
	}
}

func (c *GeneratorConfig) Validate() error {
	if c.EasyCount+c.MediumCount+c.HardCount != c.TargetCount {
		return fmt.Errorf("difficulty mix %d/%d/%d does not sum to target_count %d",
			c.EasyCount, c.MediumCount, c.HardCount, c.TargetCount)
	}
	return nil
}

// ============================================================================
// TUTOR CONFIGURATION
// ============================================================================

// TutorConfig configures the tutor session engine (§4.T).
type TutorConfig struct {
	RetrievalTopK      int     `yaml:"retrieval_top_k"`
	FrustrationStep    float64 `yaml:"frustration_step"`
	FrustrationDecay   float64 `yaml:"frustration_decay"`
	UnderstandingStep  float64 `yaml:"understanding_step"`
	UnderstandingDecay float64 `yaml:"understanding_decay"`
	HintEscalationAt   int     `yaml:"hint_escalation_at"`
	CodeFenceLineCap   int     `yaml:"code_fence_line_cap"` // per-message leakage threshold
	CodeFenceBudget    int     `yaml:"code_fence_budget"`   // cumulative per-session budget
	HistoryWindow      int     `yaml:"history_window"`      // messages fed into the prompt
	InactivityGraceMin int     `yaml:"inactivity_grace_minutes"`
}

func (c *TutorConfig) SetDefaults() {
	if c.RetrievalTopK == 0 {
		c.RetrievalTopK = 5
	}
	if c.FrustrationStep == 0 {
		c.FrustrationStep = 0.1
	}
	if c.FrustrationDecay == 0 {
		c.FrustrationDecay = 0.05
	}
	if c.UnderstandingStep == 0 {
		c.UnderstandingStep = 0.1
	}
	if c.UnderstandingDecay == 0 {
		c.UnderstandingDecay = 0.05
	}
	if c.HintEscalationAt == 0 {
		c.HintEscalationAt = 3
	}
	if c.CodeFenceLineCap == 0 {
		c.CodeFenceLineCap = 3
	}
	if c.CodeFenceBudget == 0 {
		c.CodeFenceBudget = 10
	}
	if c.HistoryWindow == 0 {
		c.HistoryWindow = 6
	}
	if c.InactivityGraceMin == 0 {
		c.InactivityGraceMin = 30
	}
}

func (c *TutorConfig) Validate() error {
	if c.CodeFenceBudget < 0 {
		return fmt.Errorf("code_fence_budget must not be negative")
	}
	return nil
}

// ============================================================================
// ANALYST CONFIGURATION
// ============================================================================

// AnalystConfig configures the pedagogical analyst pipeline (§4.A).
type AnalystConfig struct {
	TraceWindow  int     `yaml:"trace_window"` // last N messages pulled
	SummaryLines int     `yaml:"summary_lines"` // last N messages summarized verbatim
	Temperature  float64 `yaml:"temperature"`
	MinQuotes    int     `yaml:"min_quotes"`
}

func (c *AnalystConfig) SetDefaults() {
	if c.TraceWindow == 0 {
		c.TraceWindow = 20
	}
	if c.SummaryLines == 0 {
		c.SummaryLines = 10
	}
	if c.Temperature == 0 {
		c.Temperature = 0.3
	}
	if c.MinQuotes == 0 {
		c.MinQuotes = 3
	}
}

func (c *AnalystConfig) Validate() error {
	if c.TraceWindow <= 0 {
		return fmt.Errorf("trace_window must be positive")
	}
	return nil
}

// ============================================================================
// STORE CONFIGURATION
// ============================================================================

// StoreConfig configures the trace & job store (§4.X).
type StoreConfig struct {
	Dialect string `yaml:"dialect"` // "sqlite", "postgres", "mysql"
	DSN     string `yaml:"dsn"`
}

func (c *StoreConfig) SetDefaults() {
	if c.Dialect == "" {
		c.Dialect = "sqlite"
	}
	if c.DSN == "" && c.Dialect == "sqlite" {
		c.DSN = "file:tutorcore.db?cache=shared&_fk=1"
	}
}

func (c *StoreConfig) Validate() error {
	switch c.Dialect {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("unsupported store dialect: %s", c.Dialect)
	}
	if c.DSN == "" {
		return fmt.Errorf("dsn is required")
	}
	return nil
}

// ============================================================================
// LOGGING / OBSERVABILITY CONFIGURATION
// ============================================================================

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "json"
	}
}

func (c *LoggingConfig) Validate() error {
	switch c.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level: %s", c.Level)
	}
	return nil
}

// MetricsConfig configures the Prometheus exposition.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

func (c *MetricsConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":9090"
	}
}

func (c *MetricsConfig) Validate() error { return nil }
