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
// This file contains the main unified configuration entry point.
package config

import (
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// ============================================================================
// MAIN UNIFIED CONFIGURATION
// ============================================================================

// Config is the single entry point for the core's configuration.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging,omitempty"`
	Metrics   MetricsConfig   `yaml:"metrics,omitempty"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	RAG       RAGConfig       `yaml:"rag"`
	Generator GeneratorConfig `yaml:"generator"`
	Tutor     TutorConfig     `yaml:"tutor"`
	Analyst   AnalystConfig   `yaml:"analyst"`
	Store     StoreConfig     `yaml:"store"`
}

// SetDefaults fills in every unset field across every section.
func (c *Config) SetDefaults() {
	c.Logging.SetDefaults()
	c.Metrics.SetDefaults()
	c.Gateway.SetDefaults()
	c.RAG.SetDefaults()
	c.Generator.SetDefaults()
	c.Tutor.SetDefaults()
	c.Analyst.SetDefaults()
	c.Store.SetDefaults()
}

// Validate checks every section; the first failing section's error is wrapped
// and returned.
func (c *Config) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	if err := c.Gateway.Validate(); err != nil {
		return fmt.Errorf("gateway: %w", err)
	}
	if err := c.RAG.Validate(); err != nil {
		return fmt.Errorf("rag: %w", err)
	}
	if err := c.Generator.Validate(); err != nil {
		return fmt.Errorf("generator: %w", err)
	}
	if err := c.Tutor.Validate(); err != nil {
		return fmt.Errorf("tutor: %w", err)
	}
	if err := c.Analyst.Validate(); err != nil {
		return fmt.Errorf("analyst: %w", err)
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	return nil
}

// ============================================================================
// CONFIGURATION LOADING
// ============================================================================

// Load reads a YAML config file, overlays `.env`/`.env.local`, expands
// ${VAR}/${VAR:-default}/$VAR references, applies defaults and validates.
func Load(path string) (*Config, error) {
	if err := LoadEnvFiles(); err != nil {
		return nil, fmt.Errorf("failed to load env files: %w", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg, err := LoadFromString(string(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromString parses YAML content directly; used by tests and callers
// that assemble configuration in-process rather than from a file.
func LoadFromString(yamlContent string) (*Config, error) {
	var raw map[string]interface{}
	if err := yaml.Unmarshal([]byte(yamlContent), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}
	expanded := ExpandEnvVarsInData(raw)

	var cfg Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "yaml",
		Result:  &cfg,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build decoder: %w", err)
	}
	if err := decoder.Decode(expanded); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
