// Copyright 2025 The telerag authors
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

// Package config loads the service configuration from a file and the
// environment.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	AI      AIConfig      `mapstructure:"ai"`
	Scraper ScraperConfig `mapstructure:"scraper"`
	RAG     RAGConfig     `mapstructure:"rag"`
}

type StorageConfig struct {
	Path     string `mapstructure:"path"`
	InMemory bool   `mapstructure:"in_memory"`
}

type AIConfig struct {
	EmbeddingHost   string `mapstructure:"embedding_host"`
	CompletionHost  string `mapstructure:"completion_host"`
	EmbeddingModel  string `mapstructure:"embedding_model"`
	CompletionModel string `mapstructure:"completion_model"`
	Token           string `mapstructure:"token"`
}

type ScraperConfig struct {
	HistoryLimit int `mapstructure:"history_limit"`
}

type RAGConfig struct {
	MaxChunkSize int    `mapstructure:"max_chunk_size"`
	TopResults   int    `mapstructure:"top_results"`
	Language     string `mapstructure:"language"`
}

// Load reads the configuration file at path, falling back to defaults for
// everything not set. Environment variables override file values. An empty
// path loads defaults only.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("storage.path", "telerag-data")
	v.SetDefault("storage.in_memory", false)
	v.SetDefault("ai.embedding_host", "http://localhost:11434/v1")
	v.SetDefault("ai.completion_host", "http://localhost:11434/v1")
	v.SetDefault("ai.embedding_model", "embeddinggemma")
	v.SetDefault("ai.completion_model", "qwen2.5:3b")
	v.SetDefault("ai.token", "none")
	v.SetDefault("scraper.history_limit", 50)
	v.SetDefault("rag.max_chunk_size", 512)
	v.SetDefault("rag.top_results", 5)
	v.SetDefault("rag.language", "english")

	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Secrets come from the environment when present
	if token := v.GetString("AI_TOKEN"); token != "" {
		config.AI.Token = token
	}

	return &config, nil
}

// Validate checks the loaded values for obvious mistakes.
func (c *Config) Validate() error {
	if c.Storage.Path == "" && !c.Storage.InMemory {
		return fmt.Errorf("storage.path is required for on-disk storage")
	}
	if c.Scraper.HistoryLimit <= 0 {
		return fmt.Errorf("scraper.history_limit must be positive, got %d", c.Scraper.HistoryLimit)
	}
	if c.RAG.MaxChunkSize <= 0 {
		return fmt.Errorf("rag.max_chunk_size must be positive, got %d", c.RAG.MaxChunkSize)
	}
	if c.RAG.TopResults <= 0 {
		return fmt.Errorf("rag.top_results must be positive, got %d", c.RAG.TopResults)
	}
	return nil
}
