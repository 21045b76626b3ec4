// Copyright 2025 Poiesic Systems
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


package ai

import (
	"errors"
	"slices"
	"strings"
)

// DefaultLowSignalCategory is where similar and unclassifiable content
// lands.
const DefaultLowSignalCategory = "ignore"

// Config holds configuration for AI service providers.
type Config struct {
	// EmbeddingHost is the base URL of the embedding service.
	// Example: "http://localhost:11434" for a local Ollama server.
	EmbeddingHost string

	// ClassifierHost is the base URL of the classification service.
	ClassifierHost string

	// EmbeddingModel is the model identifier for text embeddings.
	// Example: "nomic-embed-text", "embeddinggemma"
	EmbeddingModel string

	// ClassifierModel is the model identifier for categorization.
	// Example: "qwen2.5:3b", "llama3.2"
	ClassifierModel string

	// Categories are the publishable category names, in routing order.
	Categories []string

	// LowSignalCategory receives similar reposts and content the
	// classifier could not place. Always present in Categories.
	LowSignalCategory string

	// FeedbackLimit is how many recent removals feed the classifier
	// prompt.
	FeedbackLimit int

	// FeedbackMaxLen is the preview truncation length for removals in
	// the prompt.
	FeedbackMaxLen int
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithClassifierHost sets the classifier service host URL.
func WithClassifierHost(host string) ConfigOption {
	return func(c *Config) {
		c.ClassifierHost = host
	}
}

// WithHost sets both embedding and classifier hosts to the same URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
		c.ClassifierHost = host
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithClassifierModel sets the classifier model identifier.
func WithClassifierModel(model string) ConfigOption {
	return func(c *Config) {
		c.ClassifierModel = model
	}
}

// WithCategories sets the publishable categories.
func WithCategories(categories ...string) ConfigOption {
	return func(c *Config) {
		c.Categories = categories
	}
}

// WithLowSignalCategory sets the fallback category.
func WithLowSignalCategory(category string) ConfigOption {
	return func(c *Config) {
		c.LowSignalCategory = category
	}
}

// WithFeedback sets how removed-content previews enter the prompt.
func WithFeedback(limit, maxLen int) ConfigOption {
	return func(c *Config) {
		c.FeedbackLimit = limit
		c.FeedbackMaxLen = maxLen
	}
}

// DefaultConfig returns a Config with sensible defaults for local
// Ollama services and a crypto-news category set.
func DefaultConfig() *Config {
	defaultHost := "http://localhost:11434"
	return &Config{
		EmbeddingHost:     defaultHost,
		ClassifierHost:    defaultHost,
		EmbeddingModel:    "nomic-embed-text",
		ClassifierModel:   "qwen2.5:3b",
		Categories:        []string{"macro", "defi", "infrastructure", "regulation", "markets", DefaultLowSignalCategory},
		LowSignalCategory: DefaultLowSignalCategory,
		FeedbackLimit:     10,
		FeedbackMaxLen:    200,
	}
}

// NewConfig creates a Config with the default values and applies the
// provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithHost("http://localhost:11434"),
//	    WithCategories("macro", "defi", "ignore"),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize brings the configuration to canonical form: hosts lose
// trailing slashes, category names are lowercased and trimmed, and the
// low-signal category is appended if missing.
func (c *Config) Normalize() {
	c.EmbeddingHost = strings.TrimSuffix(c.EmbeddingHost, "/")
	c.ClassifierHost = strings.TrimSuffix(c.ClassifierHost, "/")

	normalized := make([]string, 0, len(c.Categories))
	for _, category := range c.Categories {
		category = strings.ToLower(strings.TrimSpace(category))
		if category != "" && !slices.Contains(normalized, category) {
			normalized = append(normalized, category)
		}
	}
	c.Categories = normalized

	c.LowSignalCategory = strings.ToLower(strings.TrimSpace(c.LowSignalCategory))
	if c.LowSignalCategory != "" && !slices.Contains(c.Categories, c.LowSignalCategory) {
		c.Categories = append(c.Categories, c.LowSignalCategory)
	}
}

// Validate checks that the configuration is usable. It normalizes
// first so callers get canonical values either way.
func (c *Config) Validate() error {
	c.Normalize()

	if c.EmbeddingHost == "" {
		return errors.New("embedding host is required")
	}
	if c.ClassifierHost == "" {
		return errors.New("classifier host is required")
	}
	if c.EmbeddingModel == "" {
		return errors.New("embedding model is required")
	}
	if c.ClassifierModel == "" {
		return errors.New("classifier model is required")
	}
	if len(c.Categories) == 0 {
		return errors.New("at least one category is required")
	}
	if c.LowSignalCategory == "" {
		return errors.New("low-signal category is required")
	}
	return nil
}
