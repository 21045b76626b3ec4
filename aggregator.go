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


// Package newswire aggregates short-form content feeds: it ingests
// items from pollers and realtime listeners, drops duplicates by
// embedding similarity, categorizes what remains and publishes it,
// with a moderator feedback loop that teaches the classifier what to
// reject.
package newswire

import (
	"context"
	"log/slog"

	"github.com/poiesic/newswire/ai"
	"github.com/poiesic/newswire/ai/ollama"
	"github.com/poiesic/newswire/feedback"
	"github.com/poiesic/newswire/pipeline"
	"github.com/poiesic/newswire/publish"
	"github.com/poiesic/newswire/retrying"
	"github.com/poiesic/newswire/similarity"
	"github.com/poiesic/newswire/storage"
	"github.com/poiesic/newswire/storage/badger"
	"github.com/poiesic/newswire/votes"
)

// Aggregator owns the durable state and the AI services, and wires
// the pipeline pieces together.
type Aggregator struct {
	backend     *badger.Backend
	state       *badger.StateRepository
	retryRepo   storage.RetryRepository
	voteRepo    storage.VoteRepository
	archiveRepo *badger.ArchiveRepository
	archive     *feedback.Archive
	tracker     *votes.Tracker
	provider    ai.Provider
	aiConfig    *ai.Config
	indexOpts   []similarity.Option
	retryOpts   []retrying.Option
	logger      *slog.Logger
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*aggregatorOptions)

type aggregatorOptions struct {
	aiConfig     *ai.Config
	provider     ai.Provider
	inMemory     bool
	indexOpts    []similarity.Option
	retryingOpts []retrying.Option
}

// WithAIConfig sets the AI service configuration.
// Default is ai.DefaultConfig().
func WithAIConfig(cfg *ai.Config) AggregatorOption {
	return func(o *aggregatorOptions) {
		if cfg != nil {
			o.aiConfig = cfg
		}
	}
}

// WithProvider injects a pre-built AI provider instead of creating an
// Ollama one. Used by tests and custom deployments.
func WithProvider(provider ai.Provider) AggregatorOption {
	return func(o *aggregatorOptions) {
		o.provider = provider
	}
}

// WithInMemoryStorage keeps all state in memory. Used by tests.
func WithInMemoryStorage() AggregatorOption {
	return func(o *aggregatorOptions) {
		o.inMemory = true
	}
}

// WithSimilarityThresholds overrides the duplicate and similar bands.
func WithSimilarityThresholds(duplicate, similar float64) AggregatorOption {
	return func(o *aggregatorOptions) {
		o.indexOpts = append(o.indexOpts, similarity.WithThresholds(duplicate, similar))
	}
}

// WithRetryOptions passes options through to the retry queue built by
// NewOrchestrator.
func WithRetryOptions(opts ...retrying.Option) AggregatorOption {
	return func(o *aggregatorOptions) {
		o.retryingOpts = append(o.retryingOpts, opts...)
	}
}

// Open creates an Aggregator over a BadgerDB directory.
func Open(filePath string, opts ...AggregatorOption) (*Aggregator, error) {
	options := &aggregatorOptions{
		aiConfig: ai.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(options)
	}

	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	state, err := badger.NewStateRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	archiveRepo, err := badger.NewArchiveRepository(backend)
	if err != nil {
		state.Close()
		backend.Close()
		return nil, err
	}

	archive := feedback.NewArchive(archiveRepo)
	voteRepo := badger.NewVoteRepository(backend)

	provider := options.provider
	if provider == nil {
		// removal previews flow into the classifier prompt
		provider, err = ollama.NewProvider(options.aiConfig, archive)
		if err != nil {
			archiveRepo.Close()
			state.Close()
			backend.Close()
			return nil, err
		}
	}

	return &Aggregator{
		backend:     backend,
		state:       state,
		retryRepo:   badger.NewRetryRepository(backend),
		voteRepo:    voteRepo,
		archiveRepo: archiveRepo,
		archive:     archive,
		tracker:     votes.NewTracker(voteRepo),
		provider:    provider,
		aiConfig:    options.aiConfig,
		indexOpts:   options.indexOpts,
		retryOpts:   options.retryingOpts,
		logger:      slog.Default(),
	}, nil
}

// Close releases the AI provider, repositories and backend.
func (a *Aggregator) Close() error {
	if err := a.provider.Close(); err != nil {
		a.logger.Error("error closing AI provider", "err", err)
	}
	if err := a.archiveRepo.Close(); err != nil {
		a.logger.Error("error closing archive repository", "err", err)
		return err
	}
	if err := a.state.Close(); err != nil {
		a.logger.Error("error closing state repository", "err", err)
		return err
	}
	if err := a.backend.Close(); err != nil {
		a.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

// State returns the shared state repository.
func (a *Aggregator) State() storage.StateRepository {
	return a.state
}

// Archive returns the removed-entry archive.
func (a *Aggregator) Archive() *feedback.Archive {
	return a.archive
}

// VoteTracker returns the vote tracker.
func (a *Aggregator) VoteTracker() *votes.Tracker {
	return a.tracker
}

// Provider returns the AI provider.
func (a *Aggregator) Provider() ai.Provider {
	return a.provider
}

// NewOrchestrator builds the pipeline orchestrator on this
// aggregator's state, with vote expiry and archive purging hooked into
// the cleanup cadence. Callers add sources and the sink through opts.
func (a *Aggregator) NewOrchestrator(ctx context.Context, publisher publish.Publisher, opts ...pipeline.Option) (*pipeline.Orchestrator, error) {
	queue, err := retrying.NewQueue(ctx, a.retryRepo, a.retryOpts...)
	if err != nil {
		return nil, err
	}
	index := similarity.NewIndex(a.state, a.indexOpts...)

	base := []pipeline.Option{
		pipeline.WithLowSignalCategory(a.aiConfig.LowSignalCategory),
		pipeline.WithMaintenance(
			func(ctx context.Context) error {
				_, err := a.tracker.Cleanup(ctx, votes.DefaultMaxAge)
				return err
			},
			func(ctx context.Context) error {
				_, err := a.archive.Purge(ctx)
				return err
			},
		),
	}
	return pipeline.NewOrchestrator(a.state, index, queue, a.provider, publisher, append(base, opts...)...)
}

// NewModerator builds the vote quorum handler. The publisher deletes
// sink messages on removal.
func (a *Aggregator) NewModerator(publisher votes.Remover, opts ...votes.ModeratorOption) *votes.Moderator {
	return votes.NewModerator(a.tracker, a.state, a.archiveRepo, publisher, opts...)
}
