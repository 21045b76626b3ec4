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


// Package similarity decides what to do with new content based on how
// close its embedding sits to content already seen.
package similarity

import (
	"context"
	"log/slog"

	"github.com/poiesic/newswire/core"
	"github.com/poiesic/newswire/storage"
)

// Default thresholds for the two-band policy.
const (
	DefaultDuplicateThreshold = 0.95
	DefaultSimilarThreshold   = 0.70
)

// Kind is the outcome of classifying content against the stored index.
type Kind int

const (
	// Novel content has no stored neighbor above the similar threshold.
	Novel Kind = iota
	// Similar content repeats a story already published and is
	// published as low-signal instead of classified.
	Similar
	// Duplicate content is close enough to a stored record to drop.
	Duplicate
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case Duplicate:
		return "duplicate"
	case Similar:
		return "similar"
	default:
		return "novel"
	}
}

// Verdict is the result of one classification.
type Verdict struct {
	Kind Kind
	// Match is the first stored record over the winning threshold,
	// nil for Novel.
	Match *core.SimilarityMatch
}

// Index classifies new embeddings against the persisted embedding set.
type Index struct {
	state              storage.StateRepository
	duplicateThreshold float64
	similarThreshold   float64
	logger             *slog.Logger
}

// Option configures an Index.
type Option func(*Index)

// WithThresholds overrides the duplicate and similar thresholds.
func WithThresholds(duplicate, similar float64) Option {
	return func(idx *Index) {
		idx.duplicateThreshold = duplicate
		idx.similarThreshold = similar
	}
}

// NewIndex creates an index over the given state repository.
func NewIndex(state storage.StateRepository, opts ...Option) *Index {
	idx := &Index{
		state:              state,
		duplicateThreshold: DefaultDuplicateThreshold,
		similarThreshold:   DefaultSimilarThreshold,
		logger:             slog.Default().With("component", "similarity_index"),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Classify runs the two-band policy against the stored index. The
// duplicate band is checked before the similar band so a vector that
// clears both comes back Duplicate, and within each band the earliest
// stored record over the threshold wins.
func (idx *Index) Classify(ctx context.Context, vector []float32) (*Verdict, error) {
	match, err := idx.state.FindSimilar(ctx, vector, idx.duplicateThreshold)
	if err != nil {
		return nil, err
	}
	if match != nil {
		idx.logger.Debug("duplicate content detected",
			"score", match.Score, "preview", match.Preview)
		return &Verdict{Kind: Duplicate, Match: match}, nil
	}

	match, err = idx.state.FindSimilar(ctx, vector, idx.similarThreshold)
	if err != nil {
		return nil, err
	}
	if match != nil {
		idx.logger.Debug("similar content detected",
			"score", match.Score, "preview", match.Preview)
		return &Verdict{Kind: Similar, Match: match}, nil
	}

	return &Verdict{Kind: Novel}, nil
}

// Remember stores the embedding for published content so later items
// can be classified against it. Returns the content hash.
func (idx *Index) Remember(ctx context.Context, content string, vector []float32, linkedItemId string) (string, error) {
	return idx.state.AddEmbedding(ctx, content, vector, linkedItemId)
}
