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


// Package feedback exposes the archive of moderator-removed entries as
// a learning signal: recent removals feed the classifier prompt so the
// model sees what the moderators rejected.
package feedback

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/poiesic/newswire/core"
	"github.com/poiesic/newswire/storage"
)

const (
	// DefaultPreviewLimit is how many recent removals feed the prompt.
	DefaultPreviewLimit = 10
	// DefaultPreviewMaxLen is the preview truncation length in runes.
	DefaultPreviewMaxLen = 200
	// DefaultRetention is the long-horizon purge age for archived
	// removals.
	DefaultRetention = 90 * 24 * time.Hour

	previewCacheTTL = 5 * time.Minute
)

// Stats summarizes the archive.
type Stats struct {
	Total      int
	LastWeek   int
	ByCategory map[string]int
	OldestAt   int64
	NewestAt   int64
}

// Archive is the read side of the removed-entry archive. Previews are
// cached briefly because the classifier asks for them on every item.
type Archive struct {
	repo      storage.ArchiveRepository
	previews  *cache.Cache
	retention time.Duration
	logger    *slog.Logger
}

// Option configures an Archive.
type Option func(*Archive)

// WithRetention overrides the purge horizon.
func WithRetention(d time.Duration) Option {
	return func(a *Archive) { a.retention = d }
}

// NewArchive creates an archive service over the given repository.
func NewArchive(repo storage.ArchiveRepository, opts ...Option) *Archive {
	a := &Archive{
		repo:      repo,
		previews:  cache.New(previewCacheTTL, 2*previewCacheTTL),
		retention: DefaultRetention,
		logger:    slog.Default().With("component", "feedback_archive"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ContentPreviews returns truncated previews of the most recently
// removed entries, newest first. Results are cached for a few minutes.
func (a *Archive) ContentPreviews(ctx context.Context, limit, maxLen int) ([]string, error) {
	if limit <= 0 {
		limit = DefaultPreviewLimit
	}
	if maxLen <= 0 {
		maxLen = DefaultPreviewMaxLen
	}
	key := fmt.Sprintf("previews:%d:%d", limit, maxLen)
	if cached, ok := a.previews.Get(key); ok {
		return cached.([]string), nil
	}

	entries, err := a.repo.RecentRemovedEntries(ctx, limit)
	if err != nil {
		return nil, err
	}
	previews := make([]string, 0, len(entries))
	for _, entry := range entries {
		previews = append(previews, truncate(entry.Content, maxLen))
	}
	a.previews.Set(key, previews, cache.DefaultExpiration)
	return previews, nil
}

// Find returns the archived entry for an item id.
func (a *Archive) Find(ctx context.Context, entryId string) (*core.RemovedEntry, error) {
	return a.repo.FindRemovedEntry(ctx, entryId)
}

// Recent returns up to limit archived entries, newest first.
func (a *Archive) Recent(ctx context.Context, limit int) ([]*core.RemovedEntry, error) {
	return a.repo.RecentRemovedEntries(ctx, limit)
}

// Restore takes an entry out of the archive, so the content stops
// feeding the classifier and may be published again, and returns it.
func (a *Archive) Restore(ctx context.Context, entryId string) (*core.RemovedEntry, error) {
	entry, err := a.repo.FindRemovedEntry(ctx, entryId)
	if err != nil {
		return nil, err
	}
	if err := a.repo.DeleteRemovedEntry(ctx, entryId); err != nil {
		return nil, err
	}
	a.previews.Flush()
	a.logger.Info("restored archived entry", "entry_id", entryId)
	return entry, nil
}

// Purge removes entries older than the retention horizon.
func (a *Archive) Purge(ctx context.Context) (int, error) {
	removed, err := a.repo.PurgeRemovedOlderThan(ctx, a.retention)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		a.previews.Flush()
	}
	return removed, nil
}

// Stats summarizes the archive contents.
func (a *Archive) Stats(ctx context.Context) (*Stats, error) {
	entries, err := a.repo.AllRemovedEntries(ctx)
	if err != nil {
		return nil, err
	}
	stats := &Stats{ByCategory: make(map[string]int)}
	stats.Total = len(entries)
	weekAgo := time.Now().Add(-7 * 24 * time.Hour).Unix()
	for _, entry := range entries {
		stats.ByCategory[entry.Category]++
		if entry.RemovedAt >= weekAgo {
			stats.LastWeek++
		}
		if stats.OldestAt == 0 || entry.RemovedAt < stats.OldestAt {
			stats.OldestAt = entry.RemovedAt
		}
		if entry.RemovedAt > stats.NewestAt {
			stats.NewestAt = entry.RemovedAt
		}
	}
	return stats, nil
}

// truncate cuts content to maxLen runes, marking the cut with "...".
func truncate(content string, maxLen int) string {
	runes := []rune(content)
	if len(runes) <= maxLen {
		return content
	}
	return string(runes[:maxLen]) + "..."
}
