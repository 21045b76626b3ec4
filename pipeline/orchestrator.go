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


// Package pipeline runs the ingestion flow: poll sources, deduplicate
// against the embedding index, categorize, publish and commit. One
// orchestrator drives three loops (batch cycle, realtime consumer,
// edit consumer) over shared durable state.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/panjf2000/ants/v2"
	"golang.org/x/sync/errgroup"

	"github.com/poiesic/newswire/ai"
	"github.com/poiesic/newswire/core"
	"github.com/poiesic/newswire/media"
	"github.com/poiesic/newswire/publish"
	"github.com/poiesic/newswire/retrying"
	"github.com/poiesic/newswire/similarity"
	"github.com/poiesic/newswire/source"
	"github.com/poiesic/newswire/storage"
)

const (
	// DefaultPollInterval is the batch cycle period.
	DefaultPollInterval = 5 * time.Minute
	// DefaultRetention is how long processed ids and embeddings are
	// kept before cleanup.
	DefaultRetention = 48 * time.Hour
	// DefaultRetryMaxAgeHours expires items stuck in the retry queue.
	DefaultRetryMaxAgeHours = 24
)

// MaintenanceFunc is a periodic cleanup hook run with the built-in
// retention cleanup (vote expiry, archive purge).
type MaintenanceFunc func(ctx context.Context) error

// Orchestrator owns the pipeline loops and their shared state.
type Orchestrator struct {
	state      storage.StateRepository
	index      *similarity.Index
	retries    *retrying.Queue
	embedder   ai.Embedder
	classifier ai.Classifier
	extractor  media.Extractor
	publisher  publish.Publisher
	pollers    []source.Poller
	realtime   *source.Queue
	edits      *source.Queue

	pollPool     *ants.Pool
	embedExec    failsafe.Executor[[]float32]
	classifyExec failsafe.Executor[string]
	publishExec  failsafe.Executor[*publish.Result]

	lowSignalCategory string
	pollInterval      time.Duration
	retention         time.Duration
	retryMaxAgeHours  int
	maintenance       []MaintenanceFunc

	// itemMu serializes item processing across the batch, realtime
	// and edit loops so the read-classify-commit sequence never
	// interleaves.
	itemMu  sync.Mutex
	counter statsCounter
	logger  *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator) error

// WithPollers sets the batch pollers queried every cycle.
func WithPollers(pollers ...source.Poller) Option {
	return func(o *Orchestrator) error {
		o.pollers = pollers
		return nil
	}
}

// WithRealtimeQueue sets the queue fed by realtime listeners.
func WithRealtimeQueue(q *source.Queue) Option {
	return func(o *Orchestrator) error {
		o.realtime = q
		return nil
	}
}

// WithEditQueue sets the queue of edited items.
func WithEditQueue(q *source.Queue) Option {
	return func(o *Orchestrator) error {
		o.edits = q
		return nil
	}
}

// WithExtractor sets the media text extractor.
// Default is media.NopExtractor.
func WithExtractor(extractor media.Extractor) Option {
	return func(o *Orchestrator) error {
		if extractor == nil {
			extractor = media.NopExtractor{}
		}
		o.extractor = extractor
		return nil
	}
}

// WithPollInterval sets the batch cycle period.
func WithPollInterval(d time.Duration) Option {
	return func(o *Orchestrator) error {
		if d > 0 {
			o.pollInterval = d
		}
		return nil
	}
}

// WithPollPoolSize sets the worker pool size for concurrent polling.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPollPoolSize(size int) Option {
	return func(o *Orchestrator) error {
		if size < 1 {
			size = 1
		}
		if o.pollPool != nil {
			o.pollPool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		o.pollPool = pool
		return nil
	}
}

// WithRetention sets the retention window for processed ids and
// embeddings.
func WithRetention(d time.Duration) Option {
	return func(o *Orchestrator) error {
		if d > 0 {
			o.retention = d
		}
		return nil
	}
}

// WithRetryMaxAge sets the age in hours after which queued retries
// expire.
func WithRetryMaxAge(hours int) Option {
	return func(o *Orchestrator) error {
		if hours > 0 {
			o.retryMaxAgeHours = hours
		}
		return nil
	}
}

// WithLowSignalCategory sets the category used for similar reposts.
// Default is ai.DefaultLowSignalCategory.
func WithLowSignalCategory(category string) Option {
	return func(o *Orchestrator) error {
		if category != "" {
			o.lowSignalCategory = category
		}
		return nil
	}
}

// WithMaintenance adds cleanup hooks run on the cleanup cadence.
func WithMaintenance(fns ...MaintenanceFunc) Option {
	return func(o *Orchestrator) error {
		o.maintenance = append(o.maintenance, fns...)
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger.With("component", "orchestrator")
		return nil
	}
}

// NewOrchestrator creates the pipeline orchestrator.
func NewOrchestrator(
	state storage.StateRepository,
	index *similarity.Index,
	retries *retrying.Queue,
	provider ai.Provider,
	publisher publish.Publisher,
	opts ...Option,
) (*Orchestrator, error) {
	if state == nil {
		return nil, ErrStateRequired
	}
	if index == nil {
		return nil, ErrIndexRequired
	}
	if retries == nil {
		return nil, ErrQueueRequired
	}
	if provider == nil {
		return nil, ErrProviderRequired
	}
	if publisher == nil {
		return nil, ErrPublisherRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		state:             state,
		index:             index,
		retries:           retries,
		embedder:          provider.Embedder(),
		classifier:        provider.Classifier(),
		extractor:         media.NopExtractor{},
		publisher:         publisher,
		pollPool:          pool,
		embedExec:         newCallExecutor[[]float32](),
		classifyExec:      newCallExecutor[string](),
		publishExec:       newCallExecutor[*publish.Result](),
		lowSignalCategory: ai.DefaultLowSignalCategory,
		pollInterval:      DefaultPollInterval,
		retention:         DefaultRetention,
		retryMaxAgeHours:  DefaultRetryMaxAgeHours,
		logger:            slog.Default().With("component", "orchestrator"),
	}

	for _, opt := range opts {
		if optErr := opt(o); optErr != nil {
			o.Release()
			return nil, optErr
		}
	}
	return o, nil
}

// Run drives the three loops until the context ends. Cancellation is
// a clean shutdown, not an error.
func (o *Orchestrator) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return o.batchLoop(ctx)
	})
	if o.realtime != nil {
		g.Go(func() error {
			return o.consumeItems(ctx, o.realtime)
		})
	}
	if o.edits != nil {
		g.Go(func() error {
			return o.consumeEdits(ctx, o.edits)
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// batchLoop runs one cycle immediately, then one per poll interval.
func (o *Orchestrator) batchLoop(ctx context.Context) error {
	if err := o.RunCycle(ctx); err != nil {
		return err
	}
	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := o.RunCycle(ctx); err != nil {
				return err
			}
		}
	}
}

// consumeItems processes realtime items as they arrive.
func (o *Orchestrator) consumeItems(ctx context.Context, q *source.Queue) error {
	for {
		item, err := q.Pop(ctx)
		if err != nil {
			if errors.Is(err, source.ErrQueueClosed) {
				return nil
			}
			return err
		}
		if err := o.ProcessItem(ctx, item); err != nil {
			o.counter.add(func(s *Stats) { s.Errors++ })
			o.logger.Error("failed to process realtime item", "id", item.Id, "err", err)
		}
	}
}

// consumeEdits processes edited items as they arrive.
func (o *Orchestrator) consumeEdits(ctx context.Context, q *source.Queue) error {
	for {
		item, err := q.Pop(ctx)
		if err != nil {
			if errors.Is(err, source.ErrQueueClosed) {
				return nil
			}
			return err
		}
		if err := o.ProcessEdit(ctx, item); err != nil {
			o.counter.add(func(s *Stats) { s.Errors++ })
			o.logger.Error("failed to process edit", "id", item.Id, "err", err)
		}
	}
}

// RunCycle executes one batch cycle: run retention and retry-age
// cleanup, advance the retry clock, poll all sources, fold in due
// retries and process everything oldest first.
func (o *Orchestrator) RunCycle(ctx context.Context) error {
	o.runMaintenance(ctx)

	cycle := o.retries.AdvanceCycle()
	o.counter.add(func(s *Stats) { s.Cycles++ })
	o.logger.Debug("starting cycle", "cycle", cycle)

	items := o.pollAll(ctx)

	due, err := o.retries.Due(ctx)
	if err != nil {
		o.logger.Error("failed to load due retries", "err", err)
	}
	for _, entry := range due {
		item := entry.Item
		items = append(items, &item)
	}

	// Oldest first; items without a timestamp sort earliest.
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Timestamp < items[j].Timestamp
	})

	for _, item := range items {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := o.ProcessItem(ctx, item); err != nil {
			o.counter.add(func(s *Stats) { s.Errors++ })
			o.logger.Error("failed to process item", "id", item.Id, "err", err)
		}
	}

	return ctx.Err()
}

// pollAll queries every poller concurrently. A failing poller loses
// its cycle, not anyone else's.
func (o *Orchestrator) pollAll(ctx context.Context) []*core.ContentItem {
	var (
		mu    sync.Mutex
		items []*core.ContentItem
		wg    sync.WaitGroup
	)
	for _, poller := range o.pollers {
		poller := poller
		wg.Add(1)
		task := func() {
			defer wg.Done()
			since, err := o.state.Cursor(ctx, poller.Name())
			if err != nil {
				o.logger.Error("failed to read cursor", "source", poller.Name(), "err", err)
				return
			}
			polled, err := poller.Poll(ctx, since)
			if err != nil {
				o.logger.Error("poller failed", "source", poller.Name(), "err", err)
				return
			}
			mu.Lock()
			items = append(items, polled...)
			mu.Unlock()
		}
		if err := o.pollPool.Submit(task); err != nil {
			task()
		}
	}
	wg.Wait()
	o.counter.add(func(s *Stats) { s.Polled += len(items) })
	return items
}

// ProcessItem runs one item through the full flow. A failed media
// extraction queues the item for retry; any other collaborator
// failure is terminal for the cycle and counted, never marked
// processed. Both return nil; the error return is for unrecoverable
// storage trouble.
func (o *Orchestrator) ProcessItem(ctx context.Context, item *core.ContentItem) error {
	if item == nil || item.Id == "" {
		return core.ErrEmptyItemId
	}
	o.itemMu.Lock()
	defer o.itemMu.Unlock()

	processed, err := o.state.IsProcessed(ctx, item.Id)
	if err != nil {
		return err
	}
	if processed {
		o.counter.add(func(s *Stats) { s.Skipped++ })
		o.cleanupMedia(item)
		return o.retries.Remove(ctx, item.Id, retrying.ReasonAlreadyProcessed)
	}

	content := item.FullText
	if content == "" {
		content = item.Content
	}

	// Image-only items have no text to embed until extraction runs,
	// so they get it up front; everything else extracts only once the
	// item is known to be novel.
	if content == "" && item.HasMedia {
		if item.OcrText == "" {
			text, err := o.extractor.ExtractText(ctx, item)
			if err != nil {
				// keep the media files around for the retry
				return o.queueRetry(ctx, item, "media extraction failed", err)
			}
			item.OcrText = text
		}
		content = item.OcrText
		if content == "" {
			content = media.ImagePlaceholder
		}
	}
	if content == "" {
		return o.failItem(item, "item has no content", nil)
	}

	vector, err := o.embedText(ctx, content)
	if err != nil {
		return o.failItem(item, "embedding failed", err)
	}

	verdict, err := o.index.Classify(ctx, vector)
	if err != nil {
		return err
	}

	if verdict.Kind == similarity.Duplicate {
		o.logger.Info("dropping duplicate item",
			"id", item.Id, "score", verdict.Match.Score, "preview", verdict.Match.Preview)
		o.cleanupMedia(item)
		commit := &storage.PublishCommit{ItemId: item.Id}
		applyCursor(commit, item)
		if err := o.state.CommitPublished(ctx, commit); err != nil {
			return err
		}
		o.counter.add(func(s *Stats) { s.Duplicates++ })
		return o.retries.Remove(ctx, item.Id, retrying.ReasonSuccess)
	}

	// indexed is what the stored embedding covers; merging extracted
	// text in sharpens future duplicate checks without changing what
	// gets published.
	indexed := content
	indexVector := vector

	category := o.lowSignalCategory
	if verdict.Kind == similarity.Similar {
		o.logger.Info("routing similar item to low-signal category",
			"id", item.Id, "score", verdict.Match.Score)
		o.counter.add(func(s *Stats) { s.Similar++ })
	} else {
		if item.HasMedia && item.OcrText == "" {
			text, err := o.extractor.ExtractText(ctx, item)
			if err != nil {
				// keep the media files around for the retry
				return o.queueRetry(ctx, item, "media extraction failed", err)
			}
			item.OcrText = text
		}
		if item.OcrText != "" && item.OcrText != content {
			indexed = media.MergeText(content, item.OcrText)
		}
		if indexed != content {
			indexVector, err = o.embedText(ctx, indexed)
			if err != nil {
				return o.failItem(item, "embedding failed", err)
			}
		}
		category, err = o.categorize(ctx, indexed)
		if err != nil {
			return o.failItem(item, "classification failed", err)
		}
	}
	o.cleanupMedia(item)

	toPublish := *item
	toPublish.Content = content
	result, err := o.publishItem(ctx, &toPublish, category)
	if err != nil {
		return o.failItem(item, "publish failed", err)
	}

	commit := &storage.PublishCommit{
		ItemId:  item.Id,
		Content: indexed,
		Vector:  indexVector,
		Mapping: &core.MessageMapping{
			ItemId:          item.Id,
			SourceMessageId: item.SourceMessageId,
			ChannelId:       result.ChannelId,
			MessageId:       result.MessageId,
			Content:         content,
			SourceUrl:       item.Link,
			Category:        category,
			VideoRefs:       item.VideoRefs,
		},
	}
	applyCursor(commit, item)
	if err := o.state.CommitPublished(ctx, commit); err != nil {
		return err
	}
	o.counter.add(func(s *Stats) {
		s.Published++
		if s.ByCategory == nil {
			s.ByCategory = make(map[string]int)
		}
		s.ByCategory[category]++
	})
	o.logger.Info("published item", "id", item.Id, "category", category)
	return o.retries.Remove(ctx, item.Id, retrying.ReasonSuccess)
}

// ProcessEdit re-embeds and re-publishes an edited item that was
// already published. Items never published are ignored.
func (o *Orchestrator) ProcessEdit(ctx context.Context, item *core.ContentItem) error {
	if item == nil || item.Id == "" {
		return core.ErrEmptyItemId
	}
	o.itemMu.Lock()
	defer o.itemMu.Unlock()

	mapping, err := o.state.GetMapping(ctx, item.Id)
	if errors.Is(err, storage.ErrNotFound) {
		o.logger.Debug("edit for unpublished item ignored", "id", item.Id)
		return nil
	}
	if err != nil {
		return err
	}

	if item.HasMedia && item.OcrText == "" {
		text, err := o.extractor.ExtractText(ctx, item)
		if err != nil {
			o.logger.Warn("media extraction failed on edit", "id", item.Id, "err", err)
		} else {
			item.OcrText = text
		}
	}
	o.cleanupMedia(item)

	content := item.FullText
	if content == "" {
		content = item.Content
	}
	content = media.MergeText(content, item.OcrText)
	if content == "" || content == mapping.Content {
		return nil
	}

	vector, err := o.embedText(ctx, content)
	if err != nil {
		return err
	}

	// swap the embedding; ledger and mapping id stay put
	if err := o.state.RemoveEmbeddingsFor(ctx, item.Id); err != nil {
		return err
	}
	if _, err := o.index.Remember(ctx, content, vector, item.Id); err != nil {
		return err
	}

	if err := o.publisher.Edit(ctx, mapping.ChannelId, mapping.MessageId, content); err != nil {
		// the durable state already reflects the edit; the sink copy
		// is stale until the next edit
		o.logger.Warn("failed to edit sink message",
			"id", item.Id, "message_id", mapping.MessageId, "err", err)
	}

	if err := o.state.UpdateMappingContent(ctx, item.Id, content, time.Now().Unix()); err != nil {
		return err
	}
	o.counter.add(func(s *Stats) { s.Edited++ })
	o.logger.Info("applied edit", "id", item.Id)
	return nil
}

// Stats returns a snapshot of the pipeline counters.
func (o *Orchestrator) Stats() Stats {
	return o.counter.snapshot()
}

// Release frees the poll worker pool. The orchestrator must not be
// used afterwards.
func (o *Orchestrator) Release() {
	if o.pollPool != nil {
		o.pollPool.Release()
	}
}

// embedText computes the embedding under the call timeout and retry
// policy.
func (o *Orchestrator) embedText(ctx context.Context, content string) ([]float32, error) {
	cctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	return o.embedExec.WithContext(cctx).Get(func() ([]float32, error) {
		return o.embedder.EmbedText(cctx, content)
	})
}

// categorize classifies content under the call timeout and retry policy.
func (o *Orchestrator) categorize(ctx context.Context, content string) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	return o.classifyExec.WithContext(cctx).Get(func() (string, error) {
		return o.classifier.Categorize(cctx, content)
	})
}

// publishItem sends the item to the sink under the call timeout and
// retry policy.
func (o *Orchestrator) publishItem(ctx context.Context, item *core.ContentItem, category string) (*publish.Result, error) {
	cctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	return o.publishExec.WithContext(cctx).Get(func() (*publish.Result, error) {
		return o.publisher.Publish(cctx, item, category)
	})
}

// cleanupMedia drops downloaded media files once their text has been
// extracted or the item has reached a terminal state.
func (o *Orchestrator) cleanupMedia(item *core.ContentItem) {
	if len(item.MediaFiles) == 0 {
		return
	}
	if err := media.CleanupItem(item); err != nil {
		o.logger.Warn("failed to clean up media files", "id", item.Id, "err", err)
	}
}

// failItem records a terminal per-item failure: the call-site retries
// are already spent, so log it, count it and drop the item without
// marking it processed. It lands again on the next poll.
func (o *Orchestrator) failItem(item *core.ContentItem, reason string, cause error) error {
	o.cleanupMedia(item)
	o.logger.Error("dropping item", "id", item.Id, "reason", reason, "err", cause)
	o.counter.add(func(s *Stats) { s.Errors++ })
	return nil
}

// queueRetry handles a failed media extraction, the one failure class
// that is retried across cycles: log it, queue the item, count it.
// Only storage trouble propagates.
func (o *Orchestrator) queueRetry(ctx context.Context, item *core.ContentItem, reason string, cause error) error {
	o.logger.Warn("recoverable failure, queueing retry",
		"id", item.Id, "reason", reason, "err", cause)
	queued, err := o.retries.Add(ctx, item, reason)
	if err != nil {
		return err
	}
	if queued {
		o.counter.add(func(s *Stats) { s.Queued++ })
	}
	return nil
}

// runMaintenance runs retention cleanup, retry-age expiry and the
// registered hooks. It runs at the top of every batch cycle.
func (o *Orchestrator) runMaintenance(ctx context.Context) {
	if removed, err := o.state.CleanupOlderThan(ctx, o.retention); err != nil {
		o.logger.Error("retention cleanup failed", "err", err)
	} else if removed > 0 {
		o.logger.Info("retention cleanup done", "removed", removed)
	}
	if removed, err := o.retries.CleanupExpired(ctx, o.retryMaxAgeHours); err != nil {
		o.logger.Error("retry expiry failed", "err", err)
	} else if removed > 0 {
		o.logger.Info("expired queued retries", "removed", removed)
	}
	for _, fn := range o.maintenance {
		if err := fn(ctx); err != nil {
			o.logger.Error("maintenance hook failed", "err", err)
		}
	}
}

// applyCursor advances the per-source cursor for items that track one.
func applyCursor(commit *storage.PublishCommit, item *core.ContentItem) {
	if item.TracksCursor() {
		commit.CursorSource = item.Source
		commit.CursorPos = item.SourceMessageId
	}
}
