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


// Package retrying queues items that failed a recoverable pipeline step
// and hands them back after a cycle-based delay. Time is measured in
// poll cycles, not wall clock, so a stopped process does not burn
// retry budget while down.
package retrying

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/poiesic/newswire/core"
	"github.com/poiesic/newswire/storage"
)

const (
	// DefaultMaxRetries is how many retry attempts an item gets
	// before eviction.
	DefaultMaxRetries = 3
	// DefaultRetryDelayCycles is how many cycles an item waits
	// between attempts.
	DefaultRetryDelayCycles = 2
	// DefaultCyclesPerHour converts wall-clock expiry horizons to
	// cycles, assuming the default five minute poll interval.
	DefaultCyclesPerHour = 12
)

// Eviction reasons recorded when an entry leaves the queue.
const (
	ReasonMaxRetries       = "max retries exceeded"
	ReasonExpired          = "expired"
	ReasonSuccess          = "success"
	ReasonAlreadyProcessed = "already processed"
)

// Queue is the in-memory retry queue, mirrored to a repository so
// queued items survive restarts. All methods are safe for concurrent
// use.
type Queue struct {
	repo   storage.RetryRepository
	logger *slog.Logger

	mu            sync.Mutex
	entries       map[string]*core.RetryEntry
	cycle         int
	maxRetries    int
	delayCycles   int
	cyclesPerHour int
}

// Option configures a Queue.
type Option func(*Queue)

// WithMaxRetries overrides the retry budget per item.
func WithMaxRetries(n int) Option {
	return func(q *Queue) { q.maxRetries = n }
}

// WithRetryDelay overrides the number of cycles between attempts.
func WithRetryDelay(cycles int) Option {
	return func(q *Queue) { q.delayCycles = cycles }
}

// WithCyclesPerHour overrides the hours-to-cycles conversion used for
// expiry, for pipelines polling on a non-default interval.
func WithCyclesPerHour(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.cyclesPerHour = n
		}
	}
}

// NewQueue creates a queue and loads any entries persisted by a
// previous run. Loaded entries keep their counts but their cycle
// fields are interpreted against the fresh counter, so they become
// due after the usual delay.
func NewQueue(ctx context.Context, repo storage.RetryRepository, opts ...Option) (*Queue, error) {
	q := &Queue{
		repo:          repo,
		logger:        slog.Default().With("component", "retry_queue"),
		entries:       make(map[string]*core.RetryEntry),
		maxRetries:    DefaultMaxRetries,
		delayCycles:   DefaultRetryDelayCycles,
		cyclesPerHour: DefaultCyclesPerHour,
	}
	for _, opt := range opts {
		opt(q)
	}

	persisted, err := repo.LoadRetryEntries(ctx)
	if err != nil {
		return nil, err
	}
	for id, entry := range persisted {
		entry.FirstAttemptCycle = 0
		entry.LastAttemptCycle = 0
		q.entries[id] = entry
	}
	if len(q.entries) > 0 {
		q.logger.Info("restored retry queue", "entries", len(q.entries))
	}
	return q, nil
}

// AdvanceCycle moves the queue one poll cycle forward and returns the
// new cycle number.
func (q *Queue) AdvanceCycle() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.cycle++
	return q.cycle
}

// CurrentCycle returns the current cycle number.
func (q *Queue) CurrentCycle() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.cycle
}

// Add queues an item after a recoverable failure, or bumps its attempt
// count if it is already queued. When the count passes the retry
// budget the item is evicted instead; Add then returns false.
func (q *Queue) Add(ctx context.Context, item *core.ContentItem, reason string) (bool, error) {
	if item == nil || item.Id == "" {
		return false, core.ErrEmptyItemId
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	entry, ok := q.entries[item.Id]
	if !ok {
		entry = &core.RetryEntry{
			Item:              *item,
			RetryCount:        1,
			FirstAttemptCycle: q.cycle,
			LastAttemptCycle:  q.cycle,
			Reason:            reason,
		}
		q.entries[item.Id] = entry
		if err := q.repo.PutRetryEntry(ctx, entry); err != nil {
			return false, err
		}
		q.logger.Info("queued item for retry",
			"id", item.Id, "reason", reason, "cycle", q.cycle)
		return true, nil
	}

	entry.RetryCount++
	entry.LastAttemptCycle = q.cycle
	entry.Reason = reason
	if entry.RetryCount > q.maxRetries {
		return false, q.evictLocked(ctx, item.Id, ReasonMaxRetries)
	}
	if err := q.repo.PutRetryEntry(ctx, entry); err != nil {
		return false, err
	}
	q.logger.Info("retry attempt recorded",
		"id", item.Id, "attempt", entry.RetryCount, "reason", reason)
	return true, nil
}

// Due returns entries whose delay has elapsed, oldest failures first,
// and stamps them with the current cycle so they wait out the full
// delay again before the next hand-out.
func (q *Queue) Due(ctx context.Context) ([]*core.RetryEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var due []*core.RetryEntry
	for _, entry := range q.entries {
		if q.cycle-entry.LastAttemptCycle >= q.delayCycles {
			due = append(due, entry)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].FirstAttemptCycle != due[j].FirstAttemptCycle {
			return due[i].FirstAttemptCycle < due[j].FirstAttemptCycle
		}
		return due[i].Item.Id < due[j].Item.Id
	})
	for _, entry := range due {
		entry.LastAttemptCycle = q.cycle
		if err := q.repo.PutRetryEntry(ctx, entry); err != nil {
			return nil, err
		}
	}
	return due, nil
}

// Remove evicts an item from the queue, recording why. Removing an
// absent item is a no-op.
func (q *Queue) Remove(ctx context.Context, itemId, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.entries[itemId]; !ok {
		return nil
	}
	return q.evictLocked(ctx, itemId, reason)
}

// CleanupExpired evicts entries that have been queued longer than
// maxAgeHours, converted to cycles. Returns the number evicted.
func (q *Queue) CleanupExpired(ctx context.Context, maxAgeHours int) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	maxCycles := maxAgeHours * q.cyclesPerHour
	var expired []string
	for id, entry := range q.entries {
		if q.cycle-entry.FirstAttemptCycle > maxCycles {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		if err := q.evictLocked(ctx, id, ReasonExpired); err != nil {
			return 0, err
		}
	}
	return len(expired), nil
}

// Contains reports whether an item is currently queued.
func (q *Queue) Contains(itemId string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.entries[itemId]
	return ok
}

// Len returns the number of queued entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// evictLocked removes an entry and its persisted copy. Callers hold
// the mutex.
func (q *Queue) evictLocked(ctx context.Context, itemId, reason string) error {
	delete(q.entries, itemId)
	if err := q.repo.DeleteRetryEntry(ctx, itemId); err != nil {
		return err
	}
	q.logger.Info("evicted from retry queue", "id", itemId, "reason", reason)
	return nil
}
