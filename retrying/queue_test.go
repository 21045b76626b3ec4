package retrying

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/newswire/core"
	badgerstore "github.com/poiesic/newswire/storage/badger"
)

func newTestQueue(t *testing.T, opts ...Option) (*Queue, *badgerstore.RetryRepository) {
	t.Helper()
	backend, err := badgerstore.NewMemoryBackend()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	repo := badgerstore.NewRetryRepository(backend)
	q, err := NewQueue(context.Background(), repo, opts...)
	require.NoError(t, err)
	return q, repo
}

func testItem(id string) *core.ContentItem {
	return &core.ContentItem{
		Id:         id,
		Source:     "feed",
		SourceType: core.SourceTwitter,
		Content:    "content for " + id,
	}
}

func TestQueueAddAndDueAfterDelay(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	queued, err := q.Add(ctx, testItem("a"), "embedding service unavailable")
	require.NoError(t, err)
	assert.True(t, queued)
	assert.True(t, q.Contains("a"))

	// not due until the delay has elapsed
	due, err := q.Due(ctx)
	require.NoError(t, err)
	assert.Empty(t, due)

	q.AdvanceCycle()
	due, err = q.Due(ctx)
	require.NoError(t, err)
	assert.Empty(t, due)

	q.AdvanceCycle()
	due, err = q.Due(ctx)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "a", due[0].Item.Id)

	// handing out restarts the delay
	due, err = q.Due(ctx)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestQueueEvictsAfterMaxRetries(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	item := testItem("b")
	for attempt := 1; attempt <= DefaultMaxRetries; attempt++ {
		queued, err := q.Add(ctx, item, "publish failed")
		require.NoError(t, err)
		assert.True(t, queued, "attempt %d should stay queued", attempt)
	}

	// the attempt past the budget evicts
	queued, err := q.Add(ctx, item, "publish failed")
	require.NoError(t, err)
	assert.False(t, queued)
	assert.False(t, q.Contains("b"))
}

func TestQueueRemoveReasons(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	_, err := q.Add(ctx, testItem("c"), "classifier timeout")
	require.NoError(t, err)

	require.NoError(t, q.Remove(ctx, "c", ReasonSuccess))
	assert.False(t, q.Contains("c"))

	// removing a missing entry is a no-op
	require.NoError(t, q.Remove(ctx, "c", ReasonAlreadyProcessed))
}

func TestQueueCleanupExpired(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	_, err := q.Add(ctx, testItem("old"), "ocr failed")
	require.NoError(t, err)

	// one hour horizon is 12 cycles; push past it
	for i := 0; i <= DefaultCyclesPerHour; i++ {
		q.AdvanceCycle()
	}
	_, err = q.Add(ctx, testItem("fresh"), "ocr failed")
	require.NoError(t, err)

	removed, err := q.CleanupExpired(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.False(t, q.Contains("old"))
	assert.True(t, q.Contains("fresh"))
}

func TestQueueSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	q, repo := newTestQueue(t)

	_, err := q.Add(ctx, testItem("persisted"), "publish failed")
	require.NoError(t, err)

	// a second queue over the same repository sees the entry
	reloaded, err := NewQueue(ctx, repo)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.Len())
	assert.True(t, reloaded.Contains("persisted"))

	// restored entries wait out the delay against the new counter
	due, err := reloaded.Due(ctx)
	require.NoError(t, err)
	assert.Empty(t, due)
	reloaded.AdvanceCycle()
	reloaded.AdvanceCycle()
	due, err = reloaded.Due(ctx)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "persisted", due[0].Item.Id)
}

func TestQueueDueOrdersOldestFirst(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t, WithRetryDelay(1))

	_, err := q.Add(ctx, testItem("first"), "x")
	require.NoError(t, err)
	q.AdvanceCycle()
	_, err = q.Add(ctx, testItem("second"), "x")
	require.NoError(t, err)
	q.AdvanceCycle()

	due, err := q.Due(ctx)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "first", due[0].Item.Id)
	assert.Equal(t, "second", due[1].Item.Id)
}
