package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/newswire/core"
)

func TestRetryRepositoryRoundtrip(t *testing.T) {
	ctx := context.Background()
	backend, err := NewMemoryBackend()
	require.NoError(t, err)
	defer backend.Close()
	repo := NewRetryRepository(backend)

	entries, err := repo.LoadRetryEntries(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)

	entry := &core.RetryEntry{
		Item: core.ContentItem{
			Id:         "twitter_feed_5",
			Source:     "feed",
			SourceType: core.SourceTwitter,
			Content:    "transient failure victim",
		},
		RetryCount:        1,
		FirstAttemptCycle: 10,
		LastAttemptCycle:  10,
		Reason:            "embedding service unavailable",
	}
	require.NoError(t, repo.PutRetryEntry(ctx, entry))

	entries, err = repo.LoadRetryEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	got := entries["twitter_feed_5"]
	require.NotNil(t, got)
	assert.Equal(t, 1, got.RetryCount)
	assert.Equal(t, "embedding service unavailable", got.Reason)

	// overwrite bumps the count in place
	entry.RetryCount = 2
	entry.LastAttemptCycle = 12
	require.NoError(t, repo.PutRetryEntry(ctx, entry))
	entries, err = repo.LoadRetryEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 2, entries["twitter_feed_5"].RetryCount)

	require.NoError(t, repo.DeleteRetryEntry(ctx, "twitter_feed_5"))
	require.NoError(t, repo.DeleteRetryEntry(ctx, "twitter_feed_5"))
	entries, err = repo.LoadRetryEntries(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRetryRepositoryRejectsEmptyId(t *testing.T) {
	backend, err := NewMemoryBackend()
	require.NoError(t, err)
	defer backend.Close()
	repo := NewRetryRepository(backend)

	err = repo.PutRetryEntry(context.Background(), &core.RetryEntry{})
	assert.ErrorIs(t, err, core.ErrEmptyItemId)
}
