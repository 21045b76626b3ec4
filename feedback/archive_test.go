package feedback

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/newswire/core"
	"github.com/poiesic/newswire/storage"
	badgerstore "github.com/poiesic/newswire/storage/badger"
)

func newTestArchive(t *testing.T, opts ...Option) (*Archive, *badgerstore.ArchiveRepository) {
	t.Helper()
	_, _, _, repo, backend, err := badgerstore.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		repo.Close()
		backend.Close()
	})
	return NewArchive(repo, opts...), repo
}

func TestContentPreviewsTruncatesAndOrders(t *testing.T) {
	ctx := context.Background()
	archive, repo := newTestArchive(t)

	now := time.Now().Unix()
	long := strings.Repeat("x", 300)
	require.NoError(t, repo.AppendRemovedEntry(ctx, &core.RemovedEntry{
		EntryId: "older", Content: "short removal", RemovedAt: now - 10,
	}))
	require.NoError(t, repo.AppendRemovedEntry(ctx, &core.RemovedEntry{
		EntryId: "newer", Content: long, RemovedAt: now,
	}))

	previews, err := archive.ContentPreviews(ctx, 10, 200)
	require.NoError(t, err)
	require.Len(t, previews, 2)
	assert.Equal(t, strings.Repeat("x", 200)+"...", previews[0])
	assert.Equal(t, "short removal", previews[1])
}

func TestContentPreviewsLimit(t *testing.T) {
	ctx := context.Background()
	archive, repo := newTestArchive(t)

	now := time.Now().Unix()
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.AppendRemovedEntry(ctx, &core.RemovedEntry{
			EntryId: "entry", Content: "c", RemovedAt: now + int64(i),
		}))
	}
	previews, err := archive.ContentPreviews(ctx, 3, 50)
	require.NoError(t, err)
	assert.Len(t, previews, 3)
}

func TestRestoreRemovesFromArchive(t *testing.T) {
	ctx := context.Background()
	archive, repo := newTestArchive(t)

	require.NoError(t, repo.AppendRemovedEntry(ctx, &core.RemovedEntry{
		EntryId: "entry-1", Content: "bring me back", Category: "macro",
	}))

	entry, err := archive.Restore(ctx, "entry-1")
	require.NoError(t, err)
	assert.Equal(t, "bring me back", entry.Content)

	_, err = archive.Find(ctx, "entry-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = archive.Restore(ctx, "entry-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPurgeHonorsRetention(t *testing.T) {
	ctx := context.Background()
	archive, repo := newTestArchive(t, WithRetention(30*24*time.Hour))

	require.NoError(t, repo.AppendRemovedEntry(ctx, &core.RemovedEntry{
		EntryId:   "stale",
		RemovedAt: time.Now().Add(-31 * 24 * time.Hour).Unix(),
	}))
	require.NoError(t, repo.AppendRemovedEntry(ctx, &core.RemovedEntry{
		EntryId: "kept",
	}))

	removed, err := archive.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	stats, err := archive.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
}

func TestStatsGroupsByCategory(t *testing.T) {
	ctx := context.Background()
	archive, repo := newTestArchive(t)

	for _, category := range []string{"meme", "meme", "macro"} {
		require.NoError(t, repo.AppendRemovedEntry(ctx, &core.RemovedEntry{
			EntryId: "e", Category: category,
		}))
	}
	require.NoError(t, repo.AppendRemovedEntry(ctx, &core.RemovedEntry{
		EntryId: "old", Category: "macro",
		RemovedAt: time.Now().Add(-8 * 24 * time.Hour).Unix(),
	}))

	stats, err := archive.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 2, stats.ByCategory["meme"])
	assert.Equal(t, 2, stats.ByCategory["macro"])
	assert.Equal(t, 3, stats.LastWeek)
}
