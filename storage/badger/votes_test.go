package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/newswire/core"
	"github.com/poiesic/newswire/storage"
)

func newTestVotes(t *testing.T) *VoteRepository {
	t.Helper()
	backend, err := NewMemoryBackend()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	return NewVoteRepository(backend)
}

func TestVoteRecordRoundtrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestVotes(t)

	_, err := repo.GetVoteRecord(ctx, "msg-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	record := &core.VoteRecord{
		MessageId: "msg-1",
		Voters:    []string{"mod-a"},
		EntryId:   "telegram_chan_3",
		Content:   "disputed story",
		Category:  "defi",
		ChannelId: "news",
	}
	require.NoError(t, repo.PutVoteRecord(ctx, record))
	assert.NotZero(t, record.Timestamp)

	got, err := repo.GetVoteRecord(ctx, "msg-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"mod-a"}, got.Voters)
	assert.Equal(t, "telegram_chan_3", got.EntryId)

	require.NoError(t, repo.DeleteVoteRecord(ctx, "msg-1"))
	err = repo.DeleteVoteRecord(ctx, "msg-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestVoteCleanup(t *testing.T) {
	ctx := context.Background()
	repo := newTestVotes(t)

	old := &core.VoteRecord{
		MessageId: "old-msg",
		Voters:    []string{"mod-a"},
		Timestamp: time.Now().Add(-72 * time.Hour).Unix(),
	}
	fresh := &core.VoteRecord{
		MessageId: "fresh-msg",
		Voters:    []string{"mod-b"},
	}
	require.NoError(t, repo.PutVoteRecord(ctx, old))
	require.NoError(t, repo.PutVoteRecord(ctx, fresh))

	removed, err := repo.CleanupVotesOlderThan(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = repo.GetVoteRecord(ctx, "old-msg")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = repo.GetVoteRecord(ctx, "fresh-msg")
	require.NoError(t, err)
}

func TestVoteRejectsEmptyMessageId(t *testing.T) {
	repo := newTestVotes(t)
	err := repo.PutVoteRecord(context.Background(), &core.VoteRecord{})
	assert.ErrorIs(t, err, core.ErrEmptyMessageId)
}
