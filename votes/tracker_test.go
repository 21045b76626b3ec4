package votes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/newswire/core"
	badgerstore "github.com/poiesic/newswire/storage/badger"
)

func newTestTracker(t *testing.T) *Tracker {
	t.Helper()
	backend, err := badgerstore.NewMemoryBackend()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	return NewTracker(badgerstore.NewVoteRepository(backend))
}

func TestAddVoteCountsUniqueVoters(t *testing.T) {
	ctx := context.Background()
	tracker := newTestTracker(t)

	vote := &Vote{
		MessageId: "msg-1",
		VoterId:   "mod-a",
		EntryId:   "telegram_chan_1",
		Content:   "contested story",
		Category:  "defi",
		ChannelId: "news",
	}
	record, counted, err := tracker.AddVote(ctx, vote)
	require.NoError(t, err)
	assert.True(t, counted)
	assert.Len(t, record.Voters, 1)

	// same voter again does not count
	record, counted, err = tracker.AddVote(ctx, vote)
	require.NoError(t, err)
	assert.False(t, counted)
	assert.Len(t, record.Voters, 1)

	// a different voter does
	vote2 := &Vote{MessageId: "msg-1", VoterId: "mod-b"}
	record, counted, err = tracker.AddVote(ctx, vote2)
	require.NoError(t, err)
	assert.True(t, counted)
	assert.Len(t, record.Voters, 2)

	// metadata pinned by the first vote survives
	assert.Equal(t, "telegram_chan_1", record.EntryId)
	assert.Equal(t, "contested story", record.Content)
}

func TestAddVoteValidation(t *testing.T) {
	ctx := context.Background()
	tracker := newTestTracker(t)

	_, _, err := tracker.AddVote(ctx, &Vote{VoterId: "mod-a"})
	assert.ErrorIs(t, err, core.ErrEmptyMessageId)

	_, _, err = tracker.AddVote(ctx, &Vote{MessageId: "msg-1"})
	assert.ErrorIs(t, err, core.ErrEmptyVoterId)
}

func TestRemoveTrackingIsIdempotent(t *testing.T) {
	ctx := context.Background()
	tracker := newTestTracker(t)

	_, _, err := tracker.AddVote(ctx, &Vote{MessageId: "msg-1", VoterId: "mod-a"})
	require.NoError(t, err)

	require.NoError(t, tracker.RemoveTracking(ctx, "msg-1"))
	require.NoError(t, tracker.RemoveTracking(ctx, "msg-1"))
}
