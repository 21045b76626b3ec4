package storage

import (
	"testing"

	"github.com/poiesic/newswire/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalTimestamp(t *testing.T) {
	for _, ts := range []int64{0, 1, 1756166400, -5} {
		data := MarshalTimestamp(ts)
		require.NotEmpty(t, data)

		decoded, err := UnmarshalTimestamp(data)
		require.NoError(t, err)
		assert.Equal(t, ts, decoded)
	}
}

func TestUnmarshalTimestamp_Empty(t *testing.T) {
	_, err := UnmarshalTimestamp([]byte{})
	assert.Error(t, err)
}

func TestMarshalUnmarshalEmbeddingRecord(t *testing.T) {
	record := &core.EmbeddingRecord{
		Hash:         core.HashContent("breaking: markets rally"),
		Vector:       []float32{0.1, -0.25, 0.993},
		Timestamp:    1756166400,
		Preview:      "breaking: markets rally",
		LinkedItemId: "twitter_99812",
	}

	data := MarshalEmbeddingRecord(record)
	require.NotEmpty(t, data)

	decoded, err := UnmarshalEmbeddingRecord(data)
	require.NoError(t, err)
	assert.Equal(t, record, decoded)
}

func TestMarshalUnmarshalRetryEntry(t *testing.T) {
	entry := &core.RetryEntry{
		Item: core.ContentItem{
			Id:         "twitter_5512",
			Source:     "newswire",
			SourceType: core.SourceTwitter,
			Content:    "clip attached",
			Timestamp:  1756166400,
			HasMedia:   true,
			MediaType:  "video",
			VideoRefs:  []string{"https://example.com/v.mp4"},
		},
		RetryCount:        2,
		FirstAttemptCycle: 4,
		LastAttemptCycle:  6,
		Reason:            "extractor failed to fetch content",
	}

	data := MarshalRetryEntry(entry)
	require.NotEmpty(t, data)

	decoded, err := UnmarshalRetryEntry(data)
	require.NoError(t, err)
	assert.Equal(t, entry, decoded)
}

func TestMarshalUnmarshalVoteRecord(t *testing.T) {
	record := &core.VoteRecord{
		MessageId: "110044",
		Voters:    []string{"u1", "u2"},
		Timestamp: 1756166400,
		EntryId:   "telegram_chan_42",
		Content:   "low effort post",
		Category:  "crypto",
		ChannelId: "55001",
	}

	data := MarshalVoteRecord(record)
	require.NotEmpty(t, data)

	decoded, err := UnmarshalVoteRecord(data)
	require.NoError(t, err)
	assert.Equal(t, record, decoded)
}

func TestUnmarshalRemovedEntry_Truncated(t *testing.T) {
	entry := &core.RemovedEntry{
		EntryId:   "telegram_chan_42",
		Content:   "low effort post",
		Category:  "crypto",
		VoterIds:  []string{"u1", "u2"},
		RemovedAt: 1756166400,
	}

	data := MarshalRemovedEntry(entry)
	_, err := UnmarshalRemovedEntry(data[:len(data)/2])
	assert.Error(t, err)
}
