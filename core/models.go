package core

import (
	"encoding/hex"

	"github.com/go-crypt/x/blake2b"
)

// SourceType identifies the kind of feed an item was ingested from.
type SourceType string

const (
	// SourceTwitter is content ingested from a Twitter RSS bridge.
	SourceTwitter SourceType = "twitter"
	// SourceTelegram is content ingested from a Telegram channel.
	SourceTelegram SourceType = "telegram"
)

// HashContent generates a deterministic hash key from text content using
// BLAKE2b. Identical content always maps to the same embedding record.
func HashContent(text string) string {
	h, _ := blake2b.New(16, nil)
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// ContentItem is one unit of ingested content. It is produced by a feed
// poller, consumed exactly once by the pipeline and discarded afterwards
// (or re-queued through the retry queue).
type ContentItem struct {
	Id              string // globally unique, encodes source type and source-local id
	Source          string // feed or channel name the item came from
	SourceType      SourceType
	Content         string
	Timestamp       int64 // seconds since epoch, 0 when the source provided none
	Link            string
	SourceMessageId int64 // source-local numeric message id, 0 when absent
	HasMedia        bool
	MediaType       string
	MediaFiles      []string // local paths populated by the media extractor
	VideoRefs       []string
	OcrText         string // text extracted from images, populated by the extractor
	FullText        string // richer text the extractor recovered, replaces Content when set
}

// TracksCursor reports whether a processed item should advance the
// per-source "last seen" cursor. Sources without numeric message ids
// (RSS) never do.
func (i *ContentItem) TracksCursor() bool {
	return i.Source != "" && i.SourceMessageId > 0
}

// EmbeddingRecord stores one embedding per distinct content hash, used
// for duplicate and similarity detection.
type EmbeddingRecord struct {
	Hash         string
	Vector       []float32
	Timestamp    int64
	Preview      string // first 100 chars of the content, for log output
	LinkedItemId string // ledger/mapping id the vector was stored for
}

// SimilarityMatch is the result of a threshold similarity lookup.
type SimilarityMatch struct {
	Hash    string
	Score   float64
	Preview string
}

// MessageMapping tracks the published artifact for a processed item so
// it can later be edited, re-categorized or removed.
type MessageMapping struct {
	ItemId          string
	SourceMessageId int64
	ChannelId       string // sink channel the item was published to
	MessageId       string // sink message id
	Content         string
	SourceUrl       string
	Category        string
	VideoRefs       []string
	Timestamp       int64
}

// RetryEntry is a queued item that failed a recoverable step.
// RetryCount never decreases.
type RetryEntry struct {
	Item              ContentItem
	RetryCount        int
	FirstAttemptCycle int
	LastAttemptCycle  int
	Reason            string
}

// VoteRecord counts unique moderator votes against one published message.
// Each voter id appears at most once.
type VoteRecord struct {
	MessageId string
	Voters    []string
	Timestamp int64
	EntryId   string
	Content   string
	Category  string
	ChannelId string
}

// HasVoter reports whether the given voter already voted on this record.
func (r *VoteRecord) HasVoter(voterId string) bool {
	for _, v := range r.Voters {
		if v == voterId {
			return true
		}
	}
	return false
}

// RemovedEntry is an append-only archive record of a moderator-removed
// item. Never mutated after creation.
type RemovedEntry struct {
	EntryId   string
	Content   string
	Category  string
	VoterIds  []string
	RemovedAt int64
	MessageId string
	ChannelId string
	SourceUrl string
}

// StoreStats reports current sizes of the persisted maps.
type StoreStats struct {
	ProcessedIds int
	Embeddings   int
	Mappings     int
}
