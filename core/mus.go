package core

import (
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// Hand-written MUS serializers for every record the store persists.
// Field order is part of the on-disk format; append new fields at the
// end and never reorder.

var (
	float32SliceMUS = ord.NewSliceSer[float32](raw.Float32)
	stringSliceMUS  = ord.NewSliceSer[string](ord.String)
)

// ContentItemMUS serializes ContentItem values.
var ContentItemMUS = contentItemMUS{}

type contentItemMUS struct{}

func (s contentItemMUS) Marshal(v ContentItem, bs []byte) (n int) {
	n = ord.String.Marshal(v.Id, bs)
	n += ord.String.Marshal(v.Source, bs[n:])
	n += ord.String.Marshal(string(v.SourceType), bs[n:])
	n += ord.String.Marshal(v.Content, bs[n:])
	n += varint.Int64.Marshal(v.Timestamp, bs[n:])
	n += ord.String.Marshal(v.Link, bs[n:])
	n += varint.Int64.Marshal(v.SourceMessageId, bs[n:])
	n += ord.Bool.Marshal(v.HasMedia, bs[n:])
	n += ord.String.Marshal(v.MediaType, bs[n:])
	n += stringSliceMUS.Marshal(v.MediaFiles, bs[n:])
	n += stringSliceMUS.Marshal(v.VideoRefs, bs[n:])
	n += ord.String.Marshal(v.OcrText, bs[n:])
	n += ord.String.Marshal(v.FullText, bs[n:])
	return
}

func (s contentItemMUS) Unmarshal(bs []byte) (v ContentItem, n int, err error) {
	var n1 int
	v.Id, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	v.Source, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	var sourceType string
	sourceType, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.SourceType = SourceType(sourceType)
	v.Content, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Timestamp, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Link, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.SourceMessageId, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.HasMedia, n1, err = ord.Bool.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.MediaType, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.MediaFiles, n1, err = stringSliceMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.VideoRefs, n1, err = stringSliceMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.OcrText, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.FullText, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	return
}

func (s contentItemMUS) Size(v ContentItem) (size int) {
	size = ord.String.Size(v.Id)
	size += ord.String.Size(v.Source)
	size += ord.String.Size(string(v.SourceType))
	size += ord.String.Size(v.Content)
	size += varint.Int64.Size(v.Timestamp)
	size += ord.String.Size(v.Link)
	size += varint.Int64.Size(v.SourceMessageId)
	size += ord.Bool.Size(v.HasMedia)
	size += ord.String.Size(v.MediaType)
	size += stringSliceMUS.Size(v.MediaFiles)
	size += stringSliceMUS.Size(v.VideoRefs)
	size += ord.String.Size(v.OcrText)
	size += ord.String.Size(v.FullText)
	return
}

// EmbeddingRecordMUS serializes EmbeddingRecord values.
var EmbeddingRecordMUS = embeddingRecordMUS{}

type embeddingRecordMUS struct{}

func (s embeddingRecordMUS) Marshal(v EmbeddingRecord, bs []byte) (n int) {
	n = ord.String.Marshal(v.Hash, bs)
	n += float32SliceMUS.Marshal(v.Vector, bs[n:])
	n += varint.Int64.Marshal(v.Timestamp, bs[n:])
	n += ord.String.Marshal(v.Preview, bs[n:])
	n += ord.String.Marshal(v.LinkedItemId, bs[n:])
	return
}

func (s embeddingRecordMUS) Unmarshal(bs []byte) (v EmbeddingRecord, n int, err error) {
	var n1 int
	v.Hash, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	v.Vector, n1, err = float32SliceMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Timestamp, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Preview, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.LinkedItemId, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	return
}

func (s embeddingRecordMUS) Size(v EmbeddingRecord) (size int) {
	size = ord.String.Size(v.Hash)
	size += float32SliceMUS.Size(v.Vector)
	size += varint.Int64.Size(v.Timestamp)
	size += ord.String.Size(v.Preview)
	size += ord.String.Size(v.LinkedItemId)
	return
}

// MessageMappingMUS serializes MessageMapping values.
var MessageMappingMUS = messageMappingMUS{}

type messageMappingMUS struct{}

func (s messageMappingMUS) Marshal(v MessageMapping, bs []byte) (n int) {
	n = ord.String.Marshal(v.ItemId, bs)
	n += varint.Int64.Marshal(v.SourceMessageId, bs[n:])
	n += ord.String.Marshal(v.ChannelId, bs[n:])
	n += ord.String.Marshal(v.MessageId, bs[n:])
	n += ord.String.Marshal(v.Content, bs[n:])
	n += ord.String.Marshal(v.SourceUrl, bs[n:])
	n += ord.String.Marshal(v.Category, bs[n:])
	n += stringSliceMUS.Marshal(v.VideoRefs, bs[n:])
	n += varint.Int64.Marshal(v.Timestamp, bs[n:])
	return
}

func (s messageMappingMUS) Unmarshal(bs []byte) (v MessageMapping, n int, err error) {
	var n1 int
	v.ItemId, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	v.SourceMessageId, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.ChannelId, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.MessageId, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Content, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.SourceUrl, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Category, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.VideoRefs, n1, err = stringSliceMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Timestamp, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	return
}

func (s messageMappingMUS) Size(v MessageMapping) (size int) {
	size = ord.String.Size(v.ItemId)
	size += varint.Int64.Size(v.SourceMessageId)
	size += ord.String.Size(v.ChannelId)
	size += ord.String.Size(v.MessageId)
	size += ord.String.Size(v.Content)
	size += ord.String.Size(v.SourceUrl)
	size += ord.String.Size(v.Category)
	size += stringSliceMUS.Size(v.VideoRefs)
	size += varint.Int64.Size(v.Timestamp)
	return
}

// RetryEntryMUS serializes RetryEntry values.
var RetryEntryMUS = retryEntryMUS{}

type retryEntryMUS struct{}

func (s retryEntryMUS) Marshal(v RetryEntry, bs []byte) (n int) {
	n = ContentItemMUS.Marshal(v.Item, bs)
	n += varint.Int.Marshal(v.RetryCount, bs[n:])
	n += varint.Int.Marshal(v.FirstAttemptCycle, bs[n:])
	n += varint.Int.Marshal(v.LastAttemptCycle, bs[n:])
	n += ord.String.Marshal(v.Reason, bs[n:])
	return
}

func (s retryEntryMUS) Unmarshal(bs []byte) (v RetryEntry, n int, err error) {
	var n1 int
	v.Item, n, err = ContentItemMUS.Unmarshal(bs)
	if err != nil {
		return
	}
	v.RetryCount, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.FirstAttemptCycle, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.LastAttemptCycle, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Reason, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	return
}

func (s retryEntryMUS) Size(v RetryEntry) (size int) {
	size = ContentItemMUS.Size(v.Item)
	size += varint.Int.Size(v.RetryCount)
	size += varint.Int.Size(v.FirstAttemptCycle)
	size += varint.Int.Size(v.LastAttemptCycle)
	size += ord.String.Size(v.Reason)
	return
}

// VoteRecordMUS serializes VoteRecord values.
var VoteRecordMUS = voteRecordMUS{}

type voteRecordMUS struct{}

func (s voteRecordMUS) Marshal(v VoteRecord, bs []byte) (n int) {
	n = ord.String.Marshal(v.MessageId, bs)
	n += stringSliceMUS.Marshal(v.Voters, bs[n:])
	n += varint.Int64.Marshal(v.Timestamp, bs[n:])
	n += ord.String.Marshal(v.EntryId, bs[n:])
	n += ord.String.Marshal(v.Content, bs[n:])
	n += ord.String.Marshal(v.Category, bs[n:])
	n += ord.String.Marshal(v.ChannelId, bs[n:])
	return
}

func (s voteRecordMUS) Unmarshal(bs []byte) (v VoteRecord, n int, err error) {
	var n1 int
	v.MessageId, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	v.Voters, n1, err = stringSliceMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Timestamp, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.EntryId, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Content, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Category, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.ChannelId, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	return
}

func (s voteRecordMUS) Size(v VoteRecord) (size int) {
	size = ord.String.Size(v.MessageId)
	size += stringSliceMUS.Size(v.Voters)
	size += varint.Int64.Size(v.Timestamp)
	size += ord.String.Size(v.EntryId)
	size += ord.String.Size(v.Content)
	size += ord.String.Size(v.Category)
	size += ord.String.Size(v.ChannelId)
	return
}

// RemovedEntryMUS serializes RemovedEntry values.
var RemovedEntryMUS = removedEntryMUS{}

type removedEntryMUS struct{}

func (s removedEntryMUS) Marshal(v RemovedEntry, bs []byte) (n int) {
	n = ord.String.Marshal(v.EntryId, bs)
	n += ord.String.Marshal(v.Content, bs[n:])
	n += ord.String.Marshal(v.Category, bs[n:])
	n += stringSliceMUS.Marshal(v.VoterIds, bs[n:])
	n += varint.Int64.Marshal(v.RemovedAt, bs[n:])
	n += ord.String.Marshal(v.MessageId, bs[n:])
	n += ord.String.Marshal(v.ChannelId, bs[n:])
	n += ord.String.Marshal(v.SourceUrl, bs[n:])
	return
}

func (s removedEntryMUS) Unmarshal(bs []byte) (v RemovedEntry, n int, err error) {
	var n1 int
	v.EntryId, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	v.Content, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Category, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.VoterIds, n1, err = stringSliceMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.RemovedAt, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.MessageId, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.ChannelId, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.SourceUrl, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	return
}

func (s removedEntryMUS) Size(v RemovedEntry) (size int) {
	size = ord.String.Size(v.EntryId)
	size += ord.String.Size(v.Content)
	size += ord.String.Size(v.Category)
	size += stringSliceMUS.Size(v.VoterIds)
	size += varint.Int64.Size(v.RemovedAt)
	size += ord.String.Size(v.MessageId)
	size += ord.String.Size(v.ChannelId)
	size += ord.String.Size(v.SourceUrl)
	return
}
