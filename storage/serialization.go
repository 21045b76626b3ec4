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


package storage

import (
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/newswire/core"
)

// MarshalTimestamp serializes a unix-seconds timestamp to bytes.
func MarshalTimestamp(ts int64) []byte {
	buf := make([]byte, varint.Int64.Size(ts))
	varint.Int64.Marshal(ts, buf)
	return buf
}

// UnmarshalTimestamp deserializes a unix-seconds timestamp from bytes.
func UnmarshalTimestamp(data []byte) (int64, error) {
	ts, _, err := varint.Int64.Unmarshal(data)
	return ts, err
}

// MarshalEmbeddingRecord serializes an EmbeddingRecord to bytes.
func MarshalEmbeddingRecord(record *core.EmbeddingRecord) []byte {
	buf := make([]byte, core.EmbeddingRecordMUS.Size(*record))
	core.EmbeddingRecordMUS.Marshal(*record, buf)
	return buf
}

// UnmarshalEmbeddingRecord deserializes an EmbeddingRecord from bytes.
func UnmarshalEmbeddingRecord(data []byte) (*core.EmbeddingRecord, error) {
	record, _, err := core.EmbeddingRecordMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// MarshalMessageMapping serializes a MessageMapping to bytes.
func MarshalMessageMapping(mapping *core.MessageMapping) []byte {
	buf := make([]byte, core.MessageMappingMUS.Size(*mapping))
	core.MessageMappingMUS.Marshal(*mapping, buf)
	return buf
}

// UnmarshalMessageMapping deserializes a MessageMapping from bytes.
func UnmarshalMessageMapping(data []byte) (*core.MessageMapping, error) {
	mapping, _, err := core.MessageMappingMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &mapping, nil
}

// MarshalRetryEntry serializes a RetryEntry to bytes.
func MarshalRetryEntry(entry *core.RetryEntry) []byte {
	buf := make([]byte, core.RetryEntryMUS.Size(*entry))
	core.RetryEntryMUS.Marshal(*entry, buf)
	return buf
}

// UnmarshalRetryEntry deserializes a RetryEntry from bytes.
func UnmarshalRetryEntry(data []byte) (*core.RetryEntry, error) {
	entry, _, err := core.RetryEntryMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// MarshalVoteRecord serializes a VoteRecord to bytes.
func MarshalVoteRecord(record *core.VoteRecord) []byte {
	buf := make([]byte, core.VoteRecordMUS.Size(*record))
	core.VoteRecordMUS.Marshal(*record, buf)
	return buf
}

// UnmarshalVoteRecord deserializes a VoteRecord from bytes.
func UnmarshalVoteRecord(data []byte) (*core.VoteRecord, error) {
	record, _, err := core.VoteRecordMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// MarshalRemovedEntry serializes a RemovedEntry to bytes.
func MarshalRemovedEntry(entry *core.RemovedEntry) []byte {
	buf := make([]byte, core.RemovedEntryMUS.Size(*entry))
	core.RemovedEntryMUS.Marshal(*entry, buf)
	return buf
}

// UnmarshalRemovedEntry deserializes a RemovedEntry from bytes.
func UnmarshalRemovedEntry(data []byte) (*core.RemovedEntry, error) {
	entry, _, err := core.RemovedEntryMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}
