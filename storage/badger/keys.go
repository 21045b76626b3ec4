package badger

import (
	"encoding/binary"
	"fmt"
)

// Key prefixes for the independently persisted maps
const (
	ledgerPrefix        = "led"
	embeddingPrefix     = "emb"
	embeddingHashPrefix = "ebh"
	embeddingSeqName    = "embseq"
	mappingPrefix       = "map"
	cursorPrefix        = "cur"
	retryPrefix         = "rty"
	votePrefix          = "vot"
	removedPrefix       = "rem"
	removedSeqName      = "remseq"
)

// makeLedgerKey generates a key for a processed-item ledger entry.
func makeLedgerKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", ledgerPrefix, id))
}

// makeEmbeddingKey generates a key for an embedding record by insertion
// sequence. The sequence is written in BigEndian order so lexicographic
// iteration visits records in insertion order.
func makeEmbeddingKey(seq uint64) []byte {
	prefix := embeddingPrefix + ":"
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], seq)
	return buf
}

// makeEmbeddingHashKey generates the hash-index key pointing at an
// embedding record's sequence slot.
func makeEmbeddingHashKey(hash string) []byte {
	return []byte(fmt.Sprintf("%s:%s", embeddingHashPrefix, hash))
}

// makeMappingKey generates a key for a message mapping by item id.
func makeMappingKey(itemId string) []byte {
	return []byte(fmt.Sprintf("%s:%s", mappingPrefix, itemId))
}

// makeCursorKey generates a key for a per-source last-seen cursor.
func makeCursorKey(source string) []byte {
	return []byte(fmt.Sprintf("%s:%s", cursorPrefix, source))
}

// makeRetryKey generates a key for a retry queue entry by item id.
func makeRetryKey(itemId string) []byte {
	return []byte(fmt.Sprintf("%s:%s", retryPrefix, itemId))
}

// makeVoteKey generates a key for a vote record by published message id.
func makeVoteKey(messageId string) []byte {
	return []byte(fmt.Sprintf("%s:%s", votePrefix, messageId))
}

// makeRemovedKey generates a key for an archived removed entry by
// insertion sequence, BigEndian for ordered iteration.
func makeRemovedKey(seq uint64) []byte {
	prefix := removedPrefix + ":"
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], seq)
	return buf
}
