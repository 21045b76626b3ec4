package badger

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/poiesic/newswire/core"
	"github.com/poiesic/newswire/storage"
)

// previewLength is how much of the content is kept alongside an
// embedding for log output and similarity diagnostics.
const previewLength = 100

// StateRepository implements storage.StateRepository using BadgerDB.
// All writes go through a single mutex so the batch, realtime and edit
// loops never interleave partial updates.
type StateRepository struct {
	backend *Backend
	embSeq  *badgerdb.Sequence
	logger  *slog.Logger

	mu sync.Mutex
}

var _ storage.StateRepository = (*StateRepository)(nil)

// NewStateRepository creates a state repository on the given backend.
func NewStateRepository(backend *Backend) (*StateRepository, error) {
	seq, err := backend.GetSequence(embeddingSeqName)
	if err != nil {
		return nil, err
	}
	return &StateRepository{
		backend: backend,
		embSeq:  seq,
		logger:  slog.Default().With("component", "state_repository"),
	}, nil
}

// Close releases the embedding sequence. The backend itself is closed
// by its owner.
func (r *StateRepository) Close() error {
	return r.embSeq.Release()
}

// IsProcessed reports whether an item id exists in the ledger.
func (r *StateRepository) IsProcessed(ctx context.Context, id string) (bool, error) {
	if r.backend.IsClosed() {
		return false, storage.ErrStorageClosed
	}
	found := false
	err := r.backend.WithTx(func(tx *badgerdb.Txn) error {
		_, err := tx.Get(makeLedgerKey(id))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	}, false)
	return found, err
}

// MarkProcessed records an item id in the ledger with the current time.
func (r *StateRepository) MarkProcessed(ctx context.Context, id string) error {
	if id == "" {
		return core.ErrEmptyItemId
	}
	if r.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.backend.WithTx(func(tx *badgerdb.Txn) error {
		if err := tx.Set(makeLedgerKey(id), storage.MarshalTimestamp(time.Now().Unix())); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// AddEmbedding stores an embedding keyed by the content's hash and
// returns that hash. Identical content overwrites its existing record
// in place so its insertion-order slot is preserved.
func (r *StateRepository) AddEmbedding(ctx context.Context, content string, vector []float32, linkedItemId string) (string, error) {
	if r.backend.IsClosed() {
		return "", storage.ErrStorageClosed
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var hash string
	err := r.backend.WithTx(func(tx *badgerdb.Txn) error {
		var err error
		hash, err = r.putEmbedding(tx, content, vector, linkedItemId)
		if err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	return hash, err
}

// putEmbedding writes the embedding record and its hash index entry
// within an open transaction.
func (r *StateRepository) putEmbedding(tx *badgerdb.Txn, content string, vector []float32, linkedItemId string) (string, error) {
	hash := core.HashContent(content)
	hashKey := makeEmbeddingHashKey(hash)

	var seq uint64
	item, err := tx.Get(hashKey)
	switch {
	case err == nil:
		if err := item.Value(func(val []byte) error {
			seq = binary.BigEndian.Uint64(val)
			return nil
		}); err != nil {
			return "", err
		}
	case errors.Is(err, badgerdb.ErrKeyNotFound):
		seq, err = r.embSeq.Next()
		if err != nil {
			return "", err
		}
		seqVal := make([]byte, 8)
		binary.BigEndian.PutUint64(seqVal, seq)
		if err := tx.Set(hashKey, seqVal); err != nil {
			return "", err
		}
	default:
		return "", err
	}

	record := &core.EmbeddingRecord{
		Hash:         hash,
		Vector:       vector,
		Timestamp:    time.Now().Unix(),
		Preview:      makePreview(content),
		LinkedItemId: linkedItemId,
	}
	if err := tx.Set(makeEmbeddingKey(seq), storage.MarshalEmbeddingRecord(record)); err != nil {
		return "", err
	}
	return hash, nil
}

// FindSimilar scans stored embeddings in insertion order and returns
// the first record whose cosine similarity to the query vector reaches
// the threshold, or nil when none does.
func (r *StateRepository) FindSimilar(ctx context.Context, vector []float32, threshold float64) (*core.SimilarityMatch, error) {
	if r.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}

	var match *core.SimilarityMatch
	err := r.backend.WithTx(func(tx *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(embeddingPrefix + ":")
		it := tx.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var record *core.EmbeddingRecord
			if err := it.Item().Value(func(val []byte) error {
				var err error
				record, err = storage.UnmarshalEmbeddingRecord(val)
				return err
			}); err != nil {
				return err
			}
			score := cosineSimilarity(vector, record.Vector)
			if score >= threshold {
				match = &core.SimilarityMatch{
					Hash:    record.Hash,
					Score:   score,
					Preview: record.Preview,
				}
				return nil
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return match, nil
}

// StoreMapping stores or replaces the mapping for an item id.
func (r *StateRepository) StoreMapping(ctx context.Context, mapping *core.MessageMapping) error {
	if mapping == nil || mapping.ItemId == "" {
		return core.ErrEmptyItemId
	}
	if r.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	if mapping.Timestamp == 0 {
		mapping.Timestamp = time.Now().Unix()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.backend.WithTx(func(tx *badgerdb.Txn) error {
		if err := tx.Set(makeMappingKey(mapping.ItemId), storage.MarshalMessageMapping(mapping)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetMapping retrieves the mapping for an item id.
func (r *StateRepository) GetMapping(ctx context.Context, itemId string) (*core.MessageMapping, error) {
	if r.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}
	var mapping *core.MessageMapping
	err := r.backend.WithTx(func(tx *badgerdb.Txn) error {
		item, err := tx.Get(makeMappingKey(itemId))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			mapping, err = storage.UnmarshalMessageMapping(val)
			return err
		})
	}, false)
	if err != nil {
		return nil, err
	}
	return mapping, nil
}

// UpdateMappingContent replaces the content and timestamp of an
// existing mapping, preserving every other field.
func (r *StateRepository) UpdateMappingContent(ctx context.Context, itemId, content string, timestamp int64) error {
	if itemId == "" {
		return core.ErrEmptyItemId
	}
	if r.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	if timestamp == 0 {
		timestamp = time.Now().Unix()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.backend.WithTx(func(tx *badgerdb.Txn) error {
		item, err := tx.Get(makeMappingKey(itemId))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}
		var mapping *core.MessageMapping
		if err := item.Value(func(val []byte) error {
			mapping, err = storage.UnmarshalMessageMapping(val)
			return err
		}); err != nil {
			return err
		}
		mapping.Content = content
		mapping.Timestamp = timestamp
		if err := tx.Set(makeMappingKey(itemId), storage.MarshalMessageMapping(mapping)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// CommitPublished applies the ledger mark, embedding, mapping and
// cursor advance in one transaction.
func (r *StateRepository) CommitPublished(ctx context.Context, commit *storage.PublishCommit) error {
	if commit == nil || commit.ItemId == "" {
		return core.ErrEmptyItemId
	}
	if r.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.backend.WithTx(func(tx *badgerdb.Txn) error {
		now := time.Now().Unix()
		if err := tx.Set(makeLedgerKey(commit.ItemId), storage.MarshalTimestamp(now)); err != nil {
			return err
		}
		if commit.Vector != nil {
			if _, err := r.putEmbedding(tx, commit.Content, commit.Vector, commit.ItemId); err != nil {
				return err
			}
		}
		if commit.Mapping != nil {
			if commit.Mapping.Timestamp == 0 {
				commit.Mapping.Timestamp = now
			}
			if err := tx.Set(makeMappingKey(commit.Mapping.ItemId), storage.MarshalMessageMapping(commit.Mapping)); err != nil {
				return err
			}
		}
		if commit.CursorSource != "" {
			pos := make([]byte, 8)
			binary.BigEndian.PutUint64(pos, uint64(commit.CursorPos))
			if err := tx.Set(makeCursorKey(commit.CursorSource), pos); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// RemoveEntry deletes an item's ledger entry, mapping and embedding in
// one transaction. Missing pieces are skipped.
func (r *StateRepository) RemoveEntry(ctx context.Context, itemId, contentHash string) error {
	if r.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.backend.WithTx(func(tx *badgerdb.Txn) error {
		if itemId != "" {
			if err := tx.Delete(makeLedgerKey(itemId)); err != nil {
				return err
			}
			if err := tx.Delete(makeMappingKey(itemId)); err != nil {
				return err
			}
		}
		if contentHash != "" {
			hashKey := makeEmbeddingHashKey(contentHash)
			item, err := tx.Get(hashKey)
			switch {
			case err == nil:
				var seq uint64
				if err := item.Value(func(val []byte) error {
					seq = binary.BigEndian.Uint64(val)
					return nil
				}); err != nil {
					return err
				}
				if err := tx.Delete(makeEmbeddingKey(seq)); err != nil {
					return err
				}
				if err := tx.Delete(hashKey); err != nil {
					return err
				}
			case errors.Is(err, badgerdb.ErrKeyNotFound):
				// already gone
			default:
				return err
			}
		}
		if itemId != "" {
			// the stored embedding can cover OCR-merged text whose
			// hash differs from the mapping content, so sweep by
			// linked item id as well
			if err := deleteLinkedEmbeddings(tx, itemId); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// RemoveEmbeddingsFor deletes the embeddings linked to an item. The
// ledger entry and mapping stay put.
func (r *StateRepository) RemoveEmbeddingsFor(ctx context.Context, itemId string) error {
	if itemId == "" {
		return core.ErrEmptyItemId
	}
	if r.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.backend.WithTx(func(tx *badgerdb.Txn) error {
		if err := deleteLinkedEmbeddings(tx, itemId); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// deleteLinkedEmbeddings removes every embedding record linked to the
// item, along with its hash index entry, within an open transaction.
func deleteLinkedEmbeddings(tx *badgerdb.Txn, itemId string) error {
	opts := badgerdb.DefaultIteratorOptions
	opts.Prefix = []byte(embeddingPrefix + ":")
	it := tx.NewIterator(opts)
	defer it.Close()
	for it.Rewind(); it.Valid(); it.Next() {
		var record *core.EmbeddingRecord
		if err := it.Item().Value(func(val []byte) error {
			var err error
			record, err = storage.UnmarshalEmbeddingRecord(val)
			return err
		}); err != nil {
			return err
		}
		if record.LinkedItemId != itemId {
			continue
		}
		if err := tx.Delete(it.Item().KeyCopy(nil)); err != nil {
			return err
		}
		if err := tx.Delete(makeEmbeddingHashKey(record.Hash)); err != nil {
			return err
		}
	}
	return nil
}

// Cursor returns the last-seen position for a source, 0 when unset.
func (r *StateRepository) Cursor(ctx context.Context, source string) (int64, error) {
	if r.backend.IsClosed() {
		return 0, storage.ErrStorageClosed
	}
	var pos int64
	err := r.backend.WithTx(func(tx *badgerdb.Txn) error {
		item, err := tx.Get(makeCursorKey(source))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			pos = int64(binary.BigEndian.Uint64(val))
			return nil
		})
	}, false)
	return pos, err
}

// SetCursor records the last-seen position for a source.
func (r *StateRepository) SetCursor(ctx context.Context, source string, pos int64) error {
	if r.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.backend.WithTx(func(tx *badgerdb.Txn) error {
		val := make([]byte, 8)
		binary.BigEndian.PutUint64(val, uint64(pos))
		if err := tx.Set(makeCursorKey(source), val); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// CleanupOlderThan removes ledger entries and embeddings whose
// timestamps fall outside the retention window. Records exactly at the
// cutoff survive.
func (r *StateRepository) CleanupOlderThan(ctx context.Context, retention time.Duration) (int, error) {
	if r.backend.IsClosed() {
		return 0, storage.ErrStorageClosed
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-retention).Unix()
	removed := 0

	err := r.backend.WithTx(func(tx *badgerdb.Txn) error {
		var stale [][]byte

		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(ledgerPrefix + ":")
		it := tx.NewIterator(opts)
		for it.Rewind(); it.Valid(); it.Next() {
			var ts int64
			if err := it.Item().Value(func(val []byte) error {
				var err error
				ts, err = storage.UnmarshalTimestamp(val)
				return err
			}); err != nil {
				it.Close()
				return err
			}
			if ts < cutoff {
				stale = append(stale, it.Item().KeyCopy(nil))
			}
		}
		it.Close()

		opts = badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(embeddingPrefix + ":")
		it = tx.NewIterator(opts)
		for it.Rewind(); it.Valid(); it.Next() {
			var record *core.EmbeddingRecord
			if err := it.Item().Value(func(val []byte) error {
				var err error
				record, err = storage.UnmarshalEmbeddingRecord(val)
				return err
			}); err != nil {
				it.Close()
				return err
			}
			if record.Timestamp < cutoff {
				stale = append(stale, it.Item().KeyCopy(nil))
				stale = append(stale, makeEmbeddingHashKey(record.Hash))
			}
		}
		it.Close()

		for _, key := range stale {
			if err := tx.Delete(key); err != nil {
				return err
			}
			if !bytes.HasPrefix(key, []byte(embeddingHashPrefix+":")) {
				removed++
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		r.logger.Info("retention cleanup removed stale records", "removed", removed)
	}
	return removed, nil
}

// Stats reports current sizes of the ledger, embedding and mapping maps.
func (r *StateRepository) Stats(ctx context.Context) (*core.StoreStats, error) {
	if r.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}
	stats := &core.StoreStats{}
	err := r.backend.WithTx(func(tx *badgerdb.Txn) error {
		stats.ProcessedIds = countPrefix(tx, ledgerPrefix+":")
		stats.Embeddings = countPrefix(tx, embeddingPrefix+":")
		stats.Mappings = countPrefix(tx, mappingPrefix+":")
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// countPrefix counts keys under a prefix without fetching values.
func countPrefix(tx *badgerdb.Txn, prefix string) int {
	opts := badgerdb.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	opts.PrefetchValues = false
	it := tx.NewIterator(opts)
	defer it.Close()
	count := 0
	for it.Rewind(); it.Valid(); it.Next() {
		count++
	}
	return count
}

// cosineSimilarity computes cosine similarity between two vectors in
// float64. Mismatched lengths or a zero-magnitude vector score 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// makePreview returns up to previewLength runes of content.
func makePreview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewLength {
		return content
	}
	return string(runes[:previewLength])
}
