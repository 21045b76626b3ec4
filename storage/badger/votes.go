package badger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/poiesic/newswire/core"
	"github.com/poiesic/newswire/storage"
)

// VoteRepository implements storage.VoteRepository using BadgerDB.
type VoteRepository struct {
	backend *Backend
	logger  *slog.Logger
}

var _ storage.VoteRepository = (*VoteRepository)(nil)

// NewVoteRepository creates a vote repository on the given backend.
func NewVoteRepository(backend *Backend) *VoteRepository {
	return &VoteRepository{
		backend: backend,
		logger:  slog.Default().With("component", "vote_repository"),
	}
}

// GetVoteRecord retrieves the record for a published message id.
func (r *VoteRepository) GetVoteRecord(ctx context.Context, messageId string) (*core.VoteRecord, error) {
	if r.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}
	var record *core.VoteRecord
	err := r.backend.WithTx(func(tx *badgerdb.Txn) error {
		item, err := tx.Get(makeVoteKey(messageId))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			record, err = storage.UnmarshalVoteRecord(val)
			return err
		})
	}, false)
	if err != nil {
		return nil, err
	}
	return record, nil
}

// PutVoteRecord stores or replaces a vote record.
func (r *VoteRepository) PutVoteRecord(ctx context.Context, record *core.VoteRecord) error {
	if record == nil || record.MessageId == "" {
		return core.ErrEmptyMessageId
	}
	if r.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	if record.Timestamp == 0 {
		record.Timestamp = time.Now().Unix()
	}
	return r.backend.WithTx(func(tx *badgerdb.Txn) error {
		if err := tx.Set(makeVoteKey(record.MessageId), storage.MarshalVoteRecord(record)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// DeleteVoteRecord removes the record for a message id.
func (r *VoteRepository) DeleteVoteRecord(ctx context.Context, messageId string) error {
	if r.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	return r.backend.WithTx(func(tx *badgerdb.Txn) error {
		_, err := tx.Get(makeVoteKey(messageId))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}
		if err := tx.Delete(makeVoteKey(messageId)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// CleanupVotesOlderThan removes stale records that never reached quorum.
func (r *VoteRepository) CleanupVotesOlderThan(ctx context.Context, maxAge time.Duration) (int, error) {
	if r.backend.IsClosed() {
		return 0, storage.ErrStorageClosed
	}
	cutoff := time.Now().Add(-maxAge).Unix()
	removed := 0
	err := r.backend.WithTx(func(tx *badgerdb.Txn) error {
		var stale [][]byte
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(votePrefix + ":")
		it := tx.NewIterator(opts)
		for it.Rewind(); it.Valid(); it.Next() {
			var record *core.VoteRecord
			if err := it.Item().Value(func(val []byte) error {
				var err error
				record, err = storage.UnmarshalVoteRecord(val)
				return err
			}); err != nil {
				it.Close()
				return err
			}
			if record.Timestamp < cutoff {
				stale = append(stale, it.Item().KeyCopy(nil))
			}
		}
		it.Close()
		for _, key := range stale {
			if err := tx.Delete(key); err != nil {
				return err
			}
			removed++
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return 0, err
	}
	return removed, nil
}
