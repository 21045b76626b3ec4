package badger

import (
	"context"
	"errors"
	"log/slog"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/poiesic/newswire/core"
	"github.com/poiesic/newswire/storage"
)

// RetryRepository implements storage.RetryRepository using BadgerDB.
type RetryRepository struct {
	backend *Backend
	logger  *slog.Logger
}

var _ storage.RetryRepository = (*RetryRepository)(nil)

// NewRetryRepository creates a retry repository on the given backend.
func NewRetryRepository(backend *Backend) *RetryRepository {
	return &RetryRepository{
		backend: backend,
		logger:  slog.Default().With("component", "retry_repository"),
	}
}

// PutRetryEntry stores or replaces the entry for its item id.
func (r *RetryRepository) PutRetryEntry(ctx context.Context, entry *core.RetryEntry) error {
	if entry == nil || entry.Item.Id == "" {
		return core.ErrEmptyItemId
	}
	if r.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	return r.backend.WithTx(func(tx *badgerdb.Txn) error {
		if err := tx.Set(makeRetryKey(entry.Item.Id), storage.MarshalRetryEntry(entry)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// DeleteRetryEntry removes the entry for an item id. Deleting a missing
// entry is not an error.
func (r *RetryRepository) DeleteRetryEntry(ctx context.Context, itemId string) error {
	if r.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	return r.backend.WithTx(func(tx *badgerdb.Txn) error {
		if err := tx.Delete(makeRetryKey(itemId)); err != nil && !errors.Is(err, badgerdb.ErrKeyNotFound) {
			return err
		}
		return tx.Commit()
	}, true)
}

// LoadRetryEntries loads every persisted entry, keyed by item id.
func (r *RetryRepository) LoadRetryEntries(ctx context.Context) (map[string]*core.RetryEntry, error) {
	if r.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}
	entries := make(map[string]*core.RetryEntry)
	err := r.backend.WithTx(func(tx *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(retryPrefix + ":")
		it := tx.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var entry *core.RetryEntry
			if err := it.Item().Value(func(val []byte) error {
				var err error
				entry, err = storage.UnmarshalRetryEntry(val)
				return err
			}); err != nil {
				return err
			}
			entries[entry.Item.Id] = entry
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return entries, nil
}
