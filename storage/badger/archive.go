package badger

import (
	"context"
	"log/slog"
	"sort"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/poiesic/newswire/core"
	"github.com/poiesic/newswire/storage"
)

// ArchiveRepository implements storage.ArchiveRepository using BadgerDB.
// The archive is append-only and small relative to the live maps, so
// lookups by entry id scan rather than maintain a second index.
type ArchiveRepository struct {
	backend *Backend
	seq     *badgerdb.Sequence
	logger  *slog.Logger
}

var _ storage.ArchiveRepository = (*ArchiveRepository)(nil)

// NewArchiveRepository creates an archive repository on the given backend.
func NewArchiveRepository(backend *Backend) (*ArchiveRepository, error) {
	seq, err := backend.GetSequence(removedSeqName)
	if err != nil {
		return nil, err
	}
	return &ArchiveRepository{
		backend: backend,
		seq:     seq,
		logger:  slog.Default().With("component", "archive_repository"),
	}, nil
}

// Close releases the archive sequence.
func (r *ArchiveRepository) Close() error {
	return r.seq.Release()
}

// AppendRemovedEntry appends a removed entry to the archive.
func (r *ArchiveRepository) AppendRemovedEntry(ctx context.Context, entry *core.RemovedEntry) error {
	if entry == nil || entry.EntryId == "" {
		return core.ErrEmptyItemId
	}
	if r.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	if entry.RemovedAt == 0 {
		entry.RemovedAt = time.Now().Unix()
	}
	seq, err := r.seq.Next()
	if err != nil {
		return err
	}
	return r.backend.WithTx(func(tx *badgerdb.Txn) error {
		if err := tx.Set(makeRemovedKey(seq), storage.MarshalRemovedEntry(entry)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// AllRemovedEntries returns every archived entry in insertion order.
func (r *ArchiveRepository) AllRemovedEntries(ctx context.Context) ([]*core.RemovedEntry, error) {
	if r.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}
	var entries []*core.RemovedEntry
	err := r.backend.WithTx(func(tx *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(removedPrefix + ":")
		it := tx.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var entry *core.RemovedEntry
			if err := it.Item().Value(func(val []byte) error {
				var err error
				entry, err = storage.UnmarshalRemovedEntry(val)
				return err
			}); err != nil {
				return err
			}
			entries = append(entries, entry)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// RecentRemovedEntries returns up to limit entries, most recently
// removed first. Ties keep insertion order.
func (r *ArchiveRepository) RecentRemovedEntries(ctx context.Context, limit int) ([]*core.RemovedEntry, error) {
	entries, err := r.AllRemovedEntries(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].RemovedAt > entries[j].RemovedAt
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// FindRemovedEntry returns the archived entry for an item id.
func (r *ArchiveRepository) FindRemovedEntry(ctx context.Context, entryId string) (*core.RemovedEntry, error) {
	if r.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}
	var found *core.RemovedEntry
	err := r.backend.WithTx(func(tx *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(removedPrefix + ":")
		it := tx.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var entry *core.RemovedEntry
			if err := it.Item().Value(func(val []byte) error {
				var err error
				entry, err = storage.UnmarshalRemovedEntry(val)
				return err
			}); err != nil {
				return err
			}
			if entry.EntryId == entryId {
				found = entry
				return nil
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, storage.ErrNotFound
	}
	return found, nil
}

// DeleteRemovedEntry removes an archived entry, the restore path.
func (r *ArchiveRepository) DeleteRemovedEntry(ctx context.Context, entryId string) error {
	if r.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	return r.backend.WithTx(func(tx *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(removedPrefix + ":")
		it := tx.NewIterator(opts)
		var key []byte
		for it.Rewind(); it.Valid(); it.Next() {
			var entry *core.RemovedEntry
			if err := it.Item().Value(func(val []byte) error {
				var err error
				entry, err = storage.UnmarshalRemovedEntry(val)
				return err
			}); err != nil {
				it.Close()
				return err
			}
			if entry.EntryId == entryId {
				key = it.Item().KeyCopy(nil)
				break
			}
		}
		it.Close()
		if key == nil {
			return storage.ErrNotFound
		}
		if err := tx.Delete(key); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// PurgeRemovedOlderThan removes entries past the long-horizon retention.
func (r *ArchiveRepository) PurgeRemovedOlderThan(ctx context.Context, maxAge time.Duration) (int, error) {
	if r.backend.IsClosed() {
		return 0, storage.ErrStorageClosed
	}
	cutoff := time.Now().Add(-maxAge).Unix()
	removed := 0
	err := r.backend.WithTx(func(tx *badgerdb.Txn) error {
		var stale [][]byte
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(removedPrefix + ":")
		it := tx.NewIterator(opts)
		for it.Rewind(); it.Valid(); it.Next() {
			var entry *core.RemovedEntry
			if err := it.Item().Value(func(val []byte) error {
				var err error
				entry, err = storage.UnmarshalRemovedEntry(val)
				return err
			}); err != nil {
				it.Close()
				return err
			}
			if entry.RemovedAt < cutoff {
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
	if removed > 0 {
		r.logger.Info("purged archived entries", "removed", removed)
	}
	return removed, nil
}
