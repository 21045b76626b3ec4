package storage

import (
	"context"
	"time"

	"github.com/poiesic/newswire/core"
)

// PublishCommit captures everything that must become durable, together,
// when an item is successfully published: the ledger mark, the embedding,
// the message mapping, and optionally the per-source cursor advance.
type PublishCommit struct {
	ItemId       string
	Content      string // the text the embedding was computed from
	Vector       []float32
	Mapping      *core.MessageMapping
	CursorSource string // empty when the source does not track a cursor
	CursorPos    int64
}

// StateRepository owns the shared pipeline state: the processed-item
// ledger, the embedding index, message mappings and per-source cursors.
// Implementations must be thread-safe; every mutation must be durable
// before the call returns.
type StateRepository interface {
	// IsProcessed reports whether an item id has reached a terminal
	// processed state and must not be reprocessed.
	IsProcessed(ctx context.Context, id string) (bool, error)

	// MarkProcessed records an item id in the ledger with the current time.
	MarkProcessed(ctx context.Context, id string) error

	// AddEmbedding stores an embedding keyed by the content's hash.
	// Re-adding the same content overwrites the existing record in place,
	// preserving its position in insertion order.
	// Returns the hash key of the stored record.
	AddEmbedding(ctx context.Context, content string, vector []float32, linkedItemId string) (string, error)

	// FindSimilar scans stored embeddings in insertion order and returns
	// the first record whose cosine similarity to the query vector is
	// >= threshold, or nil when no record qualifies.
	FindSimilar(ctx context.Context, vector []float32, threshold float64) (*core.SimilarityMatch, error)

	// StoreMapping stores or replaces the mapping for an item id.
	StoreMapping(ctx context.Context, mapping *core.MessageMapping) error

	// GetMapping retrieves the mapping for an item id.
	// Returns ErrNotFound if no mapping exists.
	GetMapping(ctx context.Context, itemId string) (*core.MessageMapping, error)

	// UpdateMappingContent replaces the content and timestamp of an
	// existing mapping, preserving every other field.
	// Returns ErrNotFound if no mapping exists.
	UpdateMappingContent(ctx context.Context, itemId, content string, timestamp int64) error

	// CommitPublished applies ledger mark, embedding, mapping and cursor
	// in a single transaction. Either all of them become durable or none.
	CommitPublished(ctx context.Context, commit *PublishCommit) error

	// RemoveEntry deletes an item's ledger entry, mapping and embeddings
	// (by content hash and by linked item id) in a single transaction.
	// Missing pieces are skipped, not errors.
	RemoveEntry(ctx context.Context, itemId, contentHash string) error

	// RemoveEmbeddingsFor deletes the embeddings linked to an item,
	// leaving its ledger entry and mapping in place.
	RemoveEmbeddingsFor(ctx context.Context, itemId string) error

	// Cursor returns the last-seen position for a source, 0 when unset.
	Cursor(ctx context.Context, source string) (int64, error)

	// SetCursor records the last-seen position for a source.
	SetCursor(ctx context.Context, source string, pos int64) error

	// CleanupOlderThan removes ledger entries and embeddings whose
	// timestamps are older than the retention window.
	// Returns the number of removed records.
	CleanupOlderThan(ctx context.Context, retention time.Duration) (int, error)

	// Stats reports current map sizes.
	Stats(ctx context.Context) (*core.StoreStats, error)
}

// RetryRepository persists retry queue entries so queued items survive
// process restarts.
type RetryRepository interface {
	// PutRetryEntry stores or replaces the entry for its item id.
	PutRetryEntry(ctx context.Context, entry *core.RetryEntry) error

	// DeleteRetryEntry removes the entry for an item id.
	// Deleting a missing entry is not an error.
	DeleteRetryEntry(ctx context.Context, itemId string) error

	// LoadRetryEntries loads all persisted entries, keyed by item id.
	LoadRetryEntries(ctx context.Context) (map[string]*core.RetryEntry, error)
}

// VoteRepository persists per-message vote records.
type VoteRepository interface {
	// GetVoteRecord retrieves the record for a published message id.
	// Returns ErrNotFound if no votes were cast yet.
	GetVoteRecord(ctx context.Context, messageId string) (*core.VoteRecord, error)

	// PutVoteRecord stores or replaces a vote record.
	PutVoteRecord(ctx context.Context, record *core.VoteRecord) error

	// DeleteVoteRecord removes the record for a message id.
	// Returns ErrNotFound if it does not exist.
	DeleteVoteRecord(ctx context.Context, messageId string) error

	// CleanupVotesOlderThan removes stale records that never reached
	// quorum. Returns the number of removed records.
	CleanupVotesOlderThan(ctx context.Context, maxAge time.Duration) (int, error)
}

// ArchiveRepository persists the append-only archive of moderator-removed
// entries.
type ArchiveRepository interface {
	// AppendRemovedEntry appends a removed entry to the archive.
	AppendRemovedEntry(ctx context.Context, entry *core.RemovedEntry) error

	// RecentRemovedEntries returns up to limit entries, most recently
	// removed first.
	RecentRemovedEntries(ctx context.Context, limit int) ([]*core.RemovedEntry, error)

	// AllRemovedEntries returns every archived entry in insertion order.
	AllRemovedEntries(ctx context.Context) ([]*core.RemovedEntry, error)

	// FindRemovedEntry returns the archived entry for an item id.
	// Returns ErrNotFound if the id was never archived.
	FindRemovedEntry(ctx context.Context, entryId string) (*core.RemovedEntry, error)

	// DeleteRemovedEntry removes an archived entry (restore path).
	// Returns ErrNotFound if it does not exist.
	DeleteRemovedEntry(ctx context.Context, entryId string) error

	// PurgeRemovedOlderThan removes entries past the long-horizon
	// retention. Returns the number of removed entries.
	PurgeRemovedOlderThan(ctx context.Context, maxAge time.Duration) (int, error)
}
