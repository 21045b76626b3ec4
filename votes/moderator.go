package votes

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/poiesic/newswire/core"
	"github.com/poiesic/newswire/storage"
)

// Remover deletes a published message from the sink.
type Remover interface {
	Delete(ctx context.Context, channelId, messageId string) error
}

// Outcome is the result of handling one vote.
type Outcome struct {
	Votes        int
	AlreadyVoted bool
	Removed      bool
}

// Moderator applies the vote quorum. Once enough unique moderators
// vote against a message it deletes the sink message, removes the
// entry's ledger, mapping and embedding, and archives it for the
// feedback loop.
type Moderator struct {
	tracker       *Tracker
	state         storage.StateRepository
	archive       storage.ArchiveRepository
	remover       Remover
	votesRequired int
	logger        *slog.Logger
}

// ModeratorOption configures a Moderator.
type ModeratorOption func(*Moderator)

// WithVotesRequired overrides the removal quorum.
func WithVotesRequired(n int) ModeratorOption {
	return func(m *Moderator) { m.votesRequired = n }
}

// NewModerator wires the quorum handler.
func NewModerator(tracker *Tracker, state storage.StateRepository, archive storage.ArchiveRepository, remover Remover, opts ...ModeratorOption) *Moderator {
	m := &Moderator{
		tracker:       tracker,
		state:         state,
		archive:       archive,
		remover:       remover,
		votesRequired: DefaultVotesRequired,
		logger:        slog.Default().With("component", "moderator"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// HandleVote counts one vote and, at quorum, removes the entry. Vote
// tracking for the message is dropped after a removal attempt whether
// or not every removal step succeeded, so a half-removed message can
// not accumulate a second quorum.
func (m *Moderator) HandleVote(ctx context.Context, vote *Vote) (*Outcome, error) {
	record, counted, err := m.tracker.AddVote(ctx, vote)
	if err != nil {
		return nil, err
	}
	outcome := &Outcome{Votes: len(record.Voters), AlreadyVoted: !counted}
	if !counted || len(record.Voters) < m.votesRequired {
		return outcome, nil
	}

	defer func() {
		if err := m.tracker.RemoveTracking(ctx, vote.MessageId); err != nil {
			m.logger.Error("failed to drop vote tracking",
				"message_id", vote.MessageId, "error", err)
		}
	}()

	m.logger.Info("vote quorum reached, removing entry",
		"message_id", record.MessageId, "entry_id", record.EntryId,
		"votes", len(record.Voters))

	if err := m.remover.Delete(ctx, record.ChannelId, record.MessageId); err != nil {
		// the sink message may already be gone; the durable state
		// still has to be cleaned up
		m.logger.Warn("failed to delete sink message",
			"message_id", record.MessageId, "error", err)
	}

	removed := m.buildRemovedEntry(ctx, record, vote.SourceUrl)
	if err := m.state.RemoveEntry(ctx, record.EntryId, core.HashContent(removed.Content)); err != nil {
		return nil, err
	}
	if err := m.archive.AppendRemovedEntry(ctx, removed); err != nil {
		return nil, err
	}

	outcome.Removed = true
	return outcome, nil
}

// buildRemovedEntry assembles the archive record, preferring the
// stored mapping over vote metadata when both exist.
func (m *Moderator) buildRemovedEntry(ctx context.Context, record *core.VoteRecord, sourceUrl string) *core.RemovedEntry {
	entry := &core.RemovedEntry{
		EntryId:   record.EntryId,
		Content:   record.Content,
		Category:  record.Category,
		VoterIds:  append([]string(nil), record.Voters...),
		RemovedAt: time.Now().Unix(),
		MessageId: record.MessageId,
		ChannelId: record.ChannelId,
		SourceUrl: sourceUrl,
	}
	mapping, err := m.state.GetMapping(ctx, record.EntryId)
	switch {
	case err == nil:
		if mapping.Content != "" {
			entry.Content = mapping.Content
		}
		if mapping.Category != "" {
			entry.Category = mapping.Category
		}
		if mapping.SourceUrl != "" {
			entry.SourceUrl = mapping.SourceUrl
		}
	case !errors.Is(err, storage.ErrNotFound):
		m.logger.Warn("failed to load mapping for removal",
			"entry_id", record.EntryId, "error", err)
	}
	return entry
}
