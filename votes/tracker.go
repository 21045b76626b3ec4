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


// Package votes counts moderator removal votes against published
// messages and removes entries once a quorum agrees.
package votes

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/poiesic/newswire/core"
	"github.com/poiesic/newswire/storage"
)

const (
	// DefaultVotesRequired is the quorum for removing a published
	// message.
	DefaultVotesRequired = 2
	// DefaultMaxAge is how long a record short of quorum is kept.
	DefaultMaxAge = 48 * time.Hour
)

// Vote is one moderator's removal vote against a published message.
// The entry metadata rides along on the first vote and is ignored on
// later ones.
type Vote struct {
	MessageId string
	VoterId   string
	EntryId   string
	Content   string
	Category  string
	ChannelId string
	SourceUrl string
}

// Tracker accumulates unique votes per message, persisted so counts
// survive restarts.
type Tracker struct {
	repo   storage.VoteRepository
	logger *slog.Logger
}

// NewTracker creates a tracker over the given repository.
func NewTracker(repo storage.VoteRepository) *Tracker {
	return &Tracker{
		repo:   repo,
		logger: slog.Default().With("component", "vote_tracker"),
	}
}

// AddVote records a vote. Each voter counts once per message; a repeat
// vote returns the unchanged record and counted=false. The first vote
// pins the entry metadata.
func (t *Tracker) AddVote(ctx context.Context, vote *Vote) (record *core.VoteRecord, counted bool, err error) {
	if vote == nil || vote.MessageId == "" {
		return nil, false, core.ErrEmptyMessageId
	}
	if vote.VoterId == "" {
		return nil, false, core.ErrEmptyVoterId
	}

	record, err = t.repo.GetVoteRecord(ctx, vote.MessageId)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		record = &core.VoteRecord{
			MessageId: vote.MessageId,
			Timestamp: time.Now().Unix(),
			EntryId:   vote.EntryId,
			Content:   vote.Content,
			Category:  vote.Category,
			ChannelId: vote.ChannelId,
		}
	case err != nil:
		return nil, false, err
	}

	if record.HasVoter(vote.VoterId) {
		t.logger.Debug("duplicate vote ignored",
			"message_id", vote.MessageId, "voter_id", vote.VoterId)
		return record, false, nil
	}

	record.Voters = append(record.Voters, vote.VoterId)
	if err := t.repo.PutVoteRecord(ctx, record); err != nil {
		return nil, false, err
	}
	t.logger.Info("removal vote recorded",
		"message_id", vote.MessageId, "votes", len(record.Voters))
	return record, true, nil
}

// RemoveTracking drops the vote record for a message. Missing records
// are ignored.
func (t *Tracker) RemoveTracking(ctx context.Context, messageId string) error {
	err := t.repo.DeleteVoteRecord(ctx, messageId)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	return err
}

// Cleanup removes vote records older than maxAge that never reached
// quorum.
func (t *Tracker) Cleanup(ctx context.Context, maxAge time.Duration) (int, error) {
	return t.repo.CleanupVotesOlderThan(ctx, maxAge)
}
