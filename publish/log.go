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


package publish

import (
	"context"
	"log/slog"
	"strconv"
	"sync"

	"github.com/poiesic/newswire/core"
)

// LogPublisher writes published content to the log instead of an
// external sink. It is the default sink for the CLI runner, where the
// real sink has not been wired up yet.
type LogPublisher struct {
	logger *slog.Logger

	mu  sync.Mutex
	seq int
}

var _ Publisher = (*LogPublisher)(nil)

// NewLogPublisher creates a log-backed publisher. A nil logger falls
// back to slog.Default().
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger.With("component", "log_publisher")}
}

// Publish logs the item and returns a synthetic message id.
func (p *LogPublisher) Publish(ctx context.Context, item *core.ContentItem, category string) (*Result, error) {
	p.mu.Lock()
	p.seq++
	id := strconv.Itoa(p.seq)
	p.mu.Unlock()

	p.logger.Info("publish",
		"id", item.Id, "category", category, "content", item.Content)
	return &Result{ChannelId: category, MessageId: id}, nil
}

// Edit logs the replacement content.
func (p *LogPublisher) Edit(ctx context.Context, channelId, messageId, content string) error {
	p.logger.Info("edit",
		"channel", channelId, "message", messageId, "content", content)
	return nil
}

// Delete logs the removal.
func (p *LogPublisher) Delete(ctx context.Context, channelId, messageId string) error {
	p.logger.Info("delete", "channel", channelId, "message", messageId)
	return nil
}
