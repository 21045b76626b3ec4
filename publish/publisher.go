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


// Package publish defines the sink the pipeline delivers categorized
// content to. Concrete sinks (chat servers, webhooks) live with the
// embedding application; the pipeline only needs this surface.
package publish

import (
	"context"
	"errors"

	"github.com/poiesic/newswire/core"
)

// ErrPublishFailed indicates the sink rejected or lost the message.
// The pipeline counts it as a terminal per-item error; the item is
// not marked processed and is seen again on the next poll.
var ErrPublishFailed = errors.New("publish failed")

// Result identifies the message a publish produced, used to track it
// for later edits and moderator removal.
type Result struct {
	ChannelId string
	MessageId string
}

// Publisher delivers categorized content to the sink.
type Publisher interface {
	// Publish delivers an item under its category and returns where
	// it landed.
	Publish(ctx context.Context, item *core.ContentItem, category string) (*Result, error)

	// Edit replaces the content of a previously published message.
	Edit(ctx context.Context, channelId, messageId, content string) error

	// Delete removes a previously published message.
	Delete(ctx context.Context, channelId, messageId string) error
}
