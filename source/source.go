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


// Package source defines where content enters the pipeline: batch
// pollers queried every cycle, and queues fed by realtime listeners.
package source

import (
	"context"
	"sync"

	"github.com/poiesic/newswire/core"
)

// Poller fetches new items from one feed. Implementations wrap an RSS
// bridge, a chat listener backlog or similar.
type Poller interface {
	// Name identifies the feed. It doubles as the cursor key for
	// sources that track a last-seen position.
	Name() string

	// Poll returns items newer than the cursor position. Sources
	// without cursor tracking receive 0 and return whatever is
	// current; the pipeline's ledger handles re-deliveries.
	Poll(ctx context.Context, since int64) ([]*core.ContentItem, error)
}

// MockPoller is a test double for Poller.
type MockPoller struct {
	FeedName string
	// PollFunc is called by Poll if set; otherwise Items is returned.
	PollFunc func(ctx context.Context, since int64) ([]*core.ContentItem, error)
	Items    []*core.ContentItem

	mu    sync.Mutex
	calls []int64
}

var _ Poller = (*MockPoller)(nil)

func (m *MockPoller) Name() string {
	return m.FeedName
}

func (m *MockPoller) Poll(ctx context.Context, since int64) ([]*core.ContentItem, error) {
	m.mu.Lock()
	m.calls = append(m.calls, since)
	m.mu.Unlock()
	if m.PollFunc != nil {
		return m.PollFunc(ctx, since)
	}
	return m.Items, nil
}

// Calls returns the cursor values Poll was invoked with.
func (m *MockPoller) Calls() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.calls...)
}
