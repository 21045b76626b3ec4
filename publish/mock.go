package publish

import (
	"context"
	"strconv"
	"sync"

	"github.com/poiesic/newswire/core"
)

// Mock is a test publisher. Behavior is overridden per call through
// the func fields; by default every publish succeeds and is recorded.
type Mock struct {
	PublishFunc func(ctx context.Context, item *core.ContentItem, category string) (*Result, error)
	EditFunc    func(ctx context.Context, channelId, messageId, content string) error
	DeleteFunc  func(ctx context.Context, channelId, messageId string) error

	mu        sync.Mutex
	published []MockMessage
	edited    []MockMessage
	deleted   []MockMessage
	seq       int
}

// MockMessage records one sink interaction.
type MockMessage struct {
	ChannelId string
	MessageId string
	ItemId    string
	Category  string
	Content   string
}

var _ Publisher = (*Mock)(nil)

func (m *Mock) Publish(ctx context.Context, item *core.ContentItem, category string) (*Result, error) {
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, item, category)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	msg := MockMessage{
		ChannelId: "channel-" + category,
		MessageId: "msg-" + strconv.Itoa(m.seq),
		ItemId:    item.Id,
		Category:  category,
		Content:   item.Content,
	}
	m.published = append(m.published, msg)
	return &Result{ChannelId: msg.ChannelId, MessageId: msg.MessageId}, nil
}

func (m *Mock) Edit(ctx context.Context, channelId, messageId, content string) error {
	if m.EditFunc != nil {
		return m.EditFunc(ctx, channelId, messageId, content)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edited = append(m.edited, MockMessage{ChannelId: channelId, MessageId: messageId, Content: content})
	return nil
}

func (m *Mock) Delete(ctx context.Context, channelId, messageId string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, channelId, messageId)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, MockMessage{ChannelId: channelId, MessageId: messageId})
	return nil
}

// Published returns a copy of all successfully published messages.
func (m *Mock) Published() []MockMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockMessage(nil), m.published...)
}

// Edited returns a copy of all edit calls.
func (m *Mock) Edited() []MockMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockMessage(nil), m.edited...)
}

// Deleted returns a copy of all delete calls.
func (m *Mock) Deleted() []MockMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockMessage(nil), m.deleted...)
}
