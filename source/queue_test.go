package source

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/newswire/core"
)

func queueItem(id string) *core.ContentItem {
	return &core.ContentItem{Id: id, Source: "chan", SourceType: core.SourceTelegram}
}

func TestQueuePushPop(t *testing.T) {
	q := NewQueue(4)
	require.NoError(t, q.Push(queueItem("a")))
	require.NoError(t, q.Push(queueItem("b")))
	assert.Equal(t, 2, q.Len())

	item, err := q.Pop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", item.Id)

	item, ok := q.TryPop()
	require.True(t, ok)
	assert.Equal(t, "b", item.Id)

	_, ok = q.TryPop()
	assert.False(t, ok)
}

func TestQueuePushValidation(t *testing.T) {
	q := NewQueue(1)
	assert.ErrorIs(t, q.Push(nil), core.ErrEmptyItemId)
	assert.ErrorIs(t, q.Push(&core.ContentItem{}), core.ErrEmptyItemId)
}

func TestQueueFull(t *testing.T) {
	q := NewQueue(1)
	require.NoError(t, q.Push(queueItem("a")))
	assert.ErrorIs(t, q.Push(queueItem("b")), ErrQueueFull)
}

func TestQueuePopBlocksUntilPush(t *testing.T) {
	q := NewQueue(1)
	go func() {
		time.Sleep(20 * time.Millisecond)
		q.Push(queueItem("late"))
	}()
	item, err := q.Pop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "late", item.Id)
}

func TestQueuePopHonorsContext(t *testing.T) {
	q := NewQueue(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := q.Pop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueueClose(t *testing.T) {
	q := NewQueue(2)
	require.NoError(t, q.Push(queueItem("a")))
	q.Close()
	q.Close() // idempotent

	assert.ErrorIs(t, q.Push(queueItem("b")), ErrQueueClosed)

	// drains what was queued, then reports closed
	item, err := q.Pop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", item.Id)
	_, err = q.Pop(context.Background())
	assert.ErrorIs(t, err, ErrQueueClosed)
}
