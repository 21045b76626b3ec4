package source

import (
	"context"
	"errors"
	"sync"

	"github.com/poiesic/newswire/core"
)

// Queue errors.
var (
	ErrQueueClosed = errors.New("queue closed")
	ErrQueueFull   = errors.New("queue full")
)

// DefaultQueueCapacity bounds a realtime queue so a stalled consumer
// applies backpressure to listeners instead of growing without limit.
const DefaultQueueCapacity = 1024

// Queue hands items from realtime listeners to the pipeline's consumer
// loops. Push never blocks; Pop blocks until an item arrives or the
// context ends.
type Queue struct {
	ch chan *core.ContentItem

	mu     sync.Mutex
	closed bool
}

// NewQueue creates a queue with the given capacity, or
// DefaultQueueCapacity when capacity is not positive.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{ch: make(chan *core.ContentItem, capacity)}
}

// Push enqueues an item without blocking. Returns ErrQueueFull when
// the consumer has fallen behind and ErrQueueClosed after Close.
func (q *Queue) Push(item *core.ContentItem) error {
	if item == nil || item.Id == "" {
		return core.ErrEmptyItemId
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.ch <- item:
		return nil
	default:
		return ErrQueueFull
	}
}

// Pop dequeues the next item, blocking until one arrives, the queue
// drains after Close, or the context ends.
func (q *Queue) Pop(ctx context.Context) (*core.ContentItem, error) {
	select {
	case item, ok := <-q.ch:
		if !ok {
			return nil, ErrQueueClosed
		}
		return item, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TryPop dequeues the next item if one is immediately available.
func (q *Queue) TryPop() (*core.ContentItem, bool) {
	select {
	case item, ok := <-q.ch:
		if !ok {
			return nil, false
		}
		return item, true
	default:
		return nil, false
	}
}

// Len returns the number of queued items.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close stops accepting new items. Items already queued can still be
// popped.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}
