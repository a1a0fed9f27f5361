package events

import (
	"context"
	"sync"

	"github.com/rzpsarthak13/smartsync/internal/core"
)

// MemoryQueue implements core.EventQueue with a buffered channel.
// Useful for tests and single-process observers.
type MemoryQueue struct {
	queue  chan *core.SyncEvent
	mu     sync.RWMutex
	closed bool
}

// NewMemoryQueue creates an in-memory queue holding at most bufferSize events.
func NewMemoryQueue(bufferSize int) *MemoryQueue {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	return &MemoryQueue{
		queue: make(chan *core.SyncEvent, bufferSize),
	}
}

// Publish adds an event. A full queue rejects the event rather than blocking the sync.
func (q *MemoryQueue) Publish(ctx context.Context, event *core.SyncEvent) error {
	if err := prepare(event); err != nil {
		return err
	}

	// Held across the send so Close cannot close the channel underneath it.
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.queue <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

// Poll removes up to max events in publish order.
func (q *MemoryQueue) Poll(ctx context.Context, max int) ([]*core.SyncEvent, error) {
	if max <= 0 {
		max = DefaultPollSize
	}

	events := make([]*core.SyncEvent, 0, max)
	for i := 0; i < max; i++ {
		select {
		case event, ok := <-q.queue:
			if !ok {
				return events, nil
			}
			events = append(events, event)
		case <-ctx.Done():
			return events, ctx.Err()
		default:
			return events, nil
		}
	}
	return events, nil
}

// Size returns the number of buffered events.
func (q *MemoryQueue) Size() int {
	return len(q.queue)
}

// Close stops further publishing. Buffered events can still be polled.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	close(q.queue)
	return nil
}
