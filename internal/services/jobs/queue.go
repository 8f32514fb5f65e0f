package jobs

import (
	"context"
	"errors"
)

// ErrQueueClosed is returned once the queue has been shut down
var ErrQueueClosed = errors.New("job queue closed")

// Queue is the FIFO hand-off between submission and the worker pool. It
// carries job ids only; the record of truth stays in the store.
type Queue struct {
	ch     chan string
	closed chan struct{}
}

// NewQueue creates a queue with the given buffered depth
func NewQueue(depth int) *Queue {
	if depth <= 0 {
		depth = 1
	}
	return &Queue{
		ch:     make(chan string, depth),
		closed: make(chan struct{}),
	}
}

// Enqueue adds a job id, blocking when the buffer is full
func (q *Queue) Enqueue(ctx context.Context, id string) error {
	select {
	case <-q.closed:
		return ErrQueueClosed
	default:
	}
	select {
	case q.ch <- id:
		return nil
	case <-q.closed:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dequeue blocks until a job id is available or the queue shuts down
func (q *Queue) Dequeue(ctx context.Context) (string, error) {
	select {
	case id := <-q.ch:
		return id, nil
	case <-q.closed:
		// Drain what is already buffered before reporting closure.
		select {
		case id := <-q.ch:
			return id, nil
		default:
			return "", ErrQueueClosed
		}
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Len returns the number of queued ids
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close stops the queue; blocked callers are released
func (q *Queue) Close() {
	select {
	case <-q.closed:
	default:
		close(q.closed)
	}
}
