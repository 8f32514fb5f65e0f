package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue(10)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "a"))
	require.NoError(t, q.Enqueue(ctx, "b"))
	require.NoError(t, q.Enqueue(ctx, "c"))
	assert.Equal(t, 3, q.Len())

	for _, want := range []string{"a", "b", "c"} {
		got, err := q.Dequeue(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestQueueDequeueBlocksUntilEnqueue(t *testing.T) {
	q := NewQueue(1)
	ctx := context.Background()

	done := make(chan string, 1)
	go func() {
		id, err := q.Dequeue(ctx)
		if err == nil {
			done <- id
		}
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, q.Enqueue(ctx, "late"))

	select {
	case id := <-done:
		assert.Equal(t, "late", id)
	case <-time.After(time.Second):
		t.Fatal("dequeue never unblocked")
	}
}

func TestQueueCloseReleasesDequeue(t *testing.T) {
	q := NewQueue(1)

	errCh := make(chan error, 1)
	go func() {
		_, err := q.Dequeue(context.Background())
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrQueueClosed)
	case <-time.After(time.Second):
		t.Fatal("dequeue never released on close")
	}

	assert.ErrorIs(t, q.Enqueue(context.Background(), "x"), ErrQueueClosed)
}

func TestQueueDequeueHonorsContext(t *testing.T) {
	q := NewQueue(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
