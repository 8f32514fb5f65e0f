package automation

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fastOptions() DetectorOptions {
	return DetectorOptions{
		Timeout:      200 * time.Millisecond,
		PollInterval: 5 * time.Millisecond,
		SettleWindow: 15 * time.Millisecond,
		SettleChecks: 3,
	}
}

func TestAwaitChangeDetectsSettledChange(t *testing.T) {
	var count atomic.Int64
	count.Store(3)

	// Signal rises once and then holds still.
	go func() {
		time.Sleep(20 * time.Millisecond)
		count.Store(5)
	}()

	signal := func(ctx context.Context) int { return int(count.Load()) }
	assert.True(t, AwaitChange(context.Background(), signal, 3, fastOptions()))
}

func TestAwaitChangeTimesOutWithoutChange(t *testing.T) {
	signal := func(ctx context.Context) int { return 3 }

	start := time.Now()
	got := AwaitChange(context.Background(), signal, 3, fastOptions())

	assert.False(t, got)
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
}

func TestAwaitChangeWaitsForStreamToSettle(t *testing.T) {
	// Count keeps climbing on each read: the debounce must keep extending
	// until the stream stops.
	var reads atomic.Int64
	signal := func(ctx context.Context) int {
		n := reads.Add(1)
		if n < 5 {
			return int(3 + n)
		}
		return 8
	}

	assert.True(t, AwaitChange(context.Background(), signal, 3, fastOptions()))
}

func TestAwaitChangeHonorsContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	signal := func(ctx context.Context) int { return 10 }
	opts := fastOptions()
	opts.Timeout = time.Minute

	assert.False(t, AwaitChange(ctx, signal, 3, opts))
}

func TestMessageCountTakesMaxAcrossPatterns(t *testing.T) {
	w := newFakeWidget()
	w.count = 7
	assert.Equal(t, 7, MessageCount(context.Background(), w))
}
