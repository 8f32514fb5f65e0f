package automation

import (
	"context"
	"time"

	"github.com/ternarybob/reclaim/internal/interfaces"
)

// messagePatterns are the candidate selectors for conversation bubbles,
// broadest last. The widget markup carries no contract, so the count signal
// is the maximum across all of them.
var messagePatterns = []interfaces.Selector{
	interfaces.CSS(".message"),
	interfaces.CSS(".chat-message"),
	interfaces.CSS("[class*='message']"),
	interfaces.CSS("[class*='bubble']"),
	interfaces.CSS("[class*='response']"),
	interfaces.CSS("[class*='answer']"),
	interfaces.CSS("p"),
}

// SignalSource yields the current value of an observable page signal.
// Errors inside the source must degrade to the last known value, not
// propagate: the detector only compares numbers.
type SignalSource func(ctx context.Context) int

// DetectorOptions tune the poll/debounce loop
type DetectorOptions struct {
	Timeout      time.Duration
	PollInterval time.Duration
	// SettleWindow is how long the signal must hold still after a change
	// before the detector reports it, split across SettleChecks reads.
	SettleWindow time.Duration
	SettleChecks int
}

// MessageCount reads the conversation-bubble count signal from a widget
// context. Selector failures count as zero so a transiently detached frame
// never aborts a wait.
func MessageCount(ctx context.Context, w interfaces.WidgetContext) int {
	max := 0
	for _, sel := range messagePatterns {
		n, err := w.Count(ctx, sel)
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return max
}

// MessageSignal adapts a widget context into a signal source
func MessageSignal(w interfaces.WidgetContext) SignalSource {
	return func(ctx context.Context) int {
		return MessageCount(ctx, w)
	}
}

// AwaitChange polls the signal until it rises above the baseline and then
// holds steady for the settle window. It returns true once settled and
// false when the deadline or the context expires first; a timeout is an
// observation, not an error.
func AwaitChange(ctx context.Context, signal SignalSource, baseline int, opts DetectorOptions) bool {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	if opts.SettleChecks <= 0 {
		opts.SettleChecks = 3
	}
	settleInterval := opts.SettleWindow / time.Duration(opts.SettleChecks)
	if settleInterval <= 0 {
		settleInterval = opts.PollInterval
	}

	deadline := time.Now().Add(opts.Timeout)

	for {
		if ctx.Err() != nil || !time.Now().Before(deadline) {
			return false
		}

		current := signal(ctx)
		if current > baseline {
			// Debounce: the widget streams responses, so wait for the
			// count to stop moving before declaring the change complete.
			settled := current
			stable := true
			for i := 0; i < opts.SettleChecks; i++ {
				if !sleep(ctx, settleInterval) {
					return false
				}
				next := signal(ctx)
				if next != settled {
					settled = next
					stable = false
					break
				}
			}
			if stable {
				return true
			}
			continue
		}

		if !sleep(ctx, opts.PollInterval) {
			return false
		}
	}
}

// sleep waits for d or until the context is done, reporting whether the
// full duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
