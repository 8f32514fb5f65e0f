package automation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reclaim/internal/interfaces"
)

// ErrElementNotFound reports that every strategy in a resolution chain
// failed. It carries no page state; the step layer decides whether that is
// fatal for the current step.
var ErrElementNotFound = errors.New("element not found")

// Strategy is one attempt at locating and acting on an element. Strategies
// run in declaration order; the first success wins and the rest are skipped.
type Strategy struct {
	Name string
	Act  func(ctx context.Context, w interfaces.WidgetContext) error
}

// Resolver runs ordered strategy chains against a widget context with a
// per-attempt timeout, so one hung selector cannot eat the whole step budget.
type Resolver struct {
	attemptTimeout time.Duration
	log            arbor.ILogger
}

// NewResolver creates a resolver with the given per-attempt timeout
func NewResolver(attemptTimeout time.Duration, log arbor.ILogger) *Resolver {
	if attemptTimeout <= 0 {
		attemptTimeout = 3 * time.Second
	}
	return &Resolver{attemptTimeout: attemptTimeout, log: log}
}

// Resolve runs the chain and returns the name of the winning strategy, or
// ErrElementNotFound when every strategy failed.
func (r *Resolver) Resolve(ctx context.Context, w interfaces.WidgetContext, action string, strategies []Strategy) (string, error) {
	var lastErr error
	for _, s := range strategies {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		attemptCtx, cancel := context.WithTimeout(ctx, r.attemptTimeout)
		err := s.Act(attemptCtx, w)
		cancel()

		if err == nil {
			r.log.Debug().
				Str("action", action).
				Str("strategy", s.Name).
				Msg("Strategy succeeded")
			return s.Name, nil
		}

		lastErr = err
		r.log.Trace().
			Str("action", action).
			Str("strategy", s.Name).
			Err(err).
			Msg("Strategy failed, trying next")
	}

	if lastErr != nil {
		return "", fmt.Errorf("%s: %w (last attempt: %v)", action, ErrElementNotFound, lastErr)
	}
	return "", fmt.Errorf("%s: %w", action, ErrElementNotFound)
}
