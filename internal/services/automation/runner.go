package automation

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reclaim/internal/common"
	"github.com/ternarybob/reclaim/internal/interfaces"
	"github.com/ternarybob/reclaim/internal/models"
)

// Accumulator collects the facts produced by a single run. It is owned by
// exactly one goroutine for the run's lifetime and survives step failures,
// so the terminal record always reflects everything that happened before
// the run stopped.
type Accumulator struct {
	CompletedSteps []string
	Errors         []models.StepError
	Evidence       []string
	CaseNumber     string
	Booking        *models.BookingDetails // Set by verification runs that found the booking

	evidenceSeq int
}

// StepFailure is returned by the runner when a step exhausted its retries.
// It wraps the last attempt's error and names the evidence captured with it.
type StepFailure struct {
	Step     string
	Evidence string
	Err      error
}

func (e *StepFailure) Error() string {
	return fmt.Sprintf("step %s failed: %v", e.Step, e.Err)
}

func (e *StepFailure) Unwrap() error { return e.Err }

// StepFunc performs one step of the plan against the runtime
type StepFunc func(ctx context.Context, rt *Runtime) error

// Step is one entry of the fixed ordered plan. Attempts is the total number
// of tries, not extra retries.
type Step struct {
	Name     string
	Attempts int
	Run      StepFunc
}

// Runtime carries everything a step needs: the session, the resolution
// machinery, the claim being filed, and the run's accumulator.
type Runtime struct {
	JobID     string
	Claim     *models.ClaimRequest
	Verify    *models.VerifyRequest // Set instead of Claim on verification runs
	Documents []string              // Local paths of resolved attachments
	Session   interfaces.Session
	Acc       *Accumulator

	resolver *Resolver
	cfg      common.AutomationConfig
	log      arbor.ILogger
	rng      *rand.Rand

	widget interfaces.WidgetContext
}

// NewRuntime builds the per-run state for one job
func NewRuntime(jobID string, claim *models.ClaimRequest, docs []string, session interfaces.Session, cfg common.AutomationConfig, log arbor.ILogger) *Runtime {
	return &Runtime{
		JobID:     jobID,
		Claim:     claim,
		Documents: docs,
		Session:   session,
		Acc:       &Accumulator{CompletedSteps: []string{}, Errors: []models.StepError{}, Evidence: []string{}},
		resolver:  NewResolver(cfg.AttemptTimeoutDuration(), log),
		cfg:       cfg,
		log:       log,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NewVerifyRuntime builds the per-run state for one booking verification.
// Verification drives a plain form page, so steps resolve against the page
// context rather than a widget frame.
func NewVerifyRuntime(runID string, req *models.VerifyRequest, session interfaces.Session, cfg common.AutomationConfig, log arbor.ILogger) *Runtime {
	return &Runtime{
		JobID:    runID,
		Verify:   req,
		Session:  session,
		Acc:      &Accumulator{CompletedSteps: []string{}, Errors: []models.StepError{}, Evidence: []string{}},
		resolver: NewResolver(cfg.AttemptTimeoutDuration(), log),
		cfg:      cfg,
		log:      log,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Widget returns the context hosting the conversational widget, re-locating
// it on every call because the provider re-parents its frame between steps.
func (rt *Runtime) Widget(ctx context.Context) (interfaces.WidgetContext, error) {
	w, err := rt.Session.WidgetContext(ctx)
	if err != nil {
		if rt.widget != nil {
			return rt.widget, nil
		}
		return nil, err
	}
	rt.widget = w
	return w, nil
}

// Resolve runs a strategy chain against the current widget context
func (rt *Runtime) Resolve(ctx context.Context, action string, strategies []Strategy) error {
	w, err := rt.Widget(ctx)
	if err != nil {
		return fmt.Errorf("%s: locate widget: %w", action, err)
	}
	_, err = rt.resolver.Resolve(ctx, w, action, strategies)
	return err
}

// ResolvePage runs a strategy chain against the top-level page
func (rt *Runtime) ResolvePage(ctx context.Context, action string, strategies []Strategy) error {
	_, err := rt.resolver.Resolve(ctx, rt.Session.Page(), action, strategies)
	return err
}

// AwaitResponse waits for the widget to produce new conversation content
// beyond the given baseline. A false return means the deadline passed.
func (rt *Runtime) AwaitResponse(ctx context.Context, baseline int, timeout time.Duration) bool {
	w, err := rt.Widget(ctx)
	if err != nil {
		return false
	}
	return AwaitChange(ctx, MessageSignal(w), baseline, DetectorOptions{
		Timeout:      timeout,
		PollInterval: rt.cfg.PollIntervalDuration(),
		SettleWindow: rt.cfg.SettleWindowDuration(),
	})
}

// Baseline samples the current conversation-content signal
func (rt *Runtime) Baseline(ctx context.Context) int {
	w, err := rt.Widget(ctx)
	if err != nil {
		return 0
	}
	return MessageCount(ctx, w)
}

// Pace sleeps a randomized human-scale delay between widget interactions
func (rt *Runtime) Pace(ctx context.Context) {
	min, max := rt.cfg.MinActionDelayDuration(), rt.cfg.MaxActionDelayDuration()
	if max <= min {
		sleep(ctx, min)
		return
	}
	sleep(ctx, min+time.Duration(rt.rng.Int63n(int64(max-min))))
}

// CaptureEvidence takes a labeled full-page screenshot into the job's
// evidence directory and records it in the accumulator. Capture failures
// are logged and swallowed: evidence must never turn a step outcome.
func (rt *Runtime) CaptureEvidence(ctx context.Context, label string) string {
	rt.Acc.evidenceSeq++
	dir := filepath.Join(rt.cfg.EvidenceDir, rt.JobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		rt.log.Warn().Err(err).Str("job_id", rt.JobID).Msg("Failed to create evidence directory")
		return ""
	}
	path := filepath.Join(dir, fmt.Sprintf("%02d_%s.png", rt.Acc.evidenceSeq, label))
	if err := rt.Session.Screenshot(ctx, path); err != nil {
		rt.log.Warn().Err(err).Str("job_id", rt.JobID).Str("label", label).Msg("Failed to capture evidence screenshot")
		return ""
	}
	rt.Acc.Evidence = append(rt.Acc.Evidence, path)
	return path
}

// ProgressFunc is invoked synchronously after every recorded step outcome,
// with the accumulator in its post-step state.
type ProgressFunc func(step string, acc *Accumulator)

// Runner executes a plan strictly in order: a step only runs once every
// step before it has succeeded, and the first exhausted step stops the run.
type Runner struct {
	cfg common.AutomationConfig
	log arbor.ILogger

	// OnStepCompleted, when set, is called after each successful step.
	OnStepCompleted ProgressFunc
}

// NewRunner creates a plan runner
func NewRunner(cfg common.AutomationConfig, log arbor.ILogger) *Runner {
	return &Runner{cfg: cfg, log: log}
}

// Run drives the plan to completion or to the first exhausted step. The
// returned error is a *StepFailure for plan failures, or the context error
// when the run was cancelled between steps.
func (r *Runner) Run(ctx context.Context, plan []Step, rt *Runtime) error {
	for i, step := range plan {
		if err := ctx.Err(); err != nil {
			return err
		}

		attempts := step.Attempts
		if attempts <= 0 {
			attempts = 1
		}

		r.log.Info().
			Str("job_id", rt.JobID).
			Str("step", step.Name).
			Int("position", i+1).
			Int("plan_size", len(plan)).
			Msg("Running step")

		var lastErr error
		for attempt := 1; attempt <= attempts; attempt++ {
			stepCtx, cancel := context.WithTimeout(ctx, r.cfg.StepTimeoutDuration())
			lastErr = step.Run(stepCtx, rt)
			cancel()

			if lastErr == nil {
				break
			}

			r.log.Warn().
				Str("job_id", rt.JobID).
				Str("step", step.Name).
				Int("attempt", attempt).
				Int("attempts", attempts).
				Err(lastErr).
				Msg("Step attempt failed")

			if attempt < attempts {
				if !sleep(ctx, r.cfg.RetryBackoffDuration()) {
					lastErr = ctx.Err()
					break
				}
			}
		}

		if lastErr != nil {
			evidence := rt.CaptureEvidence(ctx, "failed_"+step.Name)
			rt.Acc.Errors = append(rt.Acc.Errors, models.StepError{
				Step:     step.Name,
				Error:    lastErr.Error(),
				Evidence: evidence,
			})
			return &StepFailure{Step: step.Name, Evidence: evidence, Err: lastErr}
		}

		rt.Acc.CompletedSteps = append(rt.Acc.CompletedSteps, step.Name)
		if r.OnStepCompleted != nil {
			r.OnStepCompleted(step.Name, rt.Acc)
		}
	}

	return nil
}
