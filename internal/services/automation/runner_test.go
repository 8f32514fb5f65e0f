package automation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/reclaim/internal/common"
	"github.com/ternarybob/reclaim/internal/models"
)

func fastConfig(evidenceDir string) common.AutomationConfig {
	return common.AutomationConfig{
		TargetURL:      "https://example.com/refund",
		VerifyURL:      "https://example.com/retrieve",
		StepTimeout:    "250ms",
		AttemptTimeout: "50ms",
		RetryBackoff:   "1ms",
		MinActionDelay: "1ms",
		MaxActionDelay: "2ms",
		PollInterval:   "5ms",
		SettleWindow:   "10ms",
		EvidenceDir:    evidenceDir,
	}
}

func testClaim() *models.ClaimRequest {
	claim := &models.ClaimRequest{
		BookingCode:  "EHZRMC",
		BookingEmail: "traveler@example.com",
		Reason:       models.ReasonPregnant,
		FirstName:    "Maria",
		Surname:      "Lopez",
		ContactEmail: "maria@example.com",
		PhoneCountry: "+34",
		PhoneNumber:  "600123456",
	}
	return claim
}

func newTestRuntime(t *testing.T, session *fakeSession) *Runtime {
	t.Helper()
	return NewRuntime("job-test", testClaim(), nil, session, fastConfig(t.TempDir()), common.GetLogger())
}

func namedStep(name string, attempts int, run StepFunc) Step {
	return Step{Name: name, Attempts: attempts, Run: run}
}

func TestRunnerRunsPlanInOrder(t *testing.T) {
	rt := newTestRuntime(t, newFakeSession())
	runner := NewRunner(rt.cfg, common.GetLogger())

	var order []string
	var progressed []string
	runner.OnStepCompleted = func(step string, acc *Accumulator) {
		progressed = append(progressed, step)
	}

	plan := []Step{
		namedStep("one", 1, func(ctx context.Context, rt *Runtime) error {
			order = append(order, "one")
			return nil
		}),
		namedStep("two", 1, func(ctx context.Context, rt *Runtime) error {
			order = append(order, "two")
			return nil
		}),
	}

	require.NoError(t, runner.Run(context.Background(), plan, rt))
	assert.Equal(t, []string{"one", "two"}, order)
	assert.Equal(t, []string{"one", "two"}, rt.Acc.CompletedSteps)
	assert.Equal(t, []string{"one", "two"}, progressed)
	assert.Empty(t, rt.Acc.Errors)
}

func TestRunnerRetriesThenSucceeds(t *testing.T) {
	rt := newTestRuntime(t, newFakeSession())
	runner := NewRunner(rt.cfg, common.GetLogger())

	attempts := 0
	plan := []Step{
		namedStep("flaky", 3, func(ctx context.Context, rt *Runtime) error {
			attempts++
			if attempts < 3 {
				return errors.New("transient")
			}
			return nil
		}),
	}

	require.NoError(t, runner.Run(context.Background(), plan, rt))
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []string{"flaky"}, rt.Acc.CompletedSteps)
	assert.Empty(t, rt.Acc.Errors, "a step that eventually succeeds leaves no error record")
}

func TestRunnerStopsAtFirstExhaustedStep(t *testing.T) {
	session := newFakeSession()
	rt := newTestRuntime(t, session)
	runner := NewRunner(rt.cfg, common.GetLogger())

	attempts := 0
	ranAfter := false
	plan := []Step{
		namedStep("ok", 1, func(ctx context.Context, rt *Runtime) error { return nil }),
		namedStep("doomed", 2, func(ctx context.Context, rt *Runtime) error {
			attempts++
			return errors.New("widget went away")
		}),
		namedStep("never", 1, func(ctx context.Context, rt *Runtime) error {
			ranAfter = true
			return nil
		}),
	}

	err := runner.Run(context.Background(), plan, rt)
	require.Error(t, err)

	var failure *StepFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, "doomed", failure.Step)
	assert.Equal(t, 2, attempts)
	assert.False(t, ranAfter, "steps after the failure must not run")

	// The accumulator keeps everything gathered before the failure.
	assert.Equal(t, []string{"ok"}, rt.Acc.CompletedSteps)
	require.Len(t, rt.Acc.Errors, 1)
	assert.Equal(t, "doomed", rt.Acc.Errors[0].Step)
	assert.Contains(t, rt.Acc.Errors[0].Error, "widget went away")

	// Evidence was captured on the final failed attempt.
	assert.Equal(t, 1, session.screenshots)
	assert.NotEmpty(t, failure.Evidence)
	assert.Equal(t, rt.Acc.Errors[0].Evidence, failure.Evidence)
}

func TestRunnerStepTimeout(t *testing.T) {
	rt := newTestRuntime(t, newFakeSession())
	runner := NewRunner(rt.cfg, common.GetLogger())

	plan := []Step{
		namedStep("hang", 1, func(ctx context.Context, rt *Runtime) error {
			<-ctx.Done()
			return ctx.Err()
		}),
	}

	start := time.Now()
	err := runner.Run(context.Background(), plan, rt)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second, "step budget must bound a hung step")
}

func TestRunnerCancelledBetweenSteps(t *testing.T) {
	rt := newTestRuntime(t, newFakeSession())
	runner := NewRunner(rt.cfg, common.GetLogger())

	ctx, cancel := context.WithCancel(context.Background())
	plan := []Step{
		namedStep("first", 1, func(ctx context.Context, rt *Runtime) error {
			cancel()
			return nil
		}),
		namedStep("second", 1, func(ctx context.Context, rt *Runtime) error { return nil }),
	}

	err := runner.Run(ctx, plan, rt)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"first"}, rt.Acc.CompletedSteps)
}

func TestFullPlanAgainstFakeWidget(t *testing.T) {
	session := newFakeSession()
	session.widget.html = `<body><div class="message">Processed under reference: 9988776</div></body>`

	rt := NewRuntime("job-full", testClaim(), nil, session, fastConfig(t.TempDir()), common.GetLogger())
	runner := NewRunner(rt.cfg, common.GetLogger())

	require.NoError(t, runner.Run(context.Background(), Plan(), rt))

	assert.Len(t, rt.Acc.CompletedSteps, 14)
	assert.Equal(t, models.StepLaunchSession, rt.Acc.CompletedSteps[0])
	assert.Equal(t, models.StepDeclineAnother, rt.Acc.CompletedSteps[13])
	assert.Equal(t, "9988776", rt.Acc.CaseNumber)
	assert.True(t, session.started)
	assert.Equal(t, "https://example.com/refund", session.navigated)
	assert.NotEmpty(t, rt.Acc.Evidence)
}
