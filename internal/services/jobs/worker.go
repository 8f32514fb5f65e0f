package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reclaim/internal/common"
	"github.com/ternarybob/reclaim/internal/interfaces"
	"github.com/ternarybob/reclaim/internal/models"
	"github.com/ternarybob/reclaim/internal/services/automation"
)

// Pool runs the claim automation workers. Each worker owns at most one
// browser session at a time; a job blowing up in any way marks that job
// failed and the worker moves on to the next id.
type Pool struct {
	cfg         *common.Config
	store       *Store
	queue       *Queue
	sessions    interfaces.SessionFactory
	attachments interfaces.AttachmentResolver
	notifier    interfaces.StatusNotifier
	events      interfaces.EventService
	log         arbor.ILogger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPool creates the worker pool
func NewPool(cfg *common.Config, store *Store, queue *Queue, sessions interfaces.SessionFactory,
	attachments interfaces.AttachmentResolver, notifier interfaces.StatusNotifier,
	events interfaces.EventService, log arbor.ILogger) *Pool {
	return &Pool{
		cfg:         cfg,
		store:       store,
		queue:       queue,
		sessions:    sessions,
		attachments: attachments,
		notifier:    notifier,
		events:      events,
		log:         log,
	}
}

// Start launches the configured number of workers
func (p *Pool) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	workers := p.cfg.Queue.Workers
	if workers <= 0 {
		workers = 1
	}

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}

	p.log.Info().Int("workers", workers).Msg("Worker pool started")
}

// Stop cancels in-flight jobs and waits for the workers to exit
func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.queue.Close()
	p.wg.Wait()
	p.log.Info().Msg("Worker pool stopped")
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	p.log.Debug().Int("worker", id).Msg("Worker started")

	for {
		jobID, err := p.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, ErrQueueClosed) || errors.Is(err, context.Canceled) {
				p.log.Debug().Int("worker", id).Msg("Worker stopping")
				return
			}
			p.log.Warn().Err(err).Int("worker", id).Msg("Dequeue failed")
			continue
		}
		p.runJob(ctx, p.log.WithCorrelationId(jobID), jobID)
	}
}

// runJob executes one job end to end with full isolation: panics and
// unexpected errors mark the job failed and never escape to the worker loop.
func (p *Pool) runJob(ctx context.Context, log arbor.ILogger, jobID string) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("job_id", jobID).Str("panic", fmt.Sprintf("%v", r)).Msg("Job panicked")
			p.finishJob(ctx, jobID, false, &automation.Accumulator{
				Errors: []models.StepError{{Step: "worker", Error: fmt.Sprintf("panic: %v", r)}},
			})
		}
	}()

	claim, ok := p.store.Claim(jobID)
	if !ok {
		log.Warn().Str("job_id", jobID).Msg("Dequeued unknown job")
		return
	}

	running := models.JobStatusRunning
	now := time.Now()
	if err := p.store.Apply(jobID, Update{Status: &running, StartedAt: &now}); err != nil {
		log.Warn().Err(err).Str("job_id", jobID).Msg("Could not mark job running")
		return
	}
	log.Info().Str("job_id", jobID).Str("booking_code", claim.BookingCode).Msg("Job started")

	docs := p.attachments.Resolve(ctx, jobID, claim.Documents)
	defer p.attachments.Cleanup(jobID)

	session, err := p.sessions.NewSession(jobID)
	if err != nil {
		p.finishJob(ctx, jobID, false, &automation.Accumulator{
			Errors: []models.StepError{{Step: models.StepLaunchSession, Error: err.Error()}},
		})
		return
	}
	defer session.Close()

	rt := automation.NewRuntime(jobID, claim, docs, session, p.cfg.Automation, log)

	runner := automation.NewRunner(p.cfg.Automation, log)
	runner.OnStepCompleted = func(step string, acc *automation.Accumulator) {
		p.recordProgress(ctx, jobID, claim, step, acc)
	}

	runErr := runner.Run(ctx, automation.Plan(), rt)
	p.finishJob(ctx, jobID, runErr == nil, rt.Acc)

	if runErr != nil {
		log.Warn().Err(runErr).Str("job_id", jobID).Msg("Job failed")
	} else {
		log.Info().Str("job_id", jobID).Str("case_number", rt.Acc.CaseNumber).Msg("Job completed")
	}
}

// recordProgress merges the accumulator into the store after each step and
// fans the progress out to the callback sink and the event bus.
func (p *Pool) recordProgress(ctx context.Context, jobID string, claim *models.ClaimRequest, step string, acc *automation.Accumulator) {
	update := Update{
		CompletedSteps: acc.CompletedSteps,
		Errors:         acc.Errors,
		Evidence:       acc.Evidence,
	}
	if acc.CaseNumber != "" {
		update.CaseNumber = &acc.CaseNumber
	}
	if err := p.store.Apply(jobID, update); err != nil {
		p.log.Warn().Err(err).Str("job_id", jobID).Msg("Progress update rejected")
		return
	}

	job, ok := p.store.Get(jobID)
	if !ok {
		return
	}

	p.notifier.NotifyStep(ctx, claim.CallbackURL, job, step)
	p.events.Publish(ctx, interfaces.Event{
		Type:  interfaces.EventStepCompleted,
		JobID: jobID,
		Payload: map[string]interface{}{
			"step":            step,
			"completed_steps": job.CompletedSteps,
		},
	})
}

// finishJob writes the terminal record and sends the final notification
func (p *Pool) finishJob(ctx context.Context, jobID string, success bool, acc *automation.Accumulator) {
	status := models.JobStatusFailed
	eventType := interfaces.EventJobFailed
	if success {
		status = models.JobStatusCompleted
		eventType = interfaces.EventJobCompleted
	}

	// A failed record must always carry at least one structured error. A run
	// cancelled between steps (shutdown, drained queue) reaches here with an
	// empty accumulator.
	errs := acc.Errors
	if !success && len(errs) == 0 {
		errs = []models.StepError{{Step: "worker", Error: "cancelled before completion"}}
	}

	now := time.Now()
	update := Update{
		Status:         &status,
		CompletedAt:    &now,
		CompletedSteps: acc.CompletedSteps,
		Errors:         errs,
		Evidence:       acc.Evidence,
	}
	if acc.CaseNumber != "" {
		update.CaseNumber = &acc.CaseNumber
	}
	if err := p.store.Apply(jobID, update); err != nil {
		p.log.Warn().Err(err).Str("job_id", jobID).Msg("Terminal update rejected")
		return
	}

	job, ok := p.store.Get(jobID)
	if !ok {
		return
	}

	if claim, ok := p.store.Claim(jobID); ok {
		p.notifier.NotifyFinished(ctx, claim.CallbackURL, job)
	}

	p.events.Publish(ctx, interfaces.Event{
		Type:  eventType,
		JobID: jobID,
		Payload: map[string]interface{}{
			"status":      string(job.Status),
			"case_number": job.CaseNumber,
		},
	})
}
