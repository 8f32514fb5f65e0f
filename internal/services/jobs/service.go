package jobs

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reclaim/internal/common"
	"github.com/ternarybob/reclaim/internal/interfaces"
	"github.com/ternarybob/reclaim/internal/models"
)

// Service is the submission-side API over the store and queue
type Service struct {
	store  *Store
	queue  *Queue
	events interfaces.EventService
	log    arbor.ILogger
}

// NewService creates the job service
func NewService(store *Store, queue *Queue, events interfaces.EventService, log arbor.ILogger) *Service {
	return &Service{store: store, queue: queue, events: events, log: log}
}

// Submit validates the claim, registers a queued job, and enqueues it.
// The returned job is the caller's receipt; processing happens on a worker.
func (s *Service) Submit(ctx context.Context, claim *models.ClaimRequest) (*models.Job, error) {
	if err := claim.Validate(); err != nil {
		return nil, err
	}

	job := models.NewJob(common.NewJobID(), claim)
	s.store.Add(job, claim)

	if err := s.queue.Enqueue(ctx, job.ID); err != nil {
		s.store.Remove(job.ID)
		return nil, fmt.Errorf("enqueue job: %w", err)
	}

	s.log.Info().
		Str("job_id", job.ID).
		Str("booking_code", job.BookingCode).
		Str("reason", string(job.Reason)).
		Int("documents", len(claim.Documents)).
		Msg("Claim accepted")

	s.events.Publish(ctx, interfaces.Event{
		Type:  interfaces.EventJobCreated,
		JobID: job.ID,
		Payload: map[string]interface{}{
			"status":       string(job.Status),
			"booking_code": job.BookingCode,
		},
	})

	return job, nil
}

// Get returns a copy of the job record
func (s *Service) Get(id string) (*models.Job, bool) {
	return s.store.Get(id)
}

// List returns copies of all jobs, newest first
func (s *Service) List() []*models.Job {
	return s.store.List()
}

// QueueDepth reports how many jobs are waiting for a worker
func (s *Service) QueueDepth() int {
	return s.queue.Len()
}
