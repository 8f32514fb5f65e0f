package jobs

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/reclaim/internal/models"
)

// Store is the in-memory job registry. One mutex guards both maps; every
// read hands out deep copies so callers can never mutate a record outside
// the store's lock. The store is injected explicitly, never a package global.
type Store struct {
	mu     sync.Mutex
	jobs   map[string]*models.Job
	claims map[string]*models.ClaimRequest
}

// NewStore creates an empty job store
func NewStore() *Store {
	return &Store{
		jobs:   make(map[string]*models.Job),
		claims: make(map[string]*models.ClaimRequest),
	}
}

// Add registers a new job alongside its originating claim
func (s *Store) Add(job *models.Job, claim *models.ClaimRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job.Clone()
	s.claims[job.ID] = claim
}

// Get returns a copy of the job record
func (s *Store) Get(id string) (*models.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, false
	}
	return job.Clone(), true
}

// Claim returns the claim request a job was created from
func (s *Store) Claim(id string) (*models.ClaimRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	claim, ok := s.claims[id]
	return claim, ok
}

// List returns copies of all jobs, newest first
func (s *Store) List() []*models.Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Update describes a partial merge into a job record. Nil fields are left
// untouched; slices replace wholesale when non-nil.
type Update struct {
	Status         *models.JobStatus
	StartedAt      *time.Time
	CompletedAt    *time.Time
	CompletedSteps []string
	Errors         []models.StepError
	Evidence       []string
	CaseNumber     *string
}

// Apply merges the update atomically. A status change that would regress
// the monotonic lifecycle is rejected whole, including its other fields.
func (s *Store) Apply(id string, u Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("job %s not found", id)
	}

	if u.Status != nil && *u.Status != job.Status {
		if !job.Status.CanTransitionTo(*u.Status) {
			return &models.InvalidTransitionError{JobID: id, From: job.Status, To: *u.Status}
		}
		job.Status = *u.Status
	}
	if u.StartedAt != nil {
		t := *u.StartedAt
		job.StartedAt = &t
	}
	if u.CompletedAt != nil {
		t := *u.CompletedAt
		job.CompletedAt = &t
	}
	if u.CompletedSteps != nil {
		job.CompletedSteps = append([]string{}, u.CompletedSteps...)
	}
	if u.Errors != nil {
		job.Errors = append([]models.StepError{}, u.Errors...)
	}
	if u.Evidence != nil {
		job.Evidence = append([]string{}, u.Evidence...)
	}
	if u.CaseNumber != nil {
		job.CaseNumber = *u.CaseNumber
	}
	return nil
}

// Remove deletes a job and its claim, returning the removed record
func (s *Store) Remove(id string) (*models.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, false
	}
	delete(s.jobs, id)
	delete(s.claims, id)
	return job, true
}

// TerminalBefore returns copies of terminal jobs that completed before the
// cutoff, for the retention janitor.
func (s *Store) TerminalBefore(cutoff time.Time) []*models.Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Job
	for _, job := range s.jobs {
		if job.Status.IsTerminal() && job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			out = append(out, job.Clone())
		}
	}
	return out
}

// Count returns the number of tracked jobs
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}
