package models

import (
	"fmt"
	"time"
)

// JobStatus represents the state of a refund claim job
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// IsTerminal reports whether the status is a terminal state
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransitionTo enforces the monotonic lifecycle
// queued -> running -> {completed, failed}. No job ever regresses.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobStatusQueued:
		return next == JobStatusRunning
	case JobStatusRunning:
		return next == JobStatusCompleted || next == JobStatusFailed
	default:
		return false
	}
}

// StepError is the structured record appended when a step exhausts its retries
type StepError struct {
	Step     string `json:"step"`
	Error    string `json:"error"`
	Evidence string `json:"evidence,omitempty"` // Path of the screenshot captured on the final failed attempt
}

// Job is one refund-claim automation run, tracked end-to-end.
// The record is owned exclusively by the job store and mutated only through
// its update operation; callers receive copies.
type Job struct {
	ID           string       `json:"job_id"`
	Status       JobStatus    `json:"status"`
	BookingCode  string       `json:"booking_code"`
	BookingEmail string       `json:"booking_email"`
	Reason       RefundReason `json:"reason"`
	ClaimID      string       `json:"claim_id,omitempty"`

	CompletedSteps []string    `json:"completed_steps"`
	Errors         []StepError `json:"errors"`
	Evidence       []string    `json:"evidence"`              // Ordered evidence screenshot paths
	CaseNumber     string      `json:"case_number,omitempty"` // Reference number extracted on success

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewJob creates a queued job record from a validated claim request
func NewJob(id string, claim *ClaimRequest) *Job {
	return &Job{
		ID:             id,
		Status:         JobStatusQueued,
		BookingCode:    claim.BookingCode,
		BookingEmail:   claim.BookingEmail,
		Reason:         claim.Reason,
		ClaimID:        claim.ClaimID,
		CompletedSteps: []string{},
		Errors:         []StepError{},
		Evidence:       []string{},
		CreatedAt:      time.Now(),
	}
}

// Clone returns a deep copy safe to hand outside the store's lock
func (j *Job) Clone() *Job {
	c := *j
	c.CompletedSteps = append([]string{}, j.CompletedSteps...)
	c.Errors = append([]StepError{}, j.Errors...)
	c.Evidence = append([]string{}, j.Evidence...)
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// InvalidTransitionError reports an attempted status regression
type InvalidTransitionError struct {
	JobID string
	From  JobStatus
	To    JobStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("job %s: invalid status transition %s -> %s", e.JobID, e.From, e.To)
}
