package interfaces

import (
	"context"

	"github.com/ternarybob/reclaim/internal/models"
)

// AttachmentResolver materializes claim documents into local files that can
// be handed to a file input. Per-document failures are skipped, never fatal.
type AttachmentResolver interface {
	// Resolve returns the local paths of the documents it could materialize.
	Resolve(ctx context.Context, jobID string, docs []models.Document) []string

	// Cleanup removes the job's staging directory.
	Cleanup(jobID string)
}

// StatusNotifier delivers best-effort progress callbacks to the submitter.
// Implementations must never let delivery failures propagate to the caller.
type StatusNotifier interface {
	// NotifyStep reports a completed step for a still-running job.
	NotifyStep(ctx context.Context, callbackURL string, job *models.Job, step string)

	// NotifyFinished reports the terminal outcome of a job.
	NotifyFinished(ctx context.Context, callbackURL string, job *models.Job)
}

// VerificationNotifier delivers the terminal outcome of a booking
// verification run to the caller's callback sink, best-effort.
type VerificationNotifier interface {
	NotifyVerification(ctx context.Context, callbackURL string, result *models.VerifyResult)
}

// EventType identifies a category of internal event
type EventType string

const (
	EventJobCreated    EventType = "job.created"
	EventStepCompleted EventType = "job.step_completed"
	EventJobCompleted  EventType = "job.completed"
	EventJobFailed     EventType = "job.failed"
)

// Event is a message published on the internal bus
type Event struct {
	Type    EventType              `json:"type"`
	JobID   string                 `json:"job_id"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// EventHandler processes a single event
type EventHandler func(ctx context.Context, event Event)

// EventService is the in-process publish/subscribe bus used to fan job
// progress out to the websocket layer.
type EventService interface {
	Subscribe(eventType EventType, handler EventHandler) string
	SubscribeAll(handler EventHandler) string
	Unsubscribe(id string)
	Publish(ctx context.Context, event Event)
	Close()
}
