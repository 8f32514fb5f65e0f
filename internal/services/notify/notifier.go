package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reclaim/internal/common"
	"github.com/ternarybob/reclaim/internal/models"
	"golang.org/x/time/rate"
)

// Envelope is the JSON body delivered to the caller's callback sink
type Envelope struct {
	JobID          string             `json:"job_id"`
	ClaimID        string             `json:"claim_id,omitempty"`
	Status         models.JobStatus   `json:"status"`
	Phase          models.Phase       `json:"phase"`
	Percent        int                `json:"percent"`
	Step           string             `json:"step,omitempty"`
	CompletedSteps []string           `json:"completed_steps"`
	CaseNumber     string             `json:"case_number,omitempty"`
	Errors         []models.StepError `json:"errors,omitempty"`
}

// Notifier delivers best-effort status callbacks. Delivery never blocks a
// job's progress beyond the configured timeout, failures are logged and
// dropped, and a shared rate limiter keeps a burst of jobs from hammering
// one sink.
type Notifier struct {
	client  *http.Client
	limiter *rate.Limiter
	log     arbor.ILogger
}

// NewNotifier creates a callback notifier from config
func NewNotifier(cfg *common.Config, log arbor.ILogger) *Notifier {
	limit := rate.Inf
	if cfg.Callback.RateRPS > 0 {
		limit = rate.Limit(cfg.Callback.RateRPS)
	}
	burst := cfg.Callback.RateBurst
	if burst <= 0 {
		burst = 1
	}
	return &Notifier{
		client:  &http.Client{Timeout: cfg.CallbackTimeout()},
		limiter: rate.NewLimiter(limit, burst),
		log:     log,
	}
}

// NotifyStep reports a completed step for a still-running job
func (n *Notifier) NotifyStep(ctx context.Context, callbackURL string, job *models.Job, step string) {
	if callbackURL == "" {
		return
	}
	phase, percent := models.ProgressForStep(step)
	n.deliver(ctx, callbackURL, Envelope{
		JobID:          job.ID,
		ClaimID:        job.ClaimID,
		Status:         job.Status,
		Phase:          phase,
		Percent:        percent,
		Step:           step,
		CompletedSteps: job.CompletedSteps,
		CaseNumber:     job.CaseNumber,
	})
}

// NotifyFinished reports a terminal outcome
func (n *Notifier) NotifyFinished(ctx context.Context, callbackURL string, job *models.Job) {
	if callbackURL == "" {
		return
	}
	phase, percent := models.PhaseCompleted, 100
	if job.Status == models.JobStatusFailed {
		phase = models.PhaseFailed
		if len(job.CompletedSteps) > 0 {
			_, percent = models.ProgressForStep(job.CompletedSteps[len(job.CompletedSteps)-1])
		} else {
			percent = 0
		}
	}
	n.deliver(ctx, callbackURL, Envelope{
		JobID:          job.ID,
		ClaimID:        job.ClaimID,
		Status:         job.Status,
		Phase:          phase,
		Percent:        percent,
		CompletedSteps: job.CompletedSteps,
		CaseNumber:     job.CaseNumber,
		Errors:         job.Errors,
	})
}

// VerificationEnvelope is the JSON body delivered for booking verification
// outcomes. The claimId key is camelCase: it predates the service and
// consumers depend on it.
type VerificationEnvelope struct {
	ClaimID        string                 `json:"claimId"`
	Type           string                 `json:"type"`
	Verified       bool                   `json:"verified"`
	Status         string                 `json:"status"`
	BookingCode    string                 `json:"booking_code"`
	BookingEmail   string                 `json:"booking_email"`
	BookingDetails *models.BookingDetails `json:"booking_details,omitempty"`
	Error          string                 `json:"error,omitempty"`
}

// NotifyVerification reports the outcome of a booking verification run
func (n *Notifier) NotifyVerification(ctx context.Context, callbackURL string, result *models.VerifyResult) {
	if callbackURL == "" {
		return
	}
	claimID := result.ClaimID
	if claimID == "" {
		claimID = result.BookingCode
	}
	n.deliverVerification(ctx, callbackURL, VerificationEnvelope{
		ClaimID:        claimID,
		Type:           "booking_verification",
		Verified:       result.Verified,
		Status:         result.Status,
		BookingCode:    result.BookingCode,
		BookingEmail:   result.BookingEmail,
		BookingDetails: result.Details,
		Error:          result.Error,
	})
}

// deliver posts the job progress envelope, swallowing every failure
func (n *Notifier) deliver(ctx context.Context, url string, env Envelope) {
	if n.post(ctx, url, env.JobID, env) {
		n.log.Debug().Str("job_id", env.JobID).Str("phase", string(env.Phase)).Int("percent", env.Percent).Msg("Callback delivered")
	}
}

// deliverVerification posts the verification envelope, swallowing every failure
func (n *Notifier) deliverVerification(ctx context.Context, url string, env VerificationEnvelope) {
	if n.post(ctx, url, env.ClaimID, env) {
		n.log.Debug().Str("claim_id", env.ClaimID).Str("status", env.Status).Msg("Verification callback delivered")
	}
}

// post sends one callback body and reports whether the sink accepted it.
// Failures are logged and dropped; they must never reach the caller.
func (n *Notifier) post(ctx context.Context, url, id string, payload interface{}) bool {
	if err := n.limiter.Wait(ctx); err != nil {
		return false
	}

	body, err := json.Marshal(payload)
	if err != nil {
		n.log.Warn().Err(err).Str("id", id).Msg("Failed to encode callback payload")
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		n.log.Warn().Err(err).Str("id", id).Msg("Failed to build callback request")
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.log.Warn().Err(err).Str("id", id).Str("url", url).Msg("Callback delivery failed")
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		n.log.Warn().Int("status", resp.StatusCode).Str("id", id).Str("url", url).Msg("Callback sink rejected delivery")
		return false
	}
	return true
}
