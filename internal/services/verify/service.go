package verify

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reclaim/internal/common"
	"github.com/ternarybob/reclaim/internal/interfaces"
	"github.com/ternarybob/reclaim/internal/models"
	"github.com/ternarybob/reclaim/internal/services/automation"
)

// Service runs synchronous booking verifications. Unlike claims there is no
// queue: the caller waits for the verdict, so each request owns a browser
// session for exactly the duration of the run.
type Service struct {
	cfg      *common.Config
	sessions interfaces.SessionFactory
	notifier interfaces.VerificationNotifier
	log      arbor.ILogger
}

// NewService creates the verification service
func NewService(cfg *common.Config, sessions interfaces.SessionFactory,
	notifier interfaces.VerificationNotifier, log arbor.ILogger) *Service {
	return &Service{
		cfg:      cfg,
		sessions: sessions,
		notifier: notifier,
		log:      log,
	}
}

// Verify checks the booking against the retrieve-booking page and reports
// the verdict. A booking that does not exist is a successful run with
// Verified false; the returned error covers only runs that never reached a
// verdict. The callback sink, when set, always receives the outcome.
func (s *Service) Verify(ctx context.Context, req *models.VerifyRequest) (*models.VerifyResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	runID := "verify-" + common.NewJobID()
	log := s.log.WithCorrelationId(runID)
	log.Info().Str("booking_code", req.BookingCode).Msg("Verification started")

	result := &models.VerifyResult{
		BookingCode:  req.BookingCode,
		BookingEmail: req.BookingEmail,
		ClaimID:      req.ClaimID,
	}

	runErr := s.run(ctx, runID, req, result, log)
	if runErr != nil {
		result.Status = models.VerifyStatusError
		result.Error = runErr.Error()
		log.Warn().Err(runErr).Str("booking_code", req.BookingCode).Msg("Verification failed")
	} else if result.Verified {
		result.Status = models.VerifyStatusVerified
		log.Info().Str("booking_code", req.BookingCode).Msg("Booking verified")
	} else {
		result.Status = models.VerifyStatusNotFound
		result.Error = "Booking not found or invalid credentials"
		log.Info().Str("booking_code", req.BookingCode).Msg("Booking not found")
	}

	s.notifier.NotifyVerification(ctx, req.CallbackURL, result)
	return result, runErr
}

// run drives the verification plan with the same isolation a worker gives a
// claim job: a panic in the browser layer becomes an error, never escapes.
func (s *Service) run(ctx context.Context, runID string, req *models.VerifyRequest,
	result *models.VerifyResult, log arbor.ILogger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("panic", fmt.Sprintf("%v", r)).Msg("Verification panicked")
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	session, err := s.sessions.NewSession(runID)
	if err != nil {
		return fmt.Errorf("launch session: %w", err)
	}
	defer session.Close()

	rt := automation.NewVerifyRuntime(runID, req, session, s.cfg.Automation, log)
	runner := automation.NewRunner(s.cfg.Automation, log)
	if err := runner.Run(ctx, automation.VerifyPlan(), rt); err != nil {
		return err
	}

	if rt.Acc.Booking != nil {
		result.Verified = true
		result.Details = rt.Acc.Booking
	}
	return nil
}
