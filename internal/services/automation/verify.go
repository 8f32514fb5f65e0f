package automation

import (
	"context"
	"fmt"

	"github.com/ternarybob/reclaim/internal/interfaces"
	"github.com/ternarybob/reclaim/internal/models"
)

// Retrieve-booking form controls. The page is classic server-rendered ASP.NET
// so the ids carry stable fragments.
var (
	bookingCodeInput  = interfaces.CSS(`input[id*="CONFIRMATIONNUMBER"], input[id*="InputCode"], input[name*="CONFIRMATIONNUMBER"]`)
	bookingEmailInput = interfaces.CSS(`input[id*="CONTACTEMAIL"], input[id*="InputEmail"], input[name*="CONTACTEMAIL"]`)
	retrieveButton    = interfaces.CSS(`a[id*="LinkButtonRetrieve"]`)
)

// flightBoxMarkers match the flight-details panels rendered when a booking
// is found.
var flightBoxMarkers = []interfaces.Selector{
	interfaces.CSS(".flightDetailsBox"),
	interfaces.CSS("[class*='flightDetailsBox']"),
}

// VerifyPlan builds the fixed ordered step sequence for one booking
// verification. A booking that does not exist is a completed run, not a
// failed one: the verdict lives in the accumulator.
func VerifyPlan() []Step {
	return []Step{
		{Name: models.StepLaunchSession, Attempts: 2, Run: stepLaunchSession},
		{Name: models.StepOpenBookingPage, Attempts: 2, Run: stepOpenBookingPage},
		{Name: models.StepFillCredentials, Attempts: 2, Run: stepFillCredentials},
		{Name: models.StepRetrieveBooking, Attempts: 2, Run: stepRetrieveBooking},
		{Name: models.StepReadBookingResult, Attempts: 1, Run: stepReadBookingResult},
	}
}

func stepOpenBookingPage(ctx context.Context, rt *Runtime) error {
	if err := rt.Session.Navigate(ctx, rt.cfg.VerifyURL); err != nil {
		return err
	}
	rt.Pace(ctx)
	dismissCookieBanner(ctx, rt)
	rt.CaptureEvidence(ctx, "booking_page_loaded")
	return nil
}

func stepFillCredentials(ctx context.Context, rt *Runtime) error {
	page := rt.Session.Page()

	if err := page.Fill(ctx, bookingCodeInput, rt.Verify.BookingCode); err != nil {
		return fmt.Errorf("booking code field: %w", err)
	}
	rt.Pace(ctx)

	if err := page.Fill(ctx, bookingEmailInput, rt.Verify.BookingEmail); err != nil {
		return fmt.Errorf("booking email field: %w", err)
	}

	rt.CaptureEvidence(ctx, "credentials_filled")
	rt.Pace(ctx)
	return nil
}

func stepRetrieveBooking(ctx context.Context, rt *Runtime) error {
	page := rt.Session.Page()

	if err := page.Click(ctx, retrieveButton); err != nil {
		if err2 := rt.ResolvePage(ctx, "retrieve booking", ClickTextStrategies("Go")); err2 != nil {
			return fmt.Errorf("retrieve button: %w", err)
		}
	}

	// The result arrives as a full postback; wait for the flight panels
	// rather than a widget message. No panel settling is the not-found
	// outcome, decided by the next step.
	AwaitChange(ctx, flightBoxSignal(page), 0, DetectorOptions{
		Timeout:      rt.cfg.StepTimeoutDuration(),
		PollInterval: rt.cfg.PollIntervalDuration(),
		SettleWindow: rt.cfg.SettleWindowDuration(),
	})

	rt.Pace(ctx)
	rt.CaptureEvidence(ctx, "booking_retrieved")
	return nil
}

func stepReadBookingResult(ctx context.Context, rt *Runtime) error {
	page := rt.Session.Page()

	html, err := page.HTML(ctx, interfaces.CSS("body"))
	if err != nil {
		text, terr := page.Text(ctx, interfaces.CSS("body"))
		if terr != nil {
			return fmt.Errorf("read booking result: %w", err)
		}
		html = "<body>" + text + "</body>"
	}

	if details, ok := ExtractBookingDetails(html, rt.Verify.BookingCode); ok {
		rt.Acc.Booking = details
		rt.log.Info().
			Str("job_id", rt.JobID).
			Str("booking_code", rt.Verify.BookingCode).
			Int("flights", len(details.Flights)).
			Msg("Booking verified")
	} else {
		rt.log.Info().
			Str("job_id", rt.JobID).
			Str("booking_code", rt.Verify.BookingCode).
			Msg("Booking not found on result page")
	}

	rt.CaptureEvidence(ctx, "booking_result")
	return nil
}

// flightBoxSignal counts flight-details panels on the page
func flightBoxSignal(page interfaces.WidgetContext) SignalSource {
	return func(ctx context.Context) int {
		max := 0
		for _, sel := range flightBoxMarkers {
			n, err := page.Count(ctx, sel)
			if err != nil {
				continue
			}
			if n > max {
				max = n
			}
		}
		return max
	}
}
