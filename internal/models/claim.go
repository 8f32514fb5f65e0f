package models

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// RefundReason is the canonical cancellation-reason vocabulary accepted by the API.
// The conversational widget renders these with drifting capitalization; the
// automation layer maps each canonical value to an ordered list of UI label
// variants (see automation.ReasonVariants).
type RefundReason string

const (
	ReasonIllOrSurgery RefundReason = "ILL OR HAVING SURGERY"
	ReasonPregnant     RefundReason = "PREGNANT"
	ReasonCourtSummons RefundReason = "COURT SUMMONS OR SERVICE AT POLLING STATION"
	ReasonDeath        RefundReason = "SOMEONE'S DEATH"
)

// IsValid checks if the reason is a known canonical value
func (r RefundReason) IsValid() bool {
	switch r {
	case ReasonIllOrSurgery, ReasonPregnant, ReasonCourtSummons, ReasonDeath:
		return true
	}
	return false
}

// NormalizeReason trims and uppercases a free-form reason string into the
// canonical vocabulary, returning false if it matches no known reason.
func NormalizeReason(s string) (RefundReason, bool) {
	r := RefundReason(strings.ToUpper(strings.TrimSpace(s)))
	return r, r.IsValid()
}

// Document is a claim attachment reference: a filename plus either inline
// base64 content or a remote URL to download from. Exactly one of URL or
// Base64 should be set.
type Document struct {
	Filename string `json:"filename" validate:"required"`
	URL      string `json:"url,omitempty" validate:"omitempty,url"`
	Base64   string `json:"base64,omitempty"`
}

// ClaimRequest is the inbound payload that starts a refund claim job
type ClaimRequest struct {
	BookingCode  string       `json:"booking_code" validate:"required,alphanum,min=5,max=8"`
	BookingEmail string       `json:"booking_email" validate:"required,email"`
	Reason       RefundReason `json:"reason"`
	FirstName    string       `json:"first_name" validate:"required"`
	Surname      string       `json:"surname" validate:"required"`
	ContactEmail string       `json:"contact_email" validate:"required,email"`
	PhoneCountry string       `json:"phone_country"` // e.g. "+34"; defaults applied in Normalize
	PhoneNumber  string       `json:"phone_number" validate:"required"`
	Comment      string       `json:"comment,omitempty"` // Optional free-text case comment
	Documents    []Document   `json:"documents,omitempty"`
	ClaimID      string       `json:"claim_id,omitempty"`     // Caller's own claim reference, echoed in callbacks
	CallbackURL  string       `json:"callback_url,omitempty" validate:"omitempty,url"` // Per-step progress callback sink
}

var claimValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the claim payload and normalizes defaults.
// Returns the first validation failure as an error.
func (c *ClaimRequest) Validate() error {
	if c.Reason == "" {
		c.Reason = ReasonIllOrSurgery
	}
	if c.PhoneCountry == "" {
		c.PhoneCountry = "+34"
	}
	c.BookingCode = strings.ToUpper(strings.TrimSpace(c.BookingCode))

	if err := claimValidator.Struct(c); err != nil {
		return err
	}
	if !c.Reason.IsValid() {
		return &InvalidReasonError{Reason: string(c.Reason)}
	}
	return nil
}

// InvalidReasonError reports a reason outside the canonical vocabulary
type InvalidReasonError struct {
	Reason string
}

func (e *InvalidReasonError) Error() string {
	return "unknown refund reason: " + e.Reason
}
