package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validClaim() *ClaimRequest {
	return &ClaimRequest{
		BookingCode:  "ehzrmc",
		BookingEmail: "traveler@example.com",
		Reason:       ReasonPregnant,
		FirstName:    "Maria",
		Surname:      "Lopez",
		ContactEmail: "maria@example.com",
		PhoneNumber:  "600123456",
	}
}

func TestClaimValidate(t *testing.T) {
	t.Run("valid claim normalizes booking code", func(t *testing.T) {
		claim := validClaim()
		require.NoError(t, claim.Validate())
		assert.Equal(t, "EHZRMC", claim.BookingCode)
	})

	t.Run("defaults applied", func(t *testing.T) {
		claim := validClaim()
		claim.Reason = ""
		claim.PhoneCountry = ""
		require.NoError(t, claim.Validate())
		assert.Equal(t, ReasonIllOrSurgery, claim.Reason)
		assert.Equal(t, "+34", claim.PhoneCountry)
	})

	t.Run("missing booking code rejected", func(t *testing.T) {
		claim := validClaim()
		claim.BookingCode = ""
		assert.Error(t, claim.Validate())
	})

	t.Run("booking code too short rejected", func(t *testing.T) {
		claim := validClaim()
		claim.BookingCode = "AB1"
		assert.Error(t, claim.Validate())
	})

	t.Run("bad email rejected", func(t *testing.T) {
		claim := validClaim()
		claim.BookingEmail = "not-an-email"
		assert.Error(t, claim.Validate())
	})

	t.Run("unknown reason rejected", func(t *testing.T) {
		claim := validClaim()
		claim.Reason = RefundReason("LOST LUGGAGE")
		err := claim.Validate()
		require.Error(t, err)
		var reasonErr *InvalidReasonError
		assert.ErrorAs(t, err, &reasonErr)
	})

	t.Run("bad callback url rejected", func(t *testing.T) {
		claim := validClaim()
		claim.CallbackURL = "not a url"
		assert.Error(t, claim.Validate())
	})
}

func TestNormalizeReason(t *testing.T) {
	tests := []struct {
		in    string
		want  RefundReason
		valid bool
	}{
		{"pregnant", ReasonPregnant, true},
		{"  Pregnant ", ReasonPregnant, true},
		{"someone's death", ReasonDeath, true},
		{"ILL OR HAVING SURGERY", ReasonIllOrSurgery, true},
		{"missed flight", "", false},
	}
	for _, tt := range tests {
		got, ok := NormalizeReason(tt.in)
		assert.Equal(t, tt.valid, ok, tt.in)
		if tt.valid {
			assert.Equal(t, tt.want, got, tt.in)
		}
	}
}
