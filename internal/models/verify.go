package models

import "strings"

// VerifyRequest asks whether a booking exists, checked live against the
// airline's retrieve-booking page.
type VerifyRequest struct {
	BookingCode  string `json:"booking_code" validate:"required,alphanum,min=5,max=8"`
	BookingEmail string `json:"booking_email" validate:"required,email"`
	ClaimID      string `json:"claim_id,omitempty"`                              // Caller's own claim reference, echoed in the callback
	CallbackURL  string `json:"callback_url,omitempty" validate:"omitempty,url"` // Verification outcome callback sink
}

// Validate checks the verification payload and normalizes the booking code
func (v *VerifyRequest) Validate() error {
	v.BookingCode = strings.ToUpper(strings.TrimSpace(v.BookingCode))
	return claimValidator.Struct(v)
}

// Flight is one leg read off the retrieved booking page. Every field is
// best-effort: the page renders what it renders.
type Flight struct {
	FlightNumber        string `json:"flight_number,omitempty"`
	FlightDate          string `json:"flight_date,omitempty"`
	Direction           string `json:"direction,omitempty"` // "outbound" or "return"
	Origin              string `json:"origin,omitempty"`    // IATA code
	Destination         string `json:"destination,omitempty"`
	OriginCity          string `json:"origin_city,omitempty"`
	DestinationCity     string `json:"destination_city,omitempty"`
	OriginTerminal      string `json:"origin_terminal,omitempty"`
	DestinationTerminal string `json:"destination_terminal,omitempty"`
	DepartureTime       string `json:"departure_time,omitempty"`
	ArrivalTime         string `json:"arrival_time,omitempty"`
}

// BookingDetails is everything a verification run learned about a booking.
// The first leg is embedded so flat consumers see its fields at the top
// level alongside the full flights list.
type BookingDetails struct {
	Flight
	BookingCode string   `json:"booking_code"`
	Exists      bool     `json:"exists"`
	Passengers  int      `json:"passengers,omitempty"`
	Flights     []Flight `json:"flights"`
}

// Verification outcome vocabulary delivered to callers and callback sinks
const (
	VerifyStatusVerified = "verified"
	VerifyStatusNotFound = "not_found"
	VerifyStatusError    = "error"
)

// VerifyResult is the terminal outcome of one verification run
type VerifyResult struct {
	Verified     bool            `json:"verified"`
	Status       string          `json:"status"`
	BookingCode  string          `json:"booking_code"`
	BookingEmail string          `json:"booking_email,omitempty"`
	ClaimID      string          `json:"claim_id,omitempty"`
	Details      *BookingDetails `json:"booking_details,omitempty"`
	Error        string          `json:"error,omitempty"`
}
