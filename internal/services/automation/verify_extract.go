package automation

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/reclaim/internal/models"
)

var (
	flightDatePattern   = regexp.MustCompile(`(\d{1,2}[./]\d{1,2}[./]\d{2,4})`)
	iataCodePattern     = regexp.MustCompile(`([A-Z]{3})`)
	flightNumberPattern = regexp.MustCompile(`(?i)flight\s*n[°ºo]?\s*:?\s*(VY\d+)`)
	passengersPattern   = regexp.MustCompile(`(?i)(\d+)\s*adult`)
)

// ExtractBookingDetails reads the retrieve-booking result page and returns
// the booking's details when the page shows it was found. The second return
// is false for the not-found page.
func ExtractBookingDetails(html, bookingCode string) (*models.BookingDetails, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, false
	}
	doc.Find("script, style, noscript").Remove()

	boxes := doc.Find(".sectionBorderTab.flightDetailsBox")
	if boxes.Length() == 0 {
		boxes = doc.Find(".flightDetailsBox")
	}

	if boxes.Length() == 0 {
		// Fallback: some result layouts render the itinerary without the
		// panel classes; the booking code appearing next to flight copy
		// still means the booking exists.
		body := strings.ToUpper(normalizeWhitespace(doc.Text()))
		if !strings.Contains(body, strings.ToUpper(bookingCode)) || !strings.Contains(body, "FLIGHT") {
			return nil, false
		}
		return &models.BookingDetails{
			BookingCode: bookingCode,
			Exists:      true,
			Flights:     []models.Flight{},
			Passengers:  extractPassengers(doc),
		}, true
	}

	details := &models.BookingDetails{
		BookingCode: bookingCode,
		Exists:      true,
		Flights:     []models.Flight{},
		Passengers:  extractPassengers(doc),
	}

	boxes.Each(func(_ int, box *goquery.Selection) {
		flight := extractFlight(box)
		if flight != (models.Flight{}) {
			details.Flights = append(details.Flights, flight)
		}
	})

	if len(details.Flights) > 0 {
		details.Flight = details.Flights[0]
	}
	return details, true
}

// extractFlight reads one flight-details panel. Every field is optional.
func extractFlight(box *goquery.Selection) models.Flight {
	var flight models.Flight

	dateText := normalizeWhitespace(box.Find(".flightDetailsBox__date").First().Text())
	if m := flightDatePattern.FindStringSubmatch(dateText); m != nil {
		flight.FlightDate = m[1]
	}
	switch lower := strings.ToLower(dateText); {
	case strings.Contains(lower, "outbound"):
		flight.Direction = "outbound"
	case strings.Contains(lower, "inbound"), strings.Contains(lower, "return"):
		flight.Direction = "return"
	}

	places := box.Find(".flightDetailsBox__infoFLight__place")
	if places.Length() >= 2 {
		flight.OriginCity = normalizeWhitespace(places.Eq(0).Text())
		flight.DestinationCity = normalizeWhitespace(places.Eq(1).Text())
	}

	terminals := box.Find(".flightDetailsBox__infoFLight__terminal")
	if terminals.Length() >= 2 {
		flight.OriginTerminal = normalizeWhitespace(terminals.Eq(0).Text())
		flight.DestinationTerminal = normalizeWhitespace(terminals.Eq(1).Text())
		if m := iataCodePattern.FindStringSubmatch(flight.OriginTerminal); m != nil {
			flight.Origin = m[1]
		}
		if m := iataCodePattern.FindStringSubmatch(flight.DestinationTerminal); m != nil {
			flight.Destination = m[1]
		}
	}

	times := box.Find(".flightDetailsBox__infoFLight__time")
	if times.Length() >= 2 {
		flight.DepartureTime = normalizeWhitespace(times.Eq(0).Text())
		flight.ArrivalTime = normalizeWhitespace(times.Eq(1).Text())
	}

	content := normalizeWhitespace(box.Find(".flightDetailsBox__infoFLight__sectionContent").First().Text())
	if m := flightNumberPattern.FindStringSubmatch(content); m != nil {
		flight.FlightNumber = m[1]
	}

	return flight
}

func extractPassengers(doc *goquery.Document) int {
	if m := passengersPattern.FindStringSubmatch(normalizeWhitespace(doc.Text())); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n
		}
	}
	return 0
}
