package pipeline

import (
	"regexp"
	"strings"
	"time"

	"github.com/jkoufopoulos/shopq-prototype-sub001/core/domain"
)

// Pattern path of the entity extractor: per-type regex templates keyed on
// the email's coarse type. Empty output is not an error; the LLM path may
// still contribute. Regex-derived identifiers (flight numbers, tracking
// numbers, confirmation and promo codes, amounts) are authoritative over
// LLM output during merge.

var airlineNamesByCode = map[string]string{
	"AA": "American Airlines",
	"AS": "Alaska Airlines",
	"B6": "JetBlue",
	"BA": "British Airways",
	"DL": "Delta",
	"F9": "Frontier",
	"LH": "Lufthansa",
	"NK": "Spirit",
	"UA": "United",
	"WN": "Southwest",
}

var (
	flightNumberRe = regexp.MustCompile(`\b([A-Z]{2})\s?(\d{2,4})\b`)
	flightRouteRe  = regexp.MustCompile(`\b([A-Z]{3})\s*(?:to|->|→|–|-)\s*([A-Z]{3})\b`)
	confirmationRe = regexp.MustCompile(`(?i)confirmation\s*(?:code|number|#)?[:\s]+([A-Z0-9]{5,8})\b`)

	// Carrier tracking formats (UPS 1Z, USPS 92/93/94 prefixes, FedEx
	// 12-15 digit runs).
	upsTrackingRe   = regexp.MustCompile(`\b1Z[A-Z0-9]{16}\b`)
	uspsTrackingRe  = regexp.MustCompile(`\b9[234]\d{20,24}\b`)
	fedexTrackingRe = regexp.MustCompile(`\b\d{12,15}\b`)

	amountRe    = regexp.MustCompile(`\$\s?(\d{1,3}(?:,\d{3})*(?:\.\d{2})?)`)
	otpCodeRe   = regexp.MustCompile(`\b(\d{4,8})\b`)
	otpExpireRe = regexp.MustCompile(`(?i)expires?\s+in\s+(\d{1,3})\s+minutes?`)
	percentRe   = regexp.MustCompile(`(\d{1,2})%\s+(?:off|discount)`)
	promoCodeRe = regexp.MustCompile(`(?i)\bcode[:\s]+([A-Z0-9]{4,12})\b`)
	dueRe       = regexp.MustCompile(`(?i)\bdue\b`)
)

var flightCues = []string{"flight", "boarding", "itinerary", "check-in", "check in", "departure"}

// extractByPattern runs the template for the email's coarse type and
// returns zero or one entity.
func extractByPattern(email *domain.Email, tc *domain.TemporalContext, now time.Time) *domain.Entity {
	text := email.Subject + " " + email.Snippet
	lower := strings.ToLower(text)

	if containsAny(lower, flightCues) {
		if ent := extractFlight(email, tc, text); ent != nil {
			return ent
		}
	}

	switch email.NormalizedType() {
	case domain.TypeEvent:
		return extractEvent(email, tc)
	case domain.TypeShipping, domain.TypeOrder:
		return extractShipping(email, tc, text)
	case domain.TypeOTP:
		return extractOTP(email, now)
	case domain.TypeReceipt:
		return extractDeadline(email, tc, text)
	case domain.TypePromotion, domain.TypeMarketing:
		return extractPromo(email, tc, text)
	case domain.TypeNotification:
		return extractNotification(email, tc)
	}
	return nil
}

func extractFlight(email *domain.Email, tc *domain.TemporalContext, text string) *domain.Entity {
	m := flightNumberRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	airline, known := airlineNamesByCode[m[1]]
	if !known {
		return nil
	}

	details := &domain.FlightDetails{
		Airline:      airline,
		FlightNumber: m[1] + m[2],
	}
	if route := flightRouteRe.FindStringSubmatch(text); route != nil {
		details.Departure = domain.Location{AirportCode: route[1]}
		details.Arrival = domain.Location{AirportCode: route[2]}
	}
	if conf := confirmationRe.FindStringSubmatch(text); conf != nil {
		details.ConfirmationCode = conf[1]
	}
	if tc.HasEventTime() {
		details.DepartureTime = tc.EventTime
	}

	return &domain.Entity{
		Type:       domain.EntityFlight,
		Confidence: 0.9,
		Flight:     details,
	}
}

func extractEvent(email *domain.Email, tc *domain.TemporalContext) *domain.Entity {
	if !tc.HasEventTime() {
		return nil
	}
	return &domain.Entity{
		Type:       domain.EntityEvent,
		Confidence: 0.8,
		Event: &domain.EventDetails{
			Title:        eventTitleFromSubject(email.Subject),
			EventTime:    tc.EventTime,
			EventEndTime: tc.EventEndTime,
			Organizer:    email.From,
		},
	}
}

// eventTitleFromSubject strips the calendar suffix ("Dinner @ Fri Nov 21,
// 2025 6:30pm (EST)" -> "Dinner") and common notification prefixes.
func eventTitleFromSubject(subject string) string {
	title := subject
	if i := strings.Index(title, "@"); i > 0 {
		title = title[:i]
	}
	for _, prefix := range []string{"Notification:", "Invitation:", "Updated invitation:", "Reminder:"} {
		title = strings.TrimSpace(strings.TrimPrefix(title, prefix))
	}
	return strings.TrimSpace(title)
}

func extractShipping(email *domain.Email, tc *domain.TemporalContext, text string) *domain.Entity {
	details := &domain.NotificationDetails{
		Category: "shipping",
		Message:  email.Subject,
	}
	if m := upsTrackingRe.FindString(text); m != "" {
		details.Carrier = "UPS"
		details.TrackingNumber = m
	} else if m := uspsTrackingRe.FindString(text); m != "" {
		details.Carrier = "USPS"
		details.TrackingNumber = m
	} else if m := fedexTrackingRe.FindString(text); m != "" {
		details.Carrier = "FedEx"
		details.TrackingNumber = m
	}
	if tc.HasDeliveryDate() {
		details.DeliveryDate = tc.DeliveryDate
	}
	return &domain.Entity{
		Type:         domain.EntityNotification,
		Confidence:   0.85,
		Notification: details,
	}
}

func extractOTP(email *domain.Email, now time.Time) *domain.Entity {
	details := &domain.NotificationDetails{
		Category:       "otp",
		Message:        email.Subject,
		ActionRequired: true,
	}
	if m := otpExpireRe.FindStringSubmatch(email.Subject + " " + email.Snippet); m != nil {
		if mins := atoiSafe(m[1]); mins > 0 {
			exp := now.Add(time.Duration(mins) * time.Minute)
			details.OTPExpiresAt = &exp
		}
	}
	return &domain.Entity{
		Type:         domain.EntityNotification,
		Confidence:   0.95,
		Notification: details,
	}
}

func extractDeadline(email *domain.Email, tc *domain.TemporalContext, text string) *domain.Entity {
	amount := ""
	if m := amountRe.FindStringSubmatch(text); m != nil {
		amount = "$" + m[1]
	}
	// Receipts without a due cue are informational; the raw email card
	// covers them.
	if !dueRe.MatchString(text) {
		return nil
	}
	details := &domain.DeadlineDetails{
		Title:    email.Subject,
		Amount:   amount,
		FromWhom: email.From,
	}
	if tc != nil && tc.ExpirationDate != nil {
		details.DueDate = tc.ExpirationDate
	} else if tc.HasEventTime() {
		details.DueDate = tc.EventTime
	}
	return &domain.Entity{
		Type:       domain.EntityDeadline,
		Confidence: 0.75,
		Deadline:   details,
	}
}

func extractPromo(email *domain.Email, tc *domain.TemporalContext, text string) *domain.Entity {
	details := &domain.PromoDetails{
		Merchant: email.From,
		Offer:    email.Subject,
	}
	matched := false
	if m := percentRe.FindStringSubmatch(text); m != nil {
		details.Offer = m[0]
		matched = true
	}
	if m := promoCodeRe.FindStringSubmatch(text); m != nil {
		details.PromoCode = strings.ToUpper(m[1])
		matched = true
	}
	if !matched {
		return nil
	}
	if tc != nil && tc.ExpirationDate != nil {
		details.ExpiresAt = tc.ExpirationDate
	}
	return &domain.Entity{
		Type:       domain.EntityPromo,
		Confidence: 0.7,
		Promo:      details,
	}
}

func extractNotification(email *domain.Email, tc *domain.TemporalContext) *domain.Entity {
	lower := strings.ToLower(email.Subject + " " + email.Snippet)
	details := &domain.NotificationDetails{
		Category:       "general",
		Message:        email.Subject,
		ActionRequired: containsAny(lower, actionRequiredPhrases),
	}
	if tc.HasDeliveryDate() {
		details.Category = "shipping"
		details.DeliveryDate = tc.DeliveryDate
	}
	return &domain.Entity{
		Type:         domain.EntityNotification,
		Confidence:   0.6,
		Notification: details,
	}
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}
