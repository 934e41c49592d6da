package pipeline

import (
	"testing"
	"time"

	"github.com/jkoufopoulos/shopq-prototype-sub001/core/domain"
)

func TestExtractByPatternFlight(t *testing.T) {
	now := time.Date(2025, 11, 18, 14, 0, 0, 0, time.UTC)
	departs := timePtr(time.Date(2025, 11, 21, 23, 30, 0, 0, time.UTC))

	t.Run("flight with route and confirmation", func(t *testing.T) {
		email := &domain.Email{
			ID:      "f1",
			Subject: "Your flight is confirmed: DL 423",
			Snippet: "JFK to SFO · Confirmation code: HXK92P",
			Type:    domain.TypeNotification,
		}
		ent := extractByPattern(email, &domain.TemporalContext{EventTime: departs}, now)
		if ent == nil || ent.Type != domain.EntityFlight {
			t.Fatalf("expected a flight entity, got %+v", ent)
		}
		if ent.Flight.Airline != "Delta" {
			t.Errorf("airline = %q, want Delta", ent.Flight.Airline)
		}
		if ent.Flight.FlightNumber != "DL423" {
			t.Errorf("flight number = %q, want DL423", ent.Flight.FlightNumber)
		}
		if ent.Flight.Departure.AirportCode != "JFK" || ent.Flight.Arrival.AirportCode != "SFO" {
			t.Errorf("route = %s -> %s, want JFK -> SFO",
				ent.Flight.Departure.AirportCode, ent.Flight.Arrival.AirportCode)
		}
		if ent.Flight.ConfirmationCode != "HXK92P" {
			t.Errorf("confirmation = %q, want HXK92P", ent.Flight.ConfirmationCode)
		}
		if ent.Flight.DepartureTime == nil || !ent.Flight.DepartureTime.Equal(*departs) {
			t.Errorf("departure time = %v, want %v", ent.Flight.DepartureTime, departs)
		}
	})

	t.Run("unknown airline code yields no flight", func(t *testing.T) {
		email := &domain.Email{
			Subject: "Flight QQ 123 details",
			Type:    domain.TypeNotification,
		}
		if ent := extractByPattern(email, nil, now); ent != nil && ent.Type == domain.EntityFlight {
			t.Error("unknown airline code must not produce a flight entity")
		}
	})
}

func TestExtractByPatternShipping(t *testing.T) {
	now := time.Date(2025, 11, 18, 14, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		text         string
		wantCarrier  string
		wantTracking string
	}{
		{
			name:         "ups tracking",
			text:         "Tracking number 1Z999AA10123456784",
			wantCarrier:  "UPS",
			wantTracking: "1Z999AA10123456784",
		},
		{
			name:         "usps tracking",
			text:         "Track it: 9400111899223857268499",
			wantCarrier:  "USPS",
			wantTracking: "9400111899223857268499",
		},
		{
			name:         "fedex tracking",
			text:         "FedEx tracking 123456789012",
			wantCarrier:  "FedEx",
			wantTracking: "123456789012",
		},
		{
			name: "no tracking number still yields a card",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			email := &domain.Email{
				Subject: "Your order has shipped",
				Snippet: tt.text,
				Type:    domain.TypeShipping,
			}
			ent := extractByPattern(email, nil, now)
			if ent == nil || ent.Type != domain.EntityNotification {
				t.Fatalf("expected a notification entity, got %+v", ent)
			}
			if ent.Notification.Carrier != tt.wantCarrier {
				t.Errorf("carrier = %q, want %q", ent.Notification.Carrier, tt.wantCarrier)
			}
			if ent.Notification.TrackingNumber != tt.wantTracking {
				t.Errorf("tracking = %q, want %q", ent.Notification.TrackingNumber, tt.wantTracking)
			}
		})
	}
}

func TestExtractByPatternOTP(t *testing.T) {
	now := time.Date(2025, 11, 18, 14, 0, 0, 0, time.UTC)

	email := &domain.Email{
		Subject: "Your verification code",
		Snippet: "Code 482913 expires in 10 minutes",
		Type:    domain.TypeOTP,
	}
	ent := extractByPattern(email, nil, now)
	if ent == nil || ent.Type != domain.EntityNotification {
		t.Fatalf("expected a notification entity, got %+v", ent)
	}
	if ent.Notification.Category != "otp" {
		t.Errorf("category = %q, want otp", ent.Notification.Category)
	}
	if !ent.Notification.ActionRequired {
		t.Error("otp must set action required")
	}
	want := now.Add(10 * time.Minute)
	if ent.Notification.OTPExpiresAt == nil || !ent.Notification.OTPExpiresAt.Equal(want) {
		t.Errorf("expiry = %v, want %v", ent.Notification.OTPExpiresAt, want)
	}
}

func TestExtractByPatternDeadline(t *testing.T) {
	now := time.Date(2025, 11, 18, 14, 0, 0, 0, time.UTC)
	due := timePtr(time.Date(2025, 12, 1, 5, 0, 0, 0, time.UTC))

	t.Run("receipt with due cue and amount", func(t *testing.T) {
		email := &domain.Email{
			Subject: "Invoice due December 1",
			Snippet: "Amount due: $1,250.00",
			From:    "billing@acme.example",
			Type:    domain.TypeReceipt,
		}
		ent := extractByPattern(email, &domain.TemporalContext{EventTime: due}, now)
		if ent == nil || ent.Type != domain.EntityDeadline {
			t.Fatalf("expected a deadline entity, got %+v", ent)
		}
		if ent.Deadline.Amount != "$1,250.00" {
			t.Errorf("amount = %q, want $1,250.00", ent.Deadline.Amount)
		}
		if ent.Deadline.DueDate == nil || !ent.Deadline.DueDate.Equal(*due) {
			t.Errorf("due date = %v, want %v", ent.Deadline.DueDate, due)
		}
	})

	t.Run("receipt without due cue yields no entity", func(t *testing.T) {
		email := &domain.Email{
			Subject: "Your coffee receipt",
			Snippet: "Total $4.50, thanks!",
			Type:    domain.TypeReceipt,
		}
		if ent := extractByPattern(email, nil, now); ent != nil {
			t.Errorf("informational receipt should fall back to the raw card, got %+v", ent)
		}
	})
}

func TestExtractByPatternPromo(t *testing.T) {
	now := time.Date(2025, 11, 18, 14, 0, 0, 0, time.UTC)

	t.Run("percent and code", func(t *testing.T) {
		email := &domain.Email{
			Subject: "Weekend sale",
			Snippet: "Take 25% off with code SAVE25 at checkout",
			From:    "deals@shop.example",
			Type:    domain.TypePromotion,
		}
		ent := extractByPattern(email, nil, now)
		if ent == nil || ent.Type != domain.EntityPromo {
			t.Fatalf("expected a promo entity, got %+v", ent)
		}
		if ent.Promo.PromoCode != "SAVE25" {
			t.Errorf("code = %q, want SAVE25", ent.Promo.PromoCode)
		}
		if ent.Promo.Offer != "25% off" {
			t.Errorf("offer = %q, want 25%% off", ent.Promo.Offer)
		}
	})

	t.Run("no concrete offer yields no entity", func(t *testing.T) {
		email := &domain.Email{
			Subject: "Check out our new arrivals",
			Type:    domain.TypePromotion,
		}
		if ent := extractByPattern(email, nil, now); ent != nil {
			t.Errorf("vague promotion should fall back to the raw card, got %+v", ent)
		}
	})
}

func TestEventTitleFromSubject(t *testing.T) {
	tests := []struct {
		subject string
		want    string
	}{
		{"Dinner w/ Sarah @ Fri Nov 21, 2025 6:30pm (EST)", "Dinner w/ Sarah"},
		{"Notification: Team offsite @ Mon Dec 1 9am", "Team offsite"},
		{"Invitation: Planning review", "Planning review"},
		{"Reminder: Dentist", "Dentist"},
		{"Plain subject", "Plain subject"},
	}
	for _, tt := range tests {
		if got := eventTitleFromSubject(tt.subject); got != tt.want {
			t.Errorf("eventTitleFromSubject(%q) = %q, want %q", tt.subject, got, tt.want)
		}
	}
}
