package domain

import (
	"strings"
	"time"
)

// EntityType tags the entity variant.
type EntityType string

const (
	EntityFlight       EntityType = "flight"
	EntityEvent        EntityType = "event"
	EntityDeadline     EntityType = "deadline"
	EntityReminder     EntityType = "reminder"
	EntityPromo        EntityType = "promo"
	EntityNotification EntityType = "notification"
)

// Location is a place reference attached to flights and events. Any field
// may be empty.
type Location struct {
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
	AirportCode string `json:"airport_code,omitempty"`
	FullAddress string `json:"full_address,omitempty"`
}

// String renders the canonical form: airport code when known, otherwise
// "City, State" with missing parts dropped, otherwise the full address.
func (l Location) String() string {
	if l.AirportCode != "" {
		return l.AirportCode
	}
	parts := make([]string, 0, 2)
	if l.City != "" {
		parts = append(parts, l.City)
	}
	if l.State != "" {
		parts = append(parts, l.State)
	}
	if len(parts) > 0 {
		return strings.Join(parts, ", ")
	}
	return l.FullAddress
}

// IsZero reports whether no field is set.
func (l Location) IsZero() bool {
	return l == Location{}
}

// FlightDetails is the flight variant payload.
type FlightDetails struct {
	Airline          string     `json:"airline,omitempty"`
	FlightNumber     string     `json:"flight_number,omitempty"`
	Departure        Location   `json:"departure,omitempty"`
	Arrival          Location   `json:"arrival,omitempty"`
	DepartureTime    *time.Time `json:"departure_time,omitempty"`
	ConfirmationCode string     `json:"confirmation_code,omitempty"`
	WeatherContext   string     `json:"weather_context,omitempty"`
}

// EventDetails is the event variant payload.
type EventDetails struct {
	Title        string     `json:"title,omitempty"`
	EventTime    *time.Time `json:"event_time,omitempty"`
	EventEndTime *time.Time `json:"event_end_time,omitempty"`
	Location     Location   `json:"location,omitempty"`
	Organizer    string     `json:"organizer,omitempty"`
}

// DeadlineDetails is the deadline variant payload.
type DeadlineDetails struct {
	Title    string     `json:"title,omitempty"`
	DueDate  *time.Time `json:"due_date,omitempty"`
	Amount   string     `json:"amount,omitempty"`
	FromWhom string     `json:"from_whom,omitempty"`
}

// ReminderDetails is the reminder variant payload.
type ReminderDetails struct {
	Title      string     `json:"title,omitempty"`
	RemindTime *time.Time `json:"remind_time,omitempty"`
	Note       string     `json:"note,omitempty"`
}

// PromoDetails is the promo variant payload.
type PromoDetails struct {
	Merchant  string     `json:"merchant,omitempty"`
	Offer     string     `json:"offer,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	PromoCode string     `json:"promo_code,omitempty"`
}

// NotificationDetails is the notification variant payload. It carries both
// shipping and OTP fields; unused ones stay empty.
type NotificationDetails struct {
	Category       string     `json:"category,omitempty"`
	Message        string     `json:"message,omitempty"`
	ActionRequired bool       `json:"action_required,omitempty"`
	OTPExpiresAt   *time.Time `json:"otp_expires_at,omitempty"`
	Carrier        string     `json:"carrier,omitempty"`
	TrackingNumber string     `json:"tracking_number,omitempty"`
	DeliveryDate   *time.Time `json:"delivery_date,omitempty"`
}

// Entity is one structured fact extracted from one email: a tagged sum of
// the variants above plus a common header. Exactly one variant pointer is
// non-nil and matches Type; the source email is referenced by id, never by
// pointer.
type Entity struct {
	Type       EntityType `json:"type"`
	Confidence float64    `json:"confidence"`

	// Source email reference
	SourceEmailID  string    `json:"source_email_id"`
	SourceThreadID string    `json:"source_thread_id"`
	SourceSubject  string    `json:"source_subject"`
	SourceSnippet  string    `json:"source_snippet"`
	Timestamp      time.Time `json:"timestamp"`

	// Importance lifecycle (stored at extraction, resolved at enrichment)
	Importance         EmailImportance `json:"importance"`
	StoredImportance   EmailImportance `json:"stored_importance"`
	ResolvedImportance EmailImportance `json:"resolved_importance,omitempty"`
	DecayReason        string          `json:"decay_reason,omitempty"`
	WasModified        bool            `json:"was_modified"`
	DigestSection      Section         `json:"digest_section,omitempty"`
	HideInDigest       bool            `json:"hide_in_digest"`

	// Variant payloads (exactly one set, per Type)
	Flight       *FlightDetails       `json:"flight,omitempty"`
	Event        *EventDetails        `json:"event,omitempty"`
	Deadline     *DeadlineDetails     `json:"deadline,omitempty"`
	Reminder     *ReminderDetails     `json:"reminder,omitempty"`
	Promo        *PromoDetails        `json:"promo,omitempty"`
	Notification *NotificationDetails `json:"notification,omitempty"`
}

// Title returns the display title for the entity card, falling back to the
// source subject when the variant carries no better name.
func (e *Entity) Title() string {
	switch e.Type {
	case EntityFlight:
		if e.Flight != nil && e.Flight.Airline != "" && e.Flight.FlightNumber != "" {
			return e.Flight.Airline + " " + e.Flight.FlightNumber
		}
	case EntityEvent:
		if e.Event != nil && e.Event.Title != "" {
			return e.Event.Title
		}
	case EntityDeadline:
		if e.Deadline != nil && e.Deadline.Title != "" {
			return e.Deadline.Title
		}
	case EntityReminder:
		if e.Reminder != nil && e.Reminder.Title != "" {
			return e.Reminder.Title
		}
	case EntityPromo:
		if e.Promo != nil && e.Promo.Offer != "" {
			return e.Promo.Offer
		}
	case EntityNotification:
		if e.Notification != nil && e.Notification.Message != "" {
			return e.Notification.Message
		}
	}
	return e.SourceSubject
}

// When returns the entity's own temporal marker used for enrichment decay:
// departure for flights, start for events, due date for deadlines, and so
// on. ok=false when the variant carries no time.
func (e *Entity) When() (time.Time, bool) {
	var t *time.Time
	switch e.Type {
	case EntityFlight:
		if e.Flight != nil {
			t = e.Flight.DepartureTime
		}
	case EntityEvent:
		if e.Event != nil {
			if e.Event.EventEndTime != nil {
				t = e.Event.EventEndTime
			} else {
				t = e.Event.EventTime
			}
		}
	case EntityDeadline:
		if e.Deadline != nil {
			t = e.Deadline.DueDate
		}
	case EntityReminder:
		if e.Reminder != nil {
			t = e.Reminder.RemindTime
		}
	case EntityPromo:
		if e.Promo != nil {
			t = e.Promo.ExpiresAt
		}
	case EntityNotification:
		if e.Notification != nil {
			if e.Notification.DeliveryDate != nil {
				t = e.Notification.DeliveryDate
			} else {
				t = e.Notification.OTPExpiresAt
			}
		}
	}
	if t == nil {
		return time.Time{}, false
	}
	return *t, true
}
