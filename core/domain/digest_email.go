package domain

import (
	"net/mail"
	"time"
)

// EmailType is the coarse pre-classified type attached to each incoming email.
type EmailType string

const (
	// === Content Types ===
	TypeNewsletter EmailType = "newsletter" // Newsletters and digests
	TypePromotion  EmailType = "promotion"  // Promotional offers
	TypeMarketing  EmailType = "marketing"  // Marketing blasts
	TypeUpdate     EmailType = "update"     // Product/service updates

	// === Transaction Types ===
	TypeReceipt  EmailType = "receipt"  // Purchase receipts
	TypeOrder    EmailType = "order"    // Order confirmations
	TypeShipping EmailType = "shipping" // Shipping/delivery notifications

	// === Attention Types ===
	TypeEvent        EmailType = "event"        // Calendar events, invitations
	TypeMessage      EmailType = "message"      // Person-to-person mail
	TypeNotification EmailType = "notification" // Auto-generated notifications
	TypeOTP          EmailType = "otp"          // One-time passcodes

	// === Fallback ===
	TypeUncategorized EmailType = "uncategorized"
)

// EmailImportance is the optional pre-assigned importance on an incoming email.
type EmailImportance string

const (
	ImportanceCritical      EmailImportance = "critical"
	ImportanceTimeSensitive EmailImportance = "time_sensitive"
	ImportanceRoutine       EmailImportance = "routine"
)

// Email is one pre-fetched message in the input batch. The caller owns
// fetching; the digest core never talks to a mailbox. Fields beyond the
// ones below are opaque to the pipeline and not modelled.
type Email struct {
	ID         string          `json:"id"`
	ThreadID   string          `json:"thread_id"`
	Subject    string          `json:"subject"`
	Snippet    string          `json:"snippet"`
	From       string          `json:"from"`
	Date       string          `json:"date"` // RFC 2822 string as received
	Type       EmailType       `json:"type"`
	Importance EmailImportance `json:"importance,omitempty"`
}

// ReceivedAt parses the RFC 2822 Date header. A malformed date is a soft
// parse failure: ok=false, never an error.
func (e *Email) ReceivedAt() (time.Time, bool) {
	if e.Date == "" {
		return time.Time{}, false
	}
	t, err := mail.ParseDate(e.Date)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// NormalizedType maps unknown coarse types to uncategorized so downstream
// switches stay total.
func (e *Email) NormalizedType() EmailType {
	switch e.Type {
	case TypeNewsletter, TypePromotion, TypeMarketing, TypeUpdate,
		TypeReceipt, TypeOrder, TypeShipping,
		TypeEvent, TypeMessage, TypeNotification, TypeOTP:
		return e.Type
	default:
		return TypeUncategorized
	}
}
