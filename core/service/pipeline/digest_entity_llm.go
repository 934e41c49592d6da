package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/jkoufopoulos/shopq-prototype-sub001/core/domain"
	"github.com/jkoufopoulos/shopq-prototype-sub001/core/port/out"
	"github.com/jkoufopoulos/shopq-prototype-sub001/pkg/logger"
)

// LLM path of the entity extractor. The model receives a strict JSON
// schema and a redacted body; schema violations discard the LLM
// contribution for that email only, never the stage.

// llmDatePlausibilityWindow rejects LLM-asserted dates farther than this
// from the email's received date.
const llmDatePlausibilityWindow = 180 * 24 * time.Hour

// llmEntity is the schema the model must return.
type llmEntity struct {
	Type         string  `json:"type"`
	Confidence   float64 `json:"confidence"`
	Title        string  `json:"title,omitempty"`
	EventTime    string  `json:"event_time,omitempty"` // RFC 3339
	EventEndTime string  `json:"event_end_time,omitempty"`
	LocationCity string  `json:"location_city,omitempty"`
	Airline      string  `json:"airline,omitempty"`
	FlightNumber string  `json:"flight_number,omitempty"`
	Amount       string  `json:"amount,omitempty"`
	DueDate      string  `json:"due_date,omitempty"`
	FromWhom     string  `json:"from_whom,omitempty"`
	Message      string  `json:"message,omitempty"`
}

const entitySchemaPrompt = `Extract at most one structured entity from this email.
Respond with a single JSON object matching exactly:
{
  "type": "flight"|"event"|"deadline"|"reminder"|"promo"|"notification",
  "confidence": 0.0-1.0,
  "title": string, "event_time": RFC3339, "event_end_time": RFC3339,
  "location_city": string, "airline": string, "flight_number": string,
  "amount": string, "due_date": RFC3339, "from_whom": string, "message": string
}
Omit fields you are not sure about. If no entity applies, respond {"type": ""}.

Subject: %s
From: %s
Body: %s`

var (
	redactEmailRe   = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	redactLongNumRe = regexp.MustCompile(`\b\d{9,}\b`)
)

// redactBody strips addresses and long digit runs before the text leaves
// the process.
func redactBody(body string) string {
	body = redactEmailRe.ReplaceAllString(body, "[email]")
	body = redactLongNumRe.ReplaceAllString(body, "[number]")
	return body
}

// extractByLLM asks the model for one entity. Any failure (call error,
// schema violation, empty type) yields nil.
func extractByLLM(ctx context.Context, model out.TextModel, email *domain.Email) *domain.Entity {
	if model == nil {
		return nil
	}
	log := logger.FromContext(ctx)

	prompt := fmt.Sprintf(entitySchemaPrompt, email.Subject, email.From, redactBody(email.Snippet))
	raw, err := model.Generate(ctx, prompt, out.GenerateOptions{
		Temperature: out.Temp(0),
		MaxTokens:   512,
		JSONMode:    true,
	})
	if err != nil {
		log.Warn().Err(err).Str("email_id", email.ID).Msg("entity LLM call failed")
		return nil
	}

	var parsed llmEntity
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &parsed); err != nil {
		log.Warn().Err(err).Str("email_id", email.ID).Msg("entity LLM returned malformed JSON")
		return nil
	}
	return parsed.toEntity(email)
}

// toEntity validates the schema and builds the domain entity. Returns nil
// on any violation.
func (le *llmEntity) toEntity(email *domain.Email) *domain.Entity {
	if le.Confidence < 0 || le.Confidence > 1 {
		return nil
	}
	received, hasReceived := email.ReceivedAt()

	ent := &domain.Entity{Confidence: le.Confidence}
	switch le.Type {
	case "flight":
		ent.Type = domain.EntityFlight
		ent.Flight = &domain.FlightDetails{
			Airline:       le.Airline,
			FlightNumber:  le.FlightNumber,
			DepartureTime: le.plausibleTime(le.EventTime, received, hasReceived),
		}
		if le.LocationCity != "" {
			ent.Flight.Departure = domain.Location{City: le.LocationCity}
		}
	case "event":
		ent.Type = domain.EntityEvent
		ent.Event = &domain.EventDetails{
			Title:        le.Title,
			EventTime:    le.plausibleTime(le.EventTime, received, hasReceived),
			EventEndTime: le.plausibleTime(le.EventEndTime, received, hasReceived),
			Location:     domain.Location{City: le.LocationCity},
		}
	case "deadline":
		ent.Type = domain.EntityDeadline
		ent.Deadline = &domain.DeadlineDetails{
			Title:    le.Title,
			Amount:   le.Amount,
			FromWhom: le.FromWhom,
			DueDate:  le.plausibleTime(le.DueDate, received, hasReceived),
		}
	case "reminder":
		ent.Type = domain.EntityReminder
		ent.Reminder = &domain.ReminderDetails{
			Title:      le.Title,
			Note:       le.Message,
			RemindTime: le.plausibleTime(le.EventTime, received, hasReceived),
		}
	case "promo":
		ent.Type = domain.EntityPromo
		ent.Promo = &domain.PromoDetails{
			Merchant:  le.FromWhom,
			Offer:     le.Title,
			ExpiresAt: le.plausibleTime(le.DueDate, received, hasReceived),
		}
	case "notification":
		ent.Type = domain.EntityNotification
		ent.Notification = &domain.NotificationDetails{
			Category: "general",
			Message:  le.Message,
		}
	default:
		return nil
	}
	return ent
}

// plausibleTime parses an RFC 3339 field and rejects dates implausibly
// far from the received date.
func (le *llmEntity) plausibleTime(value string, received time.Time, hasReceived bool) *time.Time {
	if value == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil
	}
	if hasReceived {
		delta := t.Sub(received)
		if delta < 0 {
			delta = -delta
		}
		if delta > llmDatePlausibilityWindow {
			return nil
		}
	}
	tu := t.UTC()
	return &tu
}

// mergeEntities merges the pattern and LLM results for one email:
// the LLM wins textual fields, the pattern wins regex-derived
// identifiers. Either side may be nil.
func mergeEntities(pattern, llm *domain.Entity) *domain.Entity {
	if pattern == nil {
		return llm
	}
	if llm == nil || llm.Type != pattern.Type {
		return pattern
	}

	merged := *pattern
	if llm.Confidence > merged.Confidence {
		merged.Confidence = llm.Confidence
	}

	switch merged.Type {
	case domain.EntityFlight:
		f := *pattern.Flight
		if llm.Flight.Airline != "" {
			f.Airline = llm.Flight.Airline
		}
		if f.DepartureTime == nil {
			f.DepartureTime = llm.Flight.DepartureTime
		}
		if f.Departure.IsZero() {
			f.Departure = llm.Flight.Departure
		}
		// FlightNumber and ConfirmationCode stay pattern-derived.
		merged.Flight = &f
	case domain.EntityEvent:
		e := *pattern.Event
		if llm.Event.Title != "" {
			e.Title = llm.Event.Title
		}
		if e.Location.IsZero() {
			e.Location = llm.Event.Location
		}
		if e.EventTime == nil {
			e.EventTime = llm.Event.EventTime
		}
		merged.Event = &e
	case domain.EntityDeadline:
		d := *pattern.Deadline
		if llm.Deadline.Title != "" {
			d.Title = llm.Deadline.Title
		}
		if llm.Deadline.FromWhom != "" {
			d.FromWhom = llm.Deadline.FromWhom
		}
		if d.DueDate == nil {
			d.DueDate = llm.Deadline.DueDate
		}
		// Amount stays pattern-derived.
		merged.Deadline = &d
	case domain.EntityPromo:
		p := *pattern.Promo
		if llm.Promo.Merchant != "" {
			p.Merchant = llm.Promo.Merchant
		}
		if llm.Promo.Offer != "" {
			p.Offer = llm.Promo.Offer
		}
		if p.ExpiresAt == nil {
			p.ExpiresAt = llm.Promo.ExpiresAt
		}
		// PromoCode stays pattern-derived.
		merged.Promo = &p
	case domain.EntityNotification:
		n := *pattern.Notification
		if llm.Notification.Message != "" {
			n.Message = llm.Notification.Message
		}
		// Carrier and TrackingNumber stay pattern-derived.
		merged.Notification = &n
	}
	return &merged
}

// extractJSONObject trims any prose the model wrapped around the object.
func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
