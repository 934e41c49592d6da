package pipeline

import (
	"context"
	"time"

	"github.com/jkoufopoulos/shopq-prototype-sub001/core/domain"
)

// GracePeriod is how long past its end an event stays visible. An event
// whose end is at or before now minus this is past-grace and hidden.
const GracePeriod = time.Hour

// DefaultEventDuration substitutes for a missing end time when checking
// grace.
const DefaultEventDuration = time.Hour

// TemporalStage extracts per-email temporal context and removes events
// already past the grace period. Parsing failures are soft; this stage
// never fails the pipeline.
type TemporalStage struct{}

func NewTemporalStage() *TemporalStage { return &TemporalStage{} }

func (s *TemporalStage) Name() string        { return StageTemporal }
func (s *TemporalStage) DependsOn() []string { return nil }

func (s *TemporalStage) Process(_ context.Context, pc *domain.PipelineContext) *domain.StageResult {
	filtered := make([]domain.Email, 0, len(pc.Emails))
	pastGrace := 0

	for i := range pc.Emails {
		email := &pc.Emails[i]
		tc := extractTemporalContext(email, pc.Now, pc.UserTimezone)
		if tc != nil {
			// Past-grace contexts are still published: downstream stages
			// need them for assignment rationale.
			pc.TemporalContexts[email.ID] = tc
			if end, ok := tc.EffectiveEnd(DefaultEventDuration); ok {
				if !end.After(pc.Now.Add(-GracePeriod)) {
					pastGrace++
					continue
				}
			}
		}
		filtered = append(filtered, *email)
	}

	pc.FilteredEmails = filtered
	pc.PastGraceCount = pastGrace

	return &domain.StageResult{
		Success:        true,
		ItemsProcessed: len(pc.Emails),
		ItemsOutput:    len(filtered),
		Metadata: map[string]any{
			"past_grace":        pastGrace,
			"temporal_contexts": len(pc.TemporalContexts),
		},
	}
}

// extractTemporalContext runs the parser chain for one email. Returns nil
// when no temporal signal was found.
func extractTemporalContext(email *domain.Email, now time.Time, loc *time.Location) *domain.TemporalContext {
	received, hasReceived := email.ReceivedAt()
	tc := &domain.TemporalContext{}

	// 1. Calendar-style subject.
	if start, end := parseCalendarSubject(email.Subject, now.In(loc)); start != nil {
		tc.EventTime = start
		tc.EventEndTime = end
		return tc
	}

	// 2. Delivery notification.
	if isDeliverySubject(email.Subject) {
		rec := now
		if hasReceived {
			rec = received
		}
		tc.DeliveryDate = parseDeliveryDate(email.Subject, rec, now.In(loc))
		return tc
	}

	// 3. Purchase receipt (calendar invites titled "...confirmation" are
	// not receipts).
	if isReceiptSubject(email.Subject) && email.NormalizedType() != domain.TypeEvent {
		rec := now
		if hasReceived {
			rec = received
		}
		tc.PurchaseDate = parsePurchaseDate(email.Subject, rec, now.In(loc))
		return tc
	}

	// 4. Generic scanner over subject + snippet.
	var rec time.Time
	if hasReceived {
		rec = received
	}
	if t := scanGenericDate(email.Subject+" "+email.Snippet, rec, now, loc); t != nil {
		tc.EventTime = t
		return tc
	}

	return nil
}
