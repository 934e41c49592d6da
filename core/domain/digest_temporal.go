package domain

import "time"

// TemporalContext holds the instants extracted from one email. All times
// are UTC. A nil field means the signal was absent; emails with no signal
// at all get no TemporalContext entry.
type TemporalContext struct {
	EventTime      *time.Time `json:"event_time,omitempty"`
	EventEndTime   *time.Time `json:"event_end_time,omitempty"`
	DeliveryDate   *time.Time `json:"delivery_date,omitempty"`
	PurchaseDate   *time.Time `json:"purchase_date,omitempty"`
	ExpirationDate *time.Time `json:"expiration_date,omitempty"`
}

// TemporalContexts maps email id -> extracted temporal context.
type TemporalContexts map[string]*TemporalContext

// Anchor returns the latest known temporal marker: the maximum available
// of event end, event start, and delivery date. ok=false when the context
// carries no event or delivery signal.
func (tc *TemporalContext) Anchor() (time.Time, bool) {
	if tc == nil {
		return time.Time{}, false
	}
	var anchor time.Time
	ok := false
	for _, t := range []*time.Time{tc.EventEndTime, tc.EventTime, tc.DeliveryDate} {
		if t != nil && (!ok || t.After(anchor)) {
			anchor = *t
			ok = true
		}
	}
	return anchor, ok
}

// HasEventTime reports whether an event start was extracted.
func (tc *TemporalContext) HasEventTime() bool {
	return tc != nil && tc.EventTime != nil
}

// HasDeliveryDate reports whether a delivery date was extracted.
func (tc *TemporalContext) HasDeliveryDate() bool {
	return tc != nil && tc.DeliveryDate != nil
}

// EffectiveEnd is the instant used by the past-grace filter: the event end
// when present, otherwise event start plus the given default duration.
func (tc *TemporalContext) EffectiveEnd(defaultDuration time.Duration) (time.Time, bool) {
	if tc == nil {
		return time.Time{}, false
	}
	if tc.EventEndTime != nil {
		return *tc.EventEndTime, true
	}
	if tc.EventTime != nil {
		return tc.EventTime.Add(defaultDuration), true
	}
	return time.Time{}, false
}
