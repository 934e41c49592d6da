package pipeline

import (
	"context"
	"strings"

	"github.com/jkoufopoulos/shopq-prototype-sub001/core/domain"
)

// fraudAlertPhrases classify an email as critical regardless of type.
var fraudAlertPhrases = []string{
	"fraud alert",
	"suspicious activity",
	"suspicious sign-in",
	"unusual sign-in",
	"unauthorized",
	"security alert",
	"your account has been locked",
	"verify your identity",
}

// actionRequiredPhrases promote notifications to worth_knowing.
var actionRequiredPhrases = []string{
	"action required",
	"action needed",
	"response required",
	"please confirm",
	"please respond",
	"needs your attention",
}

// noiseTypes are summarised in aggregate rather than featured.
var noiseTypes = map[domain.EmailType]bool{
	domain.TypeNewsletter: true,
	domain.TypePromotion:  true,
	domain.TypeMarketing:  true,
	domain.TypeUpdate:     true,
}

// AssignT0 assigns the intrinsic section for one email. It is a pure
// function of (email, temporal context): no clock, so two invocations
// always agree. First matching row wins.
func AssignT0(email *domain.Email, tc *domain.TemporalContext) domain.Section {
	typ := email.NormalizedType()
	subject := strings.ToLower(email.Subject)
	snippet := strings.ToLower(email.Snippet)

	// OTPs and fraud/security alerts are always critical.
	if typ == domain.TypeOTP || containsAny(subject, fraudAlertPhrases) {
		return domain.SectionCritical
	}

	// Scheduled events and expected deliveries are a today concern.
	if tc.HasEventTime() && typ == domain.TypeEvent {
		return domain.SectionToday
	}
	if tc.HasDeliveryDate() && (typ == domain.TypeShipping || typ == domain.TypeOrder) {
		return domain.SectionToday
	}

	// Anything else carrying an event time is upcoming.
	if tc.HasEventTime() {
		return domain.SectionComingUp
	}

	if typ == domain.TypeReceipt || typ == domain.TypeMessage {
		return domain.SectionWorthKnowing
	}

	if typ == domain.TypeNotification &&
		(containsAny(subject, actionRequiredPhrases) || containsAny(snippet, actionRequiredPhrases)) {
		return domain.SectionWorthKnowing
	}

	if noiseTypes[typ] {
		return domain.SectionNoise
	}

	return domain.SectionWorthKnowing
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

// T0Stage assigns the intrinsic section for every surviving email.
type T0Stage struct{}

func NewT0Stage() *T0Stage { return &T0Stage{} }

func (s *T0Stage) Name() string        { return StageT0 }
func (s *T0Stage) DependsOn() []string { return []string{StageTemporal} }

func (s *T0Stage) Process(_ context.Context, pc *domain.PipelineContext) *domain.StageResult {
	counts := make(map[string]any)
	for i := range pc.FilteredEmails {
		email := &pc.FilteredEmails[i]
		section := AssignT0(email, pc.TemporalContexts[email.ID])
		pc.SectionsT0[email.ID] = section
		key := string(section)
		if n, ok := counts[key].(int); ok {
			counts[key] = n + 1
		} else {
			counts[key] = 1
		}
	}
	return &domain.StageResult{
		Success:        true,
		ItemsProcessed: len(pc.FilteredEmails),
		ItemsOutput:    len(pc.SectionsT0),
		Metadata:       counts,
	}
}
