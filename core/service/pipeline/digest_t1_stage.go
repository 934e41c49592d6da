package pipeline

import (
	"context"
	"math"
	"time"

	"github.com/jkoufopoulos/shopq-prototype-sub001/core/domain"
)

// DecayT1 transforms an intrinsic T0 section into the time-adjusted T1
// section. Critical never decays, noise never elevates here (the noise
// stage handles rescue), and dated emails bucket by how far their anchor
// sits from now in the user's local calendar. Ties break toward the
// earlier bucket.
func DecayT1(t0 domain.Section, tc *domain.TemporalContext, now time.Time, loc *time.Location) domain.Section {
	switch t0 {
	case domain.SectionCritical:
		return domain.SectionCritical
	case domain.SectionNoise:
		return domain.SectionNoise
	case domain.SectionWorthKnowing:
		return domain.SectionWorthKnowing
	}

	// today / coming_up
	anchor, ok := tc.Anchor()
	if !ok {
		return t0
	}
	if anchor.Add(GracePeriod).Before(now) {
		return domain.SectionSkip
	}

	days := localDayDiff(now, anchor, loc)
	switch {
	case days <= 0:
		return domain.SectionToday
	case days <= 7:
		return domain.SectionComingUp
	default:
		return domain.SectionWorthKnowing
	}
}

// localDayDiff counts whole local calendar days from now's day to t's
// day. Rounding absorbs the 23/25 hour days around DST transitions.
func localDayDiff(now, t time.Time, loc *time.Location) int {
	a := midnightOf(now.In(loc))
	b := midnightOf(t.In(loc))
	return int(math.Round(b.Sub(a).Hours() / 24))
}

// T1Stage derives the time-adjusted section for every T0-assigned email.
type T1Stage struct{}

func NewT1Stage() *T1Stage { return &T1Stage{} }

func (s *T1Stage) Name() string        { return StageT1 }
func (s *T1Stage) DependsOn() []string { return []string{StageT0} }

func (s *T1Stage) Process(_ context.Context, pc *domain.PipelineContext) *domain.StageResult {
	skipped := 0
	for id, t0 := range pc.SectionsT0 {
		t1 := DecayT1(t0, pc.TemporalContexts[id], pc.Now, pc.UserTimezone)
		pc.SectionsT1[id] = t1
		if t1 == domain.SectionSkip {
			skipped++
		}
	}
	return &domain.StageResult{
		Success:        true,
		ItemsProcessed: len(pc.SectionsT0),
		ItemsOutput:    len(pc.SectionsT1),
		Metadata:       map[string]any{"skipped": skipped},
	}
}
