package domain

// Section is a digest section label. The pipeline assigns two generations
// per email: T0 (intrinsic, time-free) and T1 (adjusted against the
// evaluation clock). SectionSkip is T1-only and means "past grace, hide".
type Section string

const (
	SectionCritical     Section = "critical"
	SectionToday        Section = "today"
	SectionComingUp     Section = "coming_up"
	SectionWorthKnowing Section = "worth_knowing"
	SectionNoise        Section = "noise"
	SectionSkip         Section = "skip"
)

// SectionAssignments maps email id -> section for one generation (T0 or T1).
type SectionAssignments map[string]Section

// FeaturedSections is the fixed presentation order across the digest.
// Critical and today render combined into one leading block.
var FeaturedSections = []Section{
	SectionCritical,
	SectionToday,
	SectionComingUp,
	SectionWorthKnowing,
}

// IsFeatured reports whether emails in this section get individual cards
// rather than an aggregate noise count.
func (s Section) IsFeatured() bool {
	switch s {
	case SectionCritical, SectionToday, SectionComingUp, SectionWorthKnowing:
		return true
	}
	return false
}

// Importance maps a section to the importance stamped onto entities
// extracted from its emails.
func (s Section) Importance() EmailImportance {
	switch s {
	case SectionCritical:
		return ImportanceCritical
	case SectionToday, SectionComingUp:
		return ImportanceTimeSensitive
	default:
		return ImportanceRoutine
	}
}

// Heading returns the rendered section title.
func (s Section) Heading() string {
	switch s {
	case SectionCritical, SectionToday:
		return "Today / Urgent"
	case SectionComingUp:
		return "Coming Up"
	case SectionWorthKnowing:
		return "Worth Knowing"
	case SectionNoise:
		return "Everything Else"
	default:
		return ""
	}
}
