package domain

import "time"

// Weather is the enrichment payload: current conditions at the user's
// (hinted or geolocated) city.
type Weather struct {
	Temp      int    `json:"temp"` // °F
	Condition string `json:"condition"`
	City      string `json:"city"`
}

// FeaturedItem is one card selected for display: either a rich entity card
// or the raw email as a fallback card. Exactly one of Entity/Email is set.
type FeaturedItem struct {
	Section Section `json:"section"`
	Entity  *Entity `json:"entity,omitempty"`
	Email   *Email  `json:"email,omitempty"`
}

// Title returns the card title (entity title or email subject).
func (f *FeaturedItem) Title() string {
	if f.Entity != nil {
		return f.Entity.Title()
	}
	if f.Email != nil {
		return f.Email.Subject
	}
	return ""
}

// SourceEmailID returns the id of the email behind this card.
func (f *FeaturedItem) SourceEmailID() string {
	if f.Entity != nil {
		return f.Entity.SourceEmailID
	}
	if f.Email != nil {
		return f.Email.ID
	}
	return ""
}

// SourceThreadID returns the thread id of the email behind this card.
func (f *FeaturedItem) SourceThreadID() string {
	if f.Entity != nil {
		return f.Entity.SourceThreadID
	}
	if f.Email != nil {
		return f.Email.ThreadID
	}
	return ""
}

// PipelineContext is the mutable record threaded through the stages of one
// generate call. It is constructed per call, mutated only by stages in
// declared order, and never shared across calls.
type PipelineContext struct {
	// Inputs
	Emails       []Email
	Now          time.Time
	UserTimezone *time.Location
	TimezoneName string
	UserName     string
	CityHint     string
	RegionHint   string
	RawDigest    bool

	// State populated by stages
	FilteredEmails   []Email
	TemporalContexts TemporalContexts
	SectionsT0       SectionAssignments
	SectionsT1       SectionAssignments
	Entities         []*Entity
	FeaturedItems    []FeaturedItem
	NoiseSummary     map[string]int
	PastGraceCount   int
	Weather          *Weather
	Greeting         string
	DigestHTML       string
	Verified         bool
	ValidationErrors []string
}

// NewPipelineContext builds the context record for one run. loc must be
// non-nil (the service resolves invalid timezone names to UTC before this
// point).
func NewPipelineContext(emails []Email, now time.Time, loc *time.Location, tzName, userName string) *PipelineContext {
	return &PipelineContext{
		Emails:           emails,
		Now:              now,
		UserTimezone:     loc,
		TimezoneName:     tzName,
		UserName:         userName,
		TemporalContexts: make(TemporalContexts),
		SectionsT0:       make(SectionAssignments),
		SectionsT1:       make(SectionAssignments),
		NoiseSummary:     make(map[string]int),
	}
}

// EmailByID finds an input email by id.
func (pc *PipelineContext) EmailByID(id string) *Email {
	for i := range pc.Emails {
		if pc.Emails[i].ID == id {
			return &pc.Emails[i]
		}
	}
	return nil
}

// LocalNow is the evaluation instant in the user's timezone.
func (pc *PipelineContext) LocalNow() time.Time {
	return pc.Now.In(pc.UserTimezone)
}

// StageResult carries per-stage counters for observability.
type StageResult struct {
	Stage          string
	Success        bool
	ItemsProcessed int
	ItemsOutput    int
	Metadata       map[string]any
	Err            error
}

// DigestResponse is the single response object of a generate call.
type DigestResponse struct {
	HTML               string         `json:"html"`
	Text               string         `json:"text"`
	WordCount          int            `json:"word_count"`
	EntitiesCount      int            `json:"entities_count"`
	FeaturedCount      int            `json:"featured_count"`
	NoiseBreakdown     map[string]int `json:"noise_breakdown"`
	CriticalCount      int            `json:"critical_count"`
	TimeSensitiveCount int            `json:"time_sensitive_count"`
	RoutineCount       int            `json:"routine_count"`
	Verified           bool           `json:"verified"`
	Errors             []string       `json:"errors"`
	Fallback           bool           `json:"fallback"`
	GeneratedAtLocal   string         `json:"generated_at_local"`
	Timezone           *string        `json:"timezone"`
	City               *string        `json:"city"`
	PipelineVersion    string         `json:"pipeline_version"`
	SectionDist        map[string]int `json:"section_distribution"`
}
