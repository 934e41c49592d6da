package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jkoufopoulos/shopq-prototype-sub001/core/domain"
	"github.com/jkoufopoulos/shopq-prototype-sub001/core/port/out"
	"github.com/jkoufopoulos/shopq-prototype-sub001/pkg/logger"
)

// EnrichStage runs three sub-steps, each degrading gracefully: entity
// level temporal decay, weather lookup, and the greeting line.
type EnrichStage struct {
	weather out.WeatherProvider // nil disables weather
	geo     out.GeoLocator      // nil disables geolocation
}

func NewEnrichStage(weather out.WeatherProvider, geo out.GeoLocator) *EnrichStage {
	return &EnrichStage{weather: weather, geo: geo}
}

func (s *EnrichStage) Name() string        { return StageEnrich }
func (s *EnrichStage) DependsOn() []string { return []string{StageEntity} }

func (s *EnrichStage) Process(ctx context.Context, pc *domain.PipelineContext) *domain.StageResult {
	decayed := 0
	for _, ent := range pc.Entities {
		if decayEntity(ent, pc.Now, pc.UserTimezone) {
			decayed++
		}
	}
	syncFeaturedSections(pc)

	s.enrichWeather(ctx, pc)
	pc.Greeting = BuildGreeting(pc.LocalNow(), pc.UserName, pc.Weather)

	return &domain.StageResult{
		Success:        true,
		ItemsProcessed: len(pc.Entities),
		ItemsOutput:    len(pc.Entities),
		Metadata: map[string]any{
			"decayed":     decayed,
			"has_weather": pc.Weather != nil,
		},
	}
}

// decayEntity recomputes resolved importance from the entity's own time.
// Mirrors the email-level T1 rules; critical never decays. Returns true
// when the entity was modified.
func decayEntity(e *domain.Entity, now time.Time, loc *time.Location) bool {
	e.ResolvedImportance = e.StoredImportance

	when, ok := e.When()
	if !ok || e.StoredImportance == domain.ImportanceCritical {
		return false
	}

	var section domain.Section
	var reason string
	if when.Add(GracePeriod).Before(now) {
		e.HideInDigest = true
		section = domain.SectionSkip
		reason = "past_grace"
		e.ResolvedImportance = domain.ImportanceRoutine
	} else {
		switch days := localDayDiff(now, when, loc); {
		case days <= 0:
			section = domain.SectionToday
			e.ResolvedImportance = domain.ImportanceTimeSensitive
			reason = "same_day"
		case days <= 7:
			section = domain.SectionComingUp
			e.ResolvedImportance = domain.ImportanceTimeSensitive
			reason = "within_week"
		default:
			section = domain.SectionWorthKnowing
			e.ResolvedImportance = domain.ImportanceRoutine
			reason = "beyond_week"
		}
	}

	modified := section != e.DigestSection || e.ResolvedImportance != e.StoredImportance
	if modified {
		e.DigestSection = section
		e.DecayReason = reason
		e.WasModified = true
	}
	return modified
}

// syncFeaturedSections re-aligns featured cards with post-decay entity
// sections and drops hidden entities.
func syncFeaturedSections(pc *domain.PipelineContext) {
	items := pc.FeaturedItems[:0]
	for _, item := range pc.FeaturedItems {
		if item.Entity != nil {
			if item.Entity.HideInDigest {
				continue
			}
			item.Section = item.Entity.DigestSection
		}
		items = append(items, item)
	}
	pc.FeaturedItems = items
}

// enrichWeather resolves a city (hints first, geolocation second) and
// fetches current conditions. Any failure means no weather.
func (s *EnrichStage) enrichWeather(ctx context.Context, pc *domain.PipelineContext) {
	log := logger.FromContext(ctx)

	city, region := pc.CityHint, pc.RegionHint
	if city == "" && s.geo != nil {
		loc, err := s.geo.Locate(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("geolocation failed, skipping weather")
			return
		}
		if loc != nil {
			city, region = loc.City, loc.Region
		}
	}
	if city == "" || s.weather == nil {
		return
	}

	w, err := s.weather.Current(ctx, city, region)
	if err != nil {
		log.Warn().Err(err).Str("city", city).Msg("weather lookup failed")
		return
	}
	pc.Weather = w
}

var conditionEmojis = []struct {
	cue   string
	emoji string
}{
	{"thunder", "⛈️"},
	{"snow", "❄️"},
	{"rain", "🌧️"},
	{"drizzle", "🌦️"},
	{"fog", "🌫️"},
	{"cloud", "☁️"},
	{"overcast", "☁️"},
	{"clear", "☀️"},
	{"sunny", "☀️"},
}

func emojiFor(condition string) string {
	lower := strings.ToLower(condition)
	for _, ce := range conditionEmojis {
		if strings.Contains(lower, ce.cue) {
			return ce.emoji
		}
	}
	return "🌤️"
}

// BuildGreeting produces the one-line greeting: hour bucket, optional
// name, date with ordinal suffix, optional weather clause.
func BuildGreeting(localNow time.Time, userName string, weather *domain.Weather) string {
	var bucket string
	switch hour := localNow.Hour(); {
	case hour < 12:
		bucket = "Good morning"
	case hour < 17:
		bucket = "Good afternoon"
	default:
		bucket = "Good evening"
	}

	var sb strings.Builder
	sb.WriteString(bucket)
	if userName != "" {
		sb.WriteString(", ")
		sb.WriteString(userName)
	}
	sb.WriteString("! It's ")
	sb.WriteString(localNow.Format("Monday, January 2"))
	sb.WriteString(ordinalSuffix(localNow.Day()))
	sb.WriteString(".")

	if weather != nil {
		sb.WriteString(fmt.Sprintf(" — currently %d°F and %s %s in %s.",
			weather.Temp, weather.Condition, emojiFor(weather.Condition), weather.City))
	}
	return sb.String()
}

func ordinalSuffix(day int) string {
	if day >= 11 && day <= 13 {
		return "th"
	}
	switch day % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	default:
		return "th"
	}
}
