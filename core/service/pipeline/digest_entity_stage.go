package pipeline

import (
	"context"

	"github.com/jkoufopoulos/shopq-prototype-sub001/core/domain"
	"github.com/jkoufopoulos/shopq-prototype-sub001/core/port/out"
)

// EntityStage extracts entities for every featured email and counts noise
// per coarse type. Featured emails with no extractable entity become raw
// email cards so invariant 1 holds: every surviving email is featured or
// counted.
type EntityStage struct {
	model      out.TextModel // nil disables the LLM path
	llmEnabled bool
}

func NewEntityStage(model out.TextModel, llmEnabled bool) *EntityStage {
	return &EntityStage{model: model, llmEnabled: llmEnabled}
}

func (s *EntityStage) Name() string        { return StageEntity }
func (s *EntityStage) DependsOn() []string { return []string{StageNoise} }

func (s *EntityStage) Process(ctx context.Context, pc *domain.PipelineContext) *domain.StageResult {
	extracted := 0

	for i := range pc.FilteredEmails {
		email := &pc.FilteredEmails[i]
		section := pc.SectionsT1[email.ID]

		switch {
		case section == domain.SectionNoise:
			pc.NoiseSummary[string(email.NormalizedType())]++
			continue
		case !section.IsFeatured():
			// skip: past grace, hidden entirely
			continue
		}

		tc := pc.TemporalContexts[email.ID]
		entity := extractByPattern(email, tc, pc.Now)
		if s.llmEnabled && s.model != nil {
			entity = mergeEntities(entity, extractByLLM(ctx, s.model, email))
		}

		if entity == nil {
			// Fallback card: the raw email, still linked and sectioned.
			pc.FeaturedItems = append(pc.FeaturedItems, domain.FeaturedItem{
				Section: section,
				Email:   email,
			})
			continue
		}

		stampEntity(entity, email, section, pc)
		pc.Entities = append(pc.Entities, entity)
		pc.FeaturedItems = append(pc.FeaturedItems, domain.FeaturedItem{
			Section: section,
			Entity:  entity,
		})
		extracted++
	}

	return &domain.StageResult{
		Success:        true,
		ItemsProcessed: len(pc.FilteredEmails),
		ItemsOutput:    len(pc.FeaturedItems),
		Metadata: map[string]any{
			"entities":    extracted,
			"noise_types": len(pc.NoiseSummary),
		},
	}
}

// stampEntity fills the common header: source references, timestamp, and
// importance derived from the T1 section.
func stampEntity(e *domain.Entity, email *domain.Email, section domain.Section, pc *domain.PipelineContext) {
	e.SourceEmailID = email.ID
	e.SourceThreadID = email.ThreadID
	e.SourceSubject = email.Subject
	e.SourceSnippet = email.Snippet
	e.Timestamp = pc.Now
	e.Importance = section.Importance()
	e.StoredImportance = e.Importance
	e.DigestSection = section
}
