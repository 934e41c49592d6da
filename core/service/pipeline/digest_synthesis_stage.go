package pipeline

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/jkoufopoulos/shopq-prototype-sub001/core/domain"
	"github.com/jkoufopoulos/shopq-prototype-sub001/core/port/out"
	"github.com/jkoufopoulos/shopq-prototype-sub001/pkg/logger"
)

// SynthesisConfig carries the feature flags the synthesis stage honours.
type SynthesisConfig struct {
	LLMSynthesis  bool   // editorial LLM path on/off
	RawDigest     bool   // global raw-digest flag (per-request flag also honoured)
	PromptVersion string // "v1" | "v2"
	DebugFeatured bool   // log the featured-item table at debug
}

// SynthesisStage produces the digest HTML. LLM branches are attempted in
// order (raw digest, noise narrative, editorial synthesis); every failure
// falls through to the deterministic renderer, so HTML is always
// produced.
type SynthesisStage struct {
	model out.TextModel // nil disables all LLM branches
	cfg   SynthesisConfig
}

func NewSynthesisStage(model out.TextModel, cfg SynthesisConfig) *SynthesisStage {
	if cfg.PromptVersion == "" {
		cfg.PromptVersion = "v2"
	}
	return &SynthesisStage{model: model, cfg: cfg}
}

func (s *SynthesisStage) Name() string        { return StageSynthesis }
func (s *SynthesisStage) DependsOn() []string { return []string{StageEnrich} }

func (s *SynthesisStage) Process(ctx context.Context, pc *domain.PipelineContext) *domain.StageResult {
	log := logger.FromContext(ctx)

	if s.cfg.DebugFeatured {
		for _, item := range pc.FeaturedItems {
			log.Debug().
				Str("section", string(item.Section)).
				Str("title", item.Title()).
				Str("source_email_id", item.SourceEmailID()).
				Msg("featured item")
		}
	}

	path := "deterministic"
	switch {
	case (pc.RawDigest || s.cfg.RawDigest) && s.tryRawDigest(ctx, pc):
		path = "raw"
	case len(pc.FeaturedItems) == 0 && len(pc.NoiseSummary) > 0 && s.tryNoiseNarrative(ctx, pc):
		path = "noise_narrative"
	case s.cfg.LLMSynthesis && len(pc.FeaturedItems) > 0 && s.tryEditorial(ctx, pc):
		path = "editorial"
	default:
		pc.DigestHTML = RenderDigest(pc)
	}

	return &domain.StageResult{
		Success:        true,
		ItemsProcessed: len(pc.FeaturedItems),
		ItemsOutput:    1,
		Metadata:       map[string]any{"path": path, "html_bytes": len(pc.DigestHTML)},
	}
}

// tryRawDigest bypasses the structured pipeline: one free-form document
// from the whole batch. Failure falls through to the structured path.
func (s *SynthesisStage) tryRawDigest(ctx context.Context, pc *domain.PipelineContext) bool {
	if s.model == nil {
		return false
	}
	log := logger.FromContext(ctx)

	var sb strings.Builder
	sb.WriteString("Write a complete self-contained HTML email digest (max 680px wide, ")
	sb.WriteString("inline CSS only, no scripts) summarising these emails:\n\n")
	for i := range pc.Emails {
		email := &pc.Emails[i]
		fmt.Fprintf(&sb, "- [%s] %s — %s\n", email.Type, email.Subject, truncate(email.Snippet, 140))
	}

	raw, err := s.model.Generate(ctx, sb.String(), out.GenerateOptions{Temperature: out.Temp(0.6), MaxTokens: 4096})
	if err != nil || !strings.Contains(raw, "<") {
		log.Warn().Err(err).Msg("raw digest generation failed, using structured pipeline")
		return false
	}
	pc.DigestHTML = raw
	return true
}

// tryNoiseNarrative asks the model for a short friendly summary of the
// routine pile when nothing is featured.
func (s *SynthesisStage) tryNoiseNarrative(ctx context.Context, pc *domain.PipelineContext) bool {
	if s.model == nil || !s.cfg.LLMSynthesis {
		return false
	}
	log := logger.FromContext(ctx)

	var sb strings.Builder
	sb.WriteString("Nothing urgent arrived today. Write two friendly sentences (plain text, ")
	sb.WriteString("no markup) telling the reader their inbox is quiet, mentioning the routine mail counts:\n")
	for typ, count := range pc.NoiseSummary {
		fmt.Fprintf(&sb, "- %d %s\n", count, typ)
	}

	narrative, err := s.model.Generate(ctx, sb.String(), out.GenerateOptions{Temperature: out.Temp(0.7), MaxTokens: 256})
	narrative = strings.TrimSpace(narrative)
	if err != nil || narrative == "" {
		log.Warn().Err(err).Msg("noise narrative failed, using deterministic clear block")
		return false
	}

	var doc strings.Builder
	openDocument(&doc, pc.Greeting)
	doc.WriteString(`<div class="clear">` + html.EscapeString(narrative) + "</div>\n")
	renderFooter(&doc, pc.NoiseSummary)
	closeDocument(&doc)
	pc.DigestHTML = doc.String()
	return true
}

// placeholderRe matches the [[<id>|<link text>]] placeholders the
// editorial model must use for every email reference.
var placeholderRe = regexp.MustCompile(`\[\[([^|\]]+)\|([^\]]+)\]\]`)

// tryEditorial runs the editorial LLM synthesis and post-processes its
// placeholders into mail-client links. Any post-processing failure
// (no placeholders, unknown ids, empty output) rejects the narrative.
func (s *SynthesisStage) tryEditorial(ctx context.Context, pc *domain.PipelineContext) bool {
	if s.model == nil {
		return false
	}
	log := logger.FromContext(ctx)

	narrative, err := s.model.Generate(ctx, s.editorialPrompt(pc), out.GenerateOptions{
		Temperature: out.Temp(0.7),
		MaxTokens:   2048,
	})
	if err != nil {
		log.Warn().Err(err).Msg("editorial synthesis failed, using deterministic renderer")
		pc.DigestHTML = RenderDigest(pc)
		return true
	}

	body, ok := s.resolvePlaceholders(narrative, pc)
	if !ok {
		log.Warn().Msg("editorial output rejected by post-processor, using deterministic renderer")
		pc.DigestHTML = RenderDigest(pc)
		return true
	}

	var doc strings.Builder
	openDocument(&doc, pc.Greeting)
	doc.WriteString(body)
	renderFooter(&doc, pc.NoiseSummary)
	closeDocument(&doc)
	pc.DigestHTML = doc.String()
	return true
}

// editorialPrompt builds the v1/v2 synthesis prompt over the featured
// items.
func (s *SynthesisStage) editorialPrompt(pc *domain.PipelineContext) string {
	var sb strings.Builder
	if s.cfg.PromptVersion == "v1" {
		sb.WriteString("Summarise the items below as a short email briefing.\n")
	} else {
		sb.WriteString("You are a personal email editor. Write a warm, scannable briefing of the ")
		sb.WriteString("items below, grouped by section, one short paragraph per section.\n")
	}
	sb.WriteString("Reference every item exactly once using the placeholder [[<id>|<link text>]] ")
	sb.WriteString("where <id> is the item id given. Output HTML paragraphs only: <p> and <strong>, ")
	sb.WriteString("no other tags, no document wrapper.\n\n")

	for _, item := range pc.FeaturedItems {
		fmt.Fprintf(&sb, "id=%s section=%s title=%q\n",
			item.SourceEmailID(), item.Section, item.Title())
	}
	return sb.String()
}

// resolvePlaceholders replaces each [[id|text]] with an anchor to the
// mail-client link for that item. ok=false when the output is unusable:
// empty, placeholder-free, or referencing unknown ids.
func (s *SynthesisStage) resolvePlaceholders(narrative string, pc *domain.PipelineContext) (string, bool) {
	narrative = strings.TrimSpace(narrative)
	if narrative == "" {
		return "", false
	}

	threadByID := make(map[string]string, len(pc.FeaturedItems))
	for _, item := range pc.FeaturedItems {
		threadByID[item.SourceEmailID()] = item.SourceThreadID()
	}

	matches := placeholderRe.FindAllStringSubmatch(narrative, -1)
	if len(matches) == 0 {
		return "", false
	}
	for _, m := range matches {
		if _, known := threadByID[strings.TrimSpace(m[1])]; !known {
			return "", false
		}
	}

	resolved := placeholderRe.ReplaceAllStringFunc(narrative, func(match string) string {
		m := placeholderRe.FindStringSubmatch(match)
		id := strings.TrimSpace(m[1])
		href := BestLink(threadByID[id], id, m[2])
		return fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(href), html.EscapeString(m[2]))
	})
	return resolved + "\n", true
}
