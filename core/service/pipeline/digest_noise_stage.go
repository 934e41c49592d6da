package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/jkoufopoulos/shopq-prototype-sub001/core/domain"
	"github.com/jkoufopoulos/shopq-prototype-sub001/core/port/out"
	"github.com/jkoufopoulos/shopq-prototype-sub001/pkg/logger"
)

// guardrailPhrases is the fixed allow-list for Phase 1 noise rescue. An
// email in noise whose subject or snippet matches any phrase is elevated
// to worth_knowing without consulting the LLM.
var guardrailPhrases = []string{
	"verify your",
	"suspicious",
	"unusual sign-in",
	"unusual activity",
	"payment failed",
	"payment declined",
	"action required",
	"final notice",
	"verify within",
	"account suspended",
	"password expires",
	"confirm your",
	"last chance to respond",
}

// Editor LLM sampling bounds (Phase 2).
const (
	maxEditorSample      = 8
	maxEditorPromptBytes = 6 * 1024
)

// NoiseStage rescues emails wrongly assigned to noise. Phase 1 keyword
// guardrails always run; Phase 2 submits a bounded sample of the
// remaining noise to the editor LLM when one is configured. Any LLM
// failure leaves the Phase-1 result standing.
type NoiseStage struct {
	editor out.TextModel // nil disables Phase 2
}

func NewNoiseStage(editor out.TextModel) *NoiseStage {
	return &NoiseStage{editor: editor}
}

func (s *NoiseStage) Name() string        { return StageNoise }
func (s *NoiseStage) DependsOn() []string { return []string{StageT1} }

func (s *NoiseStage) Process(ctx context.Context, pc *domain.PipelineContext) *domain.StageResult {
	elevated := 0
	var remaining []*domain.Email

	for i := range pc.FilteredEmails {
		email := &pc.FilteredEmails[i]
		if pc.SectionsT1[email.ID] != domain.SectionNoise {
			continue
		}
		if matchesGuardrail(email) {
			pc.SectionsT1[email.ID] = domain.SectionWorthKnowing
			elevated++
			continue
		}
		remaining = append(remaining, email)
	}

	llmElevated := 0
	if s.editor != nil && len(remaining) > 0 {
		llmElevated = s.editorPass(ctx, pc, remaining)
		elevated += llmElevated
	}

	return &domain.StageResult{
		Success:        true,
		ItemsProcessed: elevated + len(remaining),
		ItemsOutput:    elevated,
		Metadata: map[string]any{
			"guardrail_elevated": elevated - llmElevated,
			"llm_elevated":       llmElevated,
		},
	}
}

// matchesGuardrail reports whether the email trips any Phase-1 phrase.
func matchesGuardrail(email *domain.Email) bool {
	subject := strings.ToLower(email.Subject)
	snippet := strings.ToLower(email.Snippet)
	return containsAny(subject, guardrailPhrases) || containsAny(snippet, guardrailPhrases)
}

// editorVerdict is one entry of the editor LLM's JSON response.
type editorVerdict struct {
	ID      string `json:"id"`
	Verdict string `json:"verdict"`
}

// editorPass submits up to maxEditorSample noise emails (input order) in
// one bounded prompt and elevates those the editor votes for. Verdicts
// outside {keep_noise, elevate} count as keep_noise.
func (s *NoiseStage) editorPass(ctx context.Context, pc *domain.PipelineContext, noise []*domain.Email) int {
	log := logger.FromContext(ctx)

	sample := noise
	if len(sample) > maxEditorSample {
		sample = sample[:maxEditorSample]
	}

	var sb strings.Builder
	sb.WriteString("You triage email. For each item below decide whether it deserves ")
	sb.WriteString("elevation out of the routine pile. Reply with a JSON array of ")
	sb.WriteString(`{"id": "...", "verdict": "keep_noise"|"elevate"} objects, nothing else.` + "\n\n")
	for _, email := range sample {
		line := fmt.Sprintf("id=%s subject=%q snippet=%q\n", email.ID, email.Subject, truncate(email.Snippet, 120))
		if sb.Len()+len(line) > maxEditorPromptBytes {
			break
		}
		sb.WriteString(line)
	}

	raw, err := s.editor.Generate(ctx, sb.String(), out.GenerateOptions{
		Temperature: out.Temp(0),
		MaxTokens:   512,
		JSONMode:    true,
	})
	if err != nil {
		log.Warn().Err(err).Msg("noise editor call failed, keeping phase-1 results")
		return 0
	}

	var verdicts []editorVerdict
	if err := json.Unmarshal([]byte(extractJSONArray(raw)), &verdicts); err != nil {
		log.Warn().Err(err).Msg("noise editor returned malformed verdicts")
		return 0
	}

	elevated := 0
	for _, v := range verdicts {
		if v.Verdict != "elevate" {
			continue
		}
		if pc.SectionsT1[v.ID] == domain.SectionNoise {
			pc.SectionsT1[v.ID] = domain.SectionWorthKnowing
			elevated++
		}
	}
	return elevated
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// extractJSONArray trims any prose the model wrapped around the array.
func extractJSONArray(raw string) string {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
