package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/jkoufopoulos/shopq-prototype-sub001/core/domain"
	"github.com/jkoufopoulos/shopq-prototype-sub001/pkg/logger"
)

// DefaultKnownNames are merchant and carrier names the fact verifier
// checks for in the digest body; a mention with no source email
// backing it is a finding.
var DefaultKnownNames = []string{
	"amazon", "ups", "usps", "fedex", "dhl",
	"delta", "united", "american airlines", "alaska", "jetblue", "southwest",
	"google", "apple", "target", "walmart", "costco",
}

// ValidateStage verifies the synthesized digest against its source
// emails. It never fails the pipeline: findings are recorded on the
// context and surfaced in the response.
type ValidateStage struct {
	nameRe *regexp.Regexp
}

func NewValidateStage(knownNames []string) *ValidateStage {
	quoted := make([]string, 0, len(knownNames))
	for _, name := range knownNames {
		if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
			quoted = append(quoted, regexp.QuoteMeta(name))
		}
	}
	if len(quoted) == 0 {
		for _, name := range DefaultKnownNames {
			quoted = append(quoted, regexp.QuoteMeta(name))
		}
	}
	return &ValidateStage{
		nameRe: regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`),
	}
}

func (s *ValidateStage) Name() string        { return StageValidate }
func (s *ValidateStage) DependsOn() []string { return []string{StageSynthesis} }

func (s *ValidateStage) Process(ctx context.Context, pc *domain.PipelineContext) *domain.StageResult {
	var errs []string

	errs = append(errs, s.checkSchema(pc)...)
	errs = append(errs, s.checkFacts(pc)...)

	pc.ValidationErrors = errs
	pc.Verified = len(errs) == 0

	if len(errs) > 0 {
		log := logger.FromContext(ctx)
		log.Warn().
			Int("findings", len(errs)).
			Strs("errors", errs).
			Msg("digest validation findings")
	}

	return &domain.StageResult{
		Success:        true,
		ItemsProcessed: len(pc.FeaturedItems),
		ItemsOutput:    len(errs),
		Metadata:       map[string]any{"verified": pc.Verified},
	}
}

// checkSchema enforces structural requirements on the output.
func (s *ValidateStage) checkSchema(pc *domain.PipelineContext) []string {
	var errs []string
	if strings.TrimSpace(pc.DigestHTML) == "" {
		errs = append(errs, "digest HTML is empty")
		return errs
	}
	for _, item := range pc.FeaturedItems {
		if item.SourceEmailID() == "" {
			errs = append(errs, fmt.Sprintf("featured item %q has no source email", item.Title()))
		}
	}
	return errs
}

var (
	verifierNumberRe = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)
	// Date-like phrases: weekday or month names followed by a day number.
	verifierDateRe = regexp.MustCompile(`(?i)\b(?:Monday|Tuesday|Wednesday|Thursday|Friday|Saturday|Sunday|January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2}\b`)
)

// checkFacts verifies numbers, date phrases, and known merchant names
// in the digest body against the concatenated entity sources. Short
// numbers (list markers, times) are exempt.
func (s *ValidateStage) checkFacts(pc *domain.PipelineContext) []string {
	if len(pc.Entities) == 0 {
		return nil
	}

	var src strings.Builder
	for _, entity := range pc.Entities {
		src.WriteString(strings.ToLower(entity.SourceSubject))
		src.WriteByte(' ')
		src.WriteString(strings.ToLower(entity.SourceSnippet))
		src.WriteByte(' ')
	}
	source := src.String()
	sourceDigits := digitsOnly(source)

	// Text rendering only: the style block and markup carry numbers of
	// their own.
	body := strings.ToLower(RenderPlainText(pc.DigestHTML))
	// The greeting (today's date, weather reading) has no email source.
	if g := strings.ToLower(strings.TrimSpace(pc.Greeting)); g != "" {
		body = strings.Replace(body, g, " ", 1)
	}
	today := strings.ToLower(pc.LocalNow().Format("January 2"))

	var errs []string
	for _, num := range verifierNumberRe.FindAllString(body, -1) {
		digits := digitsOnly(num)
		if len(digits) <= 2 {
			continue // list markers, hours, small counts
		}
		if !strings.Contains(sourceDigits, digits) {
			errs = append(errs, fmt.Sprintf("number %q not found in source emails", num))
		}
	}
	for _, phrase := range verifierDateRe.FindAllString(body, -1) {
		if len(phrase) <= 5 || phrase == today {
			continue // narrative text may restate today's date
		}
		if !strings.Contains(source, strings.ToLower(phrase)) {
			errs = append(errs, fmt.Sprintf("date %q not found in source emails", phrase))
		}
	}

	sourceNames := make(map[string]struct{})
	for _, name := range s.nameRe.FindAllString(source, -1) {
		sourceNames[name] = struct{}{}
	}
	flagged := make(map[string]struct{})
	for _, name := range s.nameRe.FindAllString(body, -1) {
		if _, ok := sourceNames[name]; ok {
			continue
		}
		if _, seen := flagged[name]; seen {
			continue
		}
		flagged[name] = struct{}{}
		errs = append(errs, fmt.Sprintf("name %q not found in source emails", name))
	}
	return errs
}

func digitsOnly(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			sb.WriteByte(byte(r))
		}
	}
	return sb.String()
}
