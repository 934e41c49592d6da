package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jkoufopoulos/shopq-prototype-sub001/core/domain"
	"github.com/jkoufopoulos/shopq-prototype-sub001/core/port/out"
)

// fakeModel is a scripted TextModel: each call pops the next response.
type fakeModel struct {
	responses []string
	errs      []error
	prompts   []string
	calls     int
}

func (f *fakeModel) Generate(_ context.Context, prompt string, _ out.GenerateOptions) (string, error) {
	f.prompts = append(f.prompts, prompt)
	i := f.calls
	f.calls++
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	resp := ""
	if i < len(f.responses) {
		resp = f.responses[i]
	}
	return resp, err
}

func noiseContext(t *testing.T, emails []domain.Email) *domain.PipelineContext {
	t.Helper()
	now := time.Date(2025, 11, 18, 14, 0, 0, 0, time.UTC)
	pc := newTestContext(t, emails, now, "UTC")
	pc.FilteredEmails = emails
	for i := range emails {
		pc.SectionsT1[emails[i].ID] = domain.SectionNoise
	}
	return pc
}

func TestNoiseStageGuardrails(t *testing.T) {
	tests := []struct {
		name         string
		subject      string
		snippet      string
		wantElevated bool
	}{
		{
			name:         "verify phrase in subject elevates",
			subject:      "Please verify your account",
			wantElevated: true,
		},
		{
			name:         "payment failed in snippet elevates",
			snippet:      "We could not charge your card: payment failed",
			wantElevated: true,
		},
		{
			name:         "final notice elevates",
			subject:      "Final notice before suspension",
			wantElevated: true,
		},
		{
			name:    "ordinary newsletter stays noise",
			subject: "This week in climbing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pc := noiseContext(t, []domain.Email{
				{ID: "n1", Subject: tt.subject, Snippet: tt.snippet, Type: domain.TypeNewsletter},
			})

			NewNoiseStage(nil).Process(context.Background(), pc)

			got := pc.SectionsT1["n1"]
			if tt.wantElevated && got != domain.SectionWorthKnowing {
				t.Errorf("expected elevation to worth_knowing, got %s", got)
			}
			if !tt.wantElevated && got != domain.SectionNoise {
				t.Errorf("expected email to stay noise, got %s", got)
			}
		})
	}
}

func TestNoiseStageEditor(t *testing.T) {
	emails := []domain.Email{
		{ID: "a", Subject: "Weekly digest", Type: domain.TypeNewsletter},
		{ID: "b", Subject: "Your plan is changing", Type: domain.TypeUpdate},
	}

	t.Run("editor elevation applies", func(t *testing.T) {
		pc := noiseContext(t, emails)
		model := &fakeModel{responses: []string{
			`[{"id":"b","verdict":"elevate"},{"id":"a","verdict":"keep_noise"}]`,
		}}

		NewNoiseStage(model).Process(context.Background(), pc)

		if pc.SectionsT1["b"] != domain.SectionWorthKnowing {
			t.Errorf("b should be elevated, got %s", pc.SectionsT1["b"])
		}
		if pc.SectionsT1["a"] != domain.SectionNoise {
			t.Errorf("a should stay noise, got %s", pc.SectionsT1["a"])
		}
	})

	t.Run("unknown verdict counts as keep_noise", func(t *testing.T) {
		pc := noiseContext(t, emails)
		model := &fakeModel{responses: []string{
			`[{"id":"a","verdict":"promote"},{"id":"b","verdict":"ELEVATE"}]`,
		}}

		NewNoiseStage(model).Process(context.Background(), pc)

		if pc.SectionsT1["a"] != domain.SectionNoise || pc.SectionsT1["b"] != domain.SectionNoise {
			t.Error("verdicts outside the enum must not elevate")
		}
	})

	t.Run("editor failure keeps phase-1 results", func(t *testing.T) {
		pc := noiseContext(t, emails)
		model := &fakeModel{errs: []error{errors.New("rate limited")}}

		result := NewNoiseStage(model).Process(context.Background(), pc)

		if !result.Success {
			t.Error("editor failure must not fail the stage")
		}
		if pc.SectionsT1["a"] != domain.SectionNoise || pc.SectionsT1["b"] != domain.SectionNoise {
			t.Error("failed editor call must leave sections unchanged")
		}
	})

	t.Run("malformed verdicts are ignored", func(t *testing.T) {
		pc := noiseContext(t, emails)
		model := &fakeModel{responses: []string{`the emails look fine to me`}}

		NewNoiseStage(model).Process(context.Background(), pc)

		if pc.SectionsT1["a"] != domain.SectionNoise || pc.SectionsT1["b"] != domain.SectionNoise {
			t.Error("prose response must not elevate anything")
		}
	})

	t.Run("verdict for non-noise id is ignored", func(t *testing.T) {
		pc := noiseContext(t, emails)
		pc.SectionsT1["c"] = domain.SectionToday
		model := &fakeModel{responses: []string{`[{"id":"c","verdict":"elevate"}]`}}

		NewNoiseStage(model).Process(context.Background(), pc)

		if pc.SectionsT1["c"] != domain.SectionToday {
			t.Errorf("non-noise email must keep its section, got %s", pc.SectionsT1["c"])
		}
	})

	t.Run("sample is bounded", func(t *testing.T) {
		var many []domain.Email
		for i := 0; i < 20; i++ {
			many = append(many, domain.Email{ID: string(rune('a' + i)), Subject: "Digest", Type: domain.TypeNewsletter})
		}
		pc := noiseContext(t, many)
		model := &fakeModel{responses: []string{`[]`}}

		NewNoiseStage(model).Process(context.Background(), pc)

		if len(model.prompts) != 1 {
			t.Fatalf("expected one editor call, got %d", len(model.prompts))
		}
		if got := len(model.prompts[0]); got > maxEditorPromptBytes {
			t.Errorf("prompt exceeds bound: %d bytes", got)
		}
	})
}
