package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jkoufopoulos/shopq-prototype-sub001/core/domain"
	"github.com/jkoufopoulos/shopq-prototype-sub001/core/port/out"
	"github.com/jkoufopoulos/shopq-prototype-sub001/core/service/pipeline"
)

// fullPipeline assembles the production stage graph with all LLM and
// provider ports disabled.
func fullPipeline(t *testing.T) *pipeline.Pipeline {
	t.Helper()
	p, err := pipeline.New(
		pipeline.NewTemporalStage(),
		pipeline.NewT0Stage(),
		pipeline.NewT1Stage(),
		pipeline.NewNoiseStage(nil),
		pipeline.NewEntityStage(nil, false),
		pipeline.NewEnrichStage(nil, nil),
		pipeline.NewSynthesisStage(nil, pipeline.SynthesisConfig{}),
		pipeline.NewValidateStage(nil),
	)
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	return p
}

type memHistory struct {
	records []out.DigestRecord
	err     error
}

func (m *memHistory) Insert(_ context.Context, rec *out.DigestRecord) error {
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, *rec)
	return nil
}

func (m *memHistory) Recent(_ context.Context, limit int) ([]out.DigestRecord, error) {
	if limit > len(m.records) {
		limit = len(m.records)
	}
	return m.records[:limit], m.err
}

type memPrefs struct {
	rows map[string]*out.Preferences
	err  error
}

func (m *memPrefs) Get(_ context.Context, userID string) (*out.Preferences, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.rows[userID], nil
}

func TestGenerateEndToEnd(t *testing.T) {
	svc := NewDigestService(fullPipeline(t), nil, nil)
	now := time.Date(2025, 11, 18, 14, 0, 0, 0, time.UTC)

	req := &GenerateRequest{
		Timezone: "UTC",
		Now:      now,
		Emails: []domain.Email{
			{
				ID: "e1", ThreadID: "t1", Type: domain.TypeMessage,
				Subject: "Fraud alert on your card", Snippet: "Suspicious charge detected",
			},
			{
				ID: "e2", ThreadID: "t2", Type: domain.TypeEvent,
				Subject: "Dinner w/ Sarah @ Fri Nov 21, 2025 6:30pm - 8pm (UTC)",
				Date:    now.Format(time.RFC1123Z),
			},
			{
				ID: "e3", ThreadID: "t3", Type: domain.TypeNewsletter,
				Subject: "Weekly roundup", Snippet: "News of the week",
			},
		},
	}

	resp := svc.Generate(context.Background(), req)

	if resp.Fallback {
		t.Fatal("healthy run must not fall back")
	}
	if resp.HTML == "" || resp.Text == "" || resp.WordCount == 0 {
		t.Error("response must carry rendered output")
	}
	if resp.CriticalCount != 1 {
		t.Errorf("CriticalCount = %d, want 1", resp.CriticalCount)
	}
	if resp.TimeSensitiveCount != 1 {
		t.Errorf("TimeSensitiveCount = %d, want 1", resp.TimeSensitiveCount)
	}
	if resp.NoiseBreakdown[string(domain.TypeNewsletter)] != 1 {
		t.Errorf("NoiseBreakdown = %v, want one newsletter", resp.NoiseBreakdown)
	}
	if resp.PipelineVersion != PipelineVersion {
		t.Errorf("PipelineVersion = %q", resp.PipelineVersion)
	}
	if resp.Timezone == nil || *resp.Timezone != "UTC" {
		t.Error("timezone must echo back")
	}
	if resp.Errors == nil {
		t.Error("errors must never be nil")
	}
	if resp.FeaturedCount == 0 {
		t.Error("fraud alert and dinner must be featured")
	}
	if len(resp.SectionDist) == 0 {
		t.Error("section distribution missing")
	}

	// Every surviving email is either featured or counted as noise.
	noiseTotal := 0
	for _, n := range resp.NoiseBreakdown {
		noiseTotal += n
	}
	if resp.FeaturedCount+noiseTotal != len(req.Emails) {
		t.Errorf("featured %d + noise %d != %d emails",
			resp.FeaturedCount, noiseTotal, len(req.Emails))
	}
}

func TestGenerateInvalidTimezone(t *testing.T) {
	svc := NewDigestService(fullPipeline(t), nil, nil)
	now := time.Date(2025, 11, 18, 14, 0, 0, 0, time.UTC)

	resp := svc.Generate(context.Background(), &GenerateRequest{
		Timezone: "Mars/Olympus_Mons",
		Now:      now,
		Emails:   []domain.Email{{ID: "e1", Subject: "hello"}},
	})

	if resp.Timezone == nil || *resp.Timezone != "UTC" {
		t.Errorf("invalid timezone must fall back to UTC, got %v", resp.Timezone)
	}
	if resp.Fallback {
		t.Error("timezone fallback is not a pipeline failure")
	}
}

type explodingStage struct{}

func (s *explodingStage) Name() string        { return "exploding" }
func (s *explodingStage) DependsOn() []string { return nil }

func (s *explodingStage) Process(_ context.Context, _ *domain.PipelineContext) *domain.StageResult {
	return &domain.StageResult{Success: false, Err: errors.New("boom")}
}

func TestGenerateFallbackOnStageFailure(t *testing.T) {
	p, err := pipeline.New(&explodingStage{})
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	history := &memHistory{}
	svc := NewDigestService(p, nil, history)
	now := time.Date(2025, 11, 18, 14, 0, 0, 0, time.UTC)

	resp := svc.Generate(context.Background(), &GenerateRequest{
		Timezone: "UTC",
		Now:      now,
		Emails: []domain.Email{
			{ID: "e1", ThreadID: "t1", Subject: "Fraud alert", Importance: domain.ImportanceCritical},
			{ID: "e2", ThreadID: "t2", Subject: "Newsletter"},
		},
	})

	if !resp.Fallback {
		t.Fatal("stage failure must produce the fallback digest")
	}
	if resp.Verified {
		t.Error("fallback digest is never verified")
	}
	if !strings.Contains(resp.HTML, "Fraud alert") {
		t.Error("fallback must list the input emails")
	}
	if !strings.Contains(resp.HTML, "Critical") {
		t.Error("fallback must group by importance")
	}
	if len(history.records) != 1 || !history.records[0].Fallback {
		t.Errorf("fallback run must still be recorded, got %+v", history.records)
	}
}

func TestGenerateRecordsHistory(t *testing.T) {
	history := &memHistory{}
	svc := NewDigestService(fullPipeline(t), nil, history)
	now := time.Date(2025, 11, 18, 14, 0, 0, 0, time.UTC)

	svc.Generate(context.Background(), &GenerateRequest{
		Timezone: "America/New_York",
		Now:      now,
		Emails:   []domain.Email{{ID: "e1", Subject: "hello"}},
	})

	if len(history.records) != 1 {
		t.Fatalf("got %d history records, want 1", len(history.records))
	}
	rec := history.records[0]
	if rec.ID == "" {
		t.Error("record must carry a generated id")
	}
	if rec.Timezone != "America/New_York" {
		t.Errorf("Timezone = %q", rec.Timezone)
	}
	if rec.WordCount == 0 || rec.HTMLBytes == 0 {
		t.Error("record must carry output sizes")
	}
}

func TestGenerateSurvivesHistoryFailure(t *testing.T) {
	history := &memHistory{err: errors.New("db down")}
	svc := NewDigestService(fullPipeline(t), nil, history)
	now := time.Date(2025, 11, 18, 14, 0, 0, 0, time.UTC)

	resp := svc.Generate(context.Background(), &GenerateRequest{
		Timezone: "UTC",
		Now:      now,
		Emails:   []domain.Email{{ID: "e1", Subject: "hello"}},
	})

	if resp == nil || resp.HTML == "" {
		t.Fatal("history failure must not affect the response")
	}
}

func TestHistoryLimits(t *testing.T) {
	history := &memHistory{records: make([]out.DigestRecord, 50)}
	svc := NewDigestService(fullPipeline(t), nil, history)

	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{"zero uses default", 0, 20},
		{"negative uses default", -3, 20},
		{"over cap uses default", 500, 20},
		{"in range passes through", 30, 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.History(context.Background(), tt.limit)
			if err != nil {
				t.Fatalf("History: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("len = %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestHistoryWithoutStore(t *testing.T) {
	svc := NewDigestService(fullPipeline(t), nil, nil)
	got, err := svc.History(context.Background(), 10)
	if err != nil || got != nil {
		t.Errorf("History() = %v, %v; want nil, nil", got, err)
	}
}

func TestResolvePreferences(t *testing.T) {
	prefs := &memPrefs{rows: map[string]*out.Preferences{
		"u1": {UserID: "u1", Timezone: "America/New_York", Name: "Maya", City: "Brooklyn", Region: "New York"},
	}}
	svc := NewDigestService(fullPipeline(t), prefs, nil)

	t.Run("fills unset fields", func(t *testing.T) {
		req := &GenerateRequest{}
		svc.ResolvePreferences(context.Background(), "u1", req)
		if req.Timezone != "America/New_York" || req.UserName != "Maya" || req.City != "Brooklyn" {
			t.Errorf("unset fields not filled: %+v", req)
		}
	})

	t.Run("request values win", func(t *testing.T) {
		req := &GenerateRequest{Timezone: "UTC", City: "Austin"}
		svc.ResolvePreferences(context.Background(), "u1", req)
		if req.Timezone != "UTC" || req.City != "Austin" {
			t.Errorf("explicit fields overwritten: %+v", req)
		}
		if req.UserName != "Maya" {
			t.Error("unset name should still fill")
		}
	})

	t.Run("unknown user leaves request untouched", func(t *testing.T) {
		req := &GenerateRequest{}
		svc.ResolvePreferences(context.Background(), "nobody", req)
		if req.Timezone != "" {
			t.Errorf("request mutated: %+v", req)
		}
	})

	t.Run("store failure leaves request untouched", func(t *testing.T) {
		failing := &memPrefs{err: errors.New("db down")}
		broken := NewDigestService(fullPipeline(t), failing, nil)
		req := &GenerateRequest{}
		broken.ResolvePreferences(context.Background(), "u1", req)
		if req.Timezone != "" {
			t.Errorf("request mutated: %+v", req)
		}
	})
}
