// Package service hosts the application services behind the HTTP
// adapters.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jkoufopoulos/shopq-prototype-sub001/core/domain"
	"github.com/jkoufopoulos/shopq-prototype-sub001/core/port/out"
	"github.com/jkoufopoulos/shopq-prototype-sub001/core/service/pipeline"
	"github.com/jkoufopoulos/shopq-prototype-sub001/pkg/logger"
)

// PipelineVersion is reported in every response for downstream
// comparison of digest generations.
const PipelineVersion = "v2"

// GenerateRequest is the input of one digest generation.
type GenerateRequest struct {
	Emails    []domain.Email `json:"emails"`
	Timezone  string         `json:"timezone"`
	UserName  string         `json:"user_name"`
	City      string         `json:"city"`
	Region    string         `json:"region"`
	RawDigest bool           `json:"raw_digest"`
	// Now overrides the evaluation instant; zero means time.Now().
	Now time.Time `json:"now,omitempty"`
}

// DigestService generates digests. The pipeline graph is validated once
// at construction; Generate never fails after that.
type DigestService struct {
	pipeline *pipeline.Pipeline
	prefs    out.PreferenceStore
	history  out.DigestHistory
}

// NewDigestService builds the service around a validated pipeline. prefs
// and history may be nil.
func NewDigestService(p *pipeline.Pipeline, prefs out.PreferenceStore, history out.DigestHistory) *DigestService {
	return &DigestService{pipeline: p, prefs: prefs, history: history}
}

// Generate runs the pipeline over one email batch and always returns a
// response: a stage failure downgrades to the deterministic fallback
// digest instead of erroring.
func (s *DigestService) Generate(ctx context.Context, req *GenerateRequest) *domain.DigestResponse {
	log := logger.FromContext(ctx)

	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}

	tzName := req.Timezone
	loc, err := time.LoadLocation(tzName)
	if err != nil || tzName == "" {
		if tzName != "" {
			log.Warn().Str("timezone", tzName).Msg("unknown timezone, falling back to UTC")
		}
		tzName = "UTC"
		loc = time.UTC
	}

	pc := domain.NewPipelineContext(req.Emails, now, loc, tzName, req.UserName)
	pc.CityHint = req.City
	pc.RegionHint = req.Region
	pc.RawDigest = req.RawDigest

	result := s.pipeline.Run(ctx, pc)

	resp := s.buildResponse(pc, result)
	s.recordRun(ctx, pc, resp)
	return resp
}

// History returns the most recent digest runs, newest first.
func (s *DigestService) History(ctx context.Context, limit int) ([]out.DigestRecord, error) {
	if s.history == nil {
		return nil, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.history.Recent(ctx, limit)
}

// StageNames exposes the pipeline's declared stage order for health
// reporting.
func (s *DigestService) StageNames() []string {
	return s.pipeline.StageNames()
}

func (s *DigestService) buildResponse(pc *domain.PipelineContext, result *pipeline.Result) *domain.DigestResponse {
	resp := &domain.DigestResponse{
		NoiseBreakdown:  pc.NoiseSummary,
		Verified:        pc.Verified,
		Errors:          pc.ValidationErrors,
		PipelineVersion: PipelineVersion,
		SectionDist:     make(map[string]int),
	}
	if resp.Errors == nil {
		resp.Errors = []string{}
	}

	if !result.Success {
		greeting := pc.Greeting
		if greeting == "" {
			greeting = pipeline.BuildGreeting(pc.LocalNow(), pc.UserName, nil)
		}
		pc.DigestHTML = pipeline.RenderFallbackDigest(pc.Emails, greeting)
		resp.Fallback = true
		resp.Verified = false
	}

	resp.HTML = pc.DigestHTML
	resp.Text = pipeline.RenderPlainText(pc.DigestHTML)
	resp.WordCount = pipeline.CountWords(resp.Text)
	resp.EntitiesCount = len(pc.Entities)
	resp.FeaturedCount = len(pc.FeaturedItems)

	for _, section := range pc.SectionsT1 {
		switch section {
		case domain.SectionCritical:
			resp.CriticalCount++
		case domain.SectionToday, domain.SectionComingUp:
			resp.TimeSensitiveCount++
		case domain.SectionWorthKnowing:
			resp.RoutineCount++
		}
	}
	for _, item := range pc.FeaturedItems {
		resp.SectionDist[string(item.Section)]++
	}

	resp.GeneratedAtLocal = pc.LocalNow().Format(time.RFC3339)
	tz := pc.TimezoneName
	resp.Timezone = &tz
	if pc.Weather != nil && pc.Weather.City != "" {
		city := pc.Weather.City
		resp.City = &city
	} else if pc.CityHint != "" {
		city := pc.CityHint
		resp.City = &city
	}
	return resp
}

// recordRun persists the run summary. Best effort: a storage failure is
// logged and swallowed.
func (s *DigestService) recordRun(ctx context.Context, pc *domain.PipelineContext, resp *domain.DigestResponse) {
	if s.history == nil {
		return
	}
	rec := &out.DigestRecord{
		ID:            uuid.NewString(),
		GeneratedAt:   pc.Now,
		Timezone:      pc.TimezoneName,
		WordCount:     resp.WordCount,
		EntitiesCount: resp.EntitiesCount,
		FeaturedCount: resp.FeaturedCount,
		HTMLBytes:     len(resp.HTML),
		Verified:      resp.Verified,
		Fallback:      resp.Fallback,
	}
	if resp.City != nil {
		rec.City = *resp.City
	}
	if err := s.history.Insert(ctx, rec); err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Msg("digest history insert failed")
	}
}

// ResolvePreferences merges stored preferences into a request that left
// them unset. Missing store or row leaves the request untouched.
func (s *DigestService) ResolvePreferences(ctx context.Context, userID string, req *GenerateRequest) {
	if s.prefs == nil || userID == "" {
		return
	}
	prefs, err := s.prefs.Get(ctx, userID)
	if err != nil || prefs == nil {
		if err != nil {
			log := logger.FromContext(ctx)
			log.Warn().Err(err).Str("user_id", userID).Msg("preference lookup failed")
		}
		return
	}
	if req.Timezone == "" {
		req.Timezone = prefs.Timezone
	}
	if req.UserName == "" {
		req.UserName = prefs.Name
	}
	if req.City == "" {
		req.City = prefs.City
	}
	if req.Region == "" {
		req.Region = prefs.Region
	}
}
