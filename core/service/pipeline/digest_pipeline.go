// Package pipeline implements the digest generation pipeline: a strictly
// ordered transformation from a raw email batch to a rendered HTML
// document.
//
// Stage order:
//
//	temporal_extract → t0_assign → t1_decay → noise_elevate
//	  → entity_extract → enrich → synthesize → validate
//
// Every stage degrades gracefully around external calls. Only the
// validation stage is allowed to fail without aborting the run; any other
// stage failure stops the pipeline and the caller renders the
// deterministic fallback digest.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/jkoufopoulos/shopq-prototype-sub001/core/domain"
	"github.com/jkoufopoulos/shopq-prototype-sub001/pkg/apperr"
	"github.com/jkoufopoulos/shopq-prototype-sub001/pkg/logger"
)

// Stage names. Dependencies are declared against these.
const (
	StageTemporal  = "temporal_extract"
	StageT0        = "t0_assign"
	StageT1        = "t1_decay"
	StageNoise     = "noise_elevate"
	StageEntity    = "entity_extract"
	StageEnrich    = "enrich"
	StageSynthesis = "synthesize"
	StageValidate  = "validate"
)

// Stage is one pipeline step. Process mutates the shared context record
// and reports counters; it must not touch anything outside the record.
type Stage interface {
	Name() string
	DependsOn() []string
	Process(ctx context.Context, pc *domain.PipelineContext) *domain.StageResult
}

// Result is the outcome of one pipeline run.
type Result struct {
	Success     bool
	FailedStage string
	Stages      []*domain.StageResult
}

// Pipeline runs declared stages in order over a per-call context record.
type Pipeline struct {
	stages []Stage
}

// New validates the stage graph and builds the pipeline. Validation
// enforces unique names and predecessor-only dependencies; a bad graph is
// the one fatal error in the system.
func New(stages ...Stage) (*Pipeline, error) {
	if len(stages) == 0 {
		return nil, apperr.PipelineValidation("pipeline has no stages")
	}
	seen := make(map[string]bool, len(stages))
	for _, s := range stages {
		name := s.Name()
		if name == "" {
			return nil, apperr.PipelineValidation("stage with empty name")
		}
		if seen[name] {
			return nil, apperr.PipelineValidation(fmt.Sprintf("duplicate stage name %q", name))
		}
		for _, dep := range s.DependsOn() {
			if !seen[dep] {
				return nil, apperr.PipelineValidation(
					fmt.Sprintf("stage %q depends on %q which is not an earlier stage", name, dep))
			}
		}
		seen[name] = true
	}
	return &Pipeline{stages: stages}, nil
}

// Run executes the stages in order. It stops at the first failing stage
// (validation excepted: it always reports success and records warnings),
// and stops between stages when the caller's context is done.
func (p *Pipeline) Run(ctx context.Context, pc *domain.PipelineContext) *Result {
	log := logger.FromContext(ctx)
	result := &Result{Success: true}

	for _, stage := range p.stages {
		if err := ctx.Err(); err != nil {
			log.Warn().Str("stage", stage.Name()).Err(err).Msg("pipeline cancelled before stage")
			result.Success = false
			result.FailedStage = stage.Name()
			return result
		}

		start := time.Now()
		sr := stage.Process(ctx, pc)
		if sr == nil {
			sr = &domain.StageResult{Stage: stage.Name(), Success: true}
		}
		sr.Stage = stage.Name()
		result.Stages = append(result.Stages, sr)

		log.Debug().
			Str("stage", sr.Stage).
			Bool("success", sr.Success).
			Int("items_processed", sr.ItemsProcessed).
			Int("items_output", sr.ItemsOutput).
			Dur("elapsed", time.Since(start)).
			Msg("stage complete")

		if !sr.Success {
			log.Error().Str("stage", sr.Stage).Err(sr.Err).Msg("pipeline stage failed")
			result.Success = false
			result.FailedStage = sr.Stage
			return result
		}
	}

	return result
}

// StageNames returns the declared order (for health/debug reporting).
func (p *Pipeline) StageNames() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name()
	}
	return names
}
