package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jkoufopoulos/shopq-prototype-sub001/core/domain"
	"github.com/jkoufopoulos/shopq-prototype-sub001/pkg/apperr"
)

// stubStage is a scriptable stage for graph and run-order tests.
type stubStage struct {
	name string
	deps []string
	fail bool
	err  error
	ran  *[]string
}

func (s *stubStage) Name() string        { return s.name }
func (s *stubStage) DependsOn() []string { return s.deps }

func (s *stubStage) Process(_ context.Context, _ *domain.PipelineContext) *domain.StageResult {
	if s.ran != nil {
		*s.ran = append(*s.ran, s.name)
	}
	return &domain.StageResult{Success: !s.fail, Err: s.err}
}

func TestNewValidatesGraph(t *testing.T) {
	tests := []struct {
		name   string
		stages []Stage
	}{
		{
			name:   "no stages",
			stages: nil,
		},
		{
			name:   "empty stage name",
			stages: []Stage{&stubStage{name: ""}},
		},
		{
			name: "duplicate stage name",
			stages: []Stage{
				&stubStage{name: "a"},
				&stubStage{name: "a"},
			},
		},
		{
			name: "dependency on later stage",
			stages: []Stage{
				&stubStage{name: "a", deps: []string{"b"}},
				&stubStage{name: "b"},
			},
		},
		{
			name: "dependency on unknown stage",
			stages: []Stage{
				&stubStage{name: "a"},
				&stubStage{name: "b", deps: []string{"zz"}},
			},
		},
		{
			name: "self dependency",
			stages: []Stage{
				&stubStage{name: "a", deps: []string{"a"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.stages...)
			if err == nil {
				t.Fatal("New() error = nil, want graph validation error")
			}
			if !apperr.IsCode(err, apperr.CodePipelineValidation) {
				t.Errorf("error code = %v, want %s", err, apperr.CodePipelineValidation)
			}
			if p != nil {
				t.Error("pipeline must be nil on validation failure")
			}
		})
	}
}

func TestNewAcceptsValidGraph(t *testing.T) {
	p, err := New(
		&stubStage{name: "a"},
		&stubStage{name: "b", deps: []string{"a"}},
		&stubStage{name: "c", deps: []string{"a", "b"}},
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	want := []string{"a", "b", "c"}
	got := p.StageNames()
	if len(got) != len(want) {
		t.Fatalf("StageNames() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("StageNames()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRunExecutesInOrder(t *testing.T) {
	var ran []string
	p, err := New(
		&stubStage{name: "a", ran: &ran},
		&stubStage{name: "b", deps: []string{"a"}, ran: &ran},
		&stubStage{name: "c", deps: []string{"b"}, ran: &ran},
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	now := time.Date(2025, 11, 18, 14, 0, 0, 0, time.UTC)
	pc := newTestContext(t, nil, now, "UTC")

	result := p.Run(context.Background(), pc)
	if !result.Success {
		t.Fatalf("Run failed at %q", result.FailedStage)
	}
	if len(ran) != 3 || ran[0] != "a" || ran[1] != "b" || ran[2] != "c" {
		t.Errorf("execution order = %v, want [a b c]", ran)
	}
	if len(result.Stages) != 3 {
		t.Errorf("got %d stage results, want 3", len(result.Stages))
	}
	for i, name := range []string{"a", "b", "c"} {
		if result.Stages[i].Stage != name {
			t.Errorf("Stages[%d].Stage = %q, want %q", i, result.Stages[i].Stage, name)
		}
	}
}

func TestRunStopsOnFailure(t *testing.T) {
	var ran []string
	p, err := New(
		&stubStage{name: "a", ran: &ran},
		&stubStage{name: "b", deps: []string{"a"}, fail: true, err: errors.New("boom"), ran: &ran},
		&stubStage{name: "c", deps: []string{"b"}, ran: &ran},
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	now := time.Date(2025, 11, 18, 14, 0, 0, 0, time.UTC)
	result := p.Run(context.Background(), newTestContext(t, nil, now, "UTC"))

	if result.Success {
		t.Error("Run must report failure")
	}
	if result.FailedStage != "b" {
		t.Errorf("FailedStage = %q, want b", result.FailedStage)
	}
	if len(ran) != 2 {
		t.Errorf("stages run = %v, later stages must not execute", ran)
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	var ran []string
	p, err := New(&stubStage{name: "a", ran: &ran})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	now := time.Date(2025, 11, 18, 14, 0, 0, 0, time.UTC)
	result := p.Run(ctx, newTestContext(t, nil, now, "UTC"))

	if result.Success {
		t.Error("cancelled run must not report success")
	}
	if result.FailedStage != "a" {
		t.Errorf("FailedStage = %q, want a", result.FailedStage)
	}
	if len(ran) != 0 {
		t.Error("no stage may run after cancellation")
	}
}

func TestRunNormalizesNilResult(t *testing.T) {
	p, err := New(&nilResultStage{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	now := time.Date(2025, 11, 18, 14, 0, 0, 0, time.UTC)
	result := p.Run(context.Background(), newTestContext(t, nil, now, "UTC"))

	if !result.Success {
		t.Error("nil stage result must count as success")
	}
	if len(result.Stages) != 1 || result.Stages[0].Stage != "quiet" {
		t.Errorf("Stages = %+v, want one result named quiet", result.Stages)
	}
}

type nilResultStage struct{}

func (s *nilResultStage) Name() string        { return "quiet" }
func (s *nilResultStage) DependsOn() []string { return nil }

func (s *nilResultStage) Process(_ context.Context, _ *domain.PipelineContext) *domain.StageResult {
	return nil
}
