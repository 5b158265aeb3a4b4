package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"courseforge/internal/pipeline"
	"courseforge/internal/run"
	"courseforge/internal/runlog"
)

func succeed(provider string) pipeline.StageDef {
	return pipeline.StageDef{
		Name: provider + "-stage",
		Execute: func(context.Context) (pipeline.Outcome, error) {
			return pipeline.Outcome{Provider: provider}, nil
		},
	}
}

func TestExecuteAllDirectSuccessesCompleteRun(t *testing.T) {
	_, rec := testRecorder(t)
	results, status, err := pipeline.Execute(context.Background(), rec, []pipeline.StageDef{
		succeed("a"), succeed("b"), succeed("c"),
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if status != run.StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", status)
	}
	for _, sr := range results {
		if sr.Status != run.StageSucceeded {
			t.Fatalf("stage %s status %s", sr.Stage, sr.Status)
		}
	}
}

func TestExecuteFallbackSuccessDegradesRun(t *testing.T) {
	_, rec := testRecorder(t)
	stages := []pipeline.StageDef{
		succeed("a"),
		{
			Name: "synthesis",
			Execute: func(context.Context) (pipeline.Outcome, error) {
				return pipeline.Outcome{Provider: "outline", ViaFallback: true, Fallback: true}, nil
			},
		},
	}
	results, status, err := pipeline.Execute(context.Background(), rec, stages)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if status != run.StatusDegraded {
		t.Fatalf("status = %s, want DEGRADED", status)
	}
	if results[1].Status != run.StageSucceededViaFallback {
		t.Fatalf("stage status = %s", results[1].Status)
	}
}

func TestExecuteSecondaryProviderSuccessDegradesRun(t *testing.T) {
	_, rec := testRecorder(t)
	chain := pipeline.Chain[string]{
		Stage: "metadata",
		Providers: []pipeline.Provider[string]{
			{Name: "primary", Run: func(context.Context) (string, error) {
				return "", errors.New("quota exceeded")
			}},
			{Name: "secondary", Run: func(context.Context) (string, error) {
				return "value", nil
			}},
		},
	}
	stages := []pipeline.StageDef{
		{
			Name: "metadata",
			Execute: func(ctx context.Context) (pipeline.Outcome, error) {
				_, outcome, err := chain.Execute(ctx, rec)
				return outcome, err
			},
		},
	}

	results, status, err := pipeline.Execute(context.Background(), rec, stages)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if status != run.StatusDegraded {
		t.Fatalf("status = %s, want DEGRADED", status)
	}
	if results[0].Status != run.StageSucceededViaFallback {
		t.Fatalf("stage status = %s, want SUCCEEDED_VIA_FALLBACK", results[0].Status)
	}
	if results[0].Provider != "secondary" {
		t.Fatalf("stage provider = %s", results[0].Provider)
	}
}

func TestExecuteMandatoryFailureSkipsRemainingStages(t *testing.T) {
	_, rec := testRecorder(t)
	ran := false
	stages := []pipeline.StageDef{
		{
			Name: "metadata",
			Execute: func(context.Context) (pipeline.Outcome, error) {
				return pipeline.Outcome{}, errors.New("all providers down")
			},
		},
		{
			Name: "transcript",
			Execute: func(context.Context) (pipeline.Outcome, error) {
				ran = true
				return pipeline.Outcome{Provider: "x"}, nil
			},
		},
	}
	results, status, err := pipeline.Execute(context.Background(), rec, stages)
	if err == nil {
		t.Fatal("expected pipeline error")
	}
	if status != run.StatusFailed {
		t.Fatalf("status = %s, want FAILED", status)
	}
	if ran {
		t.Fatal("stage after mandatory failure should not run")
	}
	if results[0].Status != run.StageFailed || results[1].Status != run.StageSkipped {
		t.Fatalf("stage statuses %s, %s", results[0].Status, results[1].Status)
	}
}

func TestExecuteOptionalFailureContinuesAndDegrades(t *testing.T) {
	_, rec := testRecorder(t)
	stages := []pipeline.StageDef{
		succeed("a"),
		{
			Name:     "media",
			Optional: true,
			Execute: func(context.Context) (pipeline.Outcome, error) {
				return pipeline.Outcome{}, errors.New("download failed")
			},
		},
		succeed("b"),
	}
	results, status, err := pipeline.Execute(context.Background(), rec, stages)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if status != run.StatusDegraded {
		t.Fatalf("status = %s, want DEGRADED", status)
	}
	if results[1].Status != run.StageFailed {
		t.Fatalf("optional stage status %s", results[1].Status)
	}
	if results[2].Status != run.StageSucceeded {
		t.Fatal("stage after optional failure should still run")
	}
}

func TestExecuteEmitsStageEventsInOrder(t *testing.T) {
	bus, rec := testRecorder(t)
	_, _, err := pipeline.Execute(context.Background(), rec, []pipeline.StageDef{succeed("a")})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	events, _, _, _ := bus.ReadSince(context.Background(), "run-1", 0, 0, false)
	if len(events) != 2 ||
		events[0].Type != runlog.TypeStageStarted ||
		events[1].Type != runlog.TypeStageFinished {
		t.Fatalf("unexpected events %+v", events)
	}
}
