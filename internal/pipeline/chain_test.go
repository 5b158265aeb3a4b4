package pipeline_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"courseforge/internal/pipeline"
	"courseforge/internal/run"
	"courseforge/internal/runlog"
	"courseforge/internal/services"
)

func testRecorder(t *testing.T) (*runlog.Bus, *runlog.Recorder) {
	t.Helper()
	bus := runlog.NewBus(256, time.Minute)
	bus.Open("run-1")
	return bus, runlog.NewRecorder(bus, "run-1", nil)
}

func TestChainStopsAtFirstSuccess(t *testing.T) {
	_, rec := testRecorder(t)
	calls := []string{}
	chain := pipeline.Chain[string]{
		Stage: "metadata",
		Providers: []pipeline.Provider[string]{
			{Name: "primary", Run: func(context.Context) (string, error) {
				calls = append(calls, "primary")
				return "", errors.New("boom")
			}},
			{Name: "secondary", Run: func(context.Context) (string, error) {
				calls = append(calls, "secondary")
				return "value", nil
			}},
			{Name: "tertiary", Run: func(context.Context) (string, error) {
				calls = append(calls, "tertiary")
				return "never", nil
			}},
		},
	}

	value, outcome, err := chain.Execute(context.Background(), rec)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if value != "value" || outcome.Provider != "secondary" {
		t.Fatalf("unexpected outcome %q %+v", value, outcome)
	}
	if !outcome.ViaFallback || outcome.Fallback {
		t.Fatalf("secondary provider success should mark via-fallback only, got %+v", outcome)
	}
	if len(calls) != 2 {
		t.Fatalf("providers called: %v", calls)
	}
	if len(outcome.Attempts) != 2 ||
		outcome.Attempts[0].Outcome != run.AttemptFailure ||
		outcome.Attempts[1].Outcome != run.AttemptSuccess {
		t.Fatalf("unexpected attempts %+v", outcome.Attempts)
	}
}

func TestChainNeverRetriesAProvider(t *testing.T) {
	_, rec := testRecorder(t)
	count := 0
	chain := pipeline.Chain[string]{
		Stage: "transcript",
		Providers: []pipeline.Provider[string]{
			{Name: "only", Run: func(context.Context) (string, error) {
				count++
				return "", errors.New("boom")
			}},
		},
		FallbackName: "local",
		Fallback: func(context.Context) (string, error) {
			return "fallback", nil
		},
	}

	value, outcome, err := chain.Execute(context.Background(), rec)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if count != 1 {
		t.Fatalf("provider attempted %d times", count)
	}
	if value != "fallback" || !outcome.Fallback || !outcome.ViaFallback || outcome.Provider != "local" {
		t.Fatalf("unexpected outcome %q %+v", value, outcome)
	}
}

func TestChainProviderTimeoutFailsClosed(t *testing.T) {
	_, rec := testRecorder(t)
	chain := pipeline.Chain[string]{
		Stage: "transcript",
		Providers: []pipeline.Provider[string]{
			{Name: "slow", Timeout: 20 * time.Millisecond, Run: func(ctx context.Context) (string, error) {
				select {
				case <-ctx.Done():
					return "", ctx.Err()
				case <-time.After(2 * time.Second):
					return "late", nil
				}
			}},
			{Name: "fast", Run: func(context.Context) (string, error) {
				return "value", nil
			}},
		},
	}

	value, outcome, err := chain.Execute(context.Background(), rec)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if value != "value" || outcome.Provider != "fast" {
		t.Fatalf("unexpected outcome %q %+v", value, outcome)
	}
	if outcome.Attempts[0].Outcome != run.AttemptTimeout {
		t.Fatalf("slow attempt recorded as %s", outcome.Attempts[0].Outcome)
	}
}

func TestChainValidationFailureMovesToNextProvider(t *testing.T) {
	_, rec := testRecorder(t)
	chain := pipeline.Chain[string]{
		Stage: "metadata",
		Providers: []pipeline.Provider[string]{
			{Name: "empty", Run: func(context.Context) (string, error) { return "", nil }},
			{Name: "real", Run: func(context.Context) (string, error) { return "ok", nil }},
		},
		Validate: func(v string) error {
			if v == "" {
				return errors.New("empty result")
			}
			return nil
		},
	}

	value, outcome, err := chain.Execute(context.Background(), rec)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if value != "ok" || outcome.Provider != "real" {
		t.Fatalf("unexpected outcome %q %+v", value, outcome)
	}
	if outcome.Attempts[0].Outcome != run.AttemptFailure {
		t.Fatalf("invalid result recorded as %s", outcome.Attempts[0].Outcome)
	}
}

func TestChainExhaustionWithoutFallbackFails(t *testing.T) {
	_, rec := testRecorder(t)
	chain := pipeline.Chain[string]{
		Stage: "metadata",
		Providers: []pipeline.Provider[string]{
			{Name: "a", Run: func(context.Context) (string, error) { return "", errors.New("a down") }},
			{Name: "b", Run: func(context.Context) (string, error) { return "", errors.New("b down") }},
		},
	}

	_, outcome, err := chain.Execute(context.Background(), rec)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if len(outcome.Attempts) != 2 {
		t.Fatalf("attempts = %d, want 2", len(outcome.Attempts))
	}
}

func TestChainPublishesAttemptEvents(t *testing.T) {
	bus, rec := testRecorder(t)
	chain := pipeline.Chain[string]{
		Stage: "synthesis",
		Providers: []pipeline.Provider[string]{
			{Name: "a", Run: func(context.Context) (string, error) { return "", errors.New("down") }},
			{Name: "b", Run: func(context.Context) (string, error) { return "ok", nil }},
		},
	}
	if _, _, err := chain.Execute(context.Background(), rec); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	events, _, _, err := bus.ReadSince(context.Background(), "run-1", 0, 0, false)
	if err != nil {
		t.Fatalf("ReadSince: %v", err)
	}
	var types []string
	for _, evt := range events {
		types = append(types, evt.Type)
	}
	want := []string{
		runlog.TypeAttemptStarted, runlog.TypeAttemptFinished,
		runlog.TypeAttemptStarted, runlog.TypeAttemptFinished,
	}
	if len(types) != len(want) {
		t.Fatalf("event types %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("event %d is %s, want %s", i, types[i], want[i])
		}
	}
}

func TestChainAbortsWhenRunDeadlineReached(t *testing.T) {
	_, rec := testRecorder(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	chain := pipeline.Chain[string]{
		Stage: "metadata",
		Providers: []pipeline.Provider[string]{
			{Name: "never", Run: func(context.Context) (string, error) {
				t.Fatal("provider should not run after deadline")
				return "", nil
			}},
		},
	}
	if _, _, err := chain.Execute(ctx, rec); !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
}
