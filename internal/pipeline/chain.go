package pipeline

import (
	"context"
	"errors"
	"time"

	"courseforge/internal/run"
	"courseforge/internal/runlog"
	"courseforge/internal/services"
)

// Provider is one ordered entry in a stage's fallback chain. Run receives a
// context already bounded by the provider's timeout.
type Provider[T any] struct {
	Name    string
	Timeout time.Duration
	Run     func(ctx context.Context) (T, error)
}

// Chain executes providers in declared order until one yields a valid result.
// A provider gets exactly one attempt; failures move to the next provider,
// never back. When every provider fails, the terminal Fallback (when set)
// produces the stage result locally.
type Chain[T any] struct {
	Stage     string
	Providers []Provider[T]
	Validate  func(T) error

	// Fallback never performs network work and is not part of the attempt
	// chain. Leaving it nil makes provider exhaustion a stage failure.
	FallbackName string
	Fallback     func(ctx context.Context) (T, error)
}

// Outcome describes how a chain produced its value. ViaFallback is set
// whenever anything other than the primary provider supplied the result;
// Fallback marks the terminal local fallback specifically.
type Outcome struct {
	Provider    string
	ViaFallback bool
	Fallback    bool
	Attempts    []run.ProviderAttempt
}

// Execute walks the chain. The returned error is non-nil only when no
// provider and no fallback could produce a valid result, or when ctx ended.
func (c Chain[T]) Execute(ctx context.Context, rec *runlog.Recorder) (T, Outcome, error) {
	var zero T
	outcome := Outcome{}

	for i, p := range c.Providers {
		if err := ctx.Err(); err != nil {
			return zero, outcome, services.Wrap(services.ErrTimeout, c.Stage, "provider chain", "run deadline reached", err)
		}

		rec.AttemptStarted(c.Stage, p.Name)
		started := time.Now()
		value, err := c.runProvider(ctx, p)
		elapsed := time.Since(started)

		if err == nil {
			outcome.Provider = p.Name
			outcome.ViaFallback = i > 0
			outcome.Attempts = append(outcome.Attempts, run.ProviderAttempt{
				Provider:  p.Name,
				Outcome:   run.AttemptSuccess,
				StartedAt: started.UTC(),
				Duration:  elapsed,
			})
			rec.AttemptFinished(c.Stage, p.Name, string(run.AttemptSuccess), elapsed, "")
			return value, outcome, nil
		}

		result := run.AttemptFailure
		if services.IsTimeout(err) {
			result = run.AttemptTimeout
		}
		outcome.Attempts = append(outcome.Attempts, run.ProviderAttempt{
			Provider:  p.Name,
			Outcome:   result,
			Error:     services.Message(err),
			StartedAt: started.UTC(),
			Duration:  elapsed,
		})
		rec.AttemptFinished(c.Stage, p.Name, string(result), elapsed, services.Message(err))
	}

	if err := ctx.Err(); err != nil {
		return zero, outcome, services.Wrap(services.ErrTimeout, c.Stage, "provider chain", "run deadline reached", err)
	}
	if c.Fallback == nil {
		return zero, outcome, services.Wrap(services.ErrExternalTool, c.Stage, "provider chain", "all providers failed", nil)
	}

	value, err := c.Fallback(ctx)
	if err == nil && c.Validate != nil {
		err = c.Validate(value)
	}
	if err != nil {
		return zero, outcome, services.Wrap(services.ErrExternalTool, c.Stage, "terminal fallback", "fallback failed after provider exhaustion", err)
	}
	outcome.Provider = c.FallbackName
	outcome.ViaFallback = true
	outcome.Fallback = true
	rec.Event(runlog.TypeFallbackUsed, c.Stage, c.FallbackName, "providers exhausted, using "+c.FallbackName, nil)
	return value, outcome, nil
}

// runProvider applies the per-provider timeout and result validation. A
// provider that overruns its budget is abandoned; its late result is ignored.
func (c Chain[T]) runProvider(ctx context.Context, p Provider[T]) (T, error) {
	var zero T
	attemptCtx := ctx
	cancel := context.CancelFunc(func() {})
	if p.Timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, p.Timeout)
	}
	defer cancel()

	value, err := p.Run(attemptCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return zero, services.Wrap(services.ErrTimeout, c.Stage, p.Name, "provider timed out", err)
		}
		return zero, err
	}
	if err := attemptCtx.Err(); err != nil {
		return zero, services.Wrap(services.ErrTimeout, c.Stage, p.Name, "provider timed out", err)
	}
	if c.Validate != nil {
		if err := c.Validate(value); err != nil {
			return zero, services.Wrap(services.ErrValidation, c.Stage, p.Name, "provider returned an unusable result", err)
		}
	}
	return value, nil
}
