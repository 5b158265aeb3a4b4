// Package pipeline contains the stage state machine and the provider fallback
// chain engine. It is domain-agnostic: stages are declared as ordered
// definitions whose execute functions close over the run's accumulated state.
package pipeline

import (
	"context"
	"strconv"
	"time"

	"courseforge/internal/run"
	"courseforge/internal/runlog"
	"courseforge/internal/services"
)

// StageDef declares one pipeline stage. Execute returns how the stage
// produced its result; a nil error with ViaFallback set records success
// through something other than the primary provider. Optional stages that
// fail do not stop the pipeline.
type StageDef struct {
	Name     string
	Optional bool
	Execute  func(ctx context.Context) (Outcome, error)
}

// Execute runs stages in order and returns the per-stage results plus the
// run's terminal classification. A mandatory stage failure skips everything
// after it. The classification is COMPLETED only when every stage succeeded
// through a real provider; fallbacks and failed optional stages degrade the
// run instead.
func Execute(ctx context.Context, rec *runlog.Recorder, stages []StageDef) ([]run.StageResult, run.Status, error) {
	results := make([]run.StageResult, 0, len(stages))
	degraded := false
	var failure error

	for i, def := range stages {
		if failure != nil {
			rec.Event(runlog.TypeStageSkipped, def.Name, "", "skipped after earlier failure", nil)
			results = append(results, run.StageResult{Stage: def.Name, Status: run.StageSkipped})
			continue
		}
		if err := ctx.Err(); err != nil {
			failure = services.Wrap(services.ErrTimeout, def.Name, "pipeline", "run deadline reached", err)
			rec.Event(runlog.TypeStageSkipped, def.Name, "", "skipped, run deadline reached", nil)
			results = append(results, run.StageResult{Stage: def.Name, Status: run.StageSkipped})
			continue
		}

		stageCtx := services.WithStage(ctx, def.Name)
		rec.Event(runlog.TypeStageStarted, def.Name, "", "stage started", map[string]string{
			"position": positionLabel(i, len(stages)),
		})
		started := time.Now().UTC()
		outcome, err := def.Execute(stageCtx)
		finished := time.Now().UTC()

		result := run.StageResult{
			Stage:      def.Name,
			Provider:   outcome.Provider,
			Fallback:   outcome.Fallback,
			Attempts:   outcome.Attempts,
			StartedAt:  started,
			FinishedAt: finished,
		}

		switch {
		case err == nil && outcome.ViaFallback:
			result.Status = run.StageSucceededViaFallback
			degraded = true
		case err == nil:
			result.Status = run.StageSucceeded
		default:
			result.Status = run.StageFailed
			result.Error = services.Message(err)
			if def.Optional {
				degraded = true
				rec.Warn(def.Name, outcome.Provider, "optional stage failed, continuing: "+services.Message(err))
			} else {
				failure = err
			}
		}

		rec.Event(runlog.TypeStageFinished, def.Name, result.Provider, "stage "+string(result.Status), map[string]string{
			"status":  string(result.Status),
			"elapsed": finished.Sub(started).Round(time.Millisecond).String(),
		})
		results = append(results, result)
	}

	switch {
	case failure != nil:
		return results, run.StatusFailed, failure
	case degraded:
		return results, run.StatusDegraded, nil
	default:
		return results, run.StatusCompleted, nil
	}
}

func positionLabel(index, total int) string {
	return strconv.Itoa(index+1) + "/" + strconv.Itoa(total)
}
