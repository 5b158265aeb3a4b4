package workflow

import (
	"context"
	"errors"
	"strconv"
	"time"

	"courseforge/internal/course"
	"courseforge/internal/logging"
	"courseforge/internal/media"
	"courseforge/internal/metadata"
	"courseforge/internal/pipeline"
	"courseforge/internal/run"
	"courseforge/internal/runlog"
	"courseforge/internal/services"
	"courseforge/internal/synthesis"
	"courseforge/internal/transcript"
)

// StorageStageName closes the pipeline: assemble the artifact and persist it.
const StorageStageName = "storage"

// runState accumulates stage outputs. Only the run's own goroutine touches
// it, so no locking is needed.
type runState struct {
	video      metadata.Video
	transcript transcript.Transcript
	draft      course.Draft
	media      media.Result

	metadataProvider   string
	transcriptProvider string
	synthesisProvider  string
	synthesisFallback  bool

	courseID int64
}

func (m *Manager) execute(ctx context.Context, handle *runHandle) {
	r := handle.run
	ctx = services.WithRunID(ctx, r.ID)
	rec := runlog.NewRecorder(m.deps.Bus, r.ID, m.logger)
	logger := logging.WithContext(ctx, m.logger)

	started := m.now().UTC()
	m.updateRun(r, func(r *run.Run) {
		r.Status = run.StatusRunning
		r.StartedAt = started
	})
	logger.Info("run started", logging.String("video_id", r.Reference.VideoID))

	state := &runState{}
	stages := m.buildStages(r, state, rec)

	results, status, pipelineErr := pipeline.Execute(ctx, rec, stages)

	// Persistence sits outside the stage classification: a run that produced
	// an artifact is never demoted to FAILED because the store was down. It
	// finishes with its generation status and an explicit unsaved warning.
	errMsg := ""
	if status == run.StatusFailed {
		rec.Event(runlog.TypeStageSkipped, StorageStageName, "", "skipped after earlier failure", nil)
		results = append(results, run.StageResult{Stage: StorageStageName, Status: run.StageSkipped})
	} else {
		storageResult := m.persistStage(ctx, r, state, rec)
		results = append(results, storageResult)
		if storageResult.Status == run.StageFailed {
			errMsg = "course generated but not saved: " + storageResult.Error
		}
	}

	finished := m.now().UTC()
	if pipelineErr != nil {
		errMsg = services.Message(pipelineErr)
		if errors.Is(ctx.Err(), context.Canceled) {
			errMsg = "run cancelled"
		} else if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			errMsg = "run deadline exceeded: " + errMsg
		}
	}
	m.updateRun(r, func(r *run.Run) {
		r.Status = status
		r.Stages = results
		r.Error = errMsg
		r.CourseID = state.courseID
		r.FinishedAt = finished
	})

	rec.Event(runlog.TypeRunFinished, "", "", "run "+string(status), map[string]string{
		"status":  string(status),
		"elapsed": finished.Sub(started).Round(time.Millisecond).String(),
	})
	m.deps.Bus.Close(r.ID)

	m.mu.Lock()
	m.active--
	m.mu.Unlock()
	close(handle.done)

	m.persistHistory(r)
	m.notify(r, state, pipelineErr)

	switch status {
	case run.StatusFailed:
		logger.Error("run failed", logging.String("error", errMsg))
	default:
		logger.Info("run finished",
			logging.String("status", string(status)),
			logging.Int64("course_id", state.courseID))
	}
}

func (m *Manager) buildStages(r *run.Run, state *runState, rec *runlog.Recorder) []pipeline.StageDef {
	ref := r.Reference
	stages := []pipeline.StageDef{
		{
			Name: metadata.StageName,
			Execute: func(ctx context.Context) (pipeline.Outcome, error) {
				video, outcome, err := m.deps.Metadata.Chain(ref).Execute(ctx, rec)
				if err == nil {
					state.video = video
					state.metadataProvider = outcome.Provider
				}
				return outcome, err
			},
		},
		{
			Name: transcript.StageName,
			Execute: func(ctx context.Context) (pipeline.Outcome, error) {
				tr, outcome, err := m.deps.Transcript.Chain(ref, state.video.Description).Execute(ctx, rec)
				if err == nil {
					state.transcript = tr
					state.transcriptProvider = outcome.Provider
				}
				return outcome, err
			},
		},
		{
			Name: synthesis.StageName,
			Execute: func(ctx context.Context) (pipeline.Outcome, error) {
				draft, outcome, err := m.deps.Synthesis.Chain(state.video, state.transcript).Execute(ctx, rec)
				if err == nil {
					state.draft = draft
					state.synthesisProvider = outcome.Provider
					state.synthesisFallback = outcome.Fallback
				}
				return outcome, err
			},
		},
	}

	if m.deps.Media != nil && m.deps.Media.Enabled() {
		stages = append(stages, pipeline.StageDef{
			Name:     media.StageName,
			Optional: true,
			Execute: func(ctx context.Context) (pipeline.Outcome, error) {
				res, outcome, err := m.deps.Media.Chain(ref).Execute(ctx, rec)
				if err != nil {
					return outcome, err
				}
				archived, archiveErr := m.deps.Media.Archive(ctx, res, ref.VideoID)
				if archiveErr != nil {
					// An upload failure never discards the downloaded file;
					// the stage succeeds degraded with the local result.
					rec.Warn(media.StageName, res.Source, "media upload failed, keeping local file: "+services.Message(archiveErr))
					outcome.ViaFallback = true
				} else {
					res = archived
				}
				state.media = res
				return outcome, nil
			},
		})
	}

	return stages
}

// persistStage assembles the artifact and saves it with bounded retries.
// Storage gets retries because a busy database is worth a second try; the
// provider chains never retry.
func (m *Manager) persistStage(ctx context.Context, r *run.Run, state *runState, rec *runlog.Recorder) run.StageResult {
	result := run.StageResult{
		Stage:     StorageStageName,
		Provider:  "sqlite",
		StartedAt: time.Now().UTC(),
	}
	rec.Event(runlog.TypeStageStarted, StorageStageName, "", "stage started", nil)

	artifact := course.Assemble(course.Inputs{
		RunID:              r.ID,
		VideoURL:           r.Reference.URL,
		Video:              state.video,
		Transcript:         state.transcript,
		Draft:              state.draft,
		MediaURL:           state.media.MediaURL,
		MetadataProvider:   state.metadataProvider,
		TranscriptProvider: state.transcriptProvider,
		SynthesisProvider:  state.synthesisProvider,
		MediaProvider:      state.media.Source,
		SynthesisFallback:  state.synthesisFallback,
		Elapsed:            m.now().UTC().Sub(r.StartedAt),
		CreatedAt:          m.now().UTC(),
	})

	attempts := m.cfg.SaveRetryAttempts
	if attempts <= 0 {
		attempts = 3
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		started := time.Now()
		rec.AttemptStarted(StorageStageName, "sqlite")
		id, err := m.deps.Store.SaveCourse(ctx, &artifact)
		elapsed := time.Since(started)
		if err == nil {
			state.courseID = id
			result.Status = run.StageSucceeded
			result.FinishedAt = time.Now().UTC()
			result.Attempts = append(result.Attempts, run.ProviderAttempt{
				Provider:  "sqlite",
				Outcome:   run.AttemptSuccess,
				StartedAt: started.UTC(),
				Duration:  elapsed,
			})
			rec.AttemptFinished(StorageStageName, "sqlite", string(run.AttemptSuccess), elapsed, "")
			rec.Event(runlog.TypeStageFinished, StorageStageName, "sqlite", "course saved as id "+strconv.FormatInt(id, 10), map[string]string{
				"status": string(run.StageSucceeded),
			})
			return result
		}
		lastErr = err
		result.Attempts = append(result.Attempts, run.ProviderAttempt{
			Provider:  "sqlite",
			Outcome:   run.AttemptFailure,
			Error:     services.Message(err),
			StartedAt: started.UTC(),
			Duration:  elapsed,
		})
		rec.AttemptFinished(StorageStageName, "sqlite", string(run.AttemptFailure), elapsed, services.Message(err))
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
		case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
		}
	}

	result.Status = run.StageFailed
	result.Provider = ""
	result.Error = services.Message(services.Wrap(services.ErrExternalTool, StorageStageName, "save course", "could not persist artifact", lastErr))
	result.FinishedAt = time.Now().UTC()
	rec.Warn(StorageStageName, "sqlite", "could not persist artifact, run finishes unsaved: "+services.Message(lastErr))
	rec.Event(runlog.TypeStageFinished, StorageStageName, "", "stage "+string(run.StageFailed), map[string]string{
		"status": string(run.StageFailed),
	})
	return result
}

func (m *Manager) updateRun(r *run.Run, mutate func(*run.Run)) {
	m.mu.Lock()
	mutate(r)
	m.mu.Unlock()
}

func (m *Manager) persistHistory(r *run.Run) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	m.mu.Lock()
	snapshot := r.Clone()
	m.mu.Unlock()
	if err := m.deps.Store.SaveRun(ctx, snapshot); err != nil {
		m.logger.Warn("could not persist run history",
			logging.String(logging.FieldRunID, r.ID),
			logging.Error(err))
	}
}

func (m *Manager) notify(r *run.Run, state *runState, pipelineErr error) {
	if m.deps.Notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	title := state.video.Title
	if title == "" {
		title = r.Reference.VideoID
	}

	var err error
	switch r.Status {
	case run.StatusCompleted:
		err = m.deps.Notifier.NotifyRunCompleted(ctx, title, gradeFor(state))
	case run.StatusDegraded:
		err = m.deps.Notifier.NotifyRunDegraded(ctx, title, gradeFor(state), fallbackCount(r))
	case run.StatusFailed:
		err = m.deps.Notifier.NotifyRunFailed(ctx, title, pipelineErr)
	}
	if err != nil {
		m.logger.Warn("notification failed",
			logging.String(logging.FieldRunID, r.ID),
			logging.Error(err))
	}
}

func gradeFor(state *runState) string {
	artifact := course.Assemble(course.Inputs{
		Video:              state.video,
		Transcript:         state.transcript,
		Draft:              state.draft,
		MediaURL:           state.media.MediaURL,
		MetadataProvider:   state.metadataProvider,
		TranscriptProvider: state.transcriptProvider,
		SynthesisProvider:  state.synthesisProvider,
		SynthesisFallback:  state.synthesisFallback,
	})
	return artifact.Metrics.QualityGrade
}

func fallbackCount(r *run.Run) int {
	n := 0
	for _, sr := range r.Stages {
		if sr.Status == run.StageSucceededViaFallback || (sr.Status == run.StageFailed && sr.Stage == media.StageName) {
			n++
		}
	}
	return n
}
