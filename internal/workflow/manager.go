// Package workflow coordinates course generation runs: it validates
// submissions, enforces the concurrency limit, drives the stage pipeline on a
// per-run goroutine, and owns the in-memory run registry.
package workflow

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"courseforge/internal/config"
	"courseforge/internal/course"
	"courseforge/internal/logging"
	"courseforge/internal/media"
	"courseforge/internal/metadata"
	"courseforge/internal/pipeline"
	"courseforge/internal/run"
	"courseforge/internal/runlog"
	"courseforge/internal/services"
	"courseforge/internal/transcript"
	"courseforge/internal/videoref"
)

// MetadataSource builds the metadata provider chain for a reference.
type MetadataSource interface {
	Chain(ref videoref.Reference) pipeline.Chain[metadata.Video]
}

// TranscriptSource builds the transcript provider chain for a reference.
type TranscriptSource interface {
	Chain(ref videoref.Reference, description string) pipeline.Chain[transcript.Transcript]
}

// SynthesisSource builds the synthesis provider chain for resolved inputs.
type SynthesisSource interface {
	Chain(video metadata.Video, tr transcript.Transcript) pipeline.Chain[course.Draft]
}

// MediaSource builds the optional download chain and the archive step.
type MediaSource interface {
	Enabled() bool
	Chain(ref videoref.Reference) pipeline.Chain[media.Result]
	Archive(ctx context.Context, res media.Result, videoID string) (media.Result, error)
}

// ArtifactStore persists assembled courses and run history.
type ArtifactStore interface {
	SaveCourse(ctx context.Context, artifact *course.Course) (int64, error)
	SaveRun(ctx context.Context, r *run.Run) error
}

// Notifier receives terminal run outcomes.
type Notifier interface {
	NotifyRunCompleted(ctx context.Context, videoTitle, grade string) error
	NotifyRunDegraded(ctx context.Context, videoTitle, grade string, fallbacks int) error
	NotifyRunFailed(ctx context.Context, videoTitle string, err error) error
}

// Deps carries everything the manager needs.
type Deps struct {
	Metadata   MetadataSource
	Transcript TranscriptSource
	Synthesis  SynthesisSource
	Media      MediaSource
	Store      ArtifactStore
	Notifier   Notifier
	Bus        *runlog.Bus
	Logger     *slog.Logger
}

type runHandle struct {
	run    *run.Run
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager owns the run registry and the per-run pipeline goroutines.
type Manager struct {
	cfg    config.Workflow
	deps   Deps
	logger *slog.Logger

	mu      sync.Mutex
	runs    map[string]*runHandle
	active  int
	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup

	now func() time.Time
}

// NewManager constructs the run coordinator.
func NewManager(cfg config.Workflow, deps Deps) *Manager {
	logger := logging.NewComponentLogger(deps.Logger, "workflow")
	baseCtx, stop := context.WithCancel(context.Background())
	return &Manager{
		cfg:     cfg,
		deps:    deps,
		logger:  logger,
		runs:    make(map[string]*runHandle),
		baseCtx: baseCtx,
		stop:    stop,
		now:     time.Now,
	}
}

// Bus returns the progress bus runs publish to.
func (m *Manager) Bus() *runlog.Bus {
	return m.deps.Bus
}

// Start validates a submission and launches its pipeline. Validation failures
// and the concurrency limit are reported synchronously; everything after that
// lands in the run record and its log stream.
func (m *Manager) Start(rawURL string) (*run.Run, error) {
	ref, err := videoref.Parse(rawURL)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.cfg.MaxConcurrentRuns > 0 && m.active >= m.cfg.MaxConcurrentRuns {
		m.mu.Unlock()
		return nil, services.Wrap(services.ErrTransient, "", "start run", "too many concurrent runs", nil)
	}

	r := &run.Run{
		ID:        uuid.NewString(),
		Reference: ref,
		Status:    run.StatusPending,
		CreatedAt: m.now().UTC(),
	}
	handle := &runHandle{run: r, done: make(chan struct{})}

	deadline := time.Duration(m.cfg.RunDeadlineSeconds) * time.Second
	if deadline <= 0 {
		deadline = 240 * time.Second
	}
	runCtx, cancel := context.WithTimeout(m.baseCtx, deadline)
	handle.cancel = cancel

	m.runs[r.ID] = handle
	m.active++
	m.mu.Unlock()

	m.deps.Bus.Open(r.ID)
	m.deps.Bus.Append(r.ID, runlog.Event{
		Type:    runlog.TypeRunAccepted,
		Message: "run accepted for " + ref.VideoID,
		Fields:  map[string]string{"url": ref.URL, "video_id": ref.VideoID},
	})

	snapshot := r.Clone()
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()
		m.execute(runCtx, handle)
	}()
	return snapshot, nil
}

// GetRun returns a copy of a run's current state.
func (m *Manager) GetRun(id string) (*run.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	handle, ok := m.runs[id]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "", "get run", "run "+id+" not found", nil)
	}
	return handle.run.Clone(), nil
}

// ListRuns returns copies of all registered runs, newest first.
func (m *Manager) ListRuns() []*run.Run {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*run.Run, 0, len(m.runs))
	for _, handle := range m.runs {
		out = append(out, handle.run.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Cancel aborts a running pipeline. Cancelling a terminal run is a no-op.
func (m *Manager) Cancel(id string) error {
	m.mu.Lock()
	handle, ok := m.runs[id]
	m.mu.Unlock()
	if !ok {
		return services.Wrap(services.ErrNotFound, "", "cancel run", "run "+id+" not found", nil)
	}
	handle.cancel()
	return nil
}

// ActiveRuns reports how many pipelines are currently executing.
func (m *Manager) ActiveRuns() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Run drives the manager's background sweeps until ctx ends: log stream
// eviction and the matching removal of terminal runs from the registry.
func (m *Manager) Run(ctx context.Context) error {
	interval := time.Duration(m.cfg.EvictionInterval) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	go m.deps.Bus.Sweep(ctx, interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			m.evictTerminal(now)
		}
	}
}

// Close cancels every active run and waits for their goroutines.
func (m *Manager) Close() {
	m.stop()
	m.wg.Wait()
}

func (m *Manager) evictTerminal(now time.Time) {
	grace := time.Duration(m.cfg.LogGraceSeconds) * time.Second
	if grace <= 0 {
		grace = 5 * time.Minute
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, handle := range m.runs {
		if handle.run.Status.Terminal() && !handle.run.FinishedAt.IsZero() && now.Sub(handle.run.FinishedAt) >= grace {
			delete(m.runs, id)
		}
	}
}
