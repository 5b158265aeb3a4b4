// Package run defines the data model for course generation runs: run and
// stage statuses, provider attempt records, and the accumulated state a run
// carries from submission to terminal classification.
package run

import (
	"time"

	"courseforge/internal/videoref"
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusDegraded  Status = "DEGRADED"
	StatusFailed    Status = "FAILED"
)

// Terminal reports whether the run has reached a final state.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusDegraded, StatusFailed:
		return true
	default:
		return false
	}
}

// Valid reports whether the status is a known value.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusDegraded, StatusFailed:
		return true
	default:
		return false
	}
}

// StageStatus is the outcome state of a single pipeline stage.
type StageStatus string

const (
	StagePending              StageStatus = "PENDING"
	StageRunning              StageStatus = "RUNNING"
	StageSucceeded            StageStatus = "SUCCEEDED"
	StageSucceededViaFallback StageStatus = "SUCCEEDED_VIA_FALLBACK"
	StageSkipped              StageStatus = "SKIPPED"
	StageFailed               StageStatus = "FAILED"
)

// Succeeded reports whether the stage produced a usable result.
func (s StageStatus) Succeeded() bool {
	return s == StageSucceeded || s == StageSucceededViaFallback
}

// AttemptOutcome classifies a single provider attempt.
type AttemptOutcome string

const (
	AttemptSuccess AttemptOutcome = "SUCCESS"
	AttemptFailure AttemptOutcome = "FAILURE"
	AttemptTimeout AttemptOutcome = "TIMEOUT"
)

// ProviderAttempt records one attempt against one provider within a stage.
type ProviderAttempt struct {
	Provider  string         `json:"provider"`
	Outcome   AttemptOutcome `json:"outcome"`
	Error     string         `json:"error,omitempty"`
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration"`
}

// StageResult records the outcome of a stage, including every provider
// attempt in chain order. Provider is the name of the provider that
// ultimately supplied the result, empty when the stage failed or was skipped.
type StageResult struct {
	Stage      string            `json:"stage"`
	Status     StageStatus       `json:"status"`
	Provider   string            `json:"provider,omitempty"`
	Fallback   bool              `json:"fallback,omitempty"`
	Error      string            `json:"error,omitempty"`
	Attempts   []ProviderAttempt `json:"attempts,omitempty"`
	StartedAt  time.Time         `json:"started_at,omitempty"`
	FinishedAt time.Time         `json:"finished_at,omitempty"`
}

// Run is a single course generation request from submission to completion.
type Run struct {
	ID         string             `json:"id"`
	Reference  videoref.Reference `json:"reference"`
	Status     Status             `json:"status"`
	Stages     []StageResult      `json:"stages"`
	Error      string             `json:"error,omitempty"`
	CourseID   int64              `json:"course_id,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
	StartedAt  time.Time          `json:"started_at,omitempty"`
	FinishedAt time.Time          `json:"finished_at,omitempty"`
}

// StageByName returns the recorded result for a stage, if present.
func (r *Run) StageByName(name string) (StageResult, bool) {
	for _, sr := range r.Stages {
		if sr.Stage == name {
			return sr, true
		}
	}
	return StageResult{}, false
}

// UsedFallback reports whether any succeeded stage relied on a terminal
// fallback rather than a real provider.
func (r *Run) UsedFallback() bool {
	for _, sr := range r.Stages {
		if sr.Status == StageSucceededViaFallback {
			return true
		}
	}
	return false
}

// Clone returns a deep copy safe to hand to readers while the pipeline
// goroutine keeps mutating the original.
func (r *Run) Clone() *Run {
	cp := *r
	cp.Stages = make([]StageResult, len(r.Stages))
	copy(cp.Stages, r.Stages)
	for i := range cp.Stages {
		attempts := make([]ProviderAttempt, len(cp.Stages[i].Attempts))
		copy(attempts, cp.Stages[i].Attempts)
		cp.Stages[i].Attempts = attempts
	}
	return &cp
}
