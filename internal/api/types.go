// Package api defines the wire types shared by the daemon's HTTP surface and
// the CLI client, plus the client itself.
package api

import (
	"time"

	"courseforge/internal/course"
	"courseforge/internal/run"
	"courseforge/internal/runlog"
	"courseforge/internal/store"
)

// GenerateRequest submits a video reference for course generation.
type GenerateRequest struct {
	URL string `json:"url"`
}

// GenerateResponse acknowledges an accepted run. The full run record rides
// along so clients do not need a second round trip.
type GenerateResponse struct {
	Success bool     `json:"success"`
	RunID   string   `json:"run_id"`
	Run     *run.Run `json:"run,omitempty"`
}

// RunResponse wraps a single run record.
type RunResponse struct {
	Run *run.Run `json:"run"`
}

// RunListResponse wraps the active and recently finished runs.
type RunListResponse struct {
	Runs []*run.Run `json:"runs"`
}

// RunHistoryResponse wraps persisted run summaries.
type RunHistoryResponse struct {
	Runs []store.RunSummary `json:"runs"`
}

// LogStreamResponse carries a page of run log events. Events is empty but
// Success is still true before the first event exists.
type LogStreamResponse struct {
	Success bool           `json:"success"`
	Events  []runlog.Event `json:"logs"`
	Next    uint64         `json:"next"`
	Closed  bool           `json:"closed"`
}

// CourseResponse wraps a single stored artifact.
type CourseResponse struct {
	Course *course.Course `json:"course"`
}

// CourseListResponse wraps stored artifacts, newest first.
type CourseListResponse struct {
	Courses []*course.Course `json:"courses"`
}

// DaemonStatus reports daemon health for the status endpoint and CLI.
type DaemonStatus struct {
	Running      bool      `json:"running"`
	PID          int       `json:"pid"`
	StartedAt    time.Time `json:"started_at"`
	DBPath       string    `json:"db_path"`
	LockFilePath string    `json:"lock_file_path"`
	ActiveRuns   int       `json:"active_runs"`
	TotalCourses int64     `json:"total_courses"`
}

// StreamMessage is one websocket frame pushed to live subscribers. Progress
// frames mirror the poll feed event by event; a terminal completed or error
// frame always follows. The poll endpoint stays authoritative.
type StreamMessage struct {
	Type      string `json:"type"`
	Sequence  uint64 `json:"seq,omitempty"`
	Progress  int    `json:"progress"`
	StepIndex int    `json:"step_index,omitempty"`
	Step      string `json:"step,omitempty"`
	Status    string `json:"status,omitempty"`
	Message   string `json:"message,omitempty"`
	Level     string `json:"level,omitempty"`
	RunID     string `json:"run_id,omitempty"`
	CourseID  int64  `json:"course_id,omitempty"`
}

// Websocket frame types.
const (
	StreamProgress  = "progress"
	StreamCompleted = "completed"
	StreamError     = "error"
)
