package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"courseforge/internal/run"
)

// SaveRun upserts a finished run summary for history queries.
func (s *Store) SaveRun(ctx context.Context, r *run.Run) error {
	if r == nil {
		return errors.New("save run: nil run")
	}
	stagesJSON, err := json.Marshal(r.Stages)
	if err != nil {
		return fmt.Errorf("save run: encode stages: %w", err)
	}

	finishedAt := ""
	if !r.FinishedAt.IsZero() {
		finishedAt = r.FinishedAt.UTC().Format(time.RFC3339Nano)
	}

	return s.execWithoutResultRetry(ctx, `
		INSERT INTO runs (id, video_id, video_url, status, error, course_id, stages_json, created_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			error = excluded.error,
			course_id = excluded.course_id,
			stages_json = excluded.stages_json,
			finished_at = excluded.finished_at`,
		r.ID, r.Reference.VideoID, r.Reference.URL, string(r.Status), r.Error, r.CourseID,
		string(stagesJSON), r.CreatedAt.UTC().Format(time.RFC3339Nano), finishedAt,
	)
}

// RunSummary is one row of run history.
type RunSummary struct {
	ID         string     `json:"id"`
	VideoID    string     `json:"video_id"`
	VideoURL   string     `json:"video_url"`
	Status     run.Status `json:"status"`
	Error      string     `json:"error,omitempty"`
	CourseID   int64      `json:"course_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt time.Time  `json:"finished_at,omitempty"`
}

// RecentRuns returns run history, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), `
		SELECT id, video_id, video_url, status, COALESCE(error, ''), COALESCE(course_id, 0), created_at, COALESCE(finished_at, '')
		FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			summary    RunSummary
			status     string
			createdAt  string
			finishedAt string
		)
		if err := rows.Scan(&summary.ID, &summary.VideoID, &summary.VideoURL, &status, &summary.Error, &summary.CourseID, &createdAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("recent runs: %w", err)
		}
		summary.Status = run.Status(status)
		if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			summary.CreatedAt = ts
		}
		if finishedAt != "" {
			if ts, err := time.Parse(time.RFC3339Nano, finishedAt); err == nil {
				summary.FinishedAt = ts
			}
		}
		out = append(out, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("recent runs: %w", err)
	}
	return out, nil
}

// CountCourses reports how many artifacts are stored.
func (s *Store) CountCourses(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ensureContext(ctx), `SELECT COUNT(*) FROM courses`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count courses: %w", err)
	}
	return n, nil
}
