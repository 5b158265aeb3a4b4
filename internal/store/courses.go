package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"courseforge/internal/course"
	"courseforge/internal/services"
)

// SaveCourse inserts an artifact and returns its id.
func (s *Store) SaveCourse(ctx context.Context, artifact *course.Course) (int64, error) {
	if artifact == nil {
		return 0, errors.New("save course: nil artifact")
	}

	daysJSON, err := json.Marshal(artifact.Days)
	if err != nil {
		return 0, fmt.Errorf("save course: encode days: %w", err)
	}
	provJSON, err := json.Marshal(artifact.Provenance)
	if err != nil {
		return 0, fmt.Errorf("save course: encode provenance: %w", err)
	}
	metricsJSON, err := json.Marshal(artifact.Metrics)
	if err != nil {
		return 0, fmt.Errorf("save course: encode metrics: %w", err)
	}

	createdAt := artifact.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	res, err := s.execWithRetry(ctx, `
		INSERT INTO courses (
			run_id, video_id, video_url, video_title, channel_title,
			title, description, days_json, media_url, thumbnail_url,
			provenance_json, metrics_json, quality_grade, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		artifact.RunID, artifact.VideoID, artifact.VideoURL, artifact.VideoTitle, artifact.ChannelTitle,
		artifact.Title, artifact.Description, string(daysJSON), artifact.MediaURL, artifact.ThumbnailURL,
		string(provJSON), string(metricsJSON), artifact.Metrics.QualityGrade, createdAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("save course: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("save course: last insert id: %w", err)
	}
	return id, nil
}

// GetCourse fetches one artifact by id.
func (s *Store) GetCourse(ctx context.Context, id int64) (*course.Course, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `
		SELECT id, run_id, video_id, video_url, video_title, channel_title,
			title, description, days_json, media_url, thumbnail_url,
			provenance_json, metrics_json, created_at
		FROM courses WHERE id = ?`, id)
	artifact, err := scanCourse(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "", "get course", fmt.Sprintf("course %d not found", id), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get course: %w", err)
	}
	return artifact, nil
}

// ListCourses returns the most recent artifacts, newest first.
func (s *Store) ListCourses(ctx context.Context, limit int) ([]*course.Course, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), `
		SELECT id, run_id, video_id, video_url, video_title, channel_title,
			title, description, days_json, media_url, thumbnail_url,
			provenance_json, metrics_json, created_at
		FROM courses ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	defer rows.Close()

	var out []*course.Course
	for rows.Next() {
		artifact, err := scanCourse(rows)
		if err != nil {
			return nil, fmt.Errorf("list courses: %w", err)
		}
		out = append(out, artifact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCourse(row rowScanner) (*course.Course, error) {
	var (
		artifact  course.Course
		daysJSON  string
		provJSON  string
		metJSON   string
		createdAt string
	)
	err := row.Scan(
		&artifact.ID, &artifact.RunID, &artifact.VideoID, &artifact.VideoURL, &artifact.VideoTitle,
		&artifact.ChannelTitle, &artifact.Title, &artifact.Description, &daysJSON,
		&artifact.MediaURL, &artifact.ThumbnailURL, &provJSON, &metJSON, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(daysJSON), &artifact.Days); err != nil {
		return nil, fmt.Errorf("decode days: %w", err)
	}
	if err := json.Unmarshal([]byte(provJSON), &artifact.Provenance); err != nil {
		return nil, fmt.Errorf("decode provenance: %w", err)
	}
	if err := json.Unmarshal([]byte(metJSON), &artifact.Metrics); err != nil {
		return nil, fmt.Errorf("decode metrics: %w", err)
	}
	if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		artifact.CreatedAt = ts
	}
	return &artifact, nil
}
