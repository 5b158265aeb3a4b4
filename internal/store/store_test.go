package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"courseforge/internal/course"
	"courseforge/internal/run"
	"courseforge/internal/services"
	"courseforge/internal/videoref"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleCourse() *course.Course {
	return &course.Course{
		RunID:      "run-1",
		VideoID:    "abc123",
		VideoURL:   "https://www.youtube.com/watch?v=abc123",
		VideoTitle: "Learn Go",
		Title:      "7-Day Course: Learn Go",
		Days: []course.Day{
			{Number: 1, Title: "Foundations", Description: "Basics.", Topics: []string{"syntax"}},
		},
		Provenance: course.Provenance{Metadata: "youtube-data-api", Transcript: "timedtext", Synthesis: "openrouter"},
		Metrics:    course.Metrics{QualityGrade: course.GradeAPlus, DayCount: 1},
		CreatedAt:  time.Now().UTC(),
	}
}

func TestSaveAndGetCourse(t *testing.T) {
	s := openTestStore(t)
	id, err := s.SaveCourse(context.Background(), sampleCourse())
	if err != nil {
		t.Fatalf("SaveCourse: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero id")
	}

	got, err := s.GetCourse(context.Background(), id)
	if err != nil {
		t.Fatalf("GetCourse: %v", err)
	}
	if got.Title != "7-Day Course: Learn Go" || len(got.Days) != 1 {
		t.Fatalf("unexpected course %+v", got)
	}
	if got.Provenance.Synthesis != "openrouter" {
		t.Fatalf("provenance %+v", got.Provenance)
	}
	if got.Metrics.QualityGrade != course.GradeAPlus {
		t.Fatalf("metrics %+v", got.Metrics)
	}
}

func TestGetCourseMissing(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetCourse(context.Background(), 404); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestListCoursesNewestFirst(t *testing.T) {
	s := openTestStore(t)
	first := sampleCourse()
	second := sampleCourse()
	second.Title = "Second"
	if _, err := s.SaveCourse(context.Background(), first); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SaveCourse(context.Background(), second); err != nil {
		t.Fatal(err)
	}

	list, err := s.ListCourses(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListCourses: %v", err)
	}
	if len(list) != 2 || list[0].Title != "Second" {
		t.Fatalf("unexpected order %+v", list)
	}
}

func TestSaveRunUpserts(t *testing.T) {
	s := openTestStore(t)
	r := &run.Run{
		ID:        "run-1",
		Reference: videoref.Reference{URL: "https://youtu.be/abc123", VideoID: "abc123"},
		Status:    run.StatusRunning,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.SaveRun(context.Background(), r); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	r.Status = run.StatusCompleted
	r.CourseID = 7
	r.FinishedAt = time.Now().UTC()
	if err := s.SaveRun(context.Background(), r); err != nil {
		t.Fatalf("SaveRun update: %v", err)
	}

	runs, err := s.RecentRuns(context.Background(), 10)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].Status != run.StatusCompleted || runs[0].CourseID != 7 {
		t.Fatalf("unexpected runs %+v", runs)
	}
}

func TestCountCourses(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.SaveCourse(context.Background(), sampleCourse()); err != nil {
		t.Fatal(err)
	}
	n, err := s.CountCourses(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("CountCourses = %d, %v", n, err)
	}
}
