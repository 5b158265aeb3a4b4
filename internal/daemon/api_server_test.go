package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"courseforge/internal/api"
	"courseforge/internal/config"
	"courseforge/internal/course"
	"courseforge/internal/metadata"
	"courseforge/internal/pipeline"
	"courseforge/internal/run"
	"courseforge/internal/runlog"
	"courseforge/internal/services"
	"courseforge/internal/store"
	"courseforge/internal/transcript"
	"courseforge/internal/videoref"
	"courseforge/internal/workflow"
)

const stubTranscriptText = "a transcript long enough to pass validation because it has plenty of words describing the material in detail"

type stubMetadata struct{}

func (stubMetadata) Chain(ref videoref.Reference) pipeline.Chain[metadata.Video] {
	return pipeline.Chain[metadata.Video]{
		Stage: metadata.StageName,
		Providers: []pipeline.Provider[metadata.Video]{{
			Name: "youtube-data-api",
			Run: func(context.Context) (metadata.Video, error) {
				return metadata.Video{VideoID: ref.VideoID, Title: "Learn Go", Description: stubTranscriptText}, nil
			},
		}},
		Validate: metadata.Validate,
	}
}

type stubTranscript struct{}

func (stubTranscript) Chain(ref videoref.Reference, _ string) pipeline.Chain[transcript.Transcript] {
	return pipeline.Chain[transcript.Transcript]{
		Stage: transcript.StageName,
		Providers: []pipeline.Provider[transcript.Transcript]{{
			Name: "timedtext",
			Run: func(context.Context) (transcript.Transcript, error) {
				return transcript.Transcript{VideoID: ref.VideoID, Text: stubTranscriptText, Source: "timedtext"}, nil
			},
		}},
		Validate: transcript.Validate,
	}
}

type stubSynthesis struct{}

func (stubSynthesis) Chain(metadata.Video, transcript.Transcript) pipeline.Chain[course.Draft] {
	return pipeline.Chain[course.Draft]{
		Stage: "synthesis",
		Providers: []pipeline.Provider[course.Draft]{{
			Name: "openrouter",
			Run: func(context.Context) (course.Draft, error) {
				return course.Draft{
					Title: "7-Day Course: Learn Go",
					Days:  []course.Day{{Title: "Foundations", Topics: []string{"syntax"}}},
				}, nil
			},
		}},
		Validate: course.ValidateDraft,
	}
}

type readerStub struct {
	courses []*course.Course
	runs    []store.RunSummary
}

func (r *readerStub) GetCourse(_ context.Context, id int64) (*course.Course, error) {
	for _, c := range r.courses {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, services.Wrap(services.ErrNotFound, "", "get course", "course not found", nil)
}

func (r *readerStub) ListCourses(context.Context, int) ([]*course.Course, error) {
	return r.courses, nil
}

func (r *readerStub) RecentRuns(context.Context, int) ([]store.RunSummary, error) {
	return r.runs, nil
}

func (r *readerStub) CountCourses(context.Context) (int64, error) {
	return int64(len(r.courses)), nil
}

type memoryStore struct{}

func (memoryStore) SaveCourse(context.Context, *course.Course) (int64, error) { return 1, nil }
func (memoryStore) SaveRun(context.Context, *run.Run) error                   { return nil }

func newTestServer(t *testing.T, reader *readerStub) (*apiServer, *workflow.Manager) {
	t.Helper()
	manager := workflow.NewManager(config.Workflow{
		RunDeadlineSeconds: 240,
		MaxConcurrentRuns:  4,
	}, workflow.Deps{
		Metadata:   stubMetadata{},
		Transcript: stubTranscript{},
		Synthesis:  stubSynthesis{},
		Store:      memoryStore{},
		Bus:        runlog.NewBus(256, time.Minute),
	})
	t.Cleanup(manager.Close)

	status := func(context.Context) api.DaemonStatus {
		return api.DaemonStatus{Running: true, ActiveRuns: manager.ActiveRuns()}
	}
	return newAPIServer("127.0.0.1:0", manager, reader, status, nil), manager
}

func waitClosed(t *testing.T, manager *workflow.Manager, id string) {
	t.Helper()
	cursor := uint64(0)
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		_, next, closed, err := manager.Bus().ReadSince(context.Background(), id, cursor, 0, false)
		if err != nil {
			t.Fatalf("ReadSince: %v", err)
		}
		cursor = next
		if closed {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("run log stream did not close")
}

func TestGenerateAcceptsRun(t *testing.T) {
	srv, _ := newTestServer(t, &readerStub{})

	body, _ := json.Marshal(api.GenerateRequest{URL: "https://www.youtube.com/watch?v=abc123"})
	req := httptest.NewRequest(http.MethodPost, "/api/generate", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.routes().ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	var resp api.GenerateResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || resp.RunID == "" {
		t.Fatalf("expected an accepted run id, got %+v", resp)
	}
	if resp.Run == nil || resp.Run.ID != resp.RunID {
		t.Fatal("expected the run record to ride along")
	}
}

func TestGenerateRejectsInvalidURL(t *testing.T) {
	srv, _ := newTestServer(t, &readerStub{})

	body, _ := json.Marshal(api.GenerateRequest{URL: "not-a-url"})
	req := httptest.NewRequest(http.MethodPost, "/api/generate", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.routes().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestRunLookupUnknownReturns404(t *testing.T) {
	srv, _ := newTestServer(t, &readerStub{})

	req := httptest.NewRequest(http.MethodGet, "/api/runs/nope", nil)
	w := httptest.NewRecorder()
	srv.routes().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestRunLogsPaginateWithCursor(t *testing.T) {
	srv, manager := newTestServer(t, &readerStub{})

	accepted, err := manager.Start("https://www.youtube.com/watch?v=abc123")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitClosed(t, manager, accepted.ID)

	req := httptest.NewRequest(http.MethodGet, "/api/runs/"+accepted.ID+"/logs", nil)
	w := httptest.NewRecorder()
	srv.routes().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var page api.LogStreamResponse
	if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(page.Events) == 0 {
		t.Fatal("expected events in the first page")
	}
	if page.Events[0].Type != runlog.TypeRunAccepted {
		t.Fatalf("first event = %s, want %s", page.Events[0].Type, runlog.TypeRunAccepted)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/runs/"+accepted.ID+"/logs?since="+strconv.FormatUint(page.Next, 10), nil)
	w = httptest.NewRecorder()
	srv.routes().ServeHTTP(w, req)
	var rest api.LogStreamResponse
	if err := json.Unmarshal(w.Body.Bytes(), &rest); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(rest.Events) != 0 || !rest.Closed {
		t.Fatalf("expected an empty closed page, got %d events closed=%v", len(rest.Events), rest.Closed)
	}
	if !rest.Success {
		t.Fatal("empty page must still report success")
	}
	if !strings.Contains(w.Body.String(), `"logs":[]`) {
		t.Fatalf("empty page must encode logs as an array: %s", w.Body.String())
	}
}

func TestRunCancelEndpoint(t *testing.T) {
	srv, manager := newTestServer(t, &readerStub{})

	accepted, err := manager.Start("https://www.youtube.com/watch?v=abc123")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	req := httptest.NewRequest(http.MethodDelete, "/api/runs/"+accepted.ID, nil)
	w := httptest.NewRecorder()
	srv.routes().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	waitClosed(t, manager, accepted.ID)
}

func TestWebsocketStreamsUntilTerminalFrame(t *testing.T) {
	srv, manager := newTestServer(t, &readerStub{})
	httpSrv := httptest.NewServer(srv.routes())
	defer httpSrv.Close()

	accepted, err := manager.Start("https://www.youtube.com/watch?v=abc123")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/api/runs/" + accepted.ID + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	sawProgress := false
	for {
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var frame api.StreamMessage
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("read frame: %v", err)
		}
		switch frame.Type {
		case api.StreamProgress:
			sawProgress = true
		case api.StreamCompleted:
			if frame.RunID != accepted.ID || frame.CourseID != 1 || frame.Progress != 100 {
				t.Fatalf("terminal frame = %+v", frame)
			}
			if !sawProgress {
				t.Fatal("expected progress frames before the terminal frame")
			}
			return
		case api.StreamError:
			t.Fatalf("unexpected error frame: %s", frame.Message)
		}
	}
}

func TestWebsocketUnknownRunReturnsError(t *testing.T) {
	srv, _ := newTestServer(t, &readerStub{})
	httpSrv := httptest.NewServer(srv.routes())
	defer httpSrv.Close()

	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/api/runs/nope/ws"
	if _, resp, err := websocket.DefaultDialer.Dial(wsURL, nil); err == nil {
		t.Fatal("expected dial to fail for an unknown run")
	} else if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 handshake response, got %+v", resp)
	}
}

func TestCoursesEndpoints(t *testing.T) {
	reader := &readerStub{courses: []*course.Course{
		{ID: 2, Title: "7-Day Course: Learn Go"},
		{ID: 1, Title: "7-Day Course: Intro to SQL"},
	}}
	srv, _ := newTestServer(t, reader)

	req := httptest.NewRequest(http.MethodGet, "/api/courses", nil)
	w := httptest.NewRecorder()
	srv.routes().ServeHTTP(w, req)
	var list api.CourseListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(list.Courses) != 2 {
		t.Fatalf("expected 2 courses, got %d", len(list.Courses))
	}

	req = httptest.NewRequest(http.MethodGet, "/api/courses/2", nil)
	w = httptest.NewRecorder()
	srv.routes().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/courses/99", nil)
	w = httptest.NewRecorder()
	srv.routes().ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, &readerStub{})

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	w := httptest.NewRecorder()
	srv.routes().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var status api.DaemonStatus
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !status.Running {
		t.Fatal("expected running status")
	}
}

