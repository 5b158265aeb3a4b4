package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"github.com/gorilla/websocket"

	"courseforge/internal/api"
	"courseforge/internal/course"
	"courseforge/internal/logging"
	"courseforge/internal/run"
	"courseforge/internal/runlog"
	"courseforge/internal/services"
	"courseforge/internal/store"
	"courseforge/internal/workflow"
)

// artifactReader is the slice of the store the API surface needs.
type artifactReader interface {
	GetCourse(ctx context.Context, id int64) (*course.Course, error)
	ListCourses(ctx context.Context, limit int) ([]*course.Course, error)
	RecentRuns(ctx context.Context, limit int) ([]store.RunSummary, error)
	CountCourses(ctx context.Context) (int64, error)
}

type apiServer struct {
	bind    string
	logger  *slog.Logger
	manager *workflow.Manager
	store   artifactReader
	status  func(ctx context.Context) api.DaemonStatus

	upgrader websocket.Upgrader

	listener net.Listener
	server   *http.Server
}

func newAPIServer(bind string, manager *workflow.Manager, reader artifactReader, status func(ctx context.Context) api.DaemonStatus, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:    strings.TrimSpace(bind),
		logger:  logger,
		manager: manager,
		store:   reader,
		status:  status,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Local daemon API; the CLI and local tooling are the only clients.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	if srv.bind == "" {
		srv.bind = "127.0.0.1:7519"
	}

	srv.server = &http.Server{
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/generate", s.handleGenerate)
	mux.HandleFunc("/api/runs", s.handleRuns)
	mux.HandleFunc("/api/runs/", s.handleRunItem)
	mux.HandleFunc("/api/courses", s.handleCourses)
	mux.HandleFunc("/api/courses/", s.handleCourseItem)
	mux.HandleFunc("/api/status", s.handleStatus)
	return mux
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req api.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	accepted, err := s.manager.Start(req.URL)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, api.GenerateResponse{Success: true, RunID: accepted.ID, Run: accepted})
}

func (s *apiServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, api.RunListResponse{Runs: s.manager.ListRuns()})
}

func (s *apiServer) handleRunItem(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	if rest == "history" {
		s.handleRunHistory(w, r)
		return
	}

	id := rest
	action := ""
	if idx := strings.IndexByte(rest, '/'); idx >= 0 {
		id, action = rest[:idx], rest[idx+1:]
	}
	if id == "" {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}

	switch action {
	case "":
		switch r.Method {
		case http.MethodGet:
			s.handleRunGet(w, r, id)
		case http.MethodDelete:
			s.handleRunCancel(w, r, id)
		default:
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	case "logs":
		s.handleRunLogs(w, r, id)
	case "ws":
		s.handleRunStream(w, r, id)
	default:
		s.writeError(w, http.StatusNotFound, "run not found")
	}
}

func (s *apiServer) handleRunGet(w http.ResponseWriter, _ *http.Request, id string) {
	record, err := s.manager.GetRun(id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.RunResponse{Run: record})
}

func (s *apiServer) handleRunCancel(w http.ResponseWriter, _ *http.Request, id string) {
	if err := s.manager.Cancel(id); err != nil {
		s.writeServiceError(w, err)
		return
	}
	record, err := s.manager.GetRun(id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.RunResponse{Run: record})
}

func (s *apiServer) handleRunHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 50
	}
	runs, err := s.store.RecentRuns(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.RunHistoryResponse{Runs: runs})
}

// handleRunLogs serves pages of the run's progress stream. With follow=1 the
// request parks until an event past the cursor arrives or the client goes away.
func (s *apiServer) handleRunLogs(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	query := r.URL.Query()
	since, _ := strconv.ParseUint(query.Get("since"), 10, 64)
	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 {
		limit = 200
	}
	follow := query.Get("follow") == "1" || strings.EqualFold(query.Get("follow"), "true")

	events, next, closed, err := s.manager.Bus().ReadSince(r.Context(), id, since, limit, follow)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		s.writeServiceError(w, err)
		return
	}
	if events == nil {
		// An empty page still encodes logs as [] rather than null.
		events = []runlog.Event{}
	}
	s.writeJSON(w, http.StatusOK, api.LogStreamResponse{
		Success: true,
		Events:  events,
		Next:    next,
		Closed:  closed,
	})
}

// handleRunStream upgrades to a websocket and pushes progress frames until the
// run's stream closes, then sends a terminal frame carrying the final run.
func (s *apiServer) handleRunStream(w http.ResponseWriter, r *http.Request, id string) {
	since, _ := strconv.ParseUint(r.URL.Query().Get("since"), 10, 64)
	sub, err := s.manager.Bus().Subscribe(id, since, 64)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		sub.Cancel()
		s.log().Warn("websocket upgrade failed", logging.Error(err))
		return
	}
	defer conn.Close()
	defer sub.Cancel()

	// Reads only serve to notice the peer hanging up.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				sub.Cancel()
				return
			}
		}
	}()

	tracker := newProgressTracker()
	for evt := range sub.Events() {
		if err := s.writeFrame(conn, tracker.frame(evt)); err != nil {
			return
		}
	}

	// Channel closed: either the run finished or this consumer fell behind and
	// was dropped. Both end with a terminal frame; a dropped consumer resyncs
	// over the logs endpoint.
	final := api.StreamMessage{Type: api.StreamCompleted, Progress: 100, RunID: id}
	if record, err := s.manager.GetRun(id); err == nil {
		final.CourseID = record.CourseID
		if record.Status == run.StatusFailed {
			final.Type = api.StreamError
			final.Message = record.Error
		}
	}
	if err := s.writeFrame(conn, final); err != nil {
		return
	}
	deadline := time.Now().Add(2 * time.Second)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
}

// progressTracker converts bus events into push frames, deriving the percent
// and step index from the stage position markers the pipeline emits.
type progressTracker struct {
	stepIndex int
	total     int
	step      string
}

func newProgressTracker() *progressTracker {
	return &progressTracker{}
}

func (t *progressTracker) frame(evt runlog.Event) api.StreamMessage {
	if evt.Type == runlog.TypeStageStarted {
		t.step = evt.Stage
		if position := evt.Fields["position"]; position != "" {
			if idx := strings.IndexByte(position, '/'); idx > 0 {
				t.stepIndex, _ = strconv.Atoi(position[:idx])
				t.total, _ = strconv.Atoi(position[idx+1:])
			}
		} else {
			t.stepIndex++
			if t.stepIndex > t.total {
				t.total = t.stepIndex
			}
		}
	}

	progress := 0
	if t.total > 0 && t.stepIndex > 0 {
		progress = (t.stepIndex - 1) * 100 / t.total
	}
	if evt.Type == runlog.TypeRunFinished {
		progress = 100
	}

	return api.StreamMessage{
		Type:      api.StreamProgress,
		Sequence:  evt.Sequence,
		Progress:  progress,
		StepIndex: t.stepIndex,
		Step:      t.step,
		Status:    statusTag(evt),
		Message:   evt.Message,
		Level:     evt.Level,
	}
}

// statusTag collapses an event into the coarse status vocabulary push
// consumers render.
func statusTag(evt runlog.Event) string {
	switch evt.Type {
	case runlog.TypeAttemptFinished:
		if outcome := evt.Fields["outcome"]; outcome != "" {
			return outcome
		}
		return "FAILURE"
	case runlog.TypeStageFinished, runlog.TypeRunFinished:
		if status := evt.Fields["status"]; status != "" {
			return status
		}
		return "SUCCESS"
	case runlog.TypeFallbackUsed:
		return "FALLBACK_ACTIVATED"
	case runlog.TypeStageSkipped:
		return "SKIPPED"
	default:
		return "IN_PROGRESS"
	}
}

func (s *apiServer) writeFrame(conn *websocket.Conn, frame api.StreamMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteJSON(frame)
}

func (s *apiServer) handleCourses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 50
	}
	courses, err := s.store.ListCourses(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.CourseListResponse{Courses: courses})
}

func (s *apiServer) handleCourseItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	idStr := strings.TrimPrefix(r.URL.Path, "/api/courses/")
	if idStr == "" || strings.Contains(idStr, "/") {
		s.writeError(w, http.StatusNotFound, "course not found")
		return
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid course id")
		return
	}
	artifact, err := s.store.GetCourse(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.CourseResponse{Course: artifact})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, s.status(r.Context()))
}

// writeServiceError maps sentinel markers onto HTTP statuses.
func (s *apiServer) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		s.writeError(w, http.StatusNotFound, services.Message(err))
	case errors.Is(err, services.ErrValidation):
		s.writeError(w, http.StatusBadRequest, services.Message(err))
	case errors.Is(err, services.ErrTransient):
		s.writeError(w, http.StatusTooManyRequests, services.Message(err))
	default:
		s.writeError(w, http.StatusInternalServerError, services.Message(err))
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{"success": false, "error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return logging.NewNop()
}
