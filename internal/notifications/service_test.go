package notifications

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"courseforge/internal/config"
)

func TestNewServiceWithoutTopicIsNoop(t *testing.T) {
	svc := NewService(config.Notifications{})
	if _, ok := svc.(noopService); !ok {
		t.Fatalf("expected noop service, got %T", svc)
	}
	if err := svc.NotifyRunFailed(context.Background(), "x", errors.New("boom")); err != nil {
		t.Fatalf("noop notify: %v", err)
	}
}

func TestNotifyRunCompletedSendsNtfyRequest(t *testing.T) {
	var gotTitle, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTitle = r.Header.Get("Title")
		buf := make([]byte, 1024)
		n, _ := r.Body.Read(buf)
		gotBody = string(buf[:n])
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	svc := NewService(config.Notifications{NtfyTopic: srv.URL, RequestTimeout: 5, Completion: true, Errors: true})
	if err := svc.NotifyRunCompleted(context.Background(), "Learn Go", "A+"); err != nil {
		t.Fatalf("NotifyRunCompleted: %v", err)
	}
	if gotTitle != "Courseforge - Course Ready" {
		t.Fatalf("title = %q", gotTitle)
	}
	if !strings.Contains(gotBody, "Learn Go") || !strings.Contains(gotBody, "A+") {
		t.Fatalf("body = %q", gotBody)
	}
}

func TestCompletionNotificationsCanBeDisabled(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	svc := NewService(config.Notifications{NtfyTopic: srv.URL, RequestTimeout: 5, Completion: false, Errors: true})
	if err := svc.NotifyRunCompleted(context.Background(), "Learn Go", "A"); err != nil {
		t.Fatalf("NotifyRunCompleted: %v", err)
	}
	if called {
		t.Fatal("completion notification should be suppressed")
	}
}
