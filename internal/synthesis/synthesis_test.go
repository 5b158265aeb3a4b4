package synthesis

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"

	"courseforge/internal/course"
	"courseforge/internal/metadata"
	"courseforge/internal/services"
	"courseforge/internal/transcript"
)

var testVideo = metadata.Video{
	VideoID:     "abc123",
	Title:       "Concurrency Patterns in Distributed Systems",
	Description: "Channels, goroutines, consensus, replication, and backpressure explained with worked examples.",
}

var testTranscript = transcript.Transcript{
	VideoID: "abc123",
	Text: strings.Repeat("today we cover consensus replication backpressure goroutines channels leases quorums ", 6),
	Source: "timedtext",
}

const draftJSON = `{
	"title": "7-Day Course: Concurrency Patterns",
	"description": "A plan.",
	"days": [
		{"day": 1, "title": "Foundations", "description": "Basics.", "topics": ["goroutines", "channels"]},
		{"day": 2, "title": "Consensus", "description": "Agreement.", "topics": ["raft", "quorums"]}
	]
}`

func TestOpenRouterGenerateDraft(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			http.Error(w, "auth", http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"choices": [{"message": {"content": ` + strconvQuote(draftJSON) + `}}]}`))
	}))
	defer srv.Close()

	client := NewOpenRouterClient("test-key", srv.URL, "test/model", "", "", 5, srv.Client())
	draft, err := client.GenerateDraft(context.Background(), testVideo, testTranscript)
	if err != nil {
		t.Fatalf("GenerateDraft: %v", err)
	}
	if draft.Title != "7-Day Course: Concurrency Patterns" || len(draft.Days) != 2 {
		t.Fatalf("unexpected draft %+v", draft)
	}
}

func TestOpenRouterToleratesCodeFences(t *testing.T) {
	fenced := "```json\n" + draftJSON + "\n```"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices": [{"message": {"content": ` + strconvQuote(fenced) + `}}]}`))
	}))
	defer srv.Close()

	client := NewOpenRouterClient("test-key", srv.URL, "test/model", "", "", 5, srv.Client())
	draft, err := client.GenerateDraft(context.Background(), testVideo, testTranscript)
	if err != nil {
		t.Fatalf("GenerateDraft: %v", err)
	}
	if len(draft.Days) != 2 {
		t.Fatalf("unexpected draft %+v", draft)
	}
}

func TestOpenRouterWithoutKey(t *testing.T) {
	client := NewOpenRouterClient("", "http://unused", "m", "", "", 5, nil)
	if _, err := client.GenerateDraft(context.Background(), testVideo, testTranscript); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestAnthropicGenerateDraft(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			http.Error(w, "auth", http.StatusUnauthorized)
			return
		}
		if r.Header.Get("anthropic-version") == "" {
			http.Error(w, "version", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"content": [{"type": "text", "text": ` + strconvQuote(draftJSON) + `}]}`))
	}))
	defer srv.Close()

	client := NewAnthropicClient("test-key", srv.URL, "test-model", "", 5, srv.Client())
	draft, err := client.GenerateDraft(context.Background(), testVideo, testTranscript)
	if err != nil {
		t.Fatalf("GenerateDraft: %v", err)
	}
	if len(draft.Days) != 2 {
		t.Fatalf("unexpected draft %+v", draft)
	}
}

func TestGenerateOutlineIsDeterministic(t *testing.T) {
	first, err := GenerateOutline(testVideo, testTranscript)
	if err != nil {
		t.Fatalf("GenerateOutline: %v", err)
	}
	second, err := GenerateOutline(testVideo, testTranscript)
	if err != nil {
		t.Fatalf("GenerateOutline: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatal("outline generator must be deterministic")
	}
}

func TestGenerateOutlineShape(t *testing.T) {
	draft, err := GenerateOutline(testVideo, testTranscript)
	if err != nil {
		t.Fatalf("GenerateOutline: %v", err)
	}
	if err := course.ValidateDraft(draft); err != nil {
		t.Fatalf("outline draft should validate: %v", err)
	}
	if len(draft.Days) != DayCount {
		t.Fatalf("day count = %d, want %d", len(draft.Days), DayCount)
	}
	if !strings.HasPrefix(draft.Title, "7-Day Course:") {
		t.Fatalf("title = %q", draft.Title)
	}
	for i, day := range draft.Days {
		if day.Number != i+1 {
			t.Fatalf("day %d numbered %d", i, day.Number)
		}
		if len(day.Topics) != 3 {
			t.Fatalf("day %d has %d topics", i+1, len(day.Topics))
		}
	}
}

func TestGenerateOutlineWorksWithSparseInput(t *testing.T) {
	draft, err := GenerateOutline(metadata.Video{Title: "Short"}, transcript.Transcript{})
	if err != nil {
		t.Fatalf("GenerateOutline: %v", err)
	}
	if err := course.ValidateDraft(draft); err != nil {
		t.Fatalf("sparse outline should still validate: %v", err)
	}
}

func TestGenerateOutlineConcurrentRuns(t *testing.T) {
	want, err := GenerateOutline(testVideo, testTranscript)
	if err != nil {
		t.Fatalf("GenerateOutline: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := GenerateOutline(testVideo, testTranscript)
			if err != nil {
				t.Errorf("GenerateOutline: %v", err)
				return
			}
			if !reflect.DeepEqual(got, want) {
				t.Error("concurrent outline differs from sequential outline")
			}
		}()
	}
	wg.Wait()
}

func TestExtractKeywordsStableOrdering(t *testing.T) {
	words := extractKeywords("kubernetes kubernetes scheduling scheduling scheduling etcd", 3)
	want := []string{"Scheduling", "Kubernetes", "Etcd"}
	if !reflect.DeepEqual(words, want) {
		t.Fatalf("keywords = %v, want %v", words, want)
	}
}

func strconvQuote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
