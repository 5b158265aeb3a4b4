package videoref_test

import (
	"errors"
	"testing"

	"courseforge/internal/services"
	"courseforge/internal/videoref"
)

func TestParseAcceptsWatchURLs(t *testing.T) {
	cases := map[string]string{
		"https://youtube.com/watch?v=abc123":                 "abc123",
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ":        "dQw4w9WgXcQ",
		"http://m.youtube.com/watch?v=abc-_123&t=42":         "abc-_123",
		"https://youtu.be/dQw4w9WgXcQ":                       "dQw4w9WgXcQ",
		"https://www.youtube.com/shorts/abc123xyz":           "abc123xyz",
		"https://m.youtube.com/shorts/abc123xyz?feature=sha": "abc123xyz",
	}
	for raw, wantID := range cases {
		ref, err := videoref.Parse(raw)
		if err != nil {
			t.Fatalf("Parse(%q) returned error: %v", raw, err)
		}
		if ref.VideoID != wantID {
			t.Fatalf("Parse(%q) id = %q, want %q", raw, ref.VideoID, wantID)
		}
	}
}

func TestParseRejectsInvalidReferences(t *testing.T) {
	cases := []string{
		"",
		"not-a-url",
		"ftp://youtube.com/watch?v=abc123",
		"https://vimeo.com/12345",
		"https://youtube.com/watch",
		"https://youtube.com/playlist?list=PL123",
		"https://youtu.be/",
	}
	for _, raw := range cases {
		_, err := videoref.Parse(raw)
		if err == nil {
			t.Fatalf("Parse(%q) should fail", raw)
		}
		if !errors.Is(err, services.ErrValidation) {
			t.Fatalf("Parse(%q) error should be a validation error, got %v", raw, err)
		}
	}
}

func TestCanonicalURL(t *testing.T) {
	ref, err := videoref.Parse("https://youtu.be/abc123")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	want := "https://www.youtube.com/watch?v=abc123"
	if ref.CanonicalURL() != want {
		t.Fatalf("CanonicalURL = %q, want %q", ref.CanonicalURL(), want)
	}
}
