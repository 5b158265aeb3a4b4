// Package videoref validates submitted video references and extracts the
// canonical video identity used by every pipeline stage.
package videoref

import (
	"net/url"
	"regexp"
	"strings"

	"courseforge/internal/services"
)

// Reference is the validated form of a submitted video URL.
type Reference struct {
	URL     string `json:"url"`
	VideoID string `json:"video_id"`
	Host    string `json:"host"`
}

var videoIDPattern = regexp.MustCompile(`^[\w-]{6,}$`)

var allowedHosts = map[string]struct{}{
	"youtube.com":     {},
	"www.youtube.com": {},
	"m.youtube.com":   {},
	"youtu.be":        {},
}

// Parse validates a submitted reference and extracts its video id. It performs
// format-only validation: a recognizable YouTube URL shape with a plausible
// video id. Network reachability is the metadata stage's concern.
func Parse(raw string) (Reference, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Reference{}, services.Wrap(services.ErrValidation, "", "parse reference", "video URL is required", nil)
	}

	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return Reference{}, services.Wrap(services.ErrValidation, "", "parse reference", "not a valid URL", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return Reference{}, services.Wrap(services.ErrValidation, "", "parse reference", "URL must use http or https", nil)
	}

	host := strings.ToLower(parsed.Hostname())
	if _, ok := allowedHosts[host]; !ok {
		return Reference{}, services.Wrap(services.ErrValidation, "", "parse reference", "unsupported video host "+host, nil)
	}

	id := extractVideoID(parsed)
	if id == "" || !videoIDPattern.MatchString(id) {
		return Reference{}, services.Wrap(services.ErrValidation, "", "parse reference", "could not extract a video id", nil)
	}

	return Reference{URL: trimmed, VideoID: id, Host: host}, nil
}

func extractVideoID(parsed *url.URL) string {
	host := strings.ToLower(parsed.Hostname())

	if host == "youtu.be" {
		return firstPathSegment(parsed.Path)
	}

	path := parsed.EscapedPath()
	if strings.HasPrefix(path, "/shorts/") {
		return firstPathSegment(strings.TrimPrefix(path, "/shorts"))
	}
	if strings.HasPrefix(path, "/watch") {
		return parsed.Query().Get("v")
	}
	return ""
}

func firstPathSegment(path string) string {
	trimmed := strings.TrimPrefix(path, "/")
	if idx := strings.IndexByte(trimmed, '/'); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return trimmed
}

// CanonicalURL returns the normalized watch URL for a reference.
func (r Reference) CanonicalURL() string {
	if r.VideoID == "" {
		return r.URL
	}
	return "https://www.youtube.com/watch?v=" + r.VideoID
}
