// Package metadata resolves video metadata through a chain of providers:
// the YouTube Data API, the public oEmbed endpoint, and a watch-page scraper.
package metadata

import (
	"strings"
	"time"

	"courseforge/internal/services"
)

// Video is the metadata a run needs before synthesis can run.
type Video struct {
	VideoID      string        `json:"video_id"`
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	ChannelTitle string        `json:"channel_title,omitempty"`
	PublishedAt  time.Time     `json:"published_at,omitempty"`
	Duration     time.Duration `json:"duration,omitempty"`
	ViewCount    int64         `json:"view_count,omitempty"`
	ThumbnailURL string        `json:"thumbnail_url,omitempty"`
	Source       string        `json:"source"`
}

// Validate reports whether the metadata is usable downstream. A title is the
// minimum the synthesis prompt needs.
func Validate(v Video) error {
	if strings.TrimSpace(v.Title) == "" {
		return services.Wrap(services.ErrValidation, "metadata", "validate", "metadata has no title", nil)
	}
	return nil
}

// parseISODuration handles the PT#H#M#S form the Data API returns.
func parseISODuration(raw string) time.Duration {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "PT") {
		return 0
	}
	var total time.Duration
	value := 0
	for _, r := range raw[2:] {
		switch {
		case r >= '0' && r <= '9':
			value = value*10 + int(r-'0')
		case r == 'H':
			total += time.Duration(value) * time.Hour
			value = 0
		case r == 'M':
			total += time.Duration(value) * time.Minute
			value = 0
		case r == 'S':
			total += time.Duration(value) * time.Second
			value = 0
		default:
			return 0
		}
	}
	return total
}
