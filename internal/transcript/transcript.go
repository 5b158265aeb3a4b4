// Package transcript retrieves the spoken content of a video through a chain
// of caption providers, falling back to the video description when no
// provider can deliver captions.
package transcript

import (
	"strings"

	"courseforge/internal/services"
)

// Transcripts shorter than this carry too little signal for synthesis.
const minUsableChars = 80

// Segment is one timed caption line.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start,omitempty"`
	Dur   float64 `json:"dur,omitempty"`
}

// Transcript is the text a run feeds into synthesis.
type Transcript struct {
	VideoID         string    `json:"video_id"`
	Text            string    `json:"text"`
	Segments        []Segment `json:"segments,omitempty"`
	Source          string    `json:"source"`
	FromDescription bool      `json:"from_description,omitempty"`
}

// Validate rejects transcripts too short to synthesize a course from.
func Validate(tr Transcript) error {
	if len(strings.TrimSpace(tr.Text)) < minUsableChars {
		return services.Wrap(services.ErrValidation, "transcript", "validate", "transcript too short to be usable", nil)
	}
	return nil
}

func joinSegments(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}
