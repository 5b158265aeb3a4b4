package course

import (
	"strings"
	"time"

	"courseforge/internal/metadata"
	"courseforge/internal/transcript"
)

// Inputs carries everything the assembler needs. The assembler itself is pure:
// same inputs, same artifact.
type Inputs struct {
	RunID      string
	VideoURL   string
	Video      metadata.Video
	Transcript transcript.Transcript
	Draft      Draft
	MediaURL   string

	MetadataProvider   string
	TranscriptProvider string
	SynthesisProvider  string
	MediaProvider      string
	SynthesisFallback  bool

	Elapsed   time.Duration
	CreatedAt time.Time
}

// Assemble builds the final artifact from stage outputs and tags each input
// with the provider that produced it.
func Assemble(in Inputs) Course {
	days := make([]Day, len(in.Draft.Days))
	copy(days, in.Draft.Days)
	for i := range days {
		if days[i].Number == 0 {
			days[i].Number = i + 1
		}
		topics := make([]string, len(days[i].Topics))
		copy(topics, days[i].Topics)
		days[i].Topics = topics
	}

	metrics := computeMetrics(in, days)

	return Course{
		RunID:        in.RunID,
		VideoID:      in.Video.VideoID,
		VideoURL:     in.VideoURL,
		VideoTitle:   in.Video.Title,
		ChannelTitle: in.Video.ChannelTitle,
		Title:        strings.TrimSpace(in.Draft.Title),
		Description:  strings.TrimSpace(in.Draft.Description),
		Days:         days,
		MediaURL:     in.MediaURL,
		ThumbnailURL: in.Video.ThumbnailURL,
		Provenance: Provenance{
			Metadata:   in.MetadataProvider,
			Transcript: in.TranscriptProvider,
			Synthesis:  in.SynthesisProvider,
			Media:      in.MediaProvider,
		},
		Metrics:   metrics,
		Video:     in.Video,
		CreatedAt: in.CreatedAt,
	}
}
