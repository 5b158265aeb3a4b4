package course

import (
	"time"

	"courseforge/internal/metadata"
)

// Provenance records which provider supplied each input to the artifact.
type Provenance struct {
	Metadata   string `json:"metadata"`
	Transcript string `json:"transcript"`
	Synthesis  string `json:"synthesis"`
	Media      string `json:"media,omitempty"`
}

// Metrics summarizes how the run sourced its data.
type Metrics struct {
	MetadataFromAPI     bool   `json:"metadata_from_api"`
	TranscriptReal      bool   `json:"transcript_real"`
	SynthesisFromAI     bool   `json:"synthesis_from_ai"`
	MediaArchived       bool   `json:"media_archived"`
	FallbacksUsed       int    `json:"fallbacks_used"`
	QualityGrade        string `json:"quality_grade"`
	TranscriptChars     int    `json:"transcript_chars"`
	DayCount            int    `json:"day_count"`
	GenerationElapsedMS int64  `json:"generation_elapsed_ms"`
}

// Course is the assembled artifact persisted at the end of a run.
type Course struct {
	ID           int64          `json:"id,omitempty"`
	RunID        string         `json:"run_id"`
	VideoID      string         `json:"video_id"`
	VideoURL     string         `json:"video_url"`
	VideoTitle   string         `json:"video_title"`
	ChannelTitle string         `json:"channel_title,omitempty"`
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	Days         []Day          `json:"days"`
	MediaURL     string         `json:"media_url,omitempty"`
	ThumbnailURL string         `json:"thumbnail_url,omitempty"`
	Provenance   Provenance     `json:"provenance"`
	Metrics      Metrics        `json:"metrics"`
	Video        metadata.Video `json:"-"`
	CreatedAt    time.Time      `json:"created_at"`
}
