// Package media downloads the source video and archives it to Cloudinary.
// The stage is optional: a failed download or upload degrades the run but
// never blocks the course artifact.
package media

import "courseforge/internal/services"

// StageName is the pipeline stage this package serves.
const StageName = "media"

// Result is what the media stage contributes to the artifact.
type Result struct {
	LocalPath string `json:"local_path,omitempty"`
	MediaURL  string `json:"media_url,omitempty"`
	Source    string `json:"source"`
}

// Validate requires a local file from the download chain.
func Validate(r Result) error {
	if r.LocalPath == "" {
		return services.Wrap(services.ErrValidation, StageName, "validate", "download produced no file", nil)
	}
	return nil
}
