package transcript

import (
	"context"
	"time"

	"courseforge/internal/config"
	"courseforge/internal/pipeline"
	"courseforge/internal/services"
	"courseforge/internal/videoref"
)

// StageName is the pipeline stage this package serves.
const StageName = "transcript"

// FallbackName identifies the description fallback in run records.
const FallbackName = "description-fallback"

// Service bundles the caption providers behind a single chain builder.
type Service struct {
	apify     *ApifyClient
	timedtext *TimedTextClient
	backup    *BackupClient

	apifyTimeout time.Duration
	plainTimeout time.Duration
}

// NewService wires the providers from configuration.
func NewService(apifyCfg config.Apify, cfg config.Transcript) *Service {
	apifyTimeout := defaultApifyTimeout
	if apifyCfg.TimeoutSeconds > 0 {
		apifyTimeout = time.Duration(apifyCfg.TimeoutSeconds) * time.Second
	}
	plainTimeout := defaultTimedTextTimeout
	if cfg.TimeoutSeconds > 0 {
		plainTimeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &Service{
		apify:        NewApifyClient(apifyCfg.APIToken, apifyCfg.BaseURL, apifyCfg.CaptionsActor, apifyCfg.TimeoutSeconds, nil),
		timedtext:    NewTimedTextClient(cfg.TimedTextURL, cfg.TimeoutSeconds, nil),
		backup:       NewBackupClient(cfg.BackupURL, cfg.TimeoutSeconds, nil),
		apifyTimeout: apifyTimeout,
		plainTimeout: plainTimeout,
	}
}

// Chain builds the provider chain for one video. The description fallback is
// terminal and local: when every caption provider fails, the video
// description stands in for the transcript if it is long enough.
func (s *Service) Chain(ref videoref.Reference, description string) pipeline.Chain[Transcript] {
	watchURL := ref.CanonicalURL()
	return pipeline.Chain[Transcript]{
		Stage: StageName,
		Providers: []pipeline.Provider[Transcript]{
			{
				Name:    "apify-captions",
				Timeout: s.apifyTimeout,
				Run: func(ctx context.Context) (Transcript, error) {
					return s.apify.Fetch(ctx, ref.VideoID, watchURL)
				},
			},
			{
				Name:    "timedtext",
				Timeout: s.plainTimeout,
				Run: func(ctx context.Context) (Transcript, error) {
					return s.timedtext.Fetch(ctx, ref.VideoID)
				},
			},
			{
				Name:    "transcript-backup",
				Timeout: s.plainTimeout,
				Run: func(ctx context.Context) (Transcript, error) {
					return s.backup.Fetch(ctx, ref.VideoID)
				},
			},
		},
		Validate:     Validate,
		FallbackName: FallbackName,
		Fallback: func(context.Context) (Transcript, error) {
			return FromDescription(ref.VideoID, description)
		},
	}
}

// FromDescription builds a stand-in transcript from the video description.
func FromDescription(videoID, description string) (Transcript, error) {
	tr := Transcript{
		VideoID:         videoID,
		Text:            description,
		Source:          FallbackName,
		FromDescription: true,
	}
	if err := Validate(tr); err != nil {
		return Transcript{}, services.Wrap(services.ErrValidation, StageName, FallbackName, "description too short to stand in for a transcript", nil)
	}
	return tr, nil
}
