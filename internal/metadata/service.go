package metadata

import (
	"context"
	"time"

	"courseforge/internal/config"
	"courseforge/internal/pipeline"
	"courseforge/internal/videoref"
)

// StageName is the pipeline stage this package serves.
const StageName = "metadata"

// Service bundles the three metadata providers behind a single chain builder.
type Service struct {
	dataAPI *DataAPIClient
	oembed  *OEmbedClient
	scraper *Scraper
	timeout time.Duration
}

// NewService wires the providers from configuration.
func NewService(cfg config.YouTube) *Service {
	timeout := defaultDataAPITimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &Service{
		dataAPI: NewDataAPIClient(cfg.APIKey, cfg.BaseURL, cfg.TimeoutSeconds, nil),
		oembed:  NewOEmbedClient(cfg.OEmbedURL, cfg.TimeoutSeconds, nil),
		scraper: NewScraper(cfg.TimeoutSeconds, nil),
		timeout: timeout,
	}
}

// Chain builds the provider chain for one video reference. Metadata has no
// terminal fallback: without at least a title there is nothing to teach from.
func (s *Service) Chain(ref videoref.Reference) pipeline.Chain[Video] {
	watchURL := ref.CanonicalURL()
	return pipeline.Chain[Video]{
		Stage: StageName,
		Providers: []pipeline.Provider[Video]{
			{
				Name:    "youtube-data-api",
				Timeout: s.timeout,
				Run: func(ctx context.Context) (Video, error) {
					return s.dataAPI.Lookup(ctx, ref.VideoID)
				},
			},
			{
				Name:    "youtube-oembed",
				Timeout: s.timeout,
				Run: func(ctx context.Context) (Video, error) {
					return s.oembed.Lookup(ctx, ref.VideoID, watchURL)
				},
			},
			{
				Name:    "watch-page-scraper",
				Timeout: s.timeout,
				Run: func(ctx context.Context) (Video, error) {
					return s.scraper.Lookup(ctx, ref.VideoID, watchURL)
				},
			},
		},
		Validate: Validate,
	}
}
