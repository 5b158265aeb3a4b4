package media

import (
	"context"
	"time"

	"courseforge/internal/config"
	"courseforge/internal/pipeline"
	"courseforge/internal/videoref"
)

// Service bundles the download providers and the Cloudinary archive.
type Service struct {
	enabled    bool
	apify      *ApifyVideoClient
	ytdlp      *YtdlpDownloader
	cloudinary *CloudinaryClient
	timeout    time.Duration
}

// NewService wires the providers from configuration.
func NewService(apifyCfg config.Apify, mediaCfg config.Media, cloudCfg config.Cloudinary, mediaDir string) *Service {
	timeout := defaultApifyVideoTimeout
	if mediaCfg.TimeoutSeconds > 0 {
		timeout = time.Duration(mediaCfg.TimeoutSeconds) * time.Second
	}
	return &Service{
		enabled:    mediaCfg.Enabled,
		apify:      NewApifyVideoClient(apifyCfg.APIToken, apifyCfg.BaseURL, apifyCfg.VideoActor, mediaDir, mediaCfg.TimeoutSeconds, nil),
		ytdlp:      NewYtdlpDownloader(mediaCfg.YtdlpBinary, mediaCfg.Quality, mediaDir),
		cloudinary: NewCloudinaryClient(cloudCfg.CloudName, cloudCfg.APIKey, cloudCfg.APISecret, cloudCfg.BaseURL, cloudCfg.TimeoutSeconds, nil),
		timeout:    timeout,
	}
}

// Enabled reports whether the media stage should run at all.
func (s *Service) Enabled() bool {
	return s != nil && s.enabled
}

// Chain builds the download chain for one video. No terminal fallback: when
// both downloaders fail, the optional stage fails and the run degrades.
func (s *Service) Chain(ref videoref.Reference) pipeline.Chain[Result] {
	watchURL := ref.CanonicalURL()
	return pipeline.Chain[Result]{
		Stage: StageName,
		Providers: []pipeline.Provider[Result]{
			{
				Name:    "apify-video",
				Timeout: s.timeout,
				Run: func(ctx context.Context) (Result, error) {
					return s.apify.Download(ctx, ref.VideoID, watchURL)
				},
			},
			{
				Name:    "yt-dlp",
				Timeout: s.timeout,
				Run: func(ctx context.Context) (Result, error) {
					return s.ytdlp.Download(ctx, ref.VideoID, watchURL)
				},
			},
		},
		Validate: Validate,
	}
}

// Archive uploads a downloaded file when Cloudinary is configured. The local
// path is returned unchanged when upload is disabled.
func (s *Service) Archive(ctx context.Context, res Result, videoID string) (Result, error) {
	if !s.cloudinary.Enabled() {
		return res, nil
	}
	hosted, err := s.cloudinary.Upload(ctx, res.LocalPath, "courseforge/"+videoID)
	if err != nil {
		return res, err
	}
	res.MediaURL = hosted
	return res, nil
}
