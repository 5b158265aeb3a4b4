package config

const (
	defaultDataDir             = "~/.local/share/courseforge"
	defaultMediaDir            = "~/.local/share/courseforge/media"
	defaultLogDir              = "~/.local/share/courseforge/logs"
	defaultAPIBind             = "127.0.0.1:7519"
	defaultYouTubeBaseURL      = "https://www.googleapis.com/youtube/v3"
	defaultOEmbedURL           = "https://www.youtube.com/oembed"
	defaultYouTubeTimeout      = 10
	defaultApifyBaseURL        = "https://api.apify.com/v2"
	defaultCaptionsActor       = "pintostudio~youtube-transcript-scraper"
	defaultVideoActor          = "epctex~youtube-video-downloader"
	defaultApifyTimeout        = 30
	defaultTimedTextURL        = "https://video.google.com/timedtext"
	defaultTranscriptTimeout   = 15
	defaultOpenRouterBaseURL   = "https://openrouter.ai/api/v1/chat/completions"
	defaultOpenRouterModel     = "openai/gpt-4o"
	defaultOpenRouterReferer   = "https://github.com/courseforge/courseforge"
	defaultOpenRouterTitle     = "Courseforge Synthesis"
	defaultOpenRouterTimeout   = 60
	defaultAnthropicBaseURL    = "https://api.anthropic.com/v1/messages"
	defaultAnthropicModel      = "claude-sonnet-4-20250514"
	defaultAnthropicVersion    = "2023-06-01"
	defaultAnthropicTimeout    = 15
	defaultMediaQuality        = "720p"
	defaultMediaTimeout        = 120
	defaultCloudinaryBaseURL   = "https://api.cloudinary.com/v1_1"
	defaultCloudinaryTimeout   = 60
	defaultRunDeadlineSeconds  = 240
	defaultMaxConcurrentRuns   = 4
	defaultLogGraceSeconds     = 600
	defaultEvictionInterval    = 60
	defaultSaveRetryAttempts   = 3
	defaultNotifyTimeout       = 10
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:  defaultDataDir,
			MediaDir: defaultMediaDir,
			LogDir:   defaultLogDir,
			APIBind:  defaultAPIBind,
		},
		YouTube: YouTube{
			BaseURL:        defaultYouTubeBaseURL,
			OEmbedURL:      defaultOEmbedURL,
			TimeoutSeconds: defaultYouTubeTimeout,
		},
		Apify: Apify{
			BaseURL:        defaultApifyBaseURL,
			CaptionsActor:  defaultCaptionsActor,
			VideoActor:     defaultVideoActor,
			TimeoutSeconds: defaultApifyTimeout,
		},
		Transcript: Transcript{
			TimedTextURL:   defaultTimedTextURL,
			TimeoutSeconds: defaultTranscriptTimeout,
		},
		OpenRouter: OpenRouter{
			BaseURL:        defaultOpenRouterBaseURL,
			Model:          defaultOpenRouterModel,
			Referer:        defaultOpenRouterReferer,
			Title:          defaultOpenRouterTitle,
			TimeoutSeconds: defaultOpenRouterTimeout,
		},
		Anthropic: Anthropic{
			BaseURL:        defaultAnthropicBaseURL,
			Model:          defaultAnthropicModel,
			Version:        defaultAnthropicVersion,
			TimeoutSeconds: defaultAnthropicTimeout,
		},
		Media: Media{
			Enabled:        true,
			Quality:        defaultMediaQuality,
			TimeoutSeconds: defaultMediaTimeout,
		},
		Cloudinary: Cloudinary{
			BaseURL:        defaultCloudinaryBaseURL,
			TimeoutSeconds: defaultCloudinaryTimeout,
		},
		Workflow: Workflow{
			RunDeadlineSeconds: defaultRunDeadlineSeconds,
			MaxConcurrentRuns:  defaultMaxConcurrentRuns,
			LogGraceSeconds:    defaultLogGraceSeconds,
			EvictionInterval:   defaultEvictionInterval,
			SaveRetryAttempts:  defaultSaveRetryAttempts,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Completion:     true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
