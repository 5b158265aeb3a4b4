package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeYouTube()
	c.normalizeApify()
	c.normalizeTranscript()
	c.normalizeSynthesis()
	c.normalizeMedia()
	c.normalizeCloudinary()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.MediaDir, err = expandPath(c.Paths.MediaDir); err != nil {
		return fmt.Errorf("paths.media_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeYouTube() {
	if c.YouTube.APIKey == "" {
		if value, ok := os.LookupEnv("YOUTUBE_API_KEY"); ok {
			c.YouTube.APIKey = value
		}
	}
	c.YouTube.BaseURL = strings.TrimSpace(c.YouTube.BaseURL)
	if c.YouTube.BaseURL == "" {
		c.YouTube.BaseURL = defaultYouTubeBaseURL
	}
	c.YouTube.OEmbedURL = strings.TrimSpace(c.YouTube.OEmbedURL)
	if c.YouTube.OEmbedURL == "" {
		c.YouTube.OEmbedURL = defaultOEmbedURL
	}
	if c.YouTube.TimeoutSeconds <= 0 {
		c.YouTube.TimeoutSeconds = defaultYouTubeTimeout
	}
}

func (c *Config) normalizeApify() {
	if c.Apify.APIToken == "" {
		if value, ok := os.LookupEnv("APIFY_API_TOKEN"); ok {
			c.Apify.APIToken = value
		}
	}
	c.Apify.BaseURL = strings.TrimSpace(c.Apify.BaseURL)
	if c.Apify.BaseURL == "" {
		c.Apify.BaseURL = defaultApifyBaseURL
	}
	if strings.TrimSpace(c.Apify.CaptionsActor) == "" {
		c.Apify.CaptionsActor = defaultCaptionsActor
	}
	if strings.TrimSpace(c.Apify.VideoActor) == "" {
		c.Apify.VideoActor = defaultVideoActor
	}
	if c.Apify.TimeoutSeconds <= 0 {
		c.Apify.TimeoutSeconds = defaultApifyTimeout
	}
}

func (c *Config) normalizeTranscript() {
	c.Transcript.TimedTextURL = strings.TrimSpace(c.Transcript.TimedTextURL)
	if c.Transcript.TimedTextURL == "" {
		c.Transcript.TimedTextURL = defaultTimedTextURL
	}
	c.Transcript.BackupURL = strings.TrimSpace(c.Transcript.BackupURL)
	if c.Transcript.TimeoutSeconds <= 0 {
		c.Transcript.TimeoutSeconds = defaultTranscriptTimeout
	}
}

func (c *Config) normalizeSynthesis() {
	if c.OpenRouter.APIKey == "" {
		if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok {
			c.OpenRouter.APIKey = value
		}
	}
	c.OpenRouter.BaseURL = strings.TrimSpace(c.OpenRouter.BaseURL)
	if c.OpenRouter.BaseURL == "" {
		c.OpenRouter.BaseURL = defaultOpenRouterBaseURL
	}
	if strings.TrimSpace(c.OpenRouter.Model) == "" {
		c.OpenRouter.Model = defaultOpenRouterModel
	}
	if c.OpenRouter.TimeoutSeconds <= 0 {
		c.OpenRouter.TimeoutSeconds = defaultOpenRouterTimeout
	}

	if c.Anthropic.APIKey == "" {
		if value, ok := os.LookupEnv("ANTHROPIC_API_KEY"); ok {
			c.Anthropic.APIKey = value
		}
	}
	c.Anthropic.BaseURL = strings.TrimSpace(c.Anthropic.BaseURL)
	if c.Anthropic.BaseURL == "" {
		c.Anthropic.BaseURL = defaultAnthropicBaseURL
	}
	if strings.TrimSpace(c.Anthropic.Model) == "" {
		c.Anthropic.Model = defaultAnthropicModel
	}
	if strings.TrimSpace(c.Anthropic.Version) == "" {
		c.Anthropic.Version = defaultAnthropicVersion
	}
	if c.Anthropic.TimeoutSeconds <= 0 {
		c.Anthropic.TimeoutSeconds = defaultAnthropicTimeout
	}
}

func (c *Config) normalizeMedia() {
	if strings.TrimSpace(c.Media.Quality) == "" {
		c.Media.Quality = defaultMediaQuality
	}
	if c.Media.TimeoutSeconds <= 0 {
		c.Media.TimeoutSeconds = defaultMediaTimeout
	}
}

func (c *Config) normalizeCloudinary() {
	c.Cloudinary.BaseURL = strings.TrimSpace(c.Cloudinary.BaseURL)
	if c.Cloudinary.BaseURL == "" {
		c.Cloudinary.BaseURL = defaultCloudinaryBaseURL
	}
	if c.Cloudinary.TimeoutSeconds <= 0 {
		c.Cloudinary.TimeoutSeconds = defaultCloudinaryTimeout
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.RunDeadlineSeconds <= 0 {
		c.Workflow.RunDeadlineSeconds = defaultRunDeadlineSeconds
	}
	if c.Workflow.MaxConcurrentRuns <= 0 {
		c.Workflow.MaxConcurrentRuns = defaultMaxConcurrentRuns
	}
	if c.Workflow.LogGraceSeconds <= 0 {
		c.Workflow.LogGraceSeconds = defaultLogGraceSeconds
	}
	if c.Workflow.EvictionInterval <= 0 {
		c.Workflow.EvictionInterval = defaultEvictionInterval
	}
	if c.Workflow.SaveRetryAttempts <= 0 {
		c.Workflow.SaveRetryAttempts = defaultSaveRetryAttempts
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
