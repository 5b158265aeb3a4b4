package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	MediaDir string `toml:"media_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
}

// YouTube contains configuration for video metadata lookup.
type YouTube struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	OEmbedURL      string `toml:"oembed_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Apify contains configuration for the Apify actor platform used for
// caption extraction and video downloads.
type Apify struct {
	APIToken       string `toml:"api_token"`
	BaseURL        string `toml:"base_url"`
	CaptionsActor  string `toml:"captions_actor"`
	VideoActor     string `toml:"video_actor"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Transcript contains configuration for the non-Apify transcript sources.
type Transcript struct {
	TimedTextURL   string `toml:"timedtext_url"`
	BackupURL      string `toml:"backup_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// OpenRouter contains the primary synthesis provider connection settings.
type OpenRouter struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Anthropic contains the secondary synthesis provider connection settings.
type Anthropic struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Version        string `toml:"version"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Media contains configuration for the optional media acquisition stage.
type Media struct {
	Enabled        bool   `toml:"enabled"`
	YtdlpBinary    string `toml:"ytdlp_binary"`
	Quality        string `toml:"quality"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Cloudinary contains configuration for durable media storage uploads.
type Cloudinary struct {
	CloudName      string `toml:"cloud_name"`
	APIKey         string `toml:"api_key"`
	APISecret      string `toml:"api_secret"`
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Workflow contains run execution limits and bus retention settings.
type Workflow struct {
	RunDeadlineSeconds int `toml:"run_deadline_seconds"`
	MaxConcurrentRuns  int `toml:"max_concurrent_runs"`
	LogGraceSeconds    int `toml:"log_grace_seconds"`
	EvictionInterval   int `toml:"eviction_interval_seconds"`
	SaveRetryAttempts  int `toml:"save_retry_attempts"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Completion     bool   `toml:"completion"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for courseforge.
//
// Configuration sections by subsystem:
//   - Paths: data/media directories and API bind address
//   - YouTube: metadata lookup (Data API, oEmbed, scraper)
//   - Apify: actor platform for captions and video downloads
//   - Transcript: timedtext and backup transcript sources
//   - OpenRouter / Anthropic: course synthesis providers
//   - Media: optional video acquisition via yt-dlp
//   - Cloudinary: durable media storage uploads
//   - Workflow: run deadline, concurrency, log retention
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	YouTube       YouTube       `toml:"youtube"`
	Apify         Apify         `toml:"apify"`
	Transcript    Transcript    `toml:"transcript"`
	OpenRouter    OpenRouter    `toml:"openrouter"`
	Anthropic     Anthropic     `toml:"anthropic"`
	Media         Media         `toml:"media"`
	Cloudinary    Cloudinary    `toml:"cloudinary"`
	Workflow      Workflow      `toml:"workflow"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/courseforge/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("courseforge.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// MediaDir is created on a best-effort basis so the daemon can run when
// media acquisition is disabled or storage is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.MediaDir) != "" {
		_ = os.MkdirAll(c.Paths.MediaDir, 0o755)
	}
	return nil
}

// YtdlpBinary returns the yt-dlp executable name used for fallback video downloads.
func (c *Config) YtdlpBinary() string {
	if bin := strings.TrimSpace(c.Media.YtdlpBinary); bin != "" {
		return bin
	}
	return "yt-dlp"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
