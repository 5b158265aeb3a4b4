package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateCloudinary(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"youtube.timeout_seconds":       c.YouTube.TimeoutSeconds,
		"apify.timeout_seconds":         c.Apify.TimeoutSeconds,
		"transcript.timeout_seconds":    c.Transcript.TimeoutSeconds,
		"openrouter.timeout_seconds":    c.OpenRouter.TimeoutSeconds,
		"anthropic.timeout_seconds":     c.Anthropic.TimeoutSeconds,
		"media.timeout_seconds":         c.Media.TimeoutSeconds,
		"workflow.run_deadline_seconds": c.Workflow.RunDeadlineSeconds,
		"workflow.max_concurrent_runs":  c.Workflow.MaxConcurrentRuns,
		"workflow.log_grace_seconds":    c.Workflow.LogGraceSeconds,
	}); err != nil {
		return err
	}

	// The run deadline must at least cover a single provider attempt, otherwise
	// every run would fail before its first chain advances.
	shortest := c.YouTube.TimeoutSeconds
	if c.Workflow.RunDeadlineSeconds < shortest {
		return fmt.Errorf("workflow.run_deadline_seconds (%d) must not be smaller than youtube.timeout_seconds (%d)",
			c.Workflow.RunDeadlineSeconds, shortest)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be \"console\" or \"json\", got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug/info/warn/error, got %q", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateCloudinary() error {
	name := strings.TrimSpace(c.Cloudinary.CloudName)
	key := strings.TrimSpace(c.Cloudinary.APIKey)
	secret := strings.TrimSpace(c.Cloudinary.APISecret)
	if name == "" && key == "" && secret == "" {
		return nil
	}
	if name == "" || key == "" || secret == "" {
		return errors.New("cloudinary requires cloud_name, api_key, and api_secret to be set together")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if strings.TrimSpace(c.Notifications.NtfyTopic) == "" {
		return nil
	}
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive when ntfy_topic is set")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive, got %d", key, value)
		}
	}
	return nil
}
