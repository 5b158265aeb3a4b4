package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"courseforge/internal/config"
)

func TestLoadDefaultConfigUsesEnvKeysAndExpandsPaths(t *testing.T) {
	t.Setenv("YOUTUBE_API_KEY", "yt-test-key")
	t.Setenv("OPENROUTER_API_KEY", "or-test-key")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "courseforge")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Paths.APIBind != "127.0.0.1:7519" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.YouTube.APIKey != "yt-test-key" {
		t.Fatalf("expected YouTube key from env, got %q", cfg.YouTube.APIKey)
	}
	if cfg.OpenRouter.APIKey != "or-test-key" {
		t.Fatalf("expected OpenRouter key from env, got %q", cfg.OpenRouter.APIKey)
	}
	if cfg.YouTube.BaseURL != config.Default().YouTube.BaseURL {
		t.Fatalf("unexpected YouTube base url: %q", cfg.YouTube.BaseURL)
	}
	if cfg.Workflow.RunDeadlineSeconds != 240 {
		t.Fatalf("unexpected run deadline: %d", cfg.Workflow.RunDeadlineSeconds)
	}
	if !cfg.Media.Enabled {
		t.Fatal("expected media acquisition enabled by default")
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "courseforge.toml")

	contents := strings.Join([]string{
		"[openrouter]",
		`api_key = "abc123"`,
		`model = "test/model"`,
		"[workflow]",
		"run_deadline_seconds = 120",
		"max_concurrent_runs = 2",
	}, "\n")
	if err := os.WriteFile(configPath, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	if cfg.OpenRouter.APIKey != "abc123" {
		t.Fatalf("unexpected openrouter key: %q", cfg.OpenRouter.APIKey)
	}
	if cfg.OpenRouter.Model != "test/model" {
		t.Fatalf("unexpected openrouter model: %q", cfg.OpenRouter.Model)
	}
	if cfg.Workflow.RunDeadlineSeconds != 120 {
		t.Fatalf("unexpected run deadline: %d", cfg.Workflow.RunDeadlineSeconds)
	}
	// Unset keys keep defaults.
	if cfg.Apify.BaseURL != config.Default().Apify.BaseURL {
		t.Fatalf("unexpected apify base url: %q", cfg.Apify.BaseURL)
	}
}

func TestValidateRejectsBadLoggingFormat(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "courseforge.toml")
	if err := os.WriteFile(configPath, []byte("[logging]\nformat = \"yaml\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, _, _, err := config.Load(configPath)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "logging.format") {
		t.Fatalf("expected logging.format in error, got %v", err)
	}
}

func TestValidateRejectsPartialCloudinary(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "courseforge.toml")
	if err := os.WriteFile(configPath, []byte("[cloudinary]\ncloud_name = \"demo\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, _, _, err := config.Load(configPath)
	if err == nil {
		t.Fatal("expected validation error for partial cloudinary config")
	}
	if !strings.Contains(err.Error(), "cloudinary") {
		t.Fatalf("expected cloudinary in error, got %v", err)
	}
}

func TestValidateRejectsDeadlineBelowProviderTimeout(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "courseforge.toml")
	contents := strings.Join([]string{
		"[youtube]",
		"timeout_seconds = 30",
		"[workflow]",
		"run_deadline_seconds = 5",
	}, "\n")
	if err := os.WriteFile(configPath, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, _, _, err := config.Load(configPath)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "run_deadline_seconds") {
		t.Fatalf("expected run_deadline_seconds in error, got %v", err)
	}
}
