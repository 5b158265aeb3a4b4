package media

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"courseforge/internal/services"
)

// YtdlpDownloader shells out to yt-dlp as the second download provider.
type YtdlpDownloader struct {
	binary   string
	quality  string
	mediaDir string
}

// NewYtdlpDownloader constructs a yt-dlp runner.
func NewYtdlpDownloader(binary, quality, mediaDir string) *YtdlpDownloader {
	if strings.TrimSpace(binary) == "" {
		binary = "yt-dlp"
	}
	if strings.TrimSpace(quality) == "" {
		quality = "best[ext=mp4][height<=720]"
	}
	return &YtdlpDownloader{binary: binary, quality: quality, mediaDir: mediaDir}
}

// Download fetches the video into the media directory.
func (d *YtdlpDownloader) Download(ctx context.Context, videoID, watchURL string) (Result, error) {
	var empty Result
	if _, err := exec.LookPath(d.binary); err != nil {
		return empty, services.Wrap(services.ErrConfiguration, StageName, "yt-dlp", "binary not found: "+d.binary, err)
	}
	if err := os.MkdirAll(d.mediaDir, 0o755); err != nil {
		return empty, services.Wrap(services.ErrExternalTool, StageName, "yt-dlp", "create media dir", err)
	}

	localPath := filepath.Join(d.mediaDir, videoID+".mp4")
	cmd := exec.CommandContext(ctx, d.binary,
		"--no-playlist",
		"--format", d.quality,
		"--output", localPath,
		watchURL,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		os.Remove(localPath)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return empty, services.Wrap(services.ErrTimeout, StageName, "yt-dlp", "download timed out", ctx.Err())
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return empty, services.Wrap(services.ErrExternalTool, StageName, "yt-dlp", "download failed: "+lastLine(detail), err)
	}
	if info, err := os.Stat(localPath); err != nil || info.Size() == 0 {
		return empty, services.Wrap(services.ErrExternalTool, StageName, "yt-dlp", "download produced no file", err)
	}
	return Result{LocalPath: localPath, Source: "yt-dlp"}, nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
