package transcript

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"courseforge/internal/services"
)

const defaultBackupTimeout = 15 * time.Second

// BackupClient queries a third-party transcript API as the last network
// provider in the chain.
type BackupClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewBackupClient constructs a backup transcript client. An empty base URL
// disables the provider; Fetch reports a configuration error.
func NewBackupClient(baseURL string, timeoutSeconds int, httpClient *http.Client) *BackupClient {
	timeout := defaultBackupTimeout
	if timeoutSeconds > 0 {
		timeout = time.Duration(timeoutSeconds) * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &BackupClient{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: httpClient,
	}
}

// Fetch retrieves a plain transcript for a video id.
func (c *BackupClient) Fetch(ctx context.Context, videoID string) (Transcript, error) {
	var empty Transcript
	if c.baseURL == "" {
		return empty, services.Wrap(services.ErrConfiguration, "transcript", "transcript-backup", "backup endpoint not configured", nil)
	}

	endpoint := c.baseURL + "/transcript?" + url.Values{"video_id": []string{videoID}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return empty, services.Wrap(services.ErrExternalTool, "transcript", "transcript-backup", "build request", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return empty, services.Wrap(services.ErrExternalTool, "transcript", "transcript-backup", "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return empty, services.Wrap(services.ErrExternalTool, "transcript", "transcript-backup", "read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return empty, services.Wrap(services.ErrExternalTool, "transcript", "transcript-backup", "http "+strconv.Itoa(resp.StatusCode), nil)
	}

	var parsed struct {
		Transcript string `json:"transcript"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return empty, services.Wrap(services.ErrExternalTool, "transcript", "transcript-backup", "decode response", err)
	}
	text := strings.TrimSpace(parsed.Transcript)
	if text == "" {
		return empty, services.Wrap(services.ErrNotFound, "transcript", "transcript-backup", "no transcript for video", nil)
	}

	return Transcript{VideoID: videoID, Text: text, Source: "transcript-backup"}, nil
}
