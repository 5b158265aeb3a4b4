package media

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"courseforge/internal/services"
)

const defaultApifyVideoTimeout = 120 * time.Second

// ApifyVideoClient runs a video-downloader actor and saves the file it
// resolves into the media directory.
type ApifyVideoClient struct {
	token      string
	baseURL    string
	actor      string
	mediaDir   string
	httpClient *http.Client
}

// NewApifyVideoClient constructs a client for one downloader actor.
func NewApifyVideoClient(token, baseURL, actor, mediaDir string, timeoutSeconds int, httpClient *http.Client) *ApifyVideoClient {
	timeout := defaultApifyVideoTimeout
	if timeoutSeconds > 0 {
		timeout = time.Duration(timeoutSeconds) * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "https://api.apify.com/v2"
	}
	return &ApifyVideoClient{
		token:      strings.TrimSpace(token),
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		actor:      strings.TrimSpace(actor),
		mediaDir:   mediaDir,
		httpClient: httpClient,
	}
}

type apifyVideoItem struct {
	DownloadURL string `json:"downloadUrl"`
	URL         string `json:"url"`
}

// Download resolves the video file through the actor and writes it locally.
func (c *ApifyVideoClient) Download(ctx context.Context, videoID, watchURL string) (Result, error) {
	var empty Result
	if c.token == "" {
		return empty, services.Wrap(services.ErrConfiguration, StageName, "apify-video", "api token not configured", nil)
	}

	endpoint := c.baseURL + "/acts/" + url.PathEscape(c.actor) + "/run-sync-get-dataset-items?" + url.Values{
		"token": []string{c.token},
	}.Encode()
	payload, err := json.Marshal(map[string]any{
		"startUrls": []map[string]string{{"url": watchURL}},
		"quality":   "720p",
	})
	if err != nil {
		return empty, services.Wrap(services.ErrExternalTool, StageName, "apify-video", "encode input", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return empty, services.Wrap(services.ErrExternalTool, StageName, "apify-video", "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return empty, services.Wrap(services.ErrExternalTool, StageName, "apify-video", "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return empty, services.Wrap(services.ErrExternalTool, StageName, "apify-video", "read response", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return empty, services.Wrap(services.ErrExternalTool, StageName, "apify-video", "http "+strconv.Itoa(resp.StatusCode), nil)
	}

	var items []apifyVideoItem
	if err := json.Unmarshal(body, &items); err != nil {
		return empty, services.Wrap(services.ErrExternalTool, StageName, "apify-video", "decode dataset items", err)
	}
	fileURL := ""
	for _, item := range items {
		if item.DownloadURL != "" {
			fileURL = item.DownloadURL
			break
		}
		if item.URL != "" {
			fileURL = item.URL
			break
		}
	}
	if fileURL == "" {
		return empty, services.Wrap(services.ErrExternalTool, StageName, "apify-video", "actor returned no download url", nil)
	}

	localPath := filepath.Join(c.mediaDir, videoID+".mp4")
	if err := c.saveFile(ctx, fileURL, localPath); err != nil {
		return empty, err
	}
	return Result{LocalPath: localPath, Source: "apify-video"}, nil
}

func (c *ApifyVideoClient) saveFile(ctx context.Context, fileURL, localPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, StageName, "apify-video", "build download request", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, StageName, "apify-video", "download failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return services.Wrap(services.ErrExternalTool, StageName, "apify-video", "download http "+strconv.Itoa(resp.StatusCode), nil)
	}

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return services.Wrap(services.ErrExternalTool, StageName, "apify-video", "create media dir", err)
	}
	out, err := os.Create(localPath)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, StageName, "apify-video", "create file", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		os.Remove(localPath)
		return services.Wrap(services.ErrExternalTool, StageName, "apify-video", "write file", err)
	}
	return nil
}
