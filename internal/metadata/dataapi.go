package metadata

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

const defaultDataAPITimeout = 10 * time.Second

// DataAPIClient queries the YouTube Data API v3 videos endpoint.
type DataAPIClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewDataAPIClient constructs a Data API client. An empty API key is allowed
// at construction time; Lookup fails with a configuration error instead.
func NewDataAPIClient(apiKey, baseURL string, timeoutSeconds int, httpClient *http.Client) *DataAPIClient {
	timeout := defaultDataAPITimeout
	if timeoutSeconds > 0 {
		timeout = time.Duration(timeoutSeconds) * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "https://www.googleapis.com/youtube/v3"
	}
	return &DataAPIClient{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: httpClient,
	}
}

type dataAPIResponse struct {
	Items []struct {
		Snippet struct {
			Title        string `json:"title"`
			Description  string `json:"description"`
			ChannelTitle string `json:"channelTitle"`
			PublishedAt  string `json:"publishedAt"`
			Thumbnails   struct {
				High struct {
					URL string `json:"url"`
				} `json:"high"`
				Default struct {
					URL string `json:"url"`
				} `json:"default"`
			} `json:"thumbnails"`
		} `json:"snippet"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
		Statistics struct {
			ViewCount string `json:"viewCount"`
		} `json:"statistics"`
	} `json:"items"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Lookup fetches metadata for one video id.
func (c *DataAPIClient) Lookup(ctx context.Context, videoID string) (Video, error) {
	var empty Video
	if c.apiKey == "" {
		return empty, services.Wrap(services.ErrConfiguration, "metadata", "youtube-data-api", "api key not configured", nil)
	}

	endpoint := c.baseURL + "/videos?" + url.Values{
		"part": []string{"snippet,contentDetails,statistics"},
		"id":   []string{videoID},
		"key":  []string{c.apiKey},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return empty, services.Wrap(services.ErrExternalTool, "metadata", "youtube-data-api", "build request", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return empty, services.Wrap(services.ErrExternalTool, "metadata", "youtube-data-api", "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return empty, services.Wrap(services.ErrExternalTool, "metadata", "youtube-data-api", "read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return empty, services.Wrap(services.ErrExternalTool, "metadata", "youtube-data-api", "http "+strconv.Itoa(resp.StatusCode), nil)
	}

	var parsed dataAPIResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return empty, services.Wrap(services.ErrExternalTool, "metadata", "youtube-data-api", "decode response", err)
	}
	if parsed.Error != nil {
		return empty, services.Wrap(services.ErrExternalTool, "metadata", "youtube-data-api", "api error: "+parsed.Error.Message, nil)
	}
	if len(parsed.Items) == 0 {
		return empty, services.Wrap(services.ErrNotFound, "metadata", "youtube-data-api", "video not found", nil)
	}

	item := parsed.Items[0]
	video := Video{
		VideoID:      videoID,
		Title:        strings.TrimSpace(item.Snippet.Title),
		Description:  strings.TrimSpace(item.Snippet.Description),
		ChannelTitle: strings.TrimSpace(item.Snippet.ChannelTitle),
		Duration:     parseISODuration(item.ContentDetails.Duration),
		ThumbnailURL: item.Snippet.Thumbnails.High.URL,
		Source:       "youtube-data-api",
	}
	if video.ThumbnailURL == "" {
		video.ThumbnailURL = item.Snippet.Thumbnails.Default.URL
	}
	if item.Snippet.PublishedAt != "" {
		if ts, err := time.Parse(time.RFC3339, item.Snippet.PublishedAt); err == nil {
			video.PublishedAt = ts
		}
	}
	if item.Statistics.ViewCount != "" {
		if n, err := strconv.ParseInt(item.Statistics.ViewCount, 10, 64); err == nil {
			video.ViewCount = n
		}
	}
	return video, nil
}
