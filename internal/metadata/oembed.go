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

const defaultOEmbedTimeout = 8 * time.Second

// OEmbedClient queries YouTube's public oEmbed endpoint. It needs no API key
// and returns title, channel, and thumbnail, but no description.
type OEmbedClient struct {
	endpoint   string
	httpClient *http.Client
}

// NewOEmbedClient constructs an oEmbed client.
func NewOEmbedClient(endpoint string, timeoutSeconds int, httpClient *http.Client) *OEmbedClient {
	timeout := defaultOEmbedTimeout
	if timeoutSeconds > 0 {
		timeout = time.Duration(timeoutSeconds) * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	if strings.TrimSpace(endpoint) == "" {
		endpoint = "https://www.youtube.com/oembed"
	}
	return &OEmbedClient{endpoint: strings.TrimSpace(endpoint), httpClient: httpClient}
}

// Lookup fetches metadata for a watch URL.
func (c *OEmbedClient) Lookup(ctx context.Context, videoID, watchURL string) (Video, error) {
	var empty Video
	endpoint := c.endpoint + "?" + url.Values{
		"url":    []string{watchURL},
		"format": []string{"json"},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return empty, services.Wrap(services.ErrExternalTool, "metadata", "youtube-oembed", "build request", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return empty, services.Wrap(services.ErrExternalTool, "metadata", "youtube-oembed", "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return empty, services.Wrap(services.ErrExternalTool, "metadata", "youtube-oembed", "read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return empty, services.Wrap(services.ErrExternalTool, "metadata", "youtube-oembed", "http "+strconv.Itoa(resp.StatusCode), nil)
	}

	var parsed struct {
		Title        string `json:"title"`
		AuthorName   string `json:"author_name"`
		ThumbnailURL string `json:"thumbnail_url"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return empty, services.Wrap(services.ErrExternalTool, "metadata", "youtube-oembed", "decode response", err)
	}

	return Video{
		VideoID:      videoID,
		Title:        strings.TrimSpace(parsed.Title),
		ChannelTitle: strings.TrimSpace(parsed.AuthorName),
		ThumbnailURL: parsed.ThumbnailURL,
		Source:       "youtube-oembed",
	}, nil
}
