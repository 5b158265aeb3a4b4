package transcript

import (
	"bytes"
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

const defaultApifyTimeout = 60 * time.Second

// ApifyClient runs a caption-scraping actor synchronously and reads its
// dataset items.
type ApifyClient struct {
	token      string
	baseURL    string
	actor      string
	httpClient *http.Client
}

// NewApifyClient constructs a client for one Apify actor.
func NewApifyClient(token, baseURL, actor string, timeoutSeconds int, httpClient *http.Client) *ApifyClient {
	timeout := defaultApifyTimeout
	if timeoutSeconds > 0 {
		timeout = time.Duration(timeoutSeconds) * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "https://api.apify.com/v2"
	}
	return &ApifyClient{
		token:      strings.TrimSpace(token),
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		actor:      strings.TrimSpace(actor),
		httpClient: httpClient,
	}
}

type apifyCaptionItem struct {
	Data []struct {
		Text  string `json:"text"`
		Start string `json:"start"`
		Dur   string `json:"dur"`
	} `json:"data"`
}

// Fetch runs the actor against a watch URL and flattens the caption items.
func (c *ApifyClient) Fetch(ctx context.Context, videoID, watchURL string) (Transcript, error) {
	var empty Transcript
	if c.token == "" {
		return empty, services.Wrap(services.ErrConfiguration, "transcript", "apify-captions", "api token not configured", nil)
	}

	endpoint := c.baseURL + "/acts/" + url.PathEscape(c.actor) + "/run-sync-get-dataset-items?" + url.Values{
		"token": []string{c.token},
	}.Encode()
	payload, err := json.Marshal(map[string]string{"videoUrl": watchURL})
	if err != nil {
		return empty, services.Wrap(services.ErrExternalTool, "transcript", "apify-captions", "encode input", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return empty, services.Wrap(services.ErrExternalTool, "transcript", "apify-captions", "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return empty, services.Wrap(services.ErrExternalTool, "transcript", "apify-captions", "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return empty, services.Wrap(services.ErrExternalTool, "transcript", "apify-captions", "read response", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return empty, services.Wrap(services.ErrExternalTool, "transcript", "apify-captions", "http "+strconv.Itoa(resp.StatusCode), nil)
	}

	var items []apifyCaptionItem
	if err := json.Unmarshal(body, &items); err != nil {
		return empty, services.Wrap(services.ErrExternalTool, "transcript", "apify-captions", "decode dataset items", err)
	}

	var segments []Segment
	for _, item := range items {
		for _, line := range item.Data {
			seg := Segment{Text: strings.TrimSpace(line.Text)}
			if v, err := strconv.ParseFloat(line.Start, 64); err == nil {
				seg.Start = v
			}
			if v, err := strconv.ParseFloat(line.Dur, 64); err == nil {
				seg.Dur = v
			}
			if seg.Text != "" {
				segments = append(segments, seg)
			}
		}
	}
	if len(segments) == 0 {
		return empty, services.Wrap(services.ErrExternalTool, "transcript", "apify-captions", "actor returned no captions", nil)
	}

	return Transcript{
		VideoID:  videoID,
		Text:     joinSegments(segments),
		Segments: segments,
		Source:   "apify-captions",
	}, nil
}
