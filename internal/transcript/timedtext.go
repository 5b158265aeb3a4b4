package transcript

import (
	"context"
	"encoding/xml"
	"html"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"courseforge/internal/services"
)

const defaultTimedTextTimeout = 10 * time.Second

// TimedTextClient reads the legacy timedtext caption endpoint. Free, keyless,
// and only present for videos with community or creator captions.
type TimedTextClient struct {
	endpoint   string
	httpClient *http.Client
}

// NewTimedTextClient constructs a timedtext client.
func NewTimedTextClient(endpoint string, timeoutSeconds int, httpClient *http.Client) *TimedTextClient {
	timeout := defaultTimedTextTimeout
	if timeoutSeconds > 0 {
		timeout = time.Duration(timeoutSeconds) * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	if strings.TrimSpace(endpoint) == "" {
		endpoint = "https://video.google.com/timedtext"
	}
	return &TimedTextClient{endpoint: strings.TrimSpace(endpoint), httpClient: httpClient}
}

type timedTextDocument struct {
	Lines []struct {
		Start string `xml:"start,attr"`
		Dur   string `xml:"dur,attr"`
		Text  string `xml:",chardata"`
	} `xml:"text"`
}

// Fetch retrieves English captions for a video id.
func (c *TimedTextClient) Fetch(ctx context.Context, videoID string) (Transcript, error) {
	var empty Transcript
	endpoint := c.endpoint + "?" + url.Values{
		"lang": []string{"en"},
		"v":    []string{videoID},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return empty, services.Wrap(services.ErrExternalTool, "transcript", "timedtext", "build request", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return empty, services.Wrap(services.ErrExternalTool, "transcript", "timedtext", "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return empty, services.Wrap(services.ErrExternalTool, "transcript", "timedtext", "read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return empty, services.Wrap(services.ErrExternalTool, "transcript", "timedtext", "http "+strconv.Itoa(resp.StatusCode), nil)
	}
	// The endpoint answers 200 with an empty body when no captions exist.
	if len(strings.TrimSpace(string(body))) == 0 {
		return empty, services.Wrap(services.ErrNotFound, "transcript", "timedtext", "no captions for video", nil)
	}

	var doc timedTextDocument
	if err := xml.Unmarshal(body, &doc); err != nil {
		return empty, services.Wrap(services.ErrExternalTool, "transcript", "timedtext", "decode captions", err)
	}

	var segments []Segment
	for _, line := range doc.Lines {
		seg := Segment{Text: strings.TrimSpace(html.UnescapeString(line.Text))}
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
	if len(segments) == 0 {
		return empty, services.Wrap(services.ErrNotFound, "transcript", "timedtext", "captions document is empty", nil)
	}

	return Transcript{
		VideoID:  videoID,
		Text:     joinSegments(segments),
		Segments: segments,
		Source:   "timedtext",
	}, nil
}
