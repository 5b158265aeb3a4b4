package metadata

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"courseforge/internal/services"
)

const (
	defaultScraperTimeout = 10 * time.Second
	scraperUserAgent      = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36"
	scraperBodyLimit      = 4 << 20
)

// Scraper extracts metadata from the watch page's OpenGraph tags. It is the
// last resort when both the Data API and oEmbed are unavailable.
type Scraper struct {
	httpClient *http.Client
}

// NewScraper constructs a watch-page scraper.
func NewScraper(timeoutSeconds int, httpClient *http.Client) *Scraper {
	timeout := defaultScraperTimeout
	if timeoutSeconds > 0 {
		timeout = time.Duration(timeoutSeconds) * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Scraper{httpClient: httpClient}
}

// Lookup fetches and parses the watch page.
func (s *Scraper) Lookup(ctx context.Context, videoID, watchURL string) (Video, error) {
	var empty Video
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, watchURL, nil)
	if err != nil {
		return empty, services.Wrap(services.ErrExternalTool, "metadata", "watch-page-scraper", "build request", err)
	}
	req.Header.Set("User-Agent", scraperUserAgent)
	req.Header.Set("Accept-Language", "en")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return empty, services.Wrap(services.ErrExternalTool, "metadata", "watch-page-scraper", "request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return empty, services.Wrap(services.ErrExternalTool, "metadata", "watch-page-scraper", "http "+strconv.Itoa(resp.StatusCode), nil)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, scraperBodyLimit))
	if err != nil {
		return empty, services.Wrap(services.ErrExternalTool, "metadata", "watch-page-scraper", "parse page", err)
	}

	video := Video{VideoID: videoID, Source: "watch-page-scraper"}
	var pageTitle string
	walk(doc, func(n *html.Node) {
		if n.Type != html.ElementNode {
			return
		}
		switch n.Data {
		case "meta":
			name := attr(n, "property")
			if name == "" {
				name = attr(n, "name")
			}
			content := strings.TrimSpace(attr(n, "content"))
			if content == "" {
				return
			}
			switch name {
			case "og:title":
				video.Title = content
			case "og:description", "description":
				if video.Description == "" {
					video.Description = content
				}
			case "og:image":
				video.ThumbnailURL = content
			}
		case "title":
			if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				pageTitle = strings.TrimSpace(n.FirstChild.Data)
			}
		}
	})

	if video.Title == "" && pageTitle != "" {
		video.Title = strings.TrimSuffix(pageTitle, " - YouTube")
	}
	if video.Title == "" {
		return empty, services.Wrap(services.ErrExternalTool, "metadata", "watch-page-scraper", "page has no usable title", nil)
	}
	return video, nil
}

func walk(n *html.Node, visit func(*html.Node)) {
	visit(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
