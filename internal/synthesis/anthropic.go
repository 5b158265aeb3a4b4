package synthesis

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"courseforge/internal/course"
	"courseforge/internal/metadata"
	"courseforge/internal/services"
	"courseforge/internal/transcript"
)

// The Anthropic provider is the short-leash second choice: it gets a tight
// timeout so a stall here cannot eat the run deadline.
const defaultAnthropicTimeout = 15 * time.Second

// AnthropicClient issues requests against the Anthropic messages API.
type AnthropicClient struct {
	apiKey     string
	baseURL    string
	model      string
	version    string
	httpClient *http.Client
}

// NewAnthropicClient constructs an Anthropic client.
func NewAnthropicClient(apiKey, baseURL, model, version string, timeoutSeconds int, httpClient *http.Client) *AnthropicClient {
	timeout := defaultAnthropicTimeout
	if timeoutSeconds > 0 {
		timeout = time.Duration(timeoutSeconds) * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "https://api.anthropic.com"
	}
	if strings.TrimSpace(version) == "" {
		version = "2023-06-01"
	}
	return &AnthropicClient{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		model:      strings.TrimSpace(model),
		version:    strings.TrimSpace(version),
		httpClient: httpClient,
	}
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// GenerateDraft produces a course draft for one video.
func (c *AnthropicClient) GenerateDraft(ctx context.Context, video metadata.Video, tr transcript.Transcript) (course.Draft, error) {
	var empty course.Draft
	if c.apiKey == "" {
		return empty, services.Wrap(services.ErrConfiguration, "synthesis", "anthropic", "api key not configured", nil)
	}

	payload := anthropicRequest{
		Model:     c.model,
		MaxTokens: 4096,
		System:    systemPrompt,
		Messages: []anthropicMessage{
			{Role: "user", Content: buildUserPrompt(video, tr)},
		},
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return empty, services.Wrap(services.ErrExternalTool, "synthesis", "anthropic", "encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(encoded))
	if err != nil {
		return empty, services.Wrap(services.ErrExternalTool, "synthesis", "anthropic", "build request", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", c.version)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return empty, services.Wrap(services.ErrExternalTool, "synthesis", "anthropic", "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return empty, services.Wrap(services.ErrExternalTool, "synthesis", "anthropic", "read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return empty, services.Wrap(services.ErrExternalTool, "synthesis", "anthropic", "http "+strconv.Itoa(resp.StatusCode), nil)
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return empty, services.Wrap(services.ErrExternalTool, "synthesis", "anthropic", "decode response", err)
	}
	if parsed.Error != nil {
		return empty, services.Wrap(services.ErrExternalTool, "synthesis", "anthropic", "api error: "+parsed.Error.Message, nil)
	}

	content := ""
	for _, block := range parsed.Content {
		if block.Type == "text" && strings.TrimSpace(block.Text) != "" {
			content = strings.TrimSpace(block.Text)
			break
		}
	}
	if content == "" {
		return empty, services.Wrap(services.ErrExternalTool, "synthesis", "anthropic", "empty completion", nil)
	}

	draft, err := decodeDraft(content)
	if err != nil {
		return empty, services.Wrap(services.ErrExternalTool, "synthesis", "anthropic", "parse draft", err)
	}
	return draft, nil
}
