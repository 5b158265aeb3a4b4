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

const defaultOpenRouterTimeout = 60 * time.Second

// OpenRouterClient issues JSON-only chat completions against the OpenRouter
// API.
type OpenRouterClient struct {
	apiKey     string
	endpoint   string
	model      string
	referer    string
	title      string
	httpClient *http.Client
}

// NewOpenRouterClient constructs an OpenRouter client.
func NewOpenRouterClient(apiKey, endpoint, model, referer, title string, timeoutSeconds int, httpClient *http.Client) *OpenRouterClient {
	timeout := defaultOpenRouterTimeout
	if timeoutSeconds > 0 {
		timeout = time.Duration(timeoutSeconds) * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	if strings.TrimSpace(endpoint) == "" {
		endpoint = "https://openrouter.ai/api/v1/chat/completions"
	}
	return &OpenRouterClient{
		apiKey:     strings.TrimSpace(apiKey),
		endpoint:   strings.TrimSpace(endpoint),
		model:      strings.TrimSpace(model),
		referer:    strings.TrimSpace(referer),
		title:      strings.TrimSpace(title),
		httpClient: httpClient,
	}
}

type chatCompletionRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Text string `json:"text"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// GenerateDraft produces a course draft for one video.
func (c *OpenRouterClient) GenerateDraft(ctx context.Context, video metadata.Video, tr transcript.Transcript) (course.Draft, error) {
	var empty course.Draft
	if c.apiKey == "" {
		return empty, services.Wrap(services.ErrConfiguration, "synthesis", "openrouter", "api key not configured", nil)
	}

	payload := chatCompletionRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildUserPrompt(video, tr)},
		},
		Temperature:    0,
		ResponseFormat: map[string]string{"type": "json_object"},
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return empty, services.Wrap(services.ErrExternalTool, "synthesis", "openrouter", "encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(encoded))
	if err != nil {
		return empty, services.Wrap(services.ErrExternalTool, "synthesis", "openrouter", "build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if c.referer != "" {
		req.Header.Set("HTTP-Referer", c.referer)
	}
	if c.title != "" {
		req.Header.Set("X-Title", c.title)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return empty, services.Wrap(services.ErrExternalTool, "synthesis", "openrouter", "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return empty, services.Wrap(services.ErrExternalTool, "synthesis", "openrouter", "read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return empty, services.Wrap(services.ErrExternalTool, "synthesis", "openrouter", "http "+strconv.Itoa(resp.StatusCode), nil)
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return empty, services.Wrap(services.ErrExternalTool, "synthesis", "openrouter", "decode response", err)
	}
	if completion.Error != nil {
		return empty, services.Wrap(services.ErrExternalTool, "synthesis", "openrouter", "api error: "+completion.Error.Message, nil)
	}

	content := ""
	for _, choice := range completion.Choices {
		if content = strings.TrimSpace(choice.Message.Content); content != "" {
			break
		}
		if content = strings.TrimSpace(choice.Text); content != "" {
			break
		}
	}
	if content == "" {
		return empty, services.Wrap(services.ErrExternalTool, "synthesis", "openrouter", "empty completion", nil)
	}

	draft, err := decodeDraft(content)
	if err != nil {
		return empty, services.Wrap(services.ErrExternalTool, "synthesis", "openrouter", "parse draft", err)
	}
	return draft, nil
}
