// Package notifications pushes run outcomes to ntfy when a topic is
// configured.
package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"courseforge/internal/config"
)

const userAgent = "Courseforge/0.1.0"

// Service defines the notification surface exposed to the run coordinator.
type Service interface {
	NotifyRunCompleted(ctx context.Context, videoTitle, grade string) error
	NotifyRunDegraded(ctx context.Context, videoTitle, grade string, fallbacks int) error
	NotifyRunFailed(ctx context.Context, videoTitle string, err error) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg config.Notifications) Service {
	topic := strings.TrimSpace(cfg.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:         topic,
		client:           &http.Client{Timeout: timeout},
		notifyCompletion: cfg.Completion,
		notifyErrors:     cfg.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint         string
	client           *http.Client
	notifyCompletion bool
	notifyErrors     bool
}

func (n *ntfyService) NotifyRunCompleted(ctx context.Context, videoTitle, grade string) error {
	if !n.notifyCompletion {
		return nil
	}
	data := payload{
		title:   "Courseforge - Course Ready",
		message: fmt.Sprintf("Course generated for %s (grade %s)", strings.TrimSpace(videoTitle), grade),
		tags:    []string{"courseforge", "run", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRunDegraded(ctx context.Context, videoTitle, grade string, fallbacks int) error {
	if !n.notifyCompletion {
		return nil
	}
	data := payload{
		title:   "Courseforge - Course Ready (degraded)",
		message: fmt.Sprintf("Course generated for %s with %d fallback(s), grade %s", strings.TrimSpace(videoTitle), fallbacks, grade),
		tags:    []string{"courseforge", "run", "degraded"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRunFailed(ctx context.Context, videoTitle string, err error) error {
	if !n.notifyErrors {
		return nil
	}
	detail := "unknown"
	if err != nil {
		detail = strings.TrimSpace(err.Error())
	}
	data := payload{
		title:    "Courseforge - Run Failed",
		message:  fmt.Sprintf("Run failed for %s: %s", strings.TrimSpace(videoTitle), detail),
		tags:     []string{"courseforge", "run", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Courseforge - Test",
		message:  "Notification system test",
		tags:     []string{"courseforge", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyRunCompleted(context.Context, string, string) error      { return nil }
func (noopService) NotifyRunDegraded(context.Context, string, string, int) error  { return nil }
func (noopService) NotifyRunFailed(context.Context, string, error) error          { return nil }
func (noopService) TestNotification(context.Context) error                        { return nil }
