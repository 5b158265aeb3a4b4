package synthesis

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"courseforge/internal/course"
)

// decodeDraft decodes a model response into a draft, tolerating code fences
// and surrounding prose some models emit despite JSON-only instructions.
func decodeDraft(content string) (course.Draft, error) {
	var draft course.Draft
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return draft, errors.New("empty payload")
	}

	directErr := json.Unmarshal([]byte(trimmed), &draft)
	if directErr == nil {
		return draft, nil
	}

	sanitized := sanitizeJSONPayload(trimmed)
	if sanitized == "" || sanitized == trimmed {
		return draft, fmt.Errorf("decode draft: %w", directErr)
	}
	if err := json.Unmarshal([]byte(sanitized), &draft); err != nil {
		return draft, fmt.Errorf("decode sanitized draft: %w", err)
	}
	return draft, nil
}

func sanitizeJSONPayload(content string) string {
	trimmed := strings.TrimSpace(stripCodeFenceBlock(content))
	if trimmed == "" {
		return ""
	}
	if trimmed[0] == '{' || trimmed[0] == '[' {
		return trimmed
	}
	if start := strings.Index(trimmed, "{"); start >= 0 {
		if end := strings.LastIndex(trimmed, "}"); end > start {
			return strings.TrimSpace(trimmed[start : end+1])
		}
	}
	return trimmed
}

func stripCodeFenceBlock(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := trimmed[3:]
	body = strings.TrimLeft(body, " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = body[4:]
		body = strings.TrimLeft(body, " \t\r\n")
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}
