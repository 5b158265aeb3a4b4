// Package course defines the generated course artifact: the draft shape
// produced by synthesis, the assembled artifact with provenance, and the
// quality metrics derived from how each stage sourced its data.
package course

import (
	"strconv"
	"strings"

	"courseforge/internal/services"
)

// Day is one day of the study plan.
type Day struct {
	Number      int      `json:"day"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Topics      []string `json:"topics"`
}

// Draft is the raw multi-day plan produced by a synthesis provider, before
// assembly attaches identity and provenance.
type Draft struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Days        []Day  `json:"days"`
}

// ValidateDraft rejects drafts that cannot be assembled into an artifact.
func ValidateDraft(d Draft) error {
	if strings.TrimSpace(d.Title) == "" {
		return services.Wrap(services.ErrValidation, "synthesis", "validate draft", "draft has no title", nil)
	}
	if len(d.Days) == 0 {
		return services.Wrap(services.ErrValidation, "synthesis", "validate draft", "draft has no days", nil)
	}
	for i, day := range d.Days {
		if strings.TrimSpace(day.Title) == "" {
			return services.Wrap(services.ErrValidation, "synthesis", "validate draft", "day "+strconv.Itoa(i+1)+" has no title", nil)
		}
		if len(day.Topics) == 0 {
			return services.Wrap(services.ErrValidation, "synthesis", "validate draft", "day "+strconv.Itoa(i+1)+" has no topics", nil)
		}
	}
	return nil
}
