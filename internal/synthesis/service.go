package synthesis

import (
	"context"
	"time"

	"courseforge/internal/config"
	"courseforge/internal/course"
	"courseforge/internal/metadata"
	"courseforge/internal/pipeline"
	"courseforge/internal/transcript"
)

// StageName is the pipeline stage this package serves.
const StageName = "synthesis"

// Service bundles the model providers behind a single chain builder.
type Service struct {
	openrouter *OpenRouterClient
	anthropic  *AnthropicClient

	openrouterTimeout time.Duration
	anthropicTimeout  time.Duration
}

// NewService wires the providers from configuration.
func NewService(orCfg config.OpenRouter, anCfg config.Anthropic) *Service {
	orTimeout := defaultOpenRouterTimeout
	if orCfg.TimeoutSeconds > 0 {
		orTimeout = time.Duration(orCfg.TimeoutSeconds) * time.Second
	}
	anTimeout := defaultAnthropicTimeout
	if anCfg.TimeoutSeconds > 0 {
		anTimeout = time.Duration(anCfg.TimeoutSeconds) * time.Second
	}
	return &Service{
		openrouter:        NewOpenRouterClient(orCfg.APIKey, orCfg.BaseURL, orCfg.Model, orCfg.Referer, orCfg.Title, orCfg.TimeoutSeconds, nil),
		anthropic:         NewAnthropicClient(anCfg.APIKey, anCfg.BaseURL, anCfg.Model, anCfg.Version, anCfg.TimeoutSeconds, nil),
		openrouterTimeout: orTimeout,
		anthropicTimeout:  anTimeout,
	}
}

// Chain builds the provider chain for one video. The outline generator is the
// terminal fallback, so synthesis always yields a plan once metadata and a
// transcript exist.
func (s *Service) Chain(video metadata.Video, tr transcript.Transcript) pipeline.Chain[course.Draft] {
	return pipeline.Chain[course.Draft]{
		Stage: StageName,
		Providers: []pipeline.Provider[course.Draft]{
			{
				Name:    "openrouter",
				Timeout: s.openrouterTimeout,
				Run: func(ctx context.Context) (course.Draft, error) {
					return s.openrouter.GenerateDraft(ctx, video, tr)
				},
			},
			{
				Name:    "anthropic",
				Timeout: s.anthropicTimeout,
				Run: func(ctx context.Context) (course.Draft, error) {
					return s.anthropic.GenerateDraft(ctx, video, tr)
				},
			},
		},
		Validate:     course.ValidateDraft,
		FallbackName: FallbackName,
		Fallback: func(context.Context) (course.Draft, error) {
			return GenerateOutline(video, tr)
		},
	}
}
