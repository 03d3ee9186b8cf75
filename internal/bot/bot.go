// Package bot assembles the thread bot from a loaded configuration and runs it
// either once or on a schedule.
package bot

import (
	"context"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"github.com/christophergentle/aithreads-bsky/internal/analyzer"
	"github.com/christophergentle/aithreads-bsky/internal/client"
	"github.com/christophergentle/aithreads-bsky/internal/config"
	"github.com/christophergentle/aithreads-bsky/internal/content"
	"github.com/christophergentle/aithreads-bsky/internal/image"
	"github.com/christophergentle/aithreads-bsky/internal/retry"
	"github.com/christophergentle/aithreads-bsky/internal/scheduler"
	"github.com/christophergentle/aithreads-bsky/internal/thread"
)

// RunResult represents the outcome of one thread run
type RunResult struct {
	Topic          string  `json:"topic"`
	PostsPublished int     `json:"posts_published"`
	PostsFailed    int     `json:"posts_failed"`
	ImagesAttached int     `json:"images_attached"`
	Fallback       bool    `json:"fallback"`
	Tone           string  `json:"tone,omitempty"`
	ToneScore      float64 `json:"tone_score"`
	ThreadURL      string  `json:"thread_url,omitempty"`
	Success        bool    `json:"success"`
	ErrorMessage   string  `json:"error_message,omitempty"`
}

// Deps lets callers replace the external collaborators. Nil fields are built
// from the configuration.
type Deps struct {
	Model  content.TextModel
	Poster thread.Poster
	Auth   scheduler.Authenticator
	Images thread.ImageSource
	// NewTimer replaces every retry and pacing timer.
	NewTimer func() backoff.Timer
}

type Bot struct {
	cfg       *config.Config
	auth      scheduler.Authenticator
	publisher *thread.Publisher
	scheduler *scheduler.Scheduler
}

// New builds a bot talking to Gemini and Bluesky. In dry-run mode posts are
// only logged and no login happens.
func New(ctx context.Context, cfg *config.Config) (*Bot, error) {
	model, err := content.NewGeminiModel(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini model: %w", err)
	}

	deps := Deps{Model: model}
	if cfg.Settings.DryRun {
		log.Info().Msg("Dry run mode: posts will be logged, not published")
		deps.Poster = &thread.DryRunPoster{}
	} else {
		bsky := client.New(cfg.Bluesky.Host, cfg.Bluesky.Handle, cfg.Bluesky.Password, cfg.Bluesky.DeviceID)
		deps.Poster = bsky
		deps.Auth = bsky
	}

	return Build(cfg, deps), nil
}

// Build wires the generator, image resolver, publisher and scheduler.
func Build(cfg *config.Config, deps Deps) *Bot {
	s := cfg.Settings
	policy := retry.Policy{Retries: s.Retries(), Delay: s.RetryDelay, NewTimer: deps.NewTimer}

	generator := content.New(deps.Model,
		content.WithTopics(s.Topics),
		content.WithRetryPolicy(policy),
		content.WithMaxLength(s.MaxPostLength),
		content.WithToneScorer(analyzer.New()),
	)

	images := deps.Images
	if images == nil {
		images = image.New(
			image.WithSearchURL(s.ImageSearchURL),
			image.WithFallbackURL(s.FallbackImageURL),
			image.WithTimeout(s.ImageTimeout),
			image.WithMaxRedirects(s.MaxRedirects),
			image.WithRetryPolicy(policy),
		)
	}

	opts := []thread.Option{
		thread.WithInterval(s.PostInterval),
		thread.WithCaption(s.ImageCaption),
	}
	if deps.NewTimer != nil {
		opts = append(opts, thread.WithTimer(deps.NewTimer))
	}
	publisher := thread.New(generator, images, deps.Poster, opts...)

	return &Bot{
		cfg:       cfg,
		auth:      deps.Auth,
		publisher: publisher,
		scheduler: scheduler.New(deps.Auth, publisher, s.Schedule),
	}
}

// RunThread authenticates and publishes exactly one thread.
func (b *Bot) RunThread(ctx context.Context) (*RunResult, error) {
	if b.auth != nil {
		if err := b.auth.Authenticate(ctx); err != nil {
			return &RunResult{
				Success:      false,
				ErrorMessage: "Failed to authenticate with Bluesky: " + err.Error(),
			}, err
		}
		log.Info().Msg("Successfully authenticated with Bluesky")
	}

	result, err := b.publisher.PublishThread(ctx)
	run := summarize(result)
	if err != nil {
		run.Success = false
		run.ErrorMessage = err.Error()
		return run, err
	}
	return run, nil
}

// Start runs the scheduler until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	return b.scheduler.Start(ctx)
}

func summarize(result *thread.Result) *RunResult {
	if result == nil {
		return &RunResult{}
	}
	run := &RunResult{
		Topic:          result.Topic,
		PostsPublished: len(result.Published),
		PostsFailed:    len(result.Failed),
		ImagesAttached: result.ImagesAttached,
		Fallback:       result.Fallback,
		Tone:           result.Tone.Label,
		ToneScore:      result.Tone.Compound,
		Success:        true,
	}
	if len(result.Published) > 0 {
		run.ThreadURL = client.WebURL(result.Published[0].URI)
	}
	return run
}
