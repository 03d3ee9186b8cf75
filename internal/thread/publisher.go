// Package thread turns a generated batch into a chain of linked posts.
package thread

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"github.com/christophergentle/aithreads-bsky/internal/analyzer"
	"github.com/christophergentle/aithreads-bsky/internal/client"
	"github.com/christophergentle/aithreads-bsky/internal/content"
	"github.com/christophergentle/aithreads-bsky/internal/formatter"
	"github.com/christophergentle/aithreads-bsky/internal/retry"
)

// ErrThreadCreate is returned when the first post of a thread cannot be published.
var ErrThreadCreate = errors.New("failed to create thread")

// Poster publishes a single post.
type Poster interface {
	Publish(ctx context.Context, req client.PostRequest) (*client.PostRef, error)
}

// ContentSource produces the batch to publish. It must never return an empty batch.
type ContentSource interface {
	Generate(ctx context.Context) content.Batch
}

// ImageSource finds and downloads an illustration for a segment.
type ImageSource interface {
	Resolve(ctx context.Context, hint string) string
	Fetch(ctx context.Context, imageURL string) ([]byte, error)
}

// SegmentFailure records a tolerated failure for one part of the thread.
type SegmentFailure struct {
	Index int
	Err   error
}

// Result summarises one publishing run.
type Result struct {
	Topic          string
	Fallback       bool
	Segments       int
	Tone           analyzer.Tone
	Published      []*client.PostRef
	Failed         []SegmentFailure
	ImagesAttached int
	ImageFailures  []SegmentFailure
}

type Publisher struct {
	content  ContentSource
	images   ImageSource
	poster   Poster
	interval time.Duration
	caption  string
	hintLen  int
	pacing   retry.Policy
}

type Option func(*Publisher)

// WithInterval sets the pause between consecutive segments.
func WithInterval(d time.Duration) Option {
	return func(p *Publisher) { p.interval = d }
}

// WithCaption sets the text of the image reply.
func WithCaption(c string) Option {
	return func(p *Publisher) {
		if c != "" {
			p.caption = c
		}
	}
}

// WithTimer replaces the timer used for pacing, mostly for tests.
func WithTimer(newTimer func() backoff.Timer) Option {
	return func(p *Publisher) { p.pacing.NewTimer = newTimer }
}

// New builds a publisher. A nil images source disables image replies.
func New(src ContentSource, images ImageSource, poster Poster, opts ...Option) *Publisher {
	p := &Publisher{
		content:  src,
		images:   images,
		poster:   poster,
		interval: 3 * time.Second,
		caption:  "🖼️",
		hintLen:  50,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PublishThread generates a batch and publishes it as a reply chain. Only a
// failure of the first post is returned as an error; later failures are
// logged and reported in the result.
func (p *Publisher) PublishThread(ctx context.Context) (*Result, error) {
	log.Info().Msg("Starting new thread posting process")

	batch := p.content.Generate(ctx)
	result := &Result{
		Topic:    batch.Topic,
		Fallback: batch.Fallback,
		Segments: len(batch.Segments),
		Tone:     batch.Tone,
	}

	var previous *client.PostRef
	for i, text := range batch.Segments {
		part := i + 1
		log.Info().
			Int("part", part).
			Int("of", len(batch.Segments)).
			Str("preview", formatter.Preview(text, p.hintLen)).
			Msg("Posting segment")

		ref, err := p.poster.Publish(ctx, client.PostRequest{Text: text, ReplyTo: previous})
		if err != nil {
			log.Error().Err(err).Int("part", part).Msg("Error posting segment")
			if i == 0 {
				return result, fmt.Errorf("%w: %w", ErrThreadCreate, err)
			}
			// The chain continues from the last post that made it.
			result.Failed = append(result.Failed, SegmentFailure{Index: i, Err: err})
		} else {
			previous = ref
			result.Published = append(result.Published, ref)
			log.Info().Int("part", part).Str("uri", ref.URI).Msg("Successfully posted text")

			if err := p.attachImage(ctx, text, ref); err != nil {
				log.Warn().Err(err).Int("part", part).Msg("Failed to add image, continuing without it")
				result.ImageFailures = append(result.ImageFailures, SegmentFailure{Index: i, Err: err})
			} else if p.images != nil {
				result.ImagesAttached++
				log.Info().Int("part", part).Msg("Successfully added image")
			}
		}

		if i < len(batch.Segments)-1 {
			log.Debug().Dur("wait", p.interval).Msg("Waiting before next post")
			if err := p.pacing.Sleep(ctx, p.interval); err != nil {
				return result, fmt.Errorf("thread interrupted after part %d: %w", part, err)
			}
		}
	}

	evt := log.Info().
		Str("topic", result.Topic).
		Int("published", len(result.Published)).
		Int("failed", len(result.Failed)).
		Int("images", result.ImagesAttached).
		Str("tone", result.Tone.Label)
	if len(result.Published) > 0 {
		evt = evt.Str("thread", client.WebURL(result.Published[0].URI))
	}
	evt.Msg("Thread posting completed")

	return result, nil
}

// attachImage posts an illustration as a reply to ref. It is best-effort: the
// caller only logs the returned error.
func (p *Publisher) attachImage(ctx context.Context, text string, ref *client.PostRef) error {
	if p.images == nil {
		return nil
	}

	imageURL := p.images.Resolve(ctx, formatter.Preview(text, p.hintLen))
	if imageURL == "" {
		return errors.New("no image URL resolved")
	}
	log.Debug().Str("url", imageURL).Msg("Image URL obtained")

	data, err := p.images.Fetch(ctx, imageURL)
	if err != nil {
		return fmt.Errorf("failed to fetch image: %w", err)
	}

	_, err = p.poster.Publish(ctx, client.PostRequest{
		Text:     p.caption,
		ReplyTo:  ref,
		Image:    data,
		ImageAlt: formatter.Preview(text, p.hintLen),
	})
	if err != nil {
		return fmt.Errorf("failed to post image reply: %w", err)
	}
	return nil
}
