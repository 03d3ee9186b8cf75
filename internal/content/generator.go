package content

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/christophergentle/aithreads-bsky/internal/analyzer"
	"github.com/christophergentle/aithreads-bsky/internal/config"
	"github.com/christophergentle/aithreads-bsky/internal/formatter"
	"github.com/christophergentle/aithreads-bsky/internal/retry"
)

// TextModel turns a prompt into raw text.
type TextModel interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Batch is one generation cycle's ordered segments.
type Batch struct {
	Topic    string
	Segments []string
	// Fallback is set when the canned content was used.
	Fallback bool
	// Tone is the thread's overall sentiment; empty without a tone scorer.
	Tone analyzer.Tone
}

// GenerationError is returned for a single failed generation attempt.
type GenerationError struct {
	Topic string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("failed to generate content about %q: %v", e.Topic, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// ErrNoValidPosts is the cause when the model answered but nothing survived filtering.
var ErrNoValidPosts = errors.New("no valid posts generated")

type Generator struct {
	model  TextModel
	topics []string
	rnd    *rand.Rand
	policy retry.Policy
	maxLen int
	tone   *analyzer.SentimentAnalyzer
}

type Option func(*Generator)

// WithTopics replaces the topic list.
func WithTopics(topics []string) Option {
	return func(g *Generator) {
		if len(topics) > 0 {
			g.topics = topics
		}
	}
}

// WithRand makes topic selection deterministic.
func WithRand(r *rand.Rand) Option {
	return func(g *Generator) { g.rnd = r }
}

func WithRetryPolicy(p retry.Policy) Option {
	return func(g *Generator) { g.policy = p }
}

func WithMaxLength(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxLen = n
		}
	}
}

// WithToneScorer logs a sentiment reading for every accepted segment.
func WithToneScorer(a *analyzer.SentimentAnalyzer) Option {
	return func(g *Generator) { g.tone = a }
}

func New(model TextModel, opts ...Option) *Generator {
	g := &Generator{
		model:  model,
		topics: config.DefaultTopics,
		policy: retry.Default,
		maxLen: 280,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Topics returns the configured topic list.
func (g *Generator) Topics() []string {
	return g.topics
}

func (g *Generator) pickTopic() string {
	if g.rnd != nil {
		return g.topics[g.rnd.IntN(len(g.topics))]
	}
	return g.topics[rand.IntN(len(g.topics))]
}

// Generate always returns a non-empty batch. Failed attempts are retried per
// the policy and the canned fallback is used once they run out.
func (g *Generator) Generate(ctx context.Context) Batch {
	return retry.WithFallback(ctx, g.policy, "generate content", g.attempt, func() Batch {
		topic := g.pickTopic()
		segments := Fallback(topic)
		return Batch{Topic: topic, Segments: segments, Fallback: true, Tone: g.scoreTone(segments)}
	})
}

func (g *Generator) scoreTone(segments []string) analyzer.Tone {
	if g.tone == nil {
		return analyzer.Tone{}
	}
	return g.tone.ScoreAll(segments)
}

func (g *Generator) attempt(ctx context.Context) (Batch, error) {
	topic := g.pickTopic()
	log.Info().Str("topic", topic).Msg("Generating content")

	raw, err := g.model.Generate(ctx, BuildPrompt(topic, g.maxLen))
	if err != nil {
		return Batch{}, &GenerationError{Topic: topic, Err: err}
	}

	segments := formatter.SplitSegments(raw, g.maxLen)
	if len(segments) == 0 {
		return Batch{}, &GenerationError{Topic: topic, Err: ErrNoValidPosts}
	}

	tone := g.scoreTone(segments)
	if g.tone != nil {
		for i, s := range segments {
			t := g.tone.Score(s)
			log.Debug().
				Int("part", i+1).
				Str("tone", t.Label).
				Float64("compound", t.Compound).
				Msg("Segment tone")
		}
	}

	log.Info().
		Str("topic", topic).
		Int("segments", len(segments)).
		Str("tone", tone.Label).
		Msg("Content generated")
	return Batch{Topic: topic, Segments: segments, Tone: tone}, nil
}

// BuildPrompt is the instruction sent to the model for one topic.
func BuildPrompt(topic string, maxLen int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create an engaging and informative thread about %s.\n", topic)
	b.WriteString("Requirements:\n")
	b.WriteString("- Focus on recent developments and interesting facts\n")
	b.WriteString("- Create 3-4 separate posts, separated by a blank line\n")
	fmt.Fprintf(&b, "- Each post should be under %d characters\n", maxLen)
	b.WriteString("- Use emojis appropriately\n")
	b.WriteString("- Include relevant hashtags in each post\n")
	b.WriteString("- Make content engaging and educational\n")
	b.WriteString("- Ensure posts flow naturally from one to another\n")
	b.WriteString("- Include the latest developments")
	return b.String()
}

// Fallback is the canned three-part thread used when generation keeps failing.
func Fallback(topic string) []string {
	return []string{
		fmt.Sprintf("🤖 Exploring the fascinating world of %s! The latest developments are revolutionizing how we approach technology. #AI #Innovation", topic),
		"💡 From improved accuracy to enhanced efficiency, these advancements are reshaping industries worldwide. #Technology #Future",
		"🔮 Stay tuned as we continue to witness groundbreaking developments in this exciting field! #TechTrends #AIFuture",
	}
}
