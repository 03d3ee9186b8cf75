package main

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"

	"github.com/christophergentle/aithreads-bsky/internal/bot"
	"github.com/christophergentle/aithreads-bsky/internal/config"
)

// Event represents the EventBridge event structure
type Event struct {
	Source string `json:"source"`
	Time   string `json:"time"`
}

// Response represents the Lambda response
type Response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

// ThreadRunner is the part of the bot the handler needs.
type ThreadRunner interface {
	RunThread(ctx context.Context) (*bot.RunResult, error)
}

// Handler runs one thread per invocation.
type Handler struct {
	load  func(ctx context.Context) (*config.Config, error)
	build func(ctx context.Context, cfg *config.Config) (ThreadRunner, error)
}

func newHandler() *Handler {
	return &Handler{
		load: func(ctx context.Context) (*config.Config, error) {
			loader, err := config.NewSSMConfigLoader(ctx)
			if err != nil {
				return nil, err
			}
			return loader.LoadConfig(ctx)
		},
		build: func(ctx context.Context, cfg *config.Config) (ThreadRunner, error) {
			return bot.New(ctx, cfg)
		},
	}
}

// HandleRequest is the main Lambda handler
func (h *Handler) HandleRequest(ctx context.Context, event Event) (Response, error) {
	log.Info().Str("source", event.Source).Str("time", event.Time).Msg("Received event")

	cfg, err := h.load(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return Response{
			StatusCode: 500,
			Body:       "Failed to load configuration from SSM",
		}, nil
	}

	runner, err := h.build(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize bot")
		return Response{
			StatusCode: 500,
			Body:       "Failed to initialize bot: " + err.Error(),
		}, nil
	}

	result, err := runner.RunThread(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Thread run failed")
		return Response{
			StatusCode: 500,
			Body:       "Thread run failed: " + err.Error(),
		}, nil
	}

	body, err := json.Marshal(result)
	if err != nil {
		body = []byte("Thread published successfully")
	}

	log.Info().Str("topic", result.Topic).Int("posts", result.PostsPublished).Msg("Thread completed successfully")
	return Response{
		StatusCode: 200,
		Body:       string(body),
	}, nil
}

func main() {
	lambda.Start(newHandler().HandleRequest)
}
