package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/christophergentle/aithreads-bsky/internal/bot"
	"github.com/christophergentle/aithreads-bsky/internal/config"
)

const version = "0.1.0"

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	app := &cli.App{
		Name:    "aithreads",
		Usage:   "Post AI-generated threads about AI and technology to Bluesky",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
				Value:   config.GetConfigPath(),
			},
			&cli.BoolFlag{
				Name:  "once",
				Usage: "Publish a single thread and exit",
			},
			&cli.BoolFlag{
				Name:    "dry-run",
				Usage:   "Log posts instead of publishing them",
				EnvVars: []string{"DRY_RUN"},
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		var cfgErr *config.ConfigError
		if errors.As(err, &cfgErr) {
			log.Error().Strs("missing", cfgErr.Missing).Msg(cfgErr.Message)
		} else {
			log.Error().Err(err).Msg("Bot exited with error")
		}
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if c.Bool("debug") {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if c.Bool("dry-run") {
		cfg.Settings.DryRun = true
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := bot.New(ctx, cfg)
	if err != nil {
		return err
	}

	if c.Bool("once") {
		result, err := b.RunThread(ctx)
		if err != nil {
			return fmt.Errorf("thread run failed: %w", err)
		}
		log.Info().
			Str("topic", result.Topic).
			Int("posts", result.PostsPublished).
			Str("thread", result.ThreadURL).
			Msg("Thread published")
		return nil
	}

	log.Info().Str("schedule", cfg.Settings.Schedule).Msg("Starting AI thread bot")
	return b.Start(ctx)
}

