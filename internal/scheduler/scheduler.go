package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pocketbase/pocketbase/tools/cron"
	"github.com/rs/zerolog/log"

	"github.com/christophergentle/aithreads-bsky/internal/thread"
)

const jobID = "post-thread"

// DefaultSchedule posts every six hours on the hour.
const DefaultSchedule = "0 */6 * * *"

// Authenticator logs the posting client in before the first run.
type Authenticator interface {
	Authenticate(ctx context.Context) error
}

// ThreadPublisher runs one complete thread.
type ThreadPublisher interface {
	PublishThread(ctx context.Context) (*thread.Result, error)
}

type Scheduler struct {
	auth      Authenticator
	publisher ThreadPublisher
	schedule  string
	running   atomic.Bool
	runs      atomic.Int64
}

// New builds a scheduler. A nil auth skips authentication, as in dry runs.
func New(auth Authenticator, publisher ThreadPublisher, schedule string) *Scheduler {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	return &Scheduler{
		auth:      auth,
		publisher: publisher,
		schedule:  schedule,
	}
}

// Start authenticates, posts once right away and then on every cron tick
// until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.auth != nil {
		if err := s.auth.Authenticate(ctx); err != nil {
			return err
		}
		log.Info().Msg("Successfully authenticated with Bluesky")
	}

	c := cron.New()
	c.SetTimezone(time.UTC)
	if err := c.Add(jobID, s.schedule, func() { s.runOnce(ctx, "scheduled") }); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", s.schedule, err)
	}

	// Run immediately on startup
	go s.runOnce(ctx, "startup")

	c.Start()
	defer c.Stop()

	if next, err := NextRun(s.schedule, time.Now()); err == nil {
		log.Info().Str("schedule", s.schedule).Time("next", next).Msg("Bot started, next post scheduled")
	}

	<-ctx.Done()
	log.Info().Msg("Scheduler stopping")
	return nil
}

// runOnce never propagates errors. A trigger that arrives while a previous
// run is still going is dropped.
func (s *Scheduler) runOnce(ctx context.Context, trigger string) bool {
	if ctx.Err() != nil {
		return false
	}
	if !s.running.CompareAndSwap(false, true) {
		log.Warn().Str("trigger", trigger).Msg("Previous thread still in progress, skipping run")
		return false
	}
	defer s.running.Store(false)

	n := s.runs.Add(1)
	log.Info().Str("trigger", trigger).Int64("run", n).Msg("Starting thread run")

	result, err := s.publisher.PublishThread(ctx)
	if err != nil {
		if errors.Is(err, thread.ErrThreadCreate) {
			log.Error().Err(err).Str("trigger", trigger).Msg("Could not start thread")
		} else {
			log.Error().Err(err).Str("trigger", trigger).Msg("Error in thread run")
		}
		return true
	}

	log.Info().
		Str("trigger", trigger).
		Str("topic", result.Topic).
		Int("published", len(result.Published)).
		Msg("Thread run finished")

	if next, err := NextRun(s.schedule, time.Now()); err == nil {
		log.Info().Time("next", next).Msg("Next post scheduled")
	}
	return true
}

// NextRun returns the first minute strictly after from at which expr fires, in UTC.
func NextRun(expr string, from time.Time) (time.Time, error) {
	schedule, err := cron.NewSchedule(expr)
	if err != nil {
		return time.Time{}, err
	}

	t := from.UTC().Truncate(time.Minute).Add(time.Minute)
	// A year of minutes covers every valid five-field expression.
	for limit := t.AddDate(1, 0, 1); t.Before(limit); t = t.Add(time.Minute) {
		if schedule.IsDue(cron.NewMoment(t)) {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("schedule %q never fires", expr)
}
