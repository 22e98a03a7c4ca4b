// Package scheduler drives polling: a fixed-tick round-robin over all
// tracked (collection, kind) tasks, gated by a shared backoff
// controller so the whole process respects one upstream rate budget.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"metracker/internal/magiceden"
	"metracker/internal/tracks"
)

// Runner executes the ingestion pipeline for one task. Returning an
// error wrapping magiceden.ErrRateLimited triggers global backoff.
type Runner func(ctx context.Context, task tracks.Track) error

// TaskSource yields the current task list. It is consulted fresh on
// every tick so operator edits take effect immediately.
type TaskSource interface {
	Tasks() ([]tracks.Track, error)
}

// ThrottleFunc is notified when a throttle signal escalates backoff.
type ThrottleFunc func(pausedUntil time.Time, interval time.Duration)

// Scheduler selects exactly one task per tick in rotating order and
// runs it to completion before the next tick is considered.
type Scheduler struct {
	backoff    *Backoff
	source     TaskSource
	run        Runner
	onThrottle ThrottleFunc

	// now is swappable so tests can drive time by hand.
	now func() time.Time

	idx int
}

// New creates a scheduler. onThrottle may be nil.
func New(backoff *Backoff, source TaskSource, run Runner, onThrottle ThrottleFunc) *Scheduler {
	return &Scheduler{
		backoff:    backoff,
		source:     source,
		run:        run,
		onThrottle: onThrottle,
		now:        time.Now,
	}
}

// Tick performs one scheduling step: skip entirely while paused (the
// rotation index is not advanced, preserving resumption order), pick
// the next task, run it, and escalate backoff on a throttle signal.
func (s *Scheduler) Tick(ctx context.Context) {
	if s.backoff.Paused(s.now()) {
		return
	}

	taskList, err := s.source.Tasks()
	if err != nil {
		// Unreadable track list means no tasks; the bot idles.
		log.Debug().Err(err).Msg("Track list unreadable, idling")
		return
	}
	if len(taskList) == 0 {
		return
	}

	task := taskList[s.idx%len(taskList)]
	s.idx = (s.idx + 1) % len(taskList)

	log.Debug().Str("symbol", task.Symbol).Str("kind", string(task.Kind)).Msg("Polling")

	if err := s.run(ctx, task); err != nil {
		if errors.Is(err, magiceden.ErrRateLimited) {
			until, interval := s.backoff.Throttle(s.now())
			log.Warn().
				Time("paused_until", until).
				Dur("interval", interval).
				Msg("⏳ Rate limit hit, backing off")
			if s.onThrottle != nil {
				s.onThrottle(until, interval)
			}
			return
		}
		log.Error().Err(err).Str("symbol", task.Symbol).Msg("Poll failed")
	}
}

// Run loops until ctx is cancelled. The timer is re-armed after each
// tick from the backoff controller's current interval, so escalations
// take effect on the next reschedule. Ticks are strictly serialized.
func (s *Scheduler) Run(ctx context.Context) {
	timer := time.NewTimer(s.backoff.Interval())
	defer timer.Stop()

	log.Info().Dur("interval", s.backoff.Interval()).Msg("🔁 Round-robin polling started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			s.Tick(ctx)
			timer.Reset(s.backoff.Interval())
		}
	}
}
