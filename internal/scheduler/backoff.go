package scheduler

import (
	"sync"
	"time"
)

const (
	// Interval grows by intervalStep per throttle, never past
	// intervalCap, and never shrinks back.
	intervalStep = 100 * time.Millisecond
	intervalCap  = 2 * time.Second
)

// Backoff is the process-wide throttle state shared by every task: a
// paused-until deadline and the current tick interval. The interval
// only ratchets up; once the upstream has throttled us, polling stays
// slowed for the rest of the run.
type Backoff struct {
	mu          sync.Mutex
	pausedUntil time.Time
	interval    time.Duration
	pause       time.Duration
}

// NewBackoff creates a controller starting at interval, pausing for
// pause on each throttle signal.
func NewBackoff(interval, pause time.Duration) *Backoff {
	return &Backoff{interval: interval, pause: pause}
}

// Paused reports whether polling is suspended at now.
func (b *Backoff) Paused(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return now.Before(b.pausedUntil)
}

// Interval returns the current tick interval.
func (b *Backoff) Interval() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.interval
}

// Throttle records an upstream rate-limit signal: polling pauses until
// now+pause and the tick interval steps up toward the cap. It returns
// the new deadline and interval.
func (b *Backoff) Throttle(now time.Time) (time.Time, time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pausedUntil = now.Add(b.pause)
	if b.interval < intervalCap {
		b.interval += intervalStep
		if b.interval > intervalCap {
			b.interval = intervalCap
		}
	}
	return b.pausedUntil, b.interval
}
