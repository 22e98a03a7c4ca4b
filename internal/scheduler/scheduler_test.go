package scheduler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metracker/internal/magiceden"
	"metracker/internal/tracks"
)

type staticSource struct {
	tasks []tracks.Track
	err   error
}

func (s *staticSource) Tasks() ([]tracks.Track, error) { return s.tasks, s.err }

func taskList(n int) []tracks.Track {
	out := make([]tracks.Track, n)
	for i := range out {
		out[i] = tracks.Track{Symbol: fmt.Sprintf("col%d", i), Kind: magiceden.KindListing}
	}
	return out
}

func TestRoundRobinFairness(t *testing.T) {
	const n = 5
	source := &staticSource{tasks: taskList(n)}

	var executed []string
	s := New(NewBackoff(550*time.Millisecond, 10*time.Second), source,
		func(ctx context.Context, task tracks.Track) error {
			executed = append(executed, task.Symbol)
			return nil
		}, nil)

	for i := 0; i < n; i++ {
		s.Tick(context.Background())
	}

	// Over N ticks every task runs exactly once, in stable order.
	require.Len(t, executed, n)
	for i, symbol := range executed {
		assert.Equal(t, fmt.Sprintf("col%d", i), symbol)
	}

	// A second lap repeats the same order.
	executed = nil
	for i := 0; i < n; i++ {
		s.Tick(context.Background())
	}
	assert.Equal(t, []string{"col0", "col1", "col2", "col3", "col4"}, executed)
}

func TestEmptyTaskListIsNoOp(t *testing.T) {
	s := New(NewBackoff(550*time.Millisecond, 10*time.Second), &staticSource{},
		func(ctx context.Context, task tracks.Track) error {
			t.Fatal("runner must not be invoked")
			return nil
		}, nil)
	s.Tick(context.Background())
}

func TestUnreadableTaskListIdles(t *testing.T) {
	s := New(NewBackoff(550*time.Millisecond, 10*time.Second),
		&staticSource{err: fmt.Errorf("disk gone")},
		func(ctx context.Context, task tracks.Track) error {
			t.Fatal("runner must not be invoked")
			return nil
		}, nil)
	s.Tick(context.Background())
}

func TestBackoffEscalation(t *testing.T) {
	b := NewBackoff(550*time.Millisecond, 10*time.Second)
	now := time.Unix(1000, 0)

	until, interval := b.Throttle(now)
	assert.Equal(t, now.Add(10*time.Second), until)
	assert.Equal(t, 650*time.Millisecond, interval)
	assert.True(t, b.Paused(now))
	assert.True(t, b.Paused(now.Add(9*time.Second)))
	assert.False(t, b.Paused(now.Add(10*time.Second)))

	// Each signal steps the interval up to the cap, never past it.
	for i := 0; i < 30; i++ {
		_, interval = b.Throttle(now)
	}
	assert.Equal(t, 2*time.Second, interval)

	// The interval never decays.
	assert.Equal(t, 2*time.Second, b.Interval())
}

func TestPausedTickSkipsWithoutAdvancingRotation(t *testing.T) {
	source := &staticSource{tasks: taskList(3)}
	b := NewBackoff(550*time.Millisecond, 10*time.Second)

	clock := time.Unix(1000, 0)
	var executed []string
	s := New(b, source, func(ctx context.Context, task tracks.Track) error {
		executed = append(executed, task.Symbol)
		if len(executed) == 2 {
			return fmt.Errorf("activities: %w", magiceden.ErrRateLimited)
		}
		return nil
	}, nil)
	s.now = func() time.Time { return clock }

	s.Tick(context.Background()) // col0 ok
	s.Tick(context.Background()) // col1 throttled -> paused
	require.Equal(t, []string{"col0", "col1"}, executed)
	require.True(t, b.Paused(clock))

	// Paused ticks are full skips: no task runs, rotation stays put.
	s.Tick(context.Background())
	s.Tick(context.Background())
	assert.Equal(t, []string{"col0", "col1"}, executed)

	// Once the pause elapses, rotation resumes where it left off.
	clock = clock.Add(11 * time.Second)
	s.Tick(context.Background())
	assert.Equal(t, []string{"col0", "col1", "col2"}, executed)
}

func TestThrottleCallback(t *testing.T) {
	source := &staticSource{tasks: taskList(1)}
	b := NewBackoff(550*time.Millisecond, 10*time.Second)

	var gotInterval time.Duration
	s := New(b, source, func(ctx context.Context, task tracks.Track) error {
		return magiceden.ErrRateLimited
	}, func(until time.Time, interval time.Duration) {
		gotInterval = interval
	})

	s.Tick(context.Background())
	assert.Equal(t, 650*time.Millisecond, gotInterval)
}

func TestTransientErrorDoesNotBackOff(t *testing.T) {
	source := &staticSource{tasks: taskList(2)}
	b := NewBackoff(550*time.Millisecond, 10*time.Second)

	var executed []string
	s := New(b, source, func(ctx context.Context, task tracks.Track) error {
		executed = append(executed, task.Symbol)
		return fmt.Errorf("connection reset")
	}, nil)

	s.Tick(context.Background())
	s.Tick(context.Background())

	assert.Equal(t, []string{"col0", "col1"}, executed)
	assert.False(t, b.Paused(time.Now()))
	assert.Equal(t, 550*time.Millisecond, b.Interval())
}
