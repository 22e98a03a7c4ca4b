package supply

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixed(supply int, calls *int) Fetcher {
	return func(ctx context.Context, symbol string) (*int, error) {
		if calls != nil {
			*calls++
		}
		return &supply, nil
	}
}

func failing(calls *int) Fetcher {
	return func(ctx context.Context, symbol string) (*int, error) {
		if calls != nil {
			*calls++
		}
		return nil, errors.New("boom")
	}
}

func empty() Fetcher {
	return func(ctx context.Context, symbol string) (*int, error) {
		return nil, nil
	}
}

func TestResolvePrimaryShortCircuits(t *testing.T) {
	var marketCalls, rarityCalls int
	r := NewResolver(fixed(5000, &marketCalls), fixed(4444, &rarityCalls), nil)

	rec := r.Resolve(context.Background(), "foo")
	require.NotNil(t, rec.Supply)
	assert.Equal(t, 5000, *rec.Supply)
	assert.Equal(t, SourceMarketplace, rec.Source)
	assert.Equal(t, 1, marketCalls)
	assert.Equal(t, 0, rarityCalls, "secondary source must not be consulted")
}

func TestResolveFallsBackToRarityService(t *testing.T) {
	r := NewResolver(empty(), fixed(4444, nil), nil)

	rec := r.Resolve(context.Background(), "foo")
	require.NotNil(t, rec.Supply)
	assert.Equal(t, 4444, *rec.Supply)
	assert.Equal(t, SourceRarityService, rec.Source)
}

func TestResolveFallsBackToOverride(t *testing.T) {
	r := NewResolver(failing(nil), failing(nil), map[string]int{"foo": 1234})

	rec := r.Resolve(context.Background(), "foo")
	require.NotNil(t, rec.Supply)
	assert.Equal(t, 1234, *rec.Supply)
	assert.Equal(t, SourceOverride, rec.Source)
}

func TestResolveAllSourcesExhausted(t *testing.T) {
	r := NewResolver(failing(nil), failing(nil), nil)

	rec := r.Resolve(context.Background(), "foo")
	assert.Nil(t, rec.Supply)
	assert.Equal(t, SourceUnknown, rec.Source)

	// The exhausted outcome is cached too: no re-resolution.
	var marketCalls int
	r2 := NewResolver(failing(&marketCalls), failing(nil), nil)
	r2.Resolve(context.Background(), "bar")
	r2.Resolve(context.Background(), "bar")
	assert.Equal(t, 1, marketCalls)
}

func TestResolveCaches(t *testing.T) {
	var marketCalls int
	r := NewResolver(fixed(5000, &marketCalls), empty(), nil)

	r.Resolve(context.Background(), "foo")
	r.Resolve(context.Background(), "foo")
	r.Resolve(context.Background(), "foo")
	assert.Equal(t, 1, marketCalls)
}

func TestPutNeverOverwrites(t *testing.T) {
	r := NewResolver(fixed(5000, nil), empty(), nil)

	assert.True(t, r.Put("foo", 777, SourceRarityService))
	assert.False(t, r.Put("foo", 888, SourceRarityService), "second Put must be rejected")

	rec, ok := r.Cached("foo")
	require.True(t, ok)
	assert.Equal(t, 777, *rec.Supply)

	// Resolve must honor the pre-seeded value instead of fetching.
	rec = r.Resolve(context.Background(), "foo")
	assert.Equal(t, 777, *rec.Supply)
	assert.Equal(t, SourceRarityService, rec.Source)
}
