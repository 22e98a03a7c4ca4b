// Package supply resolves a collection's total supply through an
// ordered fallback chain and caches the outcome for the process
// lifetime. Supply is treated as immutable, so a cached value is never
// re-resolved or overwritten.
package supply

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Source identifies where a supply number came from.
type Source string

const (
	SourceMarketplace   Source = "marketplace"
	SourceRarityService Source = "rarity_service"
	SourceOverride      Source = "override"
	SourceUnknown       Source = "unknown"
)

// Record is a resolved (or exhausted) supply lookup.
type Record struct {
	Symbol string
	Supply *int
	Source Source
}

// Fetcher returns the supply for a symbol, nil when the source has no
// usable number.
type Fetcher func(ctx context.Context, symbol string) (*int, error)

// Resolver walks marketplace → rarity service → local overrides and
// remembers the first answer per symbol.
type Resolver struct {
	mu    sync.Mutex
	cache map[string]Record

	marketplace Fetcher
	rarity      Fetcher
	overrides   map[string]int
}

// NewResolver creates a resolver. overrides may be nil.
func NewResolver(marketplace, rarity Fetcher, overrides map[string]int) *Resolver {
	return &Resolver{
		cache:       make(map[string]Record),
		marketplace: marketplace,
		rarity:      rarity,
		overrides:   overrides,
	}
}

// Resolve returns the supply record for symbol, consulting each source
// in order until one yields a number. The result, including the
// all-sources-failed outcome, is cached for the rest of the run.
func (r *Resolver) Resolve(ctx context.Context, symbol string) Record {
	r.mu.Lock()
	if rec, ok := r.cache[symbol]; ok {
		r.mu.Unlock()
		return rec
	}
	r.mu.Unlock()

	rec := r.resolve(ctx, symbol)

	r.mu.Lock()
	defer r.mu.Unlock()
	// A bulk-rank pass may have filled the cache while we were out on
	// the network; the earlier value wins.
	if existing, ok := r.cache[symbol]; ok {
		return existing
	}
	r.cache[symbol] = rec
	return rec
}

func (r *Resolver) resolve(ctx context.Context, symbol string) Record {
	if supply, err := r.marketplace(ctx, symbol); err == nil && supply != nil {
		return Record{Symbol: symbol, Supply: supply, Source: SourceMarketplace}
	} else if err != nil {
		log.Debug().Err(err).Str("symbol", symbol).Msg("Marketplace supply lookup failed")
	}

	if supply, err := r.rarity(ctx, symbol); err == nil && supply != nil {
		return Record{Symbol: symbol, Supply: supply, Source: SourceRarityService}
	} else if err != nil {
		log.Debug().Err(err).Str("symbol", symbol).Msg("Rarity service supply lookup failed")
	}

	log.Warn().Str("symbol", symbol).
		Msg("Both remote supply sources failed, falling back to override table")

	if supply, ok := r.overrides[symbol]; ok {
		log.Info().Str("symbol", symbol).Int("supply", supply).
			Msg("Using supply override")
		return Record{Symbol: symbol, Supply: &supply, Source: SourceOverride}
	}

	log.Warn().Str("symbol", symbol).Msg("No supply found from any source")
	return Record{Symbol: symbol, Source: SourceUnknown}
}

// Put stores an already-known supply (the bulk rarity path derives one
// from its item count). It never overwrites an existing record and
// reports whether the value was stored.
func (r *Resolver) Put(symbol string, supply int, source Source) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cache[symbol]; ok {
		return false
	}
	r.cache[symbol] = Record{Symbol: symbol, Supply: &supply, Source: source}
	return true
}

// Cached returns the cached record for symbol without resolving.
func (r *Resolver) Cached(symbol string) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.cache[symbol]
	return rec, ok
}
