// Package engine orchestrates ingestion: fetch activities for one
// task, drop already-seen events, apply the track's price and rarity
// filters, and hand surviving events to the notifier.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"metracker/internal/dedup"
	"metracker/internal/magiceden"
	"metracker/internal/rarity"
	"metracker/internal/supply"
	"metracker/internal/tracks"
)

// ActivitySource is the marketplace surface the pipeline consumes.
type ActivitySource interface {
	Activities(ctx context.Context, symbol string, kind magiceden.Kind) ([]magiceden.Event, error)
	Token(ctx context.Context, mint string) (*magiceden.TokenMeta, error)
}

// RankSource provides the bulk mint→rank map for a collection.
type RankSource interface {
	Ranks(ctx context.Context, symbol string) (map[string]int, error)
}

// Alert is a formatted notification ready for the chat transport.
type Alert struct {
	Title    string
	Lines    []string
	Link     string
	ImageURL string
	Color    int
}

// Sender delivers alerts and status lines to the operator's channel.
type Sender interface {
	SendAlert(alert Alert) error
	SendStatus(text string) error
}

// Engine owns the shared mutable caches of the ingestion side: the
// dedup sets, the supply cache, and the per-collection rank maps.
type Engine struct {
	source   ActivitySource
	ranks    RankSource
	supplies *supply.Resolver
	seen     *dedup.Cache
	store    *tracks.Store
	sender   Sender

	mu        sync.Mutex
	rankCache map[string]map[string]int
}

// New creates an engine. ranks may be nil when no rarity service is
// configured; rank lookups then rely on inline record extraction.
func New(source ActivitySource, ranks RankSource, supplies *supply.Resolver,
	seen *dedup.Cache, store *tracks.Store, sender Sender) *Engine {

	return &Engine{
		source:    source,
		ranks:     ranks,
		supplies:  supplies,
		seen:      seen,
		store:     store,
		sender:    sender,
		rankCache: make(map[string]map[string]int),
	}
}

// Warmup pre-resolves ranks and supply for every tracked collection so
// the first polls classify rarity without extra latency.
func (e *Engine) Warmup(ctx context.Context) {
	taskList, err := e.store.Tasks()
	if err != nil {
		log.Warn().Err(err).Msg("Cannot read track list for warmup")
		return
	}

	done := make(map[string]bool)
	for _, task := range taskList {
		if done[task.Symbol] {
			continue
		}
		done[task.Symbol] = true
		e.EnsureCollection(ctx, task.Symbol)
	}
	log.Info().Int("collections", len(done)).Msg("📦 Collection warmup finished")
}

// EnsureCollection loads the rank map for a symbol (once) and resolves
// its supply. The rank item count opportunistically seeds the supply
// cache, but an already-resolved supply always wins.
func (e *Engine) EnsureCollection(ctx context.Context, symbol string) {
	e.mu.Lock()
	_, cached := e.rankCache[symbol]
	e.mu.Unlock()

	if !cached && e.ranks != nil {
		ranks, err := e.ranks.Ranks(ctx, symbol)
		if err != nil {
			log.Warn().Err(err).Str("symbol", symbol).Msg("Rank fetch failed")
		} else {
			e.mu.Lock()
			e.rankCache[symbol] = ranks
			e.mu.Unlock()
			if len(ranks) > 0 && e.supplies.Put(symbol, len(ranks), supply.SourceRarityService) {
				log.Info().Str("symbol", symbol).Int("supply", len(ranks)).
					Msg("Derived supply from rank data")
			}
		}
	}

	e.supplies.Resolve(ctx, symbol)
}

// Index seeds the dedup sets with everything currently visible, alert
// free, so the first live poll only reports events created after
// startup. Fetch failures (including throttling) leave that task
// unindexed rather than aborting startup.
func (e *Engine) Index(ctx context.Context) {
	taskList, err := e.store.Tasks()
	if err != nil {
		log.Warn().Err(err).Msg("Cannot read track list for indexing")
		return
	}

	indexed := 0
	for _, task := range taskList {
		events, err := e.source.Activities(ctx, task.Symbol, task.Kind)
		if err != nil {
			log.Warn().Err(err).Str("symbol", task.Symbol).Msg("Indexing fetch failed")
			continue
		}
		for _, ev := range events {
			if e.seen.Mark(task.Kind, ev.ID) {
				indexed++
			}
		}
	}

	listings, sales := e.seen.Sizes()
	log.Info().Int("events", indexed).Int("listings", listings).Int("sales", sales).
		Msg("🗂️ Indexed current activities")
}

// Ingest runs the pipeline for one task. A rate-limit error from the
// fetch propagates so the scheduler can back off; everything else is
// handled here.
func (e *Engine) Ingest(ctx context.Context, task tracks.Track) error {
	events, err := e.source.Activities(ctx, task.Symbol, task.Kind)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	supplyRec := e.supplies.Resolve(ctx, task.Symbol)
	supplyCount := 0
	if supplyRec.Supply != nil {
		supplyCount = *supplyRec.Supply
	}

	for _, ev := range events {
		if e.seen.Seen(task.Kind, ev.ID) {
			continue
		}
		// Filter rejections below fall through WITHOUT marking the
		// event seen: if the operator loosens a filter later, the
		// event is reconsidered on a future poll.
		if !ev.PriceOK {
			continue
		}
		if task.MaxPrice != nil && ev.Price.GreaterThan(*task.MaxPrice) {
			continue
		}

		rank := e.rankFor(task.Symbol, ev)
		rankVal := 0
		if rank != nil {
			rankVal = *rank
		}
		tier := rarity.Classify(rankVal, supplyCount)
		if task.MinRarity != nil && !tier.AtLeast(*task.MinRarity) {
			continue
		}

		// Mark is the atomic claim on this event; losing it means
		// someone else already alerted.
		if !e.seen.Mark(task.Kind, ev.ID) {
			continue
		}

		alert := e.buildAlert(ctx, task, ev, rank, tier, supplyCount)
		if err := e.sender.SendAlert(alert); err != nil {
			log.Error().Err(err).Str("id", ev.ID).Msg("Alert delivery failed")
			continue
		}
		log.Info().
			Str("symbol", task.Symbol).
			Str("kind", string(task.Kind)).
			Str("id", ev.ID).
			Msg("🔔 Sent alert")
	}
	return nil
}

// rankFor looks up the event's rarity rank: bulk rank cache first,
// then whatever the activity record itself carried.
func (e *Engine) rankFor(symbol string, ev magiceden.Event) *int {
	if ev.TokenMint != "" {
		e.mu.Lock()
		ranks := e.rankCache[symbol]
		e.mu.Unlock()
		if rank, ok := ranks[ev.TokenMint]; ok {
			return &rank
		}
	}
	return ev.RarityRank
}

func (e *Engine) buildAlert(ctx context.Context, task tracks.Track, ev magiceden.Event,
	rank *int, tier rarity.Tier, supplyCount int) Alert {

	name := ev.Name
	image := ev.ImageURL

	// Fill gaps from the token endpoint; failures degrade to defaults.
	if (name == "" || image == "") && ev.TokenMint != "" {
		if meta, err := e.source.Token(ctx, ev.TokenMint); err == nil && meta != nil {
			if name == "" {
				name = meta.Name
			}
			if image == "" {
				image = meta.Image
				if image == "" {
					image = meta.Img
				}
			}
		}
	}
	if name == "" {
		name = "Unknown NFT"
	}

	kindWord := "listing"
	if task.Kind == magiceden.KindSale {
		kindWord = "sale"
	}

	priceLine := fmt.Sprintf("Price: *%s SOL*", ev.Price.String())
	if task.MaxPrice != nil {
		priceLine = fmt.Sprintf("Price: *%s SOL* (<= %s SOL)", ev.Price.String(), task.MaxPrice.String())
	}

	lines := []string{
		fmt.Sprintf("Name: *%s*", name),
		priceLine,
	}
	color := rarity.DefaultColor
	if rank != nil {
		if supplyCount > 0 {
			lines = append(lines, fmt.Sprintf("Rarity: *%d* (%s)", *rank, tier))
			color = tier.Color()
		} else {
			lines = append(lines, fmt.Sprintf("Rarity: *%d*", *rank))
		}
	}
	lines = append(lines, fmt.Sprintf("Link: %s", ev.Link))

	return Alert{
		Title:    fmt.Sprintf("New %s in %s!", kindWord, task.Symbol),
		Lines:    lines,
		Link:     ev.Link,
		ImageURL: image,
		Color:    color,
	}
}

// NotifyThrottled posts a backoff notice to the alert channel. Wired
// as the scheduler's throttle callback.
func (e *Engine) NotifyThrottled(until time.Time, interval time.Duration) {
	text := fmt.Sprintf("[BACKOFF] Marketplace rate limit hit (429). Pausing all polling until %s. Slowing down to %s per collection.",
		until.Format("15:04:05"), interval)
	if err := e.sender.SendStatus(text); err != nil {
		log.Error().Err(err).Msg("Backoff notice delivery failed")
	}
}

// RunJanitor clears the dedup sets on a fixed period to bound memory.
// A bounded amount of re-alerting for still-visible events is the
// accepted cost.
func (e *Engine) RunJanitor(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			listings, sales := e.seen.Clear()
			log.Info().Int("listings", listings).Int("sales", sales).
				Msg("🧽 Cleared dedup caches")
		}
	}
}
