// metracker - marketplace listing/sale tracker bot
//
// Watches a configurable set of collections on the marketplace,
// detects new listing and sale events, classifies their rarity against
// the collection's total supply, and pushes filtered alerts to a
// Telegram channel. Polling is round-robin across all tracked tasks
// under one shared rate budget with adaptive backoff on 429s.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"metracker/internal/bot"
	"metracker/internal/config"
	"metracker/internal/dedup"
	"metracker/internal/engine"
	"metracker/internal/howrare"
	"metracker/internal/magiceden"
	"metracker/internal/scheduler"
	"metracker/internal/supply"
	"metracker/internal/tracks"
)

const version = "1.0.0"

func main() {
	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// Load environment
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found, using environment variables")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	log.Info().
		Str("version", version).
		Dur("tick", cfg.TickInterval).
		Str("tracks", cfg.TracksPath).
		Msg("👀 metracker starting...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Shared state
	store := tracks.NewStore(cfg.TracksPath)
	seen := dedup.New()
	backoff := scheduler.NewBackoff(cfg.TickInterval, cfg.BackoffDuration)

	// Upstream clients
	marketplace := magiceden.NewClient(cfg.MarketplaceBaseURL, cfg.ActivityLimit)
	rarityService := howrare.NewClient(cfg.RarityBaseURL, cfg.RaritySlugs)
	supplies := supply.NewResolver(marketplace.CollectionSupply, rarityService.Supply, cfg.SupplyOverrides)

	// Telegram bot doubles as the alert sender
	tgBot, err := bot.New(cfg, store, seen, backoff)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to start Telegram bot")
	}

	eng := engine.New(marketplace, rarityService, supplies, seen, store, tgBot)
	tgBot.SetEngine(eng)

	// Warm supply and rank caches, then index everything currently
	// visible so only new events alert.
	eng.Warmup(ctx)
	eng.Index(ctx)

	sched := scheduler.New(backoff, store, eng.Ingest, eng.NotifyThrottled)

	tgBot.Start()
	go sched.Run(ctx)
	go eng.RunJanitor(ctx, cfg.CacheClearInterval)

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("Shutting down...")
	cancel()
	tgBot.Stop()
	log.Info().Msg("👋 Goodbye")
}
