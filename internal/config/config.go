// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the tracker.
type Config struct {
	// Telegram
	TelegramToken string
	ChatID        int64
	OwnerID       int64

	// Upstream APIs
	MarketplaceBaseURL string
	RarityBaseURL      string

	// Polling
	TickInterval       time.Duration
	BackoffDuration    time.Duration
	ActivityLimit      int
	CacheClearInterval time.Duration

	// Track list persistence
	TracksPath string

	// Supply overrides by symbol, the resolver's last resort.
	SupplyOverrides map[string]int

	// Rarity service slugs where they differ from marketplace symbols.
	RaritySlugs map[string]string

	Debug bool
}

// Load reads configuration from environment variables. The Telegram
// token, chat id and owner id are required; everything else defaults.
func Load() (*Config, error) {
	cfg := &Config{
		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),

		MarketplaceBaseURL: getEnv("MARKETPLACE_BASE_URL", "https://api-mainnet.magiceden.dev/v2"),
		RarityBaseURL:      getEnv("RARITY_BASE_URL", "https://api.howrare.is/v0.1"),

		TickInterval:       getEnvDuration("TICK_INTERVAL", 550*time.Millisecond),
		BackoffDuration:    getEnvDuration("BACKOFF_DURATION", 10*time.Second),
		ActivityLimit:      getEnvInt("ACTIVITY_LIMIT", 40),
		CacheClearInterval: getEnvDuration("CACHE_CLEAR_INTERVAL", time.Hour),

		TracksPath: getEnv("TRACKS_PATH", "data/tracks.json"),

		SupplyOverrides: parseIntMap(os.Getenv("SUPPLY_OVERRIDES")),
		RaritySlugs:     parseStringMap(os.Getenv("RARITY_SLUGS")),

		Debug: getEnvBool("DEBUG", false),
	}

	var err error
	if cfg.ChatID, err = parseID("TELEGRAM_CHAT_ID"); err != nil {
		return nil, err
	}
	if cfg.OwnerID, err = parseID("OWNER_ID"); err != nil {
		return nil, err
	}

	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	if cfg.ChatID == 0 {
		return nil, fmt.Errorf("TELEGRAM_CHAT_ID is required")
	}
	if cfg.OwnerID == 0 {
		return nil, fmt.Errorf("OWNER_ID is required")
	}

	return cfg, nil
}

// Reload re-reads .env (overriding the current environment) and the
// environment itself. Called before each inbound command so operator
// edits take effect without a restart.
func Reload() (*Config, error) {
	_ = godotenv.Overload()
	return Load()
}

func parseID(key string) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return id, nil
}

// parseIntMap parses "symbol=123,other=456" pairs.
func parseIntMap(value string) map[string]int {
	out := make(map[string]int)
	for _, pair := range strings.Split(value, ",") {
		key, val, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		if n, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			out[strings.TrimSpace(key)] = n
		}
	}
	return out
}

// parseStringMap parses "symbol=slug,other=slug2" pairs.
func parseStringMap(value string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(value, ",") {
		key, val, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		out[strings.TrimSpace(key)] = strings.TrimSpace(val)
	}
	return out
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
