// Package magiceden provides the marketplace HTTP client: recent
// activity for a collection, collection stats, and per-token metadata.
package magiceden

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// DefaultBaseURL is the mainnet API root.
const DefaultBaseURL = "https://api-mainnet.magiceden.dev/v2"

// ErrRateLimited is returned when the marketplace answers 429. It must
// stay distinguishable from ordinary fetch failures so the scheduler
// can back off instead of hammering the API.
var ErrRateLimited = errors.New("marketplace rate limited")

// Kind selects which activity type a task is interested in.
type Kind string

const (
	KindListing Kind = "listing"
	KindSale    Kind = "sale"
)

// activityType returns the upstream activity type string for a kind.
func (k Kind) activityType() string {
	if k == KindSale {
		return "buyNow"
	}
	return "list"
}

// Event is a normalized listing or sale activity.
type Event struct {
	ID         string
	TokenMint  string
	Kind       Kind
	Price      decimal.Decimal
	PriceOK    bool
	RarityRank *int
	Name       string
	ImageURL   string
	Link       string
}

// TokenMeta is the subset of the token endpoint the alerts need.
type TokenMeta struct {
	Name  string `json:"name"`
	Image string `json:"image"`
	Img   string `json:"img"`
}

// Client fetches marketplace data over plain HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limit      int
}

// NewClient creates a marketplace client. limit caps how many recent
// activities each poll retrieves.
func NewClient(baseURL string, limit int) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if limit <= 0 {
		limit = 40
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limit:      limit,
	}
}

// Activities fetches the most recent activity records for a collection
// and keeps only those matching kind. A 429 returns ErrRateLimited;
// any other failure is logged and returns an empty slice so the task
// is simply skipped for this tick.
func (c *Client) Activities(ctx context.Context, symbol string, kind Kind) ([]Event, error) {
	if symbol == "" {
		return nil, nil
	}

	endpoint := fmt.Sprintf("%s/collections/%s/activities?offset=0&limit=%d",
		c.baseURL, url.PathEscape(symbol), c.limit)

	body, err := c.get(ctx, endpoint)
	if err != nil {
		if errors.Is(err, ErrRateLimited) {
			return nil, fmt.Errorf("activities for %s: %w", symbol, err)
		}
		log.Error().Err(err).Str("symbol", symbol).Msg("Failed to fetch activities")
		return nil, nil
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(body, &raws); err != nil {
		log.Error().Err(err).Str("symbol", symbol).Msg("Failed to parse activities")
		return nil, nil
	}

	wantType := kind.activityType()
	events := make([]Event, 0, len(raws))
	for _, raw := range raws {
		var rec map[string]any
		if err := json.Unmarshal(raw, &rec); err != nil {
			continue
		}
		if s, _ := rec["type"].(string); s != wantType {
			continue
		}
		events = append(events, newEvent(rec, kind))
	}
	return events, nil
}

// CollectionSupply fetches the collection-stats endpoint and extracts
// total supply. Returns nil when the endpoint has no usable number.
func (c *Client) CollectionSupply(ctx context.Context, symbol string) (*int, error) {
	endpoint := fmt.Sprintf("%s/collections/%s", c.baseURL, url.PathEscape(symbol))

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("collection stats for %s: %w", symbol, err)
	}

	var payload struct {
		Stats struct {
			Supply      *int `json:"supply"`
			ListedCount *int `json:"listedCount"`
		} `json:"stats"`
		Supply *int `json:"supply"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parse collection stats for %s: %w", symbol, err)
	}

	// stats.supply is only trusted when the stats block also carries
	// listedCount; a bare stats.supply tends to be stale.
	if payload.Stats.ListedCount != nil && payload.Stats.Supply != nil {
		return payload.Stats.Supply, nil
	}
	if payload.Supply != nil {
		return payload.Supply, nil
	}
	return nil, nil
}

// Token fetches metadata for a single token mint. Failures are
// tolerated by callers; alerts degrade to defaults.
func (c *Client) Token(ctx context.Context, mint string) (*TokenMeta, error) {
	if mint == "" {
		return nil, nil
	}
	endpoint := fmt.Sprintf("%s/tokens/%s", c.baseURL, url.PathEscape(mint))

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("token metadata for %s: %w", mint, err)
	}

	var meta TokenMeta
	if err := json.Unmarshal(body, &meta); err != nil {
		return nil, fmt.Errorf("parse token metadata for %s: %w", mint, err)
	}
	return &meta, nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
