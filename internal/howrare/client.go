// Package howrare provides the alternate rarity-data service client.
// It supplies per-collection total supply and the bulk mint→rank map
// the pipeline uses for rarity lookups.
package howrare

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultBaseURL is the public API root.
const DefaultBaseURL = "https://api.howrare.is/v0.1"

// Client fetches rarity data over plain HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client

	// slugs maps marketplace symbols to service slugs where they differ.
	slugs map[string]string
}

// NewClient creates a rarity-service client. slugs may be nil; symbols
// without an override are used as slugs directly.
func NewClient(baseURL string, slugs map[string]string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		slugs:      slugs,
	}
}

func (c *Client) slug(symbol string) string {
	if s, ok := c.slugs[symbol]; ok {
		return s
	}
	return symbol
}

// Supply fetches the collection's total supply. Returns nil when the
// service has no usable number.
func (c *Client) Supply(ctx context.Context, symbol string) (*int, error) {
	body, err := c.get(ctx, c.slug(symbol))
	if err != nil {
		return nil, fmt.Errorf("rarity supply for %s: %w", symbol, err)
	}

	var payload struct {
		Result struct {
			Collection struct {
				Supply *int `json:"supply"`
			} `json:"collection"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parse rarity supply for %s: %w", symbol, err)
	}
	return payload.Result.Collection.Supply, nil
}

// Ranks fetches the collection's full item list and builds a
// mint→rank map. Items without a mint or a positive rank are dropped.
func (c *Client) Ranks(ctx context.Context, symbol string) (map[string]int, error) {
	body, err := c.get(ctx, c.slug(symbol))
	if err != nil {
		return nil, fmt.Errorf("rarity ranks for %s: %w", symbol, err)
	}

	var payload struct {
		Result struct {
			Data struct {
				Items []struct {
					Mint string `json:"mint"`
					Rank int    `json:"rank"`
				} `json:"items"`
			} `json:"data"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parse rarity ranks for %s: %w", symbol, err)
	}

	ranks := make(map[string]int, len(payload.Result.Data.Items))
	for _, item := range payload.Result.Data.Items {
		if item.Mint != "" && item.Rank > 0 {
			ranks[item.Mint] = item.Rank
		}
	}

	log.Debug().Str("symbol", symbol).Int("items", len(ranks)).Msg("Cached rarity ranks")
	return ranks, nil
}

func (c *Client) get(ctx context.Context, slug string) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/collections/%s", c.baseURL, url.PathEscape(slug))

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

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
