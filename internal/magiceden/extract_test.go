package magiceden

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(t *testing.T, raw string) map[string]any {
	t.Helper()
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &rec))
	return rec
}

func TestEventIDFallbackChain(t *testing.T) {
	assert.Equal(t, "MintA", EventID(record(t, `{"tokenMint":"MintA","id":"act-1"}`)))
	assert.Equal(t, "MintB", EventID(record(t, `{"mint":"MintB"}`)))
	assert.Equal(t, "act-2", EventID(record(t, `{"id":"act-2","price":1.5}`)))
}

func TestEventIDContentHashDeterministic(t *testing.T) {
	rec := record(t, `{"type":"list","price":1.5,"blockTime":123}`)

	id1 := EventID(rec)
	id2 := EventID(record(t, `{"blockTime":123,"price":1.5,"type":"list"}`))

	assert.NotEmpty(t, id1)
	assert.Equal(t, id1, id2, "hash must be stable across key order")

	other := EventID(record(t, `{"type":"list","price":1.6,"blockTime":123}`))
	assert.NotEqual(t, id1, other)
}

func TestExtractNameShapes(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`{"name":"Goat #1"}`, "Goat #1"},
		{`{"title":"Goat #2"}`, "Goat #2"},
		{`{"extra":{"name":"Goat #3"}}`, "Goat #3"},
		{`{"token":{"name":"Goat #4"}}`, "Goat #4"},
		{`{"metadata":{"title":"Goat #5"}}`, "Goat #5"},
		{`{"other":"stuff"}`, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, extractName(record(t, tt.raw)), tt.raw)
	}
}

func TestExtractNamePriority(t *testing.T) {
	// Top-level wins over every nested shape.
	rec := record(t, `{"name":"Top","extra":{"name":"Extra"},"token":{"name":"Token"}}`)
	assert.Equal(t, "Top", extractName(rec))
}

func TestExtractImageShapes(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`{"extra":{"img":"https://a/1.png"}}`, "https://a/1.png"},
		{`{"token":{"image":"https://a/2.png"}}`, "https://a/2.png"},
		{`{"img":"https://a/3.png"}`, "https://a/3.png"},
		{`{"image":"https://a/4.png"}`, "https://a/4.png"},
		{`{"extra":{"image":"https://a/5.png"}}`, "https://a/5.png"},
		{`{"token":{"properties":{"files":[{"type":"video/mp4","uri":"https://a/v.mp4"},{"type":"image/png","uri":"https://a/6.png"}]}}}`, "https://a/6.png"},
		{`{}`, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, extractImage(record(t, tt.raw)), tt.raw)
	}
}

func TestExtractRankShapes(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{`{"rarity":{"howrare":{"rank":7}}}`, 7},
		{`{"extra":{"howrare_rank":8}}`, 8},
		{`{"extra":{"howrare":{"rank":9}}}`, 9},
		{`{"extra":{"howrare":10}}`, 10},
		{`{"howrare_rank":11}`, 11},
		{`{"howrare":{"rank":12}}`, 12},
		{`{"token":{"howrare_rank":13}}`, 13},
		{`{"metadata":{"howrare":{"rank":14}}}`, 14},
		{`{"howrare_rank":"15"}`, 15},
	}
	for _, tt := range tests {
		rank := extractRank(record(t, tt.raw))
		require.NotNil(t, rank, tt.raw)
		assert.Equal(t, tt.want, *rank, tt.raw)
	}

	assert.Nil(t, extractRank(record(t, `{"howrare":"not-a-number"}`)))
	assert.Nil(t, extractRank(record(t, `{}`)))
}

func TestExtractPrice(t *testing.T) {
	p, ok := extractPrice(record(t, `{"price":1.5}`))
	assert.True(t, ok)
	assert.True(t, p.Equal(decimal.NewFromFloat(1.5)))

	p, ok = extractPrice(record(t, `{"priceSol":"2.25"}`))
	assert.True(t, ok)
	assert.True(t, p.Equal(decimal.NewFromFloat(2.25)))

	p, ok = extractPrice(record(t, `{"buyNowPrice":3}`))
	assert.True(t, ok)
	assert.True(t, p.Equal(decimal.NewFromInt(3)))

	// Absent price defaults to zero, still usable.
	p, ok = extractPrice(record(t, `{}`))
	assert.True(t, ok)
	assert.True(t, p.IsZero())

	// Present but garbage must flag the event as unpriceable.
	_, ok = extractPrice(record(t, `{"price":"banana"}`))
	assert.False(t, ok)
}

func TestExtractLink(t *testing.T) {
	assert.Equal(t, "https://x/l", extractLink(record(t, `{"marketplaceLink":"https://x/l"}`), "M"))
	assert.Equal(t, "https://x/u", extractLink(record(t, `{"listingURL":"https://x/u"}`), "M"))
	assert.Equal(t, itemURL+"M", extractLink(record(t, `{}`), "M"))
}
