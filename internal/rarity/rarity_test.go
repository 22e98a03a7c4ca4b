package rarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyThresholds(t *testing.T) {
	supply := 1000

	tests := []struct {
		rank int
		want Tier
	}{
		{1, Mythic},
		{10, Mythic},
		{11, Legendary},
		{50, Legendary},
		{51, Epic},
		{150, Epic},
		{151, Rare},
		{350, Rare},
		{351, Uncommon},
		{700, Uncommon},
		{701, Common},
		{1000, Common},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.rank, supply), "rank %d", tt.rank)
	}
}

func TestClassifyDefaultsToCommon(t *testing.T) {
	assert.Equal(t, Common, Classify(0, 1000))
	assert.Equal(t, Common, Classify(-1, 1000))
	assert.Equal(t, Common, Classify(5, 0))
	assert.Equal(t, Common, Classify(5, -100))
}

func TestClassifyMonotonic(t *testing.T) {
	// For a fixed supply, a lower (rarer) rank must never produce a
	// less-rare tier than a higher rank.
	supply := 777
	prev := Mythic
	for rank := 1; rank <= supply; rank++ {
		tier := Classify(rank, supply)
		assert.LessOrEqual(t, tier, prev, "rank %d", rank)
		prev = tier
	}
}

func TestTierOrdering(t *testing.T) {
	assert.True(t, Mythic.AtLeast(Epic))
	assert.True(t, Epic.AtLeast(Epic))
	assert.False(t, Rare.AtLeast(Epic))
	assert.False(t, Common.AtLeast(Uncommon))
}

func TestParseRoundTrip(t *testing.T) {
	for _, tier := range []Tier{Common, Uncommon, Rare, Epic, Legendary, Mythic} {
		parsed, err := Parse(tier.String())
		require.NoError(t, err)
		assert.Equal(t, tier, parsed)
	}

	_, err := Parse("Ultra")
	assert.Error(t, err)
}

func TestColors(t *testing.T) {
	assert.Equal(t, 0xff4747, Mythic.Color())
	assert.Equal(t, 0xb0b8c1, Common.Color())
	assert.Equal(t, DefaultColor, Tier(42).Color())
}
