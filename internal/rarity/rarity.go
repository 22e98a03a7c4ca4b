// Package rarity classifies items into discrete rarity tiers based on
// their rank within a collection's total supply.
package rarity

import "fmt"

// Tier is a rarity bucket. Higher values are rarer, so tiers compare
// directly with >= for "at least as rare as" filtering.
type Tier int

const (
	Common Tier = iota
	Uncommon
	Rare
	Epic
	Legendary
	Mythic
)

var tierNames = [...]string{"Common", "Uncommon", "Rare", "Epic", "Legendary", "Mythic"}

// Embed colors per tier, HowRare-style palette.
var tierColors = [...]int{0xb0b8c1, 0x00e599, 0x0099ff, 0xa259ff, 0xff9900, 0xff4747}

// DefaultColor is the accent used when no rarity is known.
const DefaultColor = 0x9b59ff

func (t Tier) String() string {
	if t < Common || t > Mythic {
		return "Common"
	}
	return tierNames[t]
}

// Color returns the alert color for this tier.
func (t Tier) Color() int {
	if t < Common || t > Mythic {
		return DefaultColor
	}
	return tierColors[t]
}

// AtLeast reports whether t is at least as rare as min.
func (t Tier) AtLeast(min Tier) bool {
	return t >= min
}

// Parse converts a tier name to a Tier. Matching is exact on the
// canonical names used in the persisted track list.
func Parse(s string) (Tier, error) {
	for i, name := range tierNames {
		if name == s {
			return Tier(i), nil
		}
	}
	return Common, fmt.Errorf("unknown rarity tier %q", s)
}

// MarshalText implements encoding.TextMarshaler so tiers round-trip
// through the JSON track list as their names.
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Tier) UnmarshalText(b []byte) error {
	tier, err := Parse(string(b))
	if err != nil {
		return err
	}
	*t = tier
	return nil
}

// Classify maps a rarity rank (1 = rarest) and collection supply to a
// tier. Missing or invalid inputs default to Common so downstream
// filtering fails open rather than suppressing alerts.
func Classify(rank, supply int) Tier {
	if rank <= 0 || supply <= 0 {
		return Common
	}
	p := float64(rank) / float64(supply)
	switch {
	case p <= 0.01:
		return Mythic
	case p <= 0.05:
		return Legendary
	case p <= 0.15:
		return Epic
	case p <= 0.35:
		return Rare
	case p <= 0.70:
		return Uncommon
	default:
		return Common
	}
}
