package bot

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"metracker/internal/magiceden"
	"metracker/internal/rarity"
)

// Action is a normalized operator command.
type Action string

const (
	ActionTrack        Action = "track"
	ActionUntrack      Action = "untrack"
	ActionSalesTrack   Action = "salestrack"
	ActionSalesUntrack Action = "salesuntrack"
	ActionList         Action = "list"
	ActionTest         Action = "test"
	ActionCleanup      Action = "cleanup"
	ActionStatus       Action = "status"
)

// Intent is the single command contract every inbound transport is
// normalized into before dispatch.
type Intent struct {
	Action    Action
	Symbol    string
	MaxPrice  *decimal.Decimal
	MinRarity *rarity.Tier
}

// Kind returns the event kind an intent's action operates on.
func (i Intent) Kind() magiceden.Kind {
	if i.Action == ActionSalesTrack || i.Action == ActionSalesUntrack {
		return magiceden.KindSale
	}
	return magiceden.KindListing
}

var marketplaceURL = regexp.MustCompile(`magiceden\.io/marketplace/([\w-]+)`)
var bareSymbol = regexp.MustCompile(`^[\w-]+$`)

// ExtractSymbol accepts a marketplace collection URL or a bare symbol
// and returns the collection symbol, or "" when neither matches.
func ExtractSymbol(input string) string {
	input = strings.TrimSpace(input)
	if m := marketplaceURL.FindStringSubmatch(input); m != nil {
		return m[1]
	}
	if bareSymbol.MatchString(input) {
		return input
	}
	return ""
}

// ParseIntent turns a command name and its argument words into an
// Intent. Errors are human-readable and sent back to the operator.
func ParseIntent(command string, args []string) (Intent, error) {
	switch Action(command) {
	case ActionList:
		return Intent{Action: ActionList}, nil
	case ActionTest:
		return Intent{Action: ActionTest}, nil
	case ActionCleanup:
		return Intent{Action: ActionCleanup}, nil
	case ActionStatus:
		return Intent{Action: ActionStatus}, nil

	case ActionUntrack, ActionSalesUntrack:
		if len(args) < 1 {
			return Intent{}, fmt.Errorf("usage: /%s <url-or-symbol>", command)
		}
		symbol := ExtractSymbol(args[0])
		if symbol == "" {
			return Intent{}, fmt.Errorf("could not extract a collection symbol from %q; provide a marketplace collection URL or a bare symbol", args[0])
		}
		return Intent{Action: Action(command), Symbol: symbol}, nil

	case ActionTrack, ActionSalesTrack:
		if len(args) < 2 {
			return Intent{}, fmt.Errorf("usage: /%s <url-or-symbol> <max_price> [min_rarity]", command)
		}
		symbol := ExtractSymbol(args[0])
		if symbol == "" {
			return Intent{}, fmt.Errorf("could not extract a collection symbol from %q; provide a marketplace collection URL or a bare symbol", args[0])
		}
		maxPrice, err := decimal.NewFromString(args[1])
		if err != nil || maxPrice.IsNegative() {
			return Intent{}, fmt.Errorf("max price must be a non-negative number, got %q", args[1])
		}

		intent := Intent{Action: Action(command), Symbol: symbol, MaxPrice: &maxPrice}
		if len(args) >= 3 {
			tier, err := rarity.Parse(args[2])
			if err != nil {
				return Intent{}, fmt.Errorf("min rarity must be one of Mythic, Legendary, Epic, Rare, Uncommon, Common; got %q", args[2])
			}
			intent.MinRarity = &tier
		}
		return intent, nil

	default:
		return Intent{}, fmt.Errorf("unknown command /%s", command)
	}
}
