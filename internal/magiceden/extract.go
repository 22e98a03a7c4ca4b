package magiceden

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// The activity payload shape drifts upstream; every logical field is
// extracted by an ordered list of shape probes, first hit wins. Adding
// a newly observed shape means appending a probe here, nothing else.

const itemURL = "https://magiceden.io/item-details/"

type stringProbe func(map[string]any) string
type rankProbe func(map[string]any) (int, bool)

var nameProbes = []stringProbe{
	func(r map[string]any) string { return str(r["name"]) },
	func(r map[string]any) string { return str(r["title"]) },
	func(r map[string]any) string { return str(field(r, "extra", "name")) },
	func(r map[string]any) string { return str(field(r, "extra", "title")) },
	func(r map[string]any) string { return str(field(r, "token", "name")) },
	func(r map[string]any) string { return str(field(r, "token", "title")) },
	func(r map[string]any) string { return str(field(r, "metadata", "name")) },
	func(r map[string]any) string { return str(field(r, "metadata", "title")) },
}

var imageProbes = []stringProbe{
	func(r map[string]any) string { return str(field(r, "extra", "img")) },
	func(r map[string]any) string { return str(field(r, "token", "image")) },
	func(r map[string]any) string { return str(r["img"]) },
	func(r map[string]any) string { return str(r["image"]) },
	func(r map[string]any) string { return str(field(r, "extra", "image")) },
	imageFromTokenFiles,
}

var rankProbes = []rankProbe{
	func(r map[string]any) (int, bool) { return num(field(r, "rarity", "howrare", "rank")) },
	func(r map[string]any) (int, bool) { return num(field(r, "extra", "howrare_rank")) },
	func(r map[string]any) (int, bool) { return num(field(r, "extra", "howrare", "rank")) },
	func(r map[string]any) (int, bool) { return num(field(r, "extra", "howrare")) },
	func(r map[string]any) (int, bool) { return num(r["howrare_rank"]) },
	func(r map[string]any) (int, bool) { return num(field(r, "howrare", "rank")) },
	func(r map[string]any) (int, bool) { return num(r["howrare"]) },
	func(r map[string]any) (int, bool) { return num(field(r, "token", "howrare_rank")) },
	func(r map[string]any) (int, bool) { return num(field(r, "token", "howrare", "rank")) },
	func(r map[string]any) (int, bool) { return num(field(r, "token", "howrare")) },
	func(r map[string]any) (int, bool) { return num(field(r, "metadata", "howrare_rank")) },
	func(r map[string]any) (int, bool) { return num(field(r, "metadata", "howrare", "rank")) },
	func(r map[string]any) (int, bool) { return num(field(r, "metadata", "howrare")) },
}

func newEvent(rec map[string]any, kind Kind) Event {
	mint := str(rec["tokenMint"])
	if mint == "" {
		mint = str(rec["mint"])
	}

	ev := Event{
		ID:        EventID(rec),
		TokenMint: mint,
		Kind:      kind,
	}

	ev.Price, ev.PriceOK = extractPrice(rec)
	ev.RarityRank = extractRank(rec)
	ev.Name = extractName(rec)
	ev.ImageURL = extractImage(rec)
	ev.Link = extractLink(rec, mint)
	return ev
}

// EventID derives the dedup key for a record: token mint, else the
// activity id, else a content hash of the record's canonical JSON.
// Always non-empty and deterministic.
func EventID(rec map[string]any) string {
	if mint := str(rec["tokenMint"]); mint != "" {
		return mint
	}
	if mint := str(rec["mint"]); mint != "" {
		return mint
	}
	if id := str(rec["id"]); id != "" {
		return id
	}
	// encoding/json sorts map keys, so this serialization is stable.
	canonical, err := json.Marshal(rec)
	if err != nil {
		canonical = []byte(fmt.Sprintf("%v", rec))
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}

func extractName(rec map[string]any) string {
	for _, probe := range nameProbes {
		if v := probe(rec); v != "" {
			return v
		}
	}
	return ""
}

func extractImage(rec map[string]any) string {
	for _, probe := range imageProbes {
		if v := probe(rec); v != "" {
			return v
		}
	}
	return ""
}

func extractRank(rec map[string]any) *int {
	for _, probe := range rankProbes {
		if v, ok := probe(rec); ok {
			return &v
		}
	}
	return nil
}

// extractPrice reads the price in SOL from its known field names.
// A record with no price field at all yields zero (matching upstream
// records that omit price on some activity types); a present but
// unparsable price yields ok=false so the pipeline skips the event.
func extractPrice(rec map[string]any) (decimal.Decimal, bool) {
	for _, key := range []string{"price", "priceSol", "buyNowPrice"} {
		v, present := rec[key]
		if !present || v == nil {
			continue
		}
		switch p := v.(type) {
		case float64:
			return decimal.NewFromFloat(p), true
		case string:
			d, err := decimal.NewFromString(p)
			if err != nil {
				return decimal.Zero, false
			}
			return d, true
		default:
			return decimal.Zero, false
		}
	}
	return decimal.Zero, true
}

func extractLink(rec map[string]any, mint string) string {
	if v := str(rec["marketplaceLink"]); v != "" {
		return v
	}
	if v := str(rec["listingURL"]); v != "" {
		return v
	}
	return itemURL + mint
}

func imageFromTokenFiles(rec map[string]any) string {
	files, ok := field(rec, "token", "properties", "files").([]any)
	if !ok {
		return ""
	}
	for _, f := range files {
		file, ok := f.(map[string]any)
		if !ok {
			continue
		}
		typ := str(file["type"])
		uri := str(file["uri"])
		if strings.HasPrefix(typ, "image/") && uri != "" {
			return uri
		}
	}
	return ""
}

// field walks nested objects and returns the value at path, or nil.
func field(rec map[string]any, path ...string) any {
	var cur any = rec
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[key]
	}
	return cur
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

// num coerces a JSON value to a positive integer rank.
func num(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		if n > 0 {
			return int(n), true
		}
	case string:
		if i, err := strconv.Atoi(n); err == nil && i > 0 {
			return i, true
		}
	}
	return 0, false
}
