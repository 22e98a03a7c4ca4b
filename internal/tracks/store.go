// Package tracks persists the operator's tracked collections as a
// whole-file JSON document. The file is re-read before every
// scheduling decision so command edits take effect without a restart.
package tracks

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"metracker/internal/magiceden"
	"metracker/internal/rarity"
)

// Filter is the per-collection alert filter as stored on disk.
// MaxPrice 0 means no price ceiling.
type Filter struct {
	MaxPrice  float64      `json:"max_price"`
	MinRarity *rarity.Tier `json:"min_rarity,omitempty"`
}

// Document is the on-disk track list.
type Document struct {
	Collections      map[string]Filter `json:"collections"`
	SalesCollections map[string]Filter `json:"sales_collections"`
}

// Track is one scheduling task: a collection symbol, the event kind
// watched, and the active filters. Identity is (Symbol, Kind).
type Track struct {
	Symbol    string
	Kind      magiceden.Kind
	MaxPrice  *decimal.Decimal
	MinRarity *rarity.Tier
}

// Store reads and writes the track-list file. Writes replace the whole
// file via a temp-file rename.
type Store struct {
	mu   sync.Mutex
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the document. A missing file is an empty document, not an
// error; a corrupt file is an error.
func (s *Store) Load() (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() (Document, error) {
	doc := Document{
		Collections:      make(map[string]Filter),
		SalesCollections: make(map[string]Filter),
	}

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return doc, fmt.Errorf("read track list: %w", err)
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return doc, fmt.Errorf("parse track list: %w", err)
	}
	if doc.Collections == nil {
		doc.Collections = make(map[string]Filter)
	}
	if doc.SalesCollections == nil {
		doc.SalesCollections = make(map[string]Filter)
	}
	return doc, nil
}

// Tasks flattens the document into the scheduler's task list: all
// listing tracks first, then all sale tracks, each group in sorted
// symbol order so the rotation is stable.
func (s *Store) Tasks() ([]Track, error) {
	doc, err := s.Load()
	if err != nil {
		return nil, err
	}

	tasks := make([]Track, 0, len(doc.Collections)+len(doc.SalesCollections))
	for _, symbol := range sortedKeys(doc.Collections) {
		tasks = append(tasks, newTrack(symbol, magiceden.KindListing, doc.Collections[symbol]))
	}
	for _, symbol := range sortedKeys(doc.SalesCollections) {
		tasks = append(tasks, newTrack(symbol, magiceden.KindSale, doc.SalesCollections[symbol]))
	}
	return tasks, nil
}

func newTrack(symbol string, kind magiceden.Kind, f Filter) Track {
	t := Track{Symbol: symbol, Kind: kind, MinRarity: f.MinRarity}
	if f.MaxPrice > 0 {
		max := decimal.NewFromFloat(f.MaxPrice)
		t.MaxPrice = &max
	}
	return t
}

// Upsert adds or replaces the filter for (symbol, kind).
func (s *Store) Upsert(symbol string, kind magiceden.Kind, f Filter) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	if kind == magiceden.KindSale {
		doc.SalesCollections[symbol] = f
	} else {
		doc.Collections[symbol] = f
	}
	return s.save(doc)
}

// Remove deletes the track for (symbol, kind) and reports whether it
// existed.
func (s *Store) Remove(symbol string, kind magiceden.Kind) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return false, err
	}

	set := doc.Collections
	if kind == magiceden.KindSale {
		set = doc.SalesCollections
	}
	if _, ok := set[symbol]; !ok {
		return false, nil
	}
	delete(set, symbol)
	return true, s.save(doc)
}

func (s *Store) save(doc Document) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode track list: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create track list dir: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write track list: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace track list: %w", err)
	}
	return nil
}

func sortedKeys(m map[string]Filter) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
