package memory

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"tracker/internal/core"
	"tracker/internal/gateway"
)

// Store keeps records in process memory.
type Store struct {
	mu   sync.Mutex
	data map[gateway.Kind]map[string]gateway.Record
}

func New() *Store {
	return &Store{data: map[gateway.Kind]map[string]gateway.Record{
		gateway.KindCategories:   {},
		gateway.KindTransactions: {},
	}}
}

// NewFromFiles seeds categories from base/seed_categories.txt.
// Each line is "name|#color|symbol"; color and symbol are optional.
func NewFromFiles(base string) *Store {
	s := New()
	for _, c := range parseSeed(readLines(filepath.Join(base, "seed_categories.txt"))) {
		r := gateway.CategoryRecord(c)
		s.data[r.Kind][r.ID] = r
	}
	return s
}

// FetchAll returns the records of kind sorted by id.
func (s *Store) FetchAll(_ context.Context, kind gateway.Kind) ([]gateway.Record, error) {
	if err := kind.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]gateway.Record, 0, len(s.data[kind]))
	for _, r := range s.data[kind] {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) Save(_ context.Context, r gateway.Record) error {
	if err := r.Kind.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[r.Kind][r.ID] = r.Clone()
	return nil
}

func (s *Store) Delete(_ context.Context, kind gateway.Kind, id string) error {
	if err := kind.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data[kind], id)
	return nil
}

// Len reports how many records of kind are stored.
func (s *Store) Len(kind gateway.Kind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data[kind])
}

func parseSeed(lines []string) []core.Category {
	out := make([]core.Category, 0, len(lines))
	for _, line := range lines {
		parts := strings.Split(line, "|")
		name := strings.TrimSpace(parts[0])
		c := core.Category{
			ID:     core.CategoryID("seed-" + slug(name)),
			Name:   name,
			Color:  core.DefaultColor,
			Symbol: core.DefaultSymbol,
		}
		if len(parts) > 1 {
			c.Color = core.ColorOrDefault(parts[1])
		}
		if len(parts) > 2 {
			c.Symbol = core.SymbolOrDefault(parts[2])
		}
		out = append(out, c)
	}
	return out
}

func slug(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), " ", "-")
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return dedupeByName(out)
}

// dedupeByName keeps the first line for each category name, preserving order.
func dedupeByName(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		name := strings.TrimSpace(strings.SplitN(v, "|", 2)[0])
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, v)
	}
	return out
}
