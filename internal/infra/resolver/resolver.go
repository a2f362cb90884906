// Package resolver loads the symbol lists kept next to the data directory.
package resolver

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/tidwall/gjson"
)

// FileResolver maps company symbols to the numeric ids the AJAX endpoints expect.
type FileResolver struct {
	ids map[string]string
}

// LoadMapping reads a JSON object of symbol to id. Ids may be numbers or strings.
// A missing file yields an empty resolver.
func LoadMapping(path string) (*FileResolver, error) {
	r := &FileResolver{ids: map[string]string{}}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("%s: invalid json", path)
	}
	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		return nil, fmt.Errorf("%s: expected an object of symbol to id", path)
	}
	doc.ForEach(func(k, v gjson.Result) bool {
		if id := strings.TrimSpace(v.String()); id != "" {
			r.ids[strings.ToUpper(k.String())] = id
		}
		return true
	})
	return r, nil
}

func (r *FileResolver) Resolve(symbol string) (string, bool) {
	id, ok := r.ids[strings.ToUpper(strings.TrimSpace(symbol))]
	return id, ok
}

func (r *FileResolver) Len() int { return len(r.ids) }

// Symbols returns every mapped symbol, sorted.
func (r *FileResolver) Symbols() []string {
	out := make([]string, 0, len(r.ids))
	for s := range r.ids {
		out = append(out, s)
	}
	slices.Sort(out)
	return out
}

// PrioritySymbols reads the priority list at listPath. When that file does not exist
// every symbol of the id mapping at mappingPath is used instead.
func PrioritySymbols(listPath, mappingPath string) ([]string, error) {
	symbols, err := LoadSymbols(listPath)
	if !errors.Is(err, os.ErrNotExist) {
		return symbols, err
	}
	m, merr := LoadMapping(mappingPath)
	if merr != nil {
		return nil, merr
	}
	if m.Len() == 0 {
		return nil, err
	}
	slog.Info("Priority list not found, using every mapped company", "path", listPath, "companies", m.Len())
	return m.Symbols(), nil
}

// LoadSymbols reads the priority list: a JSON array of symbols, or of objects with a
// "symbol" field. Duplicates are dropped, order is kept.
func LoadSymbols(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("%s: invalid json", path)
	}
	doc := gjson.ParseBytes(raw)
	if !doc.IsArray() {
		return nil, fmt.Errorf("%s: expected an array of symbols", path)
	}

	var symbols []string
	doc.ForEach(func(_, v gjson.Result) bool {
		s := v.String()
		if v.IsObject() {
			s = v.Get("symbol").String()
		}
		symbols = append(symbols, s)
		return true
	})
	return NormalizeSymbols(symbols), nil
}

// NormalizeSymbols upper-cases, trims and de-duplicates symbols, keeping first-seen order.
func NormalizeSymbols(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
