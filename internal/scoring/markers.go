package scoring

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"
)

//go:embed markers.json
var defaultMarkers []byte

// Marker is one additive term found in ingredient text.
type Marker struct {
	Term     string `json:"term"`
	Category string `json:"category"`
}

// MarkerScanner finds known processing markers in ingredient text.
type MarkerScanner struct {
	terms map[string][]string
}

// NewMarkerScanner loads a category -> terms catalogue from path, or the
// built-in catalogue when path is empty.
func NewMarkerScanner(path string) (*MarkerScanner, error) {
	data := defaultMarkers
	if strings.TrimSpace(path) != "" {
		raw, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return nil, fmt.Errorf("read marker terms: %w", err)
		}
		data = raw
	}
	var raw map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal marker terms: %w", err)
	}
	terms := make(map[string][]string, len(raw))
	for category, list := range raw {
		var cleaned []string
		for _, term := range list {
			if term = normalizeTerm(term); term != "" {
				cleaned = append(cleaned, term)
			}
		}
		if len(cleaned) > 0 {
			terms[strings.ToLower(strings.TrimSpace(category))] = cleaned
		}
	}
	return &MarkerScanner{terms: terms}, nil
}

// DefaultMarkerScanner returns the scanner over the built-in catalogue.
func DefaultMarkerScanner() *MarkerScanner {
	s, err := NewMarkerScanner("")
	if err != nil {
		panic(err)
	}
	return s
}

// Scan returns the markers present in text, sorted by category then term.
// A term matches only on word boundaries so "bha" does not match "bhang".
func (m *MarkerScanner) Scan(text string) []Marker {
	if m == nil {
		return nil
	}
	haystack := " " + normalizeTerm(text) + " "
	seen := make(map[string]struct{})
	var hits []Marker
	for category, list := range m.terms {
		for _, term := range list {
			if _, ok := seen[term]; ok {
				continue
			}
			if strings.Contains(haystack, " "+term+" ") {
				seen[term] = struct{}{}
				hits = append(hits, Marker{Term: term, Category: category})
			}
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Category != hits[j].Category {
			return hits[i].Category < hits[j].Category
		}
		return hits[i].Term < hits[j].Term
	})
	return hits
}

// Terms returns just the marker terms found in text.
func (m *MarkerScanner) Terms(text string) []string {
	hits := m.Scan(text)
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.Term)
	}
	return out
}

// normalizeTerm lowercases and collapses punctuation to single spaces so
// "Mono- and Diglycerides," and "mono and diglycerides" compare equal.
func normalizeTerm(term string) string {
	var b strings.Builder
	b.Grow(len(term))
	space := false
	for _, r := range strings.ToLower(term) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space && b.Len() > 0 {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}
