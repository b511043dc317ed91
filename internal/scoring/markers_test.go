package scoring

import (
	"encoding/json"
	"os"
	"reflect"
	"testing"
)

func TestMarkerScanning(t *testing.T) {
	terms := map[string][]string{
		"sweetener":    {"High Fructose Corn Syrup"},
		"preservative": {"BHA", "sodium benzoate"},
		"emulsifier":   {"mono- and diglycerides"},
	}

	path := tempJSON(t, terms)
	scanner, err := NewMarkerScanner(path)
	if err != nil {
		t.Fatalf("marker scanner: %v", err)
	}

	tests := []struct {
		name     string
		text     string
		expected []string
	}{
		{"syrup", "Sugar, high-fructose corn syrup, salt", []string{"high fructose corn syrup"}},
		{"punctuation", "Flour, MONO- AND DIGLYCERIDES, BHA (to preserve freshness)", []string{"mono and diglycerides", "bha"}},
		{"word boundary", "bhang lassi, benzoate-free", nil},
		{"clean", "oats, water, salt", nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := scanner.Terms(tc.text)
			if len(got) == 0 && len(tc.expected) == 0 {
				return
			}
			if !reflect.DeepEqual(tc.expected, got) {
				t.Fatalf("expected %v got %v", tc.expected, got)
			}
		})
	}
}

func TestDefaultMarkerScanner(t *testing.T) {
	scanner := DefaultMarkerScanner()
	hits := scanner.Scan("Sugar, corn syrup, artificial flavor, red 40")
	if len(hits) != 3 {
		t.Fatalf("expected 3 markers got %v", hits)
	}
	if hits[0].Category != "colorant" || hits[0].Term != "red 40" {
		t.Fatalf("unexpected first marker %+v", hits[0])
	}
}

func TestMarkerScannerRejectsBadFile(t *testing.T) {
	path := tempJSON(t, []string{"not", "a", "map"})
	if _, err := NewMarkerScanner(path); err == nil {
		t.Fatalf("expected error for malformed catalogue")
	}
}

func tempJSON(t *testing.T, value any) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "markers-*.json")
	if err != nil {
		t.Fatalf("temp file: %v", err)
	}
	data, err := json.Marshal(value)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if _, err := f.Write(data); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return f.Name()
}
