package pipeline

import (
	"context"
	"strings"
	"sync"

	"unlabel/backend/internal/ai"
)

// fakeLLM routes each request to a canned reply by the stage system prompt.
type fakeLLM struct {
	mu       sync.Mutex
	disabled bool
	replies  map[string]string
	errs     map[string]error
	calls    []ai.Request
}

const (
	routeIntent      = "intent"
	routeInterpret   = "interpret"
	routeInsight     = "insight"
	routeExplain     = "explain"
	routeTranslate   = "translate"
	routeAnalyze     = "analyze"
	routeExtract     = "extract"
	routeUnmatchable = "unknown"
)

func newFakeLLM() *fakeLLM {
	return &fakeLLM{replies: map[string]string{}, errs: map[string]error{}}
}

func (f *fakeLLM) reply(route, text string) *fakeLLM {
	f.replies[route] = text
	return f
}

func (f *fakeLLM) fail(route string, err error) *fakeLLM {
	f.errs[route] = err
	return f
}

func (f *fakeLLM) Enabled() bool { return !f.disabled }

func (f *fakeLLM) Invoke(_ context.Context, req ai.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	route := routeOf(req)
	if err := f.errs[route]; err != nil {
		return "", err
	}
	return f.replies[route], nil
}

func (f *fakeLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func routeOf(req ai.Request) string {
	switch {
	case req.System == interpreterSystem:
		return routeInterpret
	case req.System == quickInsightSystem:
		return routeInsight
	case req.System == explanationSystem:
		return routeExplain
	case req.System == translatorSystem:
		return routeTranslate
	case req.System == analyzerSystem:
		return routeAnalyze
	case req.Prompt == extractionPrompt:
		return routeExtract
	case strings.HasPrefix(req.Prompt, "Classify what the person"):
		return routeIntent
	}
	return routeUnmatchable
}

const sugaryAnalysis = `{
  "ingredient_summary": {
    "primary_components": ["sugar", "high fructose corn syrup", "artificial flavor"],
    "added_sugars_present": true,
    "sweetener_type": "ADDED",
    "fiber_level": "none",
    "protein_level": "none",
    "fat_level": "low",
    "processing_level": "high",
    "ultra_processed_markers": ["high fructose corn syrup"],
    "ingredient_count": 3
  },
  "food_properties": {
    "sugar_dominant": true,
    "fiber_protein_support": "none",
    "energy_release_pattern": "rapid",
    "satiety_support": "low",
    "formulation_complexity": "simple"
  },
  "confidence_notes": {"data_completeness": "medium", "ambiguity_flags": ["No nutrition panel"]}
}`
