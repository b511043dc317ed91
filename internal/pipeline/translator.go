package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"unlabel/backend/internal/ai"
	"unlabel/backend/internal/label"
	"unlabel/backend/internal/scoring"
)

// DefaultMaxTranslations is used when a non-positive maximum is requested.
const DefaultMaxTranslations = 5

const translatorSystem = `You are an ingredient translation assistant.
Identify complex scientific or regulatory ingredient names and explain them in simple, consumer-friendly language.
Focus on chemical-sounding names, regulatory terms and technical terms that might confuse consumers.
Do NOT translate common ingredients (sugar, salt, water, flour), brand names or simple food names.`

// Translator explains hard ingredient terms in plain language.
type Translator struct {
	llm     ai.Capability
	markers *scoring.MarkerScanner
	limit   int
}

// NewTranslator constructs a translator returning at most limit terms per call.
func NewTranslator(llm ai.Capability, markers *scoring.MarkerScanner, limit int) *Translator {
	if markers == nil {
		markers = scoring.DefaultMarkerScanner()
	}
	if limit <= 0 {
		limit = DefaultMaxTranslations
	}
	return &Translator{llm: llm, markers: markers, limit: limit}
}

// translationList accepts either a bare JSON array or {"translations": [...]}.
type translationList []label.Translation

func (l *translationList) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var items []label.Translation
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*l = items
		return nil
	}
	var wrapped struct {
		Translations []label.Translation `json:"translations"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return err
	}
	*l = wrapped.Translations
	return nil
}

// Translate returns at most the configured number of translations; on any
// failure it returns an empty, non-nil slice.
func (t *Translator) Translate(ctx context.Context, text string) []label.Translation {
	return t.TranslateN(ctx, text, t.limit)
}

// TranslateN is Translate with an explicit bound.
func (t *Translator) TranslateN(ctx context.Context, text string, limit int) []label.Translation {
	ctx, span := startStage(ctx, "translate")
	defer span.End()

	if limit <= 0 {
		limit = DefaultMaxTranslations
	}

	var out translationList
	err := ai.DecodeJSON(ctx, t.llm, ai.Request{
		Prompt:      buildTranslatePrompt(text, t.markers.Terms(text), limit),
		System:      translatorSystem,
		Temperature: ai.Temperature(0.3),
	}, translationsSchema, &out)
	if err != nil {
		recordFallback(ctx, span, "translate", err)
		return []label.Translation{}
	}

	result := make([]label.Translation, 0, limit)
	for _, tr := range out {
		if len(result) == limit {
			break
		}
		tr.Term = strings.TrimSpace(tr.Term)
		if tr.Term == "" {
			continue
		}
		tr.SimpleExplanation = strings.TrimSpace(tr.SimpleExplanation)
		tr.Category = strings.ToLower(strings.TrimSpace(tr.Category))
		if tr.Category == "" {
			tr.Category = "other"
		}
		result = append(result, tr)
	}
	return result
}

func buildTranslatePrompt(text string, hints []string, limit int) string {
	b := &strings.Builder{}
	fmt.Fprintf(b, "Analyze these ingredients and translate complex terms:\n\n%s\n\n", strings.TrimSpace(text))
	if len(hints) > 0 {
		fmt.Fprintf(b, "Likely technical terms: %s\n\n", strings.Join(hints, ", "))
	}
	fmt.Fprintf(b, `Return a JSON array with up to %d translations:
[
  {
    "term": "exact ingredient name",
    "simple_explanation": "One clear sentence explaining what this is",
    "category": "preservative | sweetener | emulsifier | color | flavor | other"
  }
]
Only include ingredients that need translation. Return an empty array if none need translation.`, limit)
	return b.String()
}
