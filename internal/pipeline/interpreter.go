package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"unlabel/backend/internal/ai"
	"unlabel/backend/internal/label"
	"unlabel/backend/internal/scoring"
)

const interpreterSystem = `You are a food label interpreter.
Convert ingredient and nutrition text into structured signals. Do not judge the product.
Use only these values:
- sweetener_type: none, natural, added, mixed
- fiber_level, protein_level, fat_level: none, low, moderate, high
- processing_level: low, moderate, high
- fiber_protein_support: none, weak, moderate, strong
- energy_release_pattern: rapid, mixed, slow
- satiety_support: low, moderate, high
- formulation_complexity: simple, moderate, complex
- data_completeness: high, medium, low
If the text is incomplete or unclear, lower data_completeness and say why in ambiguity_flags.`

// InterpretInput is the raw label text handed to the Interpreter.
type InterpretInput struct {
	Ingredients string
	// Nutrition is optional free-text nutrition facts.
	Nutrition string
	// IncludeNutrition asks the model to read nutrition facts embedded in Ingredients.
	IncludeNutrition bool
}

// Interpreter converts free-text label information into a structured analysis.
type Interpreter struct {
	llm     ai.Capability
	markers *scoring.MarkerScanner
}

// NewInterpreter constructs an interpreter. A nil scanner uses the embedded catalogue.
func NewInterpreter(llm ai.Capability, markers *scoring.MarkerScanner) *Interpreter {
	if markers == nil {
		markers = scoring.DefaultMarkerScanner()
	}
	return &Interpreter{llm: llm, markers: markers}
}

// Interpret always returns an analysis. Failures yield label.FallbackAnalysis
// with a flag naming the failure.
func (i *Interpreter) Interpret(ctx context.Context, in InterpretInput) label.Analysis {
	ctx, span := startStage(ctx, "interpret")
	defer span.End()

	var out label.Analysis
	err := ai.DecodeJSON(ctx, i.llm, ai.Request{
		Prompt:      buildInterpretPrompt(in),
		System:      interpreterSystem,
		Temperature: ai.Temperature(0.1),
	}, analysisSchema, &out)
	if err != nil {
		recordFallback(ctx, span, "interpret", err)
		return label.FallbackAnalysis(interpretFailureReason(err))
	}

	out.Normalize()
	out.MergeMarkers(i.markers.Terms(in.Ingredients))
	return out
}

func interpretFailureReason(err error) string {
	switch {
	case errors.Is(err, ai.ErrUnavailable):
		return "Ingredient interpretation unavailable; showing a conservative default"
	case errors.Is(err, ai.ErrMalformedOutput):
		return "Ingredient interpretation returned an unreadable result; showing a conservative default"
	default:
		return "Ingredient interpretation failed; showing a conservative default"
	}
}

func buildInterpretPrompt(in InterpretInput) string {
	b := &strings.Builder{}
	fmt.Fprintf(b, "Ingredient text:\n%s\n\n", strings.TrimSpace(in.Ingredients))
	if nutrition := strings.TrimSpace(in.Nutrition); nutrition != "" {
		fmt.Fprintf(b, "Nutrition facts:\n%s\n\n", nutrition)
	} else if in.IncludeNutrition {
		b.WriteString("The text above may also contain nutrition facts; use them when present.\n\n")
	}
	b.WriteString("Return JSON with exactly this shape:\n")
	b.WriteString(`{
  "ingredient_summary": {
    "primary_components": ["first ingredients in label order"],
    "added_sugars_present": true,
    "sweetener_type": "none",
    "fiber_level": "none",
    "protein_level": "none",
    "fat_level": "none",
    "processing_level": "moderate",
    "ultra_processed_markers": ["industrial additives or ingredients"],
    "ingredient_count": 0
  },
  "food_properties": {
    "sugar_dominant": false,
    "fiber_protein_support": "none",
    "energy_release_pattern": "mixed",
    "satiety_support": "moderate",
    "formulation_complexity": "moderate"
  },
  "confidence_notes": {
    "data_completeness": "high",
    "ambiguity_flags": []
  }
}`)
	return b.String()
}
