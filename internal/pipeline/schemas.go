package pipeline

import (
	"github.com/modelcontextprotocol/go-sdk/jsonschema"

	"unlabel/backend/internal/ai"
)

var (
	analysisSchema = ai.MustSchema("structured_analysis", ai.Object(map[string]*jsonschema.Schema{
		"ingredient_summary": ai.Object(map[string]*jsonschema.Schema{
			"primary_components":      ai.StringList(),
			"added_sugars_present":    {Type: "boolean"},
			"sweetener_type":          {Type: "string"},
			"fiber_level":             {Type: "string"},
			"protein_level":           {Type: "string"},
			"fat_level":               {Type: "string"},
			"processing_level":        {Type: "string"},
			"ultra_processed_markers": ai.StringList(),
			"ingredient_count":        {Type: "integer"},
		}),
		"food_properties": ai.Object(map[string]*jsonschema.Schema{
			"sugar_dominant":         {Type: "boolean"},
			"fiber_protein_support":  {Type: "string"},
			"energy_release_pattern": {Type: "string"},
			"satiety_support":        {Type: "string"},
			"formulation_complexity": {Type: "string"},
		}),
		"confidence_notes": ai.Object(map[string]*jsonschema.Schema{
			"data_completeness": {Type: "string"},
			"ambiguity_flags":   ai.StringList(),
		}),
	}))

	quickInsightSchema = ai.MustSchema("quick_insight", &jsonschema.Schema{
		Type:     "object",
		Required: []string{"summary"},
		Properties: map[string]*jsonschema.Schema{
			"summary":            {Type: "string", MinLength: minOne()},
			"uncertainty_reason": {},
		},
	})

	explanationSchema = ai.MustSchema("consumer_explanation", &jsonschema.Schema{
		Type:     "object",
		Required: []string{"why_this_matters", "when_it_makes_sense", "what_to_know"},
		Properties: map[string]*jsonschema.Schema{
			"verdict":             {Type: "string"},
			"why_this_matters":    ai.StringList(),
			"when_it_makes_sense": {Type: "string"},
			"what_to_know":        {Type: "string"},
		},
	})

	translationItem = ai.Object(map[string]*jsonschema.Schema{
		"term":               {Type: "string", MinLength: minOne()},
		"simple_explanation": {Type: "string"},
		"category":           {Type: "string"},
	})

	translationsSchema = ai.MustSchema("ingredient_translations", &jsonschema.Schema{
		AnyOf: []*jsonschema.Schema{
			{Type: "array", Items: translationItem},
			{
				Type:       "object",
				Required:   []string{"translations"},
				Properties: map[string]*jsonschema.Schema{"translations": {Type: "array", Items: translationItem}},
			},
		},
	})

	legacyAnalysisSchema = ai.MustSchema("analysis_response", &jsonschema.Schema{
		Type:     "object",
		Required: []string{"insight"},
		Properties: map[string]*jsonschema.Schema{
			"insight":            {Type: "string"},
			"detailed_reasoning": {Type: "string"},
			"trade_offs": {
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"pros": ai.StringList(),
					"cons": ai.StringList(),
				},
			},
			"uncertainty_note": {},
		},
	})
)

func minOne() *int {
	n := 1
	return &n
}
