package scoring

import (
	"reflect"
	"strings"
	"testing"

	"unlabel/backend/internal/label"
)

func analysis(mutate func(a *label.Analysis)) label.Analysis {
	a := label.Analysis{
		IngredientSummary: label.IngredientSummary{
			SweetenerType:   "none",
			FiberLevel:      "low",
			ProteinLevel:    "low",
			FatLevel:        "low",
			ProcessingLevel: "moderate",
			IngredientCount: 6,
		},
		FoodProperties: label.FoodProperties{
			FiberProteinSupport:   "moderate",
			EnergyReleasePattern:  "mixed",
			SatietySupport:        "moderate",
			FormulationComplexity: "moderate",
		},
		ConfidenceNotes: label.ConfidenceNotes{DataCompleteness: "high"},
	}
	if mutate != nil {
		mutate(&a)
	}
	return a
}

func TestDecideVerdicts(t *testing.T) {
	tests := []struct {
		name     string
		input    label.Analysis
		expected label.Verdict
	}{
		{"default occasional", analysis(nil), label.VerdictOccasional},
		{"escalate weak support", analysis(func(a *label.Analysis) {
			a.FoodProperties.SugarDominant = true
			a.FoodProperties.FiberProteinSupport = "weak"
			a.IngredientSummary.ProcessingLevel = "high"
		}), label.VerdictLimit},
		{"escalate no support", analysis(func(a *label.Analysis) {
			a.FoodProperties.SugarDominant = true
			a.FoodProperties.FiberProteinSupport = "none"
			a.IngredientSummary.ProcessingLevel = "high"
		}), label.VerdictLimit},
		{"sugar but strong support stays occasional", analysis(func(a *label.Analysis) {
			a.FoodProperties.SugarDominant = true
			a.FoodProperties.FiberProteinSupport = "strong"
			a.IngredientSummary.ProcessingLevel = "high"
		}), label.VerdictOccasional},
		{"sugar and weak support but moderate processing", analysis(func(a *label.Analysis) {
			a.FoodProperties.SugarDominant = true
			a.FoodProperties.FiberProteinSupport = "weak"
		}), label.VerdictOccasional},
		{"de-escalate", analysis(func(a *label.Analysis) {
			a.IngredientSummary.ProcessingLevel = "low"
			a.FoodProperties.SatietySupport = "high"
		}), label.VerdictDaily},
		{"added sugar blocks daily", analysis(func(a *label.Analysis) {
			a.IngredientSummary.ProcessingLevel = "low"
			a.FoodProperties.SatietySupport = "high"
			a.IngredientSummary.AddedSugarsPresent = true
		}), label.VerdictOccasional},
		{"fallback analysis", label.FallbackAnalysis("interpreter unavailable"), label.VerdictOccasional},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := Decide(tc.input)
			if result.Verdict != tc.expected {
				t.Fatalf("expected %s got %s", tc.expected, result.Verdict)
			}
		})
	}
}

func TestDecideIsDeterministic(t *testing.T) {
	inputs := []label.Analysis{
		analysis(nil),
		label.FallbackAnalysis("x"),
		analysis(func(a *label.Analysis) {
			a.FoodProperties.SugarDominant = true
			a.IngredientSummary.AddedSugarsPresent = true
			a.IngredientSummary.SweetenerType = "mixed"
			a.IngredientSummary.UltraProcessedMarkers = []string{"maltodextrin", "artificial flavor", "carrageenan", "soy lecithin"}
			a.FoodProperties.EnergyReleasePattern = "rapid"
			a.FoodProperties.SatietySupport = "low"
			a.FoodProperties.FormulationComplexity = "complex"
		}),
	}
	for i, in := range inputs {
		first := Decide(in)
		for n := 0; n < 20; n++ {
			if again := Decide(in); !reflect.DeepEqual(first, again) {
				t.Fatalf("input %d: decision changed between calls: %+v vs %+v", i, first, again)
			}
		}
	}
}

func TestDecideKeySignals(t *testing.T) {
	a := analysis(func(a *label.Analysis) {
		a.FoodProperties.SugarDominant = true
		a.FoodProperties.FiberProteinSupport = "none"
		a.FoodProperties.EnergyReleasePattern = "rapid"
		a.FoodProperties.SatietySupport = "low"
		a.FoodProperties.FormulationComplexity = "complex"
		a.IngredientSummary.ProcessingLevel = "high"
		a.IngredientSummary.AddedSugarsPresent = true
		a.IngredientSummary.UltraProcessedMarkers = []string{"high fructose corn syrup", "artificial flavor"}
	})

	result := Decide(a)

	if result.Verdict != label.VerdictLimit {
		t.Fatalf("expected %s got %s", label.VerdictLimit, result.Verdict)
	}
	if len(result.KeySignals) != MaxKeySignals {
		t.Fatalf("expected %d signals got %d", MaxKeySignals, len(result.KeySignals))
	}
	expected := []string{
		"Sugar is the dominant ingredient",
		"Highly processed formulation",
		"Little fiber or protein to balance the sugars",
		"Contains added sugars",
		"Ultra-processed markers: high fructose corn syrup, artificial flavor",
	}
	if !reflect.DeepEqual(expected, result.KeySignals) {
		t.Fatalf("unexpected signal order: %v", result.KeySignals)
	}
}

func TestDecideScenarioSugarSyrup(t *testing.T) {
	a := label.FallbackAnalysis("")
	a.IngredientSummary.PrimaryComponents = []string{"sugar", "high fructose corn syrup", "artificial flavor"}
	a.IngredientSummary.AddedSugarsPresent = true
	a.IngredientSummary.FiberLevel = "none"
	a.IngredientSummary.ProcessingLevel = "high"
	a.FoodProperties.SugarDominant = true
	a.ConfidenceNotes.DataCompleteness = "medium"

	result := Decide(a)

	if result.Verdict != label.VerdictLimit {
		t.Fatalf("expected %s got %s", label.VerdictLimit, result.Verdict)
	}
	found := false
	for _, s := range result.KeySignals {
		lower := strings.ToLower(s)
		if strings.Contains(lower, "sugar") || strings.Contains(lower, "processed") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a sugar or processing signal in %v", result.KeySignals)
	}
}

func TestDecideFlagsLowCompleteness(t *testing.T) {
	result := Decide(label.FallbackAnalysis("no data"))
	if len(result.KeySignals) == 0 || result.KeySignals[len(result.KeySignals)-1] != "Limited label information, verdict is tentative" {
		t.Fatalf("expected tentative signal, got %v", result.KeySignals)
	}
}
