package scoring

import (
	"fmt"
	"sort"
	"strings"

	"unlabel/backend/internal/label"
)

// MaxKeySignals bounds Decision.KeySignals.
const MaxKeySignals = 5

type signal struct {
	weight int
	text   string
}

// Decide maps a structured analysis onto a verdict and its ranked key signals.
// It is pure: the same analysis always yields the same decision.
func Decide(a label.Analysis) label.Decision {
	summary := a.IngredientSummary
	props := a.FoodProperties

	weakSupport := props.FiberProteinSupport == "none" || props.FiberProteinSupport == "weak"
	verdict := label.VerdictOccasional
	if props.SugarDominant && weakSupport && summary.ProcessingLevel == "high" {
		verdict = label.VerdictLimit
	} else if summary.ProcessingLevel == "low" && props.SatietySupport == "high" && !summary.AddedSugarsPresent {
		verdict = label.VerdictDaily
	}

	return label.Decision{
		Verdict:    verdict,
		KeySignals: rankSignals(collectSignals(a, weakSupport)),
	}
}

func collectSignals(a label.Analysis, weakSupport bool) []signal {
	summary := a.IngredientSummary
	props := a.FoodProperties
	var out []signal

	if props.SugarDominant {
		out = append(out, signal{100, "Sugar is the dominant ingredient"})
	}

	switch summary.ProcessingLevel {
	case "high":
		out = append(out, signal{90, "Highly processed formulation"})
	case "low":
		out = append(out, signal{80, "Minimally processed ingredients"})
	}

	switch {
	case weakSupport && (props.SugarDominant || summary.AddedSugarsPresent):
		out = append(out, signal{85, "Little fiber or protein to balance the sugars"})
	case props.FiberProteinSupport == "strong":
		out = append(out, signal{75, "Strong fiber and protein support"})
	case props.FiberProteinSupport == "moderate":
		out = append(out, signal{45, "Moderate fiber and protein support"})
	}

	if summary.AddedSugarsPresent {
		text := "Contains added sugars"
		if summary.SweetenerType == "mixed" {
			text = "Contains added sugars from mixed sweetener sources"
		}
		out = append(out, signal{70, text})
	}

	switch props.SatietySupport {
	case "high":
		out = append(out, signal{60, "Likely to keep you full"})
	case "low":
		out = append(out, signal{55, "Unlikely to keep you full for long"})
	}

	switch props.EnergyReleasePattern {
	case "rapid":
		out = append(out, signal{50, "Rapid energy release"})
	case "slow":
		out = append(out, signal{40, "Slow, steady energy release"})
	}

	if markers := summary.UltraProcessedMarkers; len(markers) > 0 {
		shown := label.Truncate(markers, 3)
		out = append(out, signal{65, fmt.Sprintf("Ultra-processed markers: %s", strings.Join(shown, ", "))})
	}

	if props.FormulationComplexity == "complex" {
		out = append(out, signal{30, "Complex formulation with many ingredients"})
	}

	if a.ConfidenceNotes.DataCompleteness == "low" {
		out = append(out, signal{20, "Limited label information, verdict is tentative"})
	}
	return out
}

// rankSignals orders by weight descending, keeping insertion order for ties.
func rankSignals(in []signal) []string {
	sort.SliceStable(in, func(i, j int) bool { return in[i].weight > in[j].weight })
	out := make([]string, 0, MaxKeySignals)
	for _, s := range in {
		if len(out) == MaxKeySignals {
			break
		}
		out = append(out, s.text)
	}
	return out
}
