package label

import "strings"

var (
	sweetenerTypes   = []string{"none", "natural", "added", "mixed"}
	nutrientLevels   = []string{"none", "low", "moderate", "high"}
	processingLevels = []string{"low", "moderate", "high"}
	supportLevels    = []string{"none", "weak", "moderate", "strong"}
	releasePatterns  = []string{"rapid", "mixed", "slow"}
	satietyLevels    = []string{"low", "moderate", "high"}
	complexities     = []string{"simple", "moderate", "complex"}
	completeness     = []string{"high", "medium", "low"}
)

// FallbackAnalysis returns the conservative interpretation used when the
// ingredient text could not be interpreted. reason is recorded as an ambiguity flag.
func FallbackAnalysis(reason string) Analysis {
	flags := []string{}
	if reason = strings.TrimSpace(reason); reason != "" {
		flags = append(flags, reason)
	}
	return Analysis{
		IngredientSummary: IngredientSummary{
			PrimaryComponents:     []string{},
			SweetenerType:         "none",
			FiberLevel:            "none",
			ProteinLevel:          "none",
			FatLevel:              "none",
			ProcessingLevel:       "moderate",
			UltraProcessedMarkers: []string{},
		},
		FoodProperties: FoodProperties{
			FiberProteinSupport:   "none",
			EnergyReleasePattern:  "mixed",
			SatietySupport:        "moderate",
			FormulationComplexity: "moderate",
		},
		ConfidenceNotes: ConfidenceNotes{
			DataCompleteness: "low",
			AmbiguityFlags:   flags,
		},
	}
}

// Normalize coerces every categorical field onto its vocabulary and replaces nil
// slices so the value serialises with stable shapes.
func (a *Analysis) Normalize() {
	s := &a.IngredientSummary
	s.SweetenerType = oneOf(s.SweetenerType, sweetenerTypes, "none")
	s.FiberLevel = oneOf(s.FiberLevel, nutrientLevels, "none")
	s.ProteinLevel = oneOf(s.ProteinLevel, nutrientLevels, "none")
	s.FatLevel = oneOf(s.FatLevel, nutrientLevels, "none")
	s.ProcessingLevel = oneOf(s.ProcessingLevel, processingLevels, "moderate")
	if s.IngredientCount < 0 {
		s.IngredientCount = 0
	}
	s.PrimaryComponents = cleanList(s.PrimaryComponents)
	s.UltraProcessedMarkers = cleanList(s.UltraProcessedMarkers)

	p := &a.FoodProperties
	p.FiberProteinSupport = oneOf(p.FiberProteinSupport, supportLevels, "none")
	p.EnergyReleasePattern = oneOf(p.EnergyReleasePattern, releasePatterns, "mixed")
	p.SatietySupport = oneOf(p.SatietySupport, satietyLevels, "moderate")
	p.FormulationComplexity = oneOf(p.FormulationComplexity, complexities, "moderate")

	n := &a.ConfidenceNotes
	n.DataCompleteness = oneOf(n.DataCompleteness, completeness, "low")
	n.AmbiguityFlags = cleanList(n.AmbiguityFlags)
}

// MergeMarkers appends markers not already present, compared case-insensitively.
func (a *Analysis) MergeMarkers(markers []string) {
	seen := make(map[string]struct{}, len(a.IngredientSummary.UltraProcessedMarkers))
	for _, m := range a.IngredientSummary.UltraProcessedMarkers {
		seen[strings.ToLower(m)] = struct{}{}
	}
	for _, m := range markers {
		key := strings.ToLower(strings.TrimSpace(m))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		a.IngredientSummary.UltraProcessedMarkers = append(a.IngredientSummary.UltraProcessedMarkers, strings.TrimSpace(m))
	}
}

func oneOf(value string, allowed []string, fallback string) string {
	v := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range allowed {
		if v == candidate {
			return candidate
		}
	}
	return fallback
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Truncate returns at most n leading entries of items.
func Truncate(items []string, n int) []string {
	if n < 0 {
		n = 0
	}
	if len(items) > n {
		return items[:n]
	}
	return items
}
