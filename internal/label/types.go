package label

import "strings"

// Verdict is the consumer-facing consumption frequency classification.
type Verdict string

const (
	VerdictDaily      Verdict = "Daily"
	VerdictOccasional Verdict = "Occasional"
	VerdictLimit      Verdict = "Limit Frequent Use"
)

// Intent labels the implicit question behind a request.
type Intent string

const (
	IntentQuickYesNo Intent = "quick_yes_no"
	IntentComparison Intent = "comparison"
	IntentRiskCheck  Intent = "risk_check"
	IntentCuriosity  Intent = "curiosity"
)

// Intents lists the closed intent vocabulary in prompt order.
var Intents = []Intent{IntentQuickYesNo, IntentComparison, IntentRiskCheck, IntentCuriosity}

// ParseIntent maps free text onto the intent vocabulary.
func ParseIntent(value string) (Intent, bool) {
	cleaned := strings.ToLower(strings.TrimSpace(value))
	cleaned = strings.Trim(cleaned, "\"'`.")
	for _, intent := range Intents {
		if cleaned == string(intent) {
			return intent, true
		}
	}
	for _, intent := range Intents {
		if strings.Contains(cleaned, string(intent)) {
			return intent, true
		}
	}
	return "", false
}

// IngredientSummary describes what is in the product.
type IngredientSummary struct {
	PrimaryComponents     []string `json:"primary_components"`
	AddedSugarsPresent    bool     `json:"added_sugars_present"`
	SweetenerType         string   `json:"sweetener_type"`
	FiberLevel            string   `json:"fiber_level"`
	ProteinLevel          string   `json:"protein_level"`
	FatLevel              string   `json:"fat_level"`
	ProcessingLevel       string   `json:"processing_level"`
	UltraProcessedMarkers []string `json:"ultra_processed_markers"`
	IngredientCount       int      `json:"ingredient_count"`
}

// FoodProperties describes how the product behaves as food.
type FoodProperties struct {
	SugarDominant         bool   `json:"sugar_dominant"`
	FiberProteinSupport   string `json:"fiber_protein_support"`
	EnergyReleasePattern  string `json:"energy_release_pattern"`
	SatietySupport        string `json:"satiety_support"`
	FormulationComplexity string `json:"formulation_complexity"`
}

// ConfidenceNotes captures how much the interpretation can be trusted.
type ConfidenceNotes struct {
	DataCompleteness string   `json:"data_completeness"`
	AmbiguityFlags   []string `json:"ambiguity_flags"`
}

// Analysis is the structured interpretation of ingredient and nutrition text.
type Analysis struct {
	IngredientSummary IngredientSummary `json:"ingredient_summary"`
	FoodProperties    FoodProperties    `json:"food_properties"`
	ConfidenceNotes   ConfidenceNotes   `json:"confidence_notes"`
}

// Decision is the deterministic verdict derived from an Analysis.
type Decision struct {
	Verdict    Verdict  `json:"verdict"`
	KeySignals []string `json:"key_signals"`
}

// ConsumerExplanation is the narrated form of a Decision.
type ConsumerExplanation struct {
	Verdict          Verdict  `json:"verdict"`
	WhyThisMatters   []string `json:"why_this_matters"`
	WhenItMakesSense string   `json:"when_it_makes_sense"`
	WhatToKnow       string   `json:"what_to_know"`
}

// QuickInsight is the one-line summary shown first to the consumer.
type QuickInsight struct {
	Summary           string  `json:"summary"`
	UncertaintyReason *string `json:"uncertainty_reason,omitempty"`
}

// Translation explains one technical ingredient term.
type Translation struct {
	Term              string `json:"term"`
	SimpleExplanation string `json:"simple_explanation"`
	Category          string `json:"category"`
}

// DecisionResponse aggregates every pipeline stage for one label.
type DecisionResponse struct {
	QuickInsight           QuickInsight        `json:"quick_insight"`
	Verdict                Verdict             `json:"verdict"`
	Explanation            ConsumerExplanation `json:"explanation"`
	IntentClassified       Intent              `json:"intent_classified"`
	KeySignals             []string            `json:"key_signals"`
	IngredientTranslations []Translation       `json:"ingredient_translations"`
	UncertaintyFlags       []string            `json:"uncertainty_flags"`
	StructuredAnalysis     Analysis            `json:"structured_analysis"`
}

// TradeOffs lists the upsides and downsides of a product.
type TradeOffs struct {
	Pros []string `json:"pros"`
	Cons []string `json:"cons"`
}

// AnalysisResponse is the single-shot narrative analysis of a label.
type AnalysisResponse struct {
	Insight           string    `json:"insight"`
	DetailedReasoning string    `json:"detailed_reasoning"`
	TradeOffs         TradeOffs `json:"trade_offs"`
	UncertaintyNote   *string   `json:"uncertainty_note,omitempty"`
}

// Winner names the preferred product of a comparison.
type Winner string

const (
	WinnerA       Winner = "A"
	WinnerB       Winner = "B"
	WinnerSimilar Winner = "Similar"
)

// ComparisonInsight is the structured verdict of a two-product comparison.
type ComparisonInsight struct {
	Winner         Winner   `json:"winner"`
	Summary        string   `json:"summary"`
	KeyDifferences []string `json:"key_differences"`
}

// ComparisonResponse is the full result of comparing two labels.
type ComparisonResponse struct {
	ProductAName      string            `json:"product_a_name"`
	ProductBName      string            `json:"product_b_name"`
	ProductAAnalysis  DecisionResponse  `json:"product_a_analysis"`
	ProductBAnalysis  DecisionResponse  `json:"product_b_analysis"`
	ComparisonInsight ComparisonInsight `json:"comparison_insight"`
	Recommendation    string            `json:"recommendation"`
}
