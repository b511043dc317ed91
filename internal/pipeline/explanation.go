package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"unlabel/backend/internal/ai"
	"unlabel/backend/internal/label"
)

// MaxWhyThisMatters bounds ConsumerExplanation.WhyThisMatters.
const MaxWhyThisMatters = 3

const (
	quickInsightSystem = `You are a food intelligence assistant.
Generate a ONE-SENTENCE summary that gives instant understanding.
Be clear, direct, and avoid jargon.`

	explanationSystem = `You are a consumer food explanation assistant.
Your job is to explain a pre-computed decision clearly and calmly.
You MUST:
- Use simple language
- Avoid fear-based tone
- Avoid medical claims
- Stay under 120 words`

	incompleteLabelReason = "Label information is incomplete"
)

// Explainer narrates a pre-computed Decision for consumers.
type Explainer struct {
	llm ai.Capability
}

// NewExplainer constructs an explainer over llm.
func NewExplainer(llm ai.Capability) *Explainer {
	return &Explainer{llm: llm}
}

// QuickInsight returns a one-sentence summary of d. It never fails.
func (e *Explainer) QuickInsight(ctx context.Context, d label.Decision, a label.Analysis) label.QuickInsight {
	ctx, span := startStage(ctx, "quick_insight")
	defer span.End()

	var out struct {
		Summary           string  `json:"summary"`
		UncertaintyReason *string `json:"uncertainty_reason"`
	}
	err := ai.DecodeJSON(ctx, e.llm, ai.Request{
		Prompt:      buildQuickInsightPrompt(d, a),
		System:      quickInsightSystem,
		Temperature: ai.Temperature(0.4),
	}, quickInsightSchema, &out)
	if err != nil {
		recordFallback(ctx, span, "quick_insight", err)
		return fallbackQuickInsight(d, a, err)
	}

	insight := label.QuickInsight{Summary: strings.TrimSpace(out.Summary)}
	if reason := out.UncertaintyReason; reason != nil {
		if trimmed := strings.TrimSpace(*reason); trimmed != "" && !strings.EqualFold(trimmed, "null") {
			insight.UncertaintyReason = &trimmed
		}
	}
	if insight.UncertaintyReason == nil && a.ConfidenceNotes.DataCompleteness == "low" {
		insight.UncertaintyReason = uncertaintyFor(a)
	}
	return insight
}

func fallbackQuickInsight(d label.Decision, a label.Analysis, err error) label.QuickInsight {
	summary := fmt.Sprintf("This product is rated '%s'.", d.Verdict)
	if errors.Is(err, ai.ErrUnavailable) {
		summary = fmt.Sprintf("This product is rated '%s' based on its ingredient profile.", d.Verdict)
	}
	insight := label.QuickInsight{Summary: summary}
	if a.ConfidenceNotes.DataCompleteness == "low" {
		insight.UncertaintyReason = uncertaintyFor(a)
	}
	return insight
}

func uncertaintyFor(a label.Analysis) *string {
	reason := incompleteLabelReason
	if flags := a.ConfidenceNotes.AmbiguityFlags; len(flags) > 0 {
		reason = flags[0]
	}
	return &reason
}

// Explain returns the consumer explanation of d. The verdict always mirrors
// d.Verdict and WhyThisMatters holds at most MaxWhyThisMatters entries.
func (e *Explainer) Explain(ctx context.Context, d label.Decision) label.ConsumerExplanation {
	ctx, span := startStage(ctx, "explain")
	defer span.End()

	var out label.ConsumerExplanation
	err := ai.DecodeJSON(ctx, e.llm, ai.Request{
		Prompt:      buildExplanationPrompt(d),
		System:      explanationSystem,
		Temperature: ai.Temperature(0.5),
	}, explanationSchema, &out)
	if err != nil {
		recordFallback(ctx, span, "explain", err)
		return fallbackExplanation(d, err)
	}

	out.Verdict = d.Verdict
	out.WhyThisMatters = label.Truncate(cleanStrings(out.WhyThisMatters), MaxWhyThisMatters)
	out.WhenItMakesSense = strings.TrimSpace(out.WhenItMakesSense)
	out.WhatToKnow = strings.TrimSpace(out.WhatToKnow)
	return out
}

func fallbackExplanation(d label.Decision, err error) label.ConsumerExplanation {
	if errors.Is(err, ai.ErrUnavailable) {
		return label.ConsumerExplanation{
			Verdict: d.Verdict,
			WhyThisMatters: []string{
				"Processing level affects nutrient availability",
				"Ingredient composition impacts energy release",
			},
			WhenItMakesSense: "Consider your individual needs and context",
			WhatToKnow:       "This is informational, not medical advice",
		}
	}
	why := append([]string{}, label.Truncate(d.KeySignals, MaxWhyThisMatters)...)
	return label.ConsumerExplanation{
		Verdict:          d.Verdict,
		WhyThisMatters:   why,
		WhenItMakesSense: "Consider your individual dietary needs and preferences",
		WhatToKnow:       "This analysis is informational and not medical advice",
	}
}

func buildQuickInsightPrompt(d label.Decision, a label.Analysis) string {
	b := &strings.Builder{}
	b.WriteString("Create a one-sentence summary for this decision:\n\n")
	fmt.Fprintf(b, "Verdict: %s\n", d.Verdict)
	fmt.Fprintf(b, "Key Signals: %s\n", strings.Join(label.Truncate(d.KeySignals, 3), ", "))
	fmt.Fprintf(b, "Processing Level: %s\n", a.IngredientSummary.ProcessingLevel)
	fmt.Fprintf(b, "Sugar Dominant: %t\n\n", a.FoodProperties.SugarDominant)
	b.WriteString(`Return JSON:
{
  "summary": "One clear sentence (max 20 words)",
  "uncertainty_reason": null
}
Set uncertainty_reason to a brief reason only if information is incomplete.`)
	return b.String()
}

func buildExplanationPrompt(d label.Decision) string {
	b := &strings.Builder{}
	b.WriteString("Using the decision below, explain the result to a general consumer.\n\n")
	fmt.Fprintf(b, "DECISION:\nVerdict: %s\nKey Signals:\n", d.Verdict)
	for _, s := range d.KeySignals {
		fmt.Fprintf(b, "- %s\n", s)
	}
	fmt.Fprintf(b, `
OUTPUT FORMAT (STRICT JSON):
{
  "verdict": %q,
  "why_this_matters": ["bullet 1", "bullet 2", "bullet 3"],
  "when_it_makes_sense": "One sentence",
  "what_to_know": "One sentence"
}
Do not add extra information.`, d.Verdict)
	return b.String()
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
