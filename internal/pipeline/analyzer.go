package pipeline

import (
	"context"
	"fmt"
	"strings"

	"unlabel/backend/internal/ai"
	"unlabel/backend/internal/label"
)

const analyzerSystem = `You are a calm Food Intelligence Co-pilot.
Your goal is NOT to tell users what to eat, but to help them understand trade-offs and make informed decisions.
Analyze the provided input (ingredients text OR an image of a food label).
- Infer intent: "is this healthy?" means healthy for whom and for what; answer with nuance.
- Reason first: explain the mechanism behind each ingredient effect rather than listing ingredients.
- Be honest about uncertainty: if the image is blurry or the text ambiguous, say so in uncertainty_note.
- Frame health implications as general knowledge, never medical advice.
- If the input is not food, say "This doesn't look like a food label." as the insight.
Return JSON only:
{
  "insight": "One clear, human-readable sentence summarizing the essence.",
  "detailed_reasoning": "A paragraph explaining why this matters.",
  "trade_offs": {"pros": ["..."], "cons": ["..."]},
  "uncertainty_note": "Anything vague or unclear."
}`

const extractionPrompt = `Extract all ingredient and nutrition information from this food label image.

Return ONLY the following information in a clear, structured format:
1. Ingredients list (if visible)
2. Nutrition facts (if visible), including calories, carbs, sugars, protein, fiber and fat
3. Any other relevant product information

Format your response as:
INGREDIENTS:
[list all ingredients]

NUTRITION FACTS:
[all nutrition information]

If any information is unclear or missing, note that in your response.`

// Analyzer produces the single-shot narrative analysis and extracts label
// text from photos.
type Analyzer struct {
	llm ai.Capability
}

// NewAnalyzer constructs an analyzer over llm.
func NewAnalyzer(llm ai.Capability) *Analyzer {
	return &Analyzer{llm: llm}
}

// AnalyzeText analyses ingredient text. Failures yield FailedAnalysis.
func (a *Analyzer) AnalyzeText(ctx context.Context, text string) label.AnalysisResponse {
	return a.analyze(ctx, ai.Request{
		Prompt: fmt.Sprintf("Ingredients to analyze:\n%q\n", strings.TrimSpace(text)),
	})
}

// AnalyzeImage analyses a label photo directly.
func (a *Analyzer) AnalyzeImage(ctx context.Context, image []byte, mime string) label.AnalysisResponse {
	return a.analyze(ctx, ai.Request{
		Prompt:    "Analyze this food label image.",
		Image:     image,
		ImageMIME: mime,
	})
}

func (a *Analyzer) analyze(ctx context.Context, req ai.Request) label.AnalysisResponse {
	ctx, span := startStage(ctx, "analyze")
	defer span.End()

	req.System = analyzerSystem
	var out label.AnalysisResponse
	if err := ai.DecodeJSON(ctx, a.llm, req, legacyAnalysisSchema, &out); err != nil {
		recordFallback(ctx, span, "analyze", err)
		return FailedAnalysis()
	}

	out.Insight = strings.TrimSpace(out.Insight)
	if out.Insight == "" {
		out.Insight = "Analysis complete."
	}
	if strings.TrimSpace(out.DetailedReasoning) == "" {
		out.DetailedReasoning = "No details provided."
	}
	out.TradeOffs.Pros = cleanStrings(out.TradeOffs.Pros)
	out.TradeOffs.Cons = cleanStrings(out.TradeOffs.Cons)
	if out.UncertaintyNote != nil && strings.TrimSpace(*out.UncertaintyNote) == "" {
		out.UncertaintyNote = nil
	}
	return out
}

// FailedAnalysis is the analysis returned when the reasoning engine is unreachable.
func FailedAnalysis() label.AnalysisResponse {
	note := "System Error"
	return label.AnalysisResponse{
		Insight:           "Could not analyze at this moment.",
		DetailedReasoning: "The reasoning engine could not complete this analysis.",
		TradeOffs:         label.TradeOffs{Pros: []string{}, Cons: []string{}},
		UncertaintyNote:   &note,
	}
}

// ExtractLabel reads the ingredient and nutrition text off a label photo.
// Unlike the other stages it returns an error, since there is no useful
// text to fall back to.
func (a *Analyzer) ExtractLabel(ctx context.Context, image []byte, mime string) (string, error) {
	ctx, span := startStage(ctx, "extract")
	defer span.End()

	if a.llm == nil || !a.llm.Enabled() {
		return "", ai.ErrUnavailable
	}
	if len(image) == 0 {
		return "", fmt.Errorf("extract label: %w", ErrEmptyInput)
	}
	text, err := a.llm.Invoke(ctx, ai.Request{
		Prompt:    extractionPrompt,
		Image:     image,
		ImageMIME: mime,
		Format:    ai.FormatText,
	})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("extract label: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("extract label: %w: empty text", ai.ErrMalformedOutput)
	}
	return text, nil
}
