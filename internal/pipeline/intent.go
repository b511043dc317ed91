package pipeline

import (
	"context"
	"fmt"
	"strings"

	"unlabel/backend/internal/ai"
	"unlabel/backend/internal/label"
)

// IntentClassifier labels the implicit question behind a label query.
type IntentClassifier struct {
	llm ai.Capability
}

// NewIntentClassifier constructs a classifier over llm.
func NewIntentClassifier(llm ai.Capability) *IntentClassifier {
	return &IntentClassifier{llm: llm}
}

// Classify never fails: unparseable or failed calls yield IntentCuriosity.
func (c *IntentClassifier) Classify(ctx context.Context, text string) label.Intent {
	ctx, span := startStage(ctx, "intent")
	defer span.End()

	if c == nil || c.llm == nil || !c.llm.Enabled() {
		recordFallback(ctx, span, "intent", ai.ErrUnavailable)
		return label.IntentCuriosity
	}

	reply, err := c.llm.Invoke(ctx, ai.Request{
		Prompt:      buildIntentPrompt(text),
		Format:      ai.FormatText,
		Temperature: ai.Temperature(0.1),
	})
	if err != nil {
		recordFallback(ctx, span, "intent", err)
		return label.IntentCuriosity
	}

	intent, ok := label.ParseIntent(reply)
	if !ok {
		recordFallback(ctx, span, "intent", fmt.Errorf("%w: intent %q", ai.ErrMalformedOutput, reply))
		return label.IntentCuriosity
	}
	return intent
}

func buildIntentPrompt(text string) string {
	names := make([]string, 0, len(label.Intents))
	for _, intent := range label.Intents {
		names = append(names, string(intent))
	}
	b := &strings.Builder{}
	b.WriteString("Classify what the person most likely wants to know about this food product.\n")
	b.WriteString("- quick_yes_no: they want a fast \"is this okay?\" answer\n")
	b.WriteString("- comparison: they are weighing it against alternatives\n")
	b.WriteString("- risk_check: they are worried about a specific ingredient or health concern\n")
	b.WriteString("- curiosity: they want to understand what is in it\n")
	fmt.Fprintf(b, "Reply with exactly one of: %s. No other words.\n\n", strings.Join(names, ", "))
	fmt.Fprintf(b, "Input:\n%s\n", strings.TrimSpace(text))
	return b.String()
}
