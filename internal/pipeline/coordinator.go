package pipeline

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"unlabel/backend/internal/ai"
	"unlabel/backend/internal/label"
	"unlabel/backend/internal/scoring"
	"unlabel/backend/internal/util"
)

var pipelineDuration, _ = otel.Meter("unlabel/pipeline").Int64Histogram("pipeline_duration_ms",
	metric.WithDescription("Wall time of one decision pipeline run"),
	metric.WithUnit("ms"))

// Request is one decision-engine query.
type Request struct {
	Text             string `json:"text"`
	UserIntent       string `json:"user_intent,omitempty"`
	Nutrition        string `json:"nutrition,omitempty"`
	IncludeNutrition bool   `json:"include_nutrition,omitempty"`
}

// Options tunes the stages the Coordinator builds.
type Options struct {
	Markers         *scoring.MarkerScanner
	MaxTranslations int
}

// Coordinator sequences the decision pipeline:
// intent, interpretation, decision, explanation, quick insight, translation.
type Coordinator struct {
	llm         ai.Capability
	intent      *IntentClassifier
	interpreter *Interpreter
	explainer   *Explainer
	translator  *Translator
}

// NewCoordinator wires every stage over the same capability.
func NewCoordinator(llm ai.Capability, opts Options) *Coordinator {
	markers := opts.Markers
	if markers == nil {
		markers = scoring.DefaultMarkerScanner()
	}
	return &Coordinator{
		llm:         llm,
		intent:      NewIntentClassifier(llm),
		interpreter: NewInterpreter(llm, markers),
		explainer:   NewExplainer(llm),
		translator:  NewTranslator(llm, markers, opts.MaxTranslations),
	}
}

// Process runs the full pipeline. It fails only on empty input or a missing
// capability; every stage failure below that degrades to a fallback value.
func (c *Coordinator) Process(ctx context.Context, req Request) (label.DecisionResponse, error) {
	if strings.TrimSpace(req.Text) == "" {
		return label.DecisionResponse{}, ErrEmptyInput
	}
	if c == nil || c.llm == nil {
		return label.DecisionResponse{}, ErrNotConfigured
	}

	ctx, span := tracer.Start(ctx, "coordinator.process")
	defer span.End()
	timer := util.StartTimer()

	intent, ok := label.ParseIntent(req.UserIntent)
	if !ok || strings.TrimSpace(req.UserIntent) == "" {
		intent = c.intent.Classify(ctx, req.Text)
	}
	timer.Lap("intent")

	analysis := c.interpreter.Interpret(ctx, InterpretInput{
		Ingredients:      req.Text,
		Nutrition:        req.Nutrition,
		IncludeNutrition: req.IncludeNutrition,
	})
	timer.Lap("interpret")

	decision := scoring.Decide(analysis)
	timer.Lap("decide")

	explanation := c.explainer.Explain(ctx, decision)
	timer.Lap("explain")

	insight := c.explainer.QuickInsight(ctx, decision, analysis)
	timer.Lap("quick_insight")

	translations := c.translator.Translate(ctx, req.Text)
	timer.Lap("translate")

	flags := append([]string{}, analysis.ConfidenceNotes.AmbiguityFlags...)
	resp := label.DecisionResponse{
		QuickInsight:           insight,
		Verdict:                decision.Verdict,
		Explanation:            explanation,
		IntentClassified:       intent,
		KeySignals:             decision.KeySignals,
		IngredientTranslations: translations,
		UncertaintyFlags:       flags,
		StructuredAnalysis:     analysis,
	}

	elapsed := timer.ElapsedMs()
	span.SetAttributes(
		attribute.String("verdict", string(decision.Verdict)),
		attribute.String("intent", string(intent)),
	)
	pipelineDuration.Record(ctx, elapsed, metric.WithAttributes(attribute.String("verdict", string(decision.Verdict))))
	logrus.WithFields(logrus.Fields{
		"verdict":    decision.Verdict,
		"intent":     intent,
		"elapsed_ms": elapsed,
		"laps":       timer.Laps(),
	}).Info("decision pipeline complete")
	return resp, nil
}

// Analyzer returns a legacy analyzer sharing this coordinator's capability.
func (c *Coordinator) Analyzer() *Analyzer {
	return NewAnalyzer(c.llm)
}

// Capability exposes the gateway for callers composing extra stages.
func (c *Coordinator) Capability() ai.Capability {
	return c.llm
}
