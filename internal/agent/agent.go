package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/jsonschema"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"unlabel/backend/internal/ai"
	"unlabel/backend/internal/label"
	"unlabel/backend/internal/pipeline"
)

// DefaultMaxSteps is the round cap used when Config.MaxSteps is not positive.
const DefaultMaxSteps = 5

const (
	initialTotalEstimate = 3

	// A generate_recommendations step carries between 3 and 5 records.
	minRecommendations = 3
	maxRecommendations = 5
)

var (
	tracer        = otel.Tracer("unlabel/agent")
	stepsTotal, _ = otel.Meter("unlabel/agent").Int64Counter("agent_steps_total",
		metric.WithDescription("Workflow steps executed by the autonomous agent"))

	recommendationsSchema = ai.MustSchema("recommendations", ai.Object(map[string]*jsonschema.Schema{
		"recommendations": {
			Type:     "array",
			MinItems: minItems(minRecommendations),
			Items: ai.Object(map[string]*jsonschema.Schema{
				"title":       {Type: "string"},
				"description": {Type: "string"},
				"priority":    {Type: "string"},
			}),
		},
	}))

	synthesisSchema = ai.MustSchema("synthesis", ai.Object(map[string]*jsonschema.Schema{
		"executive_summary": {Type: "string"},
		"key_takeaways":     ai.StringList(),
		"confidence_level":  ai.StringEnum("high", "medium", "low"),
		"next_steps":        ai.StringList(),
	}))
)

// Decider runs the decision pipeline on label text.
type Decider interface {
	Process(ctx context.Context, req pipeline.Request) (label.DecisionResponse, error)
}

// LabelAnalyzer produces the initial analysis.
type LabelAnalyzer interface {
	AnalyzeText(ctx context.Context, text string) label.AnalysisResponse
	AnalyzeImage(ctx context.Context, image []byte, mime string) label.AnalysisResponse
	ExtractLabel(ctx context.Context, image []byte, mime string) (string, error)
}

// Config bounds the planner loop.
type Config struct {
	MaxSteps int
	// EnforcePlan rewrites planner choices that break the planner rules.
	EnforcePlan bool
}

// Agent drives the multi-round autonomous analysis.
type Agent struct {
	llm      ai.Capability
	decider  Decider
	analyzer LabelAnalyzer
	maxSteps int
	enforce  bool
	log      *logrus.Entry
}

// New constructs an agent. llm plans and synthesizes; decider and analyzer do the work.
func New(llm ai.Capability, decider Decider, analyzer LabelAnalyzer, cfg Config) *Agent {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	return &Agent{
		llm:      llm,
		decider:  decider,
		analyzer: analyzer,
		maxSteps: cfg.MaxSteps,
		enforce:  cfg.EnforcePlan,
		log:      logrus.WithField("component", "agent"),
	}
}

// MaxSteps returns the round cap.
func (a *Agent) MaxSteps() int {
	return a.maxSteps
}

// Run executes the state machine: initial analysis, up to MaxSteps planner
// rounds, then synthesis. A nil sink is valid.
func (a *Agent) Run(ctx context.Context, in Input, sink ProgressSink) (Result, error) {
	if strings.TrimSpace(in.Text) == "" && len(in.Image) == 0 {
		return Result{}, pipeline.ErrEmptyInput
	}
	if a.llm == nil || a.decider == nil || a.analyzer == nil {
		return Result{}, pipeline.ErrNotConfigured
	}

	runID := strings.TrimSpace(in.RunID)
	if runID == "" {
		runID = uuid.NewString()
	}
	ctx, span := tracer.Start(ctx, "agent.run")
	defer span.End()
	span.SetAttributes(attribute.String("run_id", runID))
	log := a.log.WithField("run_id", runID)

	report := func(step, total int, message, status string) {
		if sink == nil {
			return
		}
		sink.Report(ctx, Progress{RunID: runID, Step: step, Total: total, Message: message, Status: status})
	}

	total := initialTotalEstimate
	report(1, total, "Starting initial analysis...", StatusInProgress)
	first, initial := a.initialStep(ctx, in, func(msg string) { report(1, total, msg, StatusInProgress) })
	steps := []Step{first}
	stepsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("action", string(first.Action))))

	for round := 1; round <= a.maxSteps; round++ {
		report(len(steps)+1, total, fmt.Sprintf("Deciding next action (step %d)...", len(steps)+1), StatusInProgress)

		choice := a.decideNext(ctx, initial, steps, in.Query)
		action := choice
		if a.enforce {
			action = enforcePlan(choice, steps)
		}
		log.WithFields(logrus.Fields{"round": round, "planner": choice, "action": action}).Info("agent action chosen")
		if action == ActionComplete {
			break
		}

		report(len(steps)+1, total, fmt.Sprintf("Executing: %s...", action), StatusInProgress)
		steps = append(steps, a.execute(ctx, action, initial))
		stepsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("action", string(action))))
		if len(steps)+1 > total {
			total = len(steps) + 1
		}
	}

	final := len(steps) + 1
	report(final, final, "Synthesizing final response...", StatusInProgress)
	synthesis := a.synthesize(ctx, initial, steps)
	report(final, final, "Analysis complete!", StatusCompleted)

	log.WithField("total_steps", len(steps)).Info("agent run complete")
	return Result{
		RunID:           runID,
		InitialAnalysis: initial,
		WorkflowSteps:   steps,
		Synthesis:       synthesis,
		TotalSteps:      len(steps),
	}, nil
}

func (a *Agent) initialStep(ctx context.Context, in Input, progress func(string)) (Step, InitialAnalysis) {
	ctx, span := tracer.Start(ctx, "agent.step")
	defer span.End()

	if len(in.Image) > 0 {
		span.SetAttributes(attribute.String("action", string(ActionAnalyzeImage)))
		mime := in.ImageMIME
		if mime == "" {
			mime = "image/jpeg"
		}
		progress("Analyzing image...")
		resp := a.analyzer.AnalyzeImage(ctx, in.Image, mime)

		progress("Extracting text from image...")
		extracted, err := a.analyzer.ExtractLabel(ctx, in.Image, mime)
		if err != nil {
			a.log.WithError(err).Warn("label extraction failed")
			extracted = strings.TrimSpace(in.Text)
		}
		initial := newInitialAnalysis(resp)
		initial.ExtractedText = extracted
		return Step{
			Action:      ActionAnalyzeImage,
			Description: "Initial image analysis with text extraction",
			Result:      initial,
			Reasoning:   "Extracted summary, key takeaways, and full text for follow-up analysis",
		}, initial
	}

	span.SetAttributes(attribute.String("action", string(ActionAnalyzeText)))
	progress("Analyzing text...")
	initial := newInitialAnalysis(a.analyzer.AnalyzeText(ctx, in.Text))
	initial.Text = in.Text
	return Step{
		Action:      ActionAnalyzeText,
		Description: "Initial text analysis",
		Result:      initial,
		Reasoning:   "Extracted summary and key takeaways",
	}, initial
}

func newInitialAnalysis(resp label.AnalysisResponse) InitialAnalysis {
	takeaways := make([]string, 0, 4)
	for _, pro := range label.Truncate(resp.TradeOffs.Pros, 2) {
		takeaways = append(takeaways, "✓ "+pro)
	}
	for _, con := range label.Truncate(resp.TradeOffs.Cons, 2) {
		takeaways = append(takeaways, "⚠ "+con)
	}
	return InitialAnalysis{
		Insight:           resp.Insight,
		DetailedReasoning: resp.DetailedReasoning,
		TradeOffs:         resp.TradeOffs,
		KeyTakeaways:      takeaways,
		UncertaintyNote:   resp.UncertaintyNote,
	}
}

func (a *Agent) execute(ctx context.Context, action Action, initial InitialAnalysis) Step {
	ctx, span := tracer.Start(ctx, "agent.step")
	defer span.End()
	span.SetAttributes(attribute.String("action", string(action)))

	switch action {
	case ActionDecisionEngine:
		resp, err := a.decider.Process(ctx, pipeline.Request{Text: initial.SourceText()})
		if err != nil {
			span.RecordError(err)
			return failedStep(action, "Decision engine analysis failed", err)
		}
		return Step{
			Action:      action,
			Description: "Deep analysis with multi-agent decision engine",
			Result: DecisionStepResult{
				Verdict:                resp.Verdict,
				QuickInsight:           resp.QuickInsight,
				Explanation:            resp.Explanation,
				KeySignals:             resp.KeySignals,
				IngredientTranslations: resp.IngredientTranslations,
				UncertaintyFlags:       resp.UncertaintyFlags,
			},
			Reasoning: "Decision engine provides structured analysis with intent classification and ingredient interpretation",
		}

	case ActionSearchProduct:
		return Step{
			Action:      action,
			Description: "Search global food database",
			Result:      PlaceholderResult{Status: "not_implemented", Message: "Product search integration pending"},
			Reasoning:   "Would search Open Food Facts database for similar products",
		}

	case ActionCompareAlternatives:
		return Step{
			Action:      action,
			Description: "Find healthier alternatives",
			Result:      PlaceholderResult{Status: "not_implemented", Message: "Alternative comparison pending"},
			Reasoning:   "Would compare with healthier alternatives based on key signals",
		}

	case ActionGenerateRecommendations:
		recs, err := a.recommend(ctx, initial)
		if err != nil {
			span.RecordError(err)
			return failedStep(action, "Recommendation generation failed", err)
		}
		return Step{
			Action:      action,
			Description: "Generate personalized recommendations",
			Result:      recs,
			Reasoning:   "AI-generated recommendations based on analysis",
		}
	}

	return Step{Action: action, Description: "Unknown action", Reasoning: "Action not recognized"}
}

func failedStep(action Action, description string, err error) Step {
	return Step{
		Action:      action,
		Description: description,
		Result:      ErrorResult{Error: err.Error()},
		Reasoning:   "Error: " + err.Error(),
	}
}

func (a *Agent) recommend(ctx context.Context, initial InitialAnalysis) (RecommendationsResult, error) {
	prompt := fmt.Sprintf(`Based on this food analysis, generate 3-5 actionable recommendations for the user.

ANALYSIS:
%s

Provide practical, specific recommendations. Format as JSON:
{
  "recommendations": [
    {"title": "...", "description": "...", "priority": "high|medium|low"}
  ]
}`, indentJSON(initial))

	var out RecommendationsResult
	if err := ai.DecodeJSON(ctx, a.llm, ai.Request{Prompt: prompt, Temperature: ai.Temperature(0.5)}, recommendationsSchema, &out); err != nil {
		return RecommendationsResult{}, err
	}
	if len(out.Recommendations) > maxRecommendations {
		out.Recommendations = out.Recommendations[:maxRecommendations]
	}
	for i := range out.Recommendations {
		r := &out.Recommendations[i]
		switch p := strings.ToLower(strings.TrimSpace(r.Priority)); p {
		case "high", "medium", "low":
			r.Priority = p
		default:
			r.Priority = "medium"
		}
	}
	return out, nil
}

// FallbackSynthesis is returned when the synthesis call fails.
func FallbackSynthesis() Synthesis {
	return Synthesis{
		ExecutiveSummary: "Analysis completed with multiple steps",
		KeyTakeaways:     []string{"See detailed steps for information"},
		ConfidenceLevel:  "medium",
		NextSteps:        []string{},
	}
}

func (a *Agent) synthesize(ctx context.Context, initial InitialAnalysis, steps []Step) Synthesis {
	ctx, span := tracer.Start(ctx, "agent.synthesize")
	defer span.End()

	prompt := fmt.Sprintf(`You are synthesizing a comprehensive food analysis report from multiple analysis steps.

INITIAL ANALYSIS:
%s

ALL ANALYSIS STEPS:
%s

Create a comprehensive summary that:
1. Highlights the most important findings
2. Provides clear, actionable insights
3. Maintains honest uncertainty where appropriate
4. Gives context-aware recommendations

Format as JSON:
{
  "executive_summary": "One powerful paragraph summarizing everything",
  "key_takeaways": ["takeaway 1", "takeaway 2", "takeaway 3"],
  "confidence_level": "high|medium|low",
  "next_steps": ["suggestion 1", "suggestion 2"]
}`, indentJSON(initial), indentJSON(steps))

	var out Synthesis
	err := ai.DecodeJSON(ctx, a.llm, ai.Request{Prompt: prompt, Temperature: ai.Temperature(0.4)}, synthesisSchema, &out)
	if err != nil {
		if !errors.Is(err, ai.ErrUnavailable) {
			a.log.WithError(err).Warn("synthesis failed, using fallback")
		}
		span.RecordError(err)
		return FallbackSynthesis()
	}
	out.KeyTakeaways = label.Truncate(out.KeyTakeaways, 3)
	return out
}

func minItems(n int) *int {
	return &n
}
