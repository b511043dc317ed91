package agent

import (
	"context"

	"unlabel/backend/internal/label"
)

// Action is one entry of the planner's closed action menu.
type Action string

const (
	ActionAnalyzeImage            Action = "analyze_image"
	ActionAnalyzeText             Action = "analyze_text"
	ActionDecisionEngine          Action = "decision_engine"
	ActionSearchProduct           Action = "search_product"
	ActionCompareAlternatives     Action = "compare_alternatives"
	ActionGenerateRecommendations Action = "generate_recommendations"
	ActionComplete                Action = "complete"
)

// plannerActions is the menu offered to the planner, in match order.
var plannerActions = []Action{
	ActionDecisionEngine,
	ActionSearchProduct,
	ActionCompareAlternatives,
	ActionGenerateRecommendations,
	ActionComplete,
}

// Step is one append-only entry of the workflow log.
type Step struct {
	Action      Action `json:"action"`
	Description string `json:"description"`
	Result      any    `json:"result"`
	Reasoning   string `json:"reasoning"`
}

// InitialAnalysis is the mandatory first step of every run.
type InitialAnalysis struct {
	Insight           string          `json:"insight"`
	DetailedReasoning string          `json:"detailed_reasoning"`
	TradeOffs         label.TradeOffs `json:"trade_offs"`
	KeyTakeaways      []string        `json:"key_takeaways"`
	UncertaintyNote   *string         `json:"uncertainty_note"`
	Text              string          `json:"text,omitempty"`
	ExtractedText     string          `json:"extracted_text,omitempty"`
}

// SourceText is the label text follow-up actions work on.
func (i InitialAnalysis) SourceText() string {
	if i.ExtractedText != "" {
		return i.ExtractedText
	}
	return i.Text
}

// DecisionStepResult is the payload of a decision_engine step.
type DecisionStepResult struct {
	Verdict                label.Verdict             `json:"verdict"`
	QuickInsight           label.QuickInsight        `json:"quick_insight"`
	Explanation            label.ConsumerExplanation `json:"explanation"`
	KeySignals             []string                  `json:"key_signals"`
	IngredientTranslations []label.Translation       `json:"ingredient_translations"`
	UncertaintyFlags       []string                  `json:"uncertainty_flags"`
}

// Recommendation is one prioritized suggestion.
type Recommendation struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
}

// RecommendationsResult is the payload of a generate_recommendations step.
type RecommendationsResult struct {
	Recommendations []Recommendation `json:"recommendations"`
}

// PlaceholderResult marks actions that are declared but not wired to a backend.
type PlaceholderResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ErrorResult records a failed action without aborting the run.
type ErrorResult struct {
	Error string `json:"error"`
}

// Synthesis folds the run into an executive summary.
type Synthesis struct {
	ExecutiveSummary string   `json:"executive_summary"`
	KeyTakeaways     []string `json:"key_takeaways"`
	ConfidenceLevel  string   `json:"confidence_level"`
	NextSteps        []string `json:"next_steps"`
}

// Result is the full output of one autonomous run.
type Result struct {
	RunID           string          `json:"run_id"`
	InitialAnalysis InitialAnalysis `json:"initial_analysis"`
	WorkflowSteps   []Step          `json:"workflow_steps"`
	Synthesis       Synthesis       `json:"synthesis"`
	TotalSteps      int             `json:"total_steps"`
}

// Input is one autonomous analysis request. Either Text or Image must be set.
type Input struct {
	// RunID is assigned when empty.
	RunID     string
	Text      string
	Image     []byte
	ImageMIME string
	Query     string
}

const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// Progress is a notification emitted around every state transition.
type Progress struct {
	RunID   string `json:"run_id"`
	Step    int    `json:"step"`
	Total   int    `json:"total"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// ProgressSink receives progress notifications. It cannot influence the run.
type ProgressSink interface {
	Report(ctx context.Context, p Progress)
}

// ProgressFunc adapts a function to ProgressSink.
type ProgressFunc func(ctx context.Context, p Progress)

// Report calls f.
func (f ProgressFunc) Report(ctx context.Context, p Progress) {
	f(ctx, p)
}
