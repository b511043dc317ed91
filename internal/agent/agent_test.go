package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unlabel/backend/internal/ai"
	"unlabel/backend/internal/label"
	"unlabel/backend/internal/pipeline"
)

type scriptedLLM struct {
	mu              sync.Mutex
	disabled        bool
	plans           []string
	planErr         error
	recommendations string
	synthesis       string
	synthesisErr    error
	plannerCalls    int
}

func (s *scriptedLLM) Enabled() bool { return !s.disabled }

func (s *scriptedLLM) Invoke(_ context.Context, req ai.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case strings.HasPrefix(req.Prompt, "You are an autonomous food analysis agent"):
		s.plannerCalls++
		if s.planErr != nil {
			return "", s.planErr
		}
		if len(s.plans) == 0 {
			return "complete", nil
		}
		next := s.plans[0]
		if len(s.plans) > 1 {
			s.plans = s.plans[1:]
		}
		return next, nil
	case strings.HasPrefix(req.Prompt, "Based on this food analysis"):
		return s.recommendations, nil
	case strings.HasPrefix(req.Prompt, "You are synthesizing"):
		return s.synthesis, s.synthesisErr
	}
	return "", errors.New("unexpected prompt")
}

type fakeDecider struct {
	calls   []pipeline.Request
	verdict label.Verdict
	err     error
}

func (f *fakeDecider) Process(_ context.Context, req pipeline.Request) (label.DecisionResponse, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return label.DecisionResponse{}, f.err
	}
	return label.DecisionResponse{
		Verdict:     f.verdict,
		Explanation: label.ConsumerExplanation{Verdict: f.verdict},
		KeySignals:  []string{"Sugar is the dominant ingredient"},
	}, nil
}

type fakeAnalyzer struct {
	extracted  string
	extractErr error
	imageMIME  string
}

func (f *fakeAnalyzer) analysis() label.AnalysisResponse {
	return label.AnalysisResponse{
		Insight:           "A sweet snack.",
		DetailedReasoning: "Mostly sugar.",
		TradeOffs: label.TradeOffs{
			Pros: []string{"Quick energy", "Tasty", "Cheap"},
			Cons: []string{"Sugar spike", "Low fiber", "Additives"},
		},
	}
}

func (f *fakeAnalyzer) AnalyzeText(context.Context, string) label.AnalysisResponse {
	return f.analysis()
}

func (f *fakeAnalyzer) AnalyzeImage(_ context.Context, _ []byte, mime string) label.AnalysisResponse {
	f.imageMIME = mime
	return f.analysis()
}

func (f *fakeAnalyzer) ExtractLabel(context.Context, []byte, string) (string, error) {
	return f.extracted, f.extractErr
}

type progressLog struct {
	mu     sync.Mutex
	events []Progress
}

func (p *progressLog) Report(_ context.Context, e Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

const threeRecommendations = `{"recommendations":[{"title":"Swap","description":"Try plain yogurt","priority":"HIGH"},{"title":"Portion","description":"Half a serving","priority":"urgent"},{"title":"Pair","description":"Add nuts for protein","priority":"low"}]}`

const goodSynthesis = `{"executive_summary":"Treat food.","key_takeaways":["a","b","c","d"],"confidence_level":"high","next_steps":["eat less"]}`

func TestAgentStopsAtMaxStepsWithoutComplete(t *testing.T) {
	llm := &scriptedLLM{plans: []string{"search_product"}, synthesis: goodSynthesis}
	a := New(llm, &fakeDecider{verdict: label.VerdictOccasional}, &fakeAnalyzer{}, Config{MaxSteps: 4})

	res, err := a.Run(context.Background(), Input{Text: "sugar, salt"}, nil)

	require.NoError(t, err)
	assert.Equal(t, 4, llm.plannerCalls)
	assert.Equal(t, 5, res.TotalSteps)
	require.Len(t, res.WorkflowSteps, 5)
	assert.Equal(t, ActionAnalyzeText, res.WorkflowSteps[0].Action)
	for _, s := range res.WorkflowSteps[1:] {
		assert.Equal(t, ActionSearchProduct, s.Action)
		assert.Equal(t, PlaceholderResult{Status: "not_implemented", Message: "Product search integration pending"}, s.Result)
	}
	assert.Equal(t, []string{"a", "b", "c"}, res.Synthesis.KeyTakeaways)
	assert.NotEmpty(t, res.RunID)
}

func TestAgentEnforcedPlanStillRunsEveryRound(t *testing.T) {
	for _, plan := range []string{"search_product", "generate_recommendations", "decision_engine"} {
		t.Run(plan, func(t *testing.T) {
			llm := &scriptedLLM{plans: []string{plan}, recommendations: threeRecommendations, synthesis: goodSynthesis}
			a := New(llm, &fakeDecider{verdict: label.VerdictOccasional}, &fakeAnalyzer{}, Config{MaxSteps: 5, EnforcePlan: true})

			res, err := a.Run(context.Background(), Input{Text: "sugar, salt"}, nil)

			require.NoError(t, err)
			assert.Equal(t, 5, llm.plannerCalls)
			require.Len(t, res.WorkflowSteps, 6)
			assert.Equal(t, ActionDecisionEngine, res.WorkflowSteps[1].Action)
			for _, s := range res.WorkflowSteps[2:] {
				assert.Equal(t, Action(plan), s.Action)
			}
		})
	}
}

func TestAgentRejectsTooFewRecommendations(t *testing.T) {
	llm := &scriptedLLM{
		plans:           []string{"decision_engine", "generate_recommendations", "complete"},
		recommendations: `{"recommendations":[{"title":"Swap","description":"Try plain yogurt","priority":"high"}]}`,
		synthesis:       goodSynthesis,
	}
	a := New(llm, &fakeDecider{verdict: label.VerdictOccasional}, &fakeAnalyzer{}, Config{})

	res, err := a.Run(context.Background(), Input{Text: "sugar"}, nil)

	require.NoError(t, err)
	require.Len(t, res.WorkflowSteps, 3)
	assert.IsType(t, ErrorResult{}, res.WorkflowSteps[2].Result)
}

func TestAgentDefaultMaxSteps(t *testing.T) {
	llm := &scriptedLLM{plans: []string{"compare_alternatives"}, synthesis: goodSynthesis}
	a := New(llm, &fakeDecider{}, &fakeAnalyzer{}, Config{})

	res, err := a.Run(context.Background(), Input{Text: "sugar"}, nil)

	require.NoError(t, err)
	assert.Equal(t, DefaultMaxSteps, a.MaxSteps())
	assert.Len(t, res.WorkflowSteps, DefaultMaxSteps+1)
}

func TestAgentCompletesWhenPlannerSaysSo(t *testing.T) {
	llm := &scriptedLLM{plans: []string{"decision_engine", "I think we are complete now"}, synthesis: goodSynthesis}
	decider := &fakeDecider{verdict: label.VerdictLimit}
	a := New(llm, decider, &fakeAnalyzer{}, Config{})

	res, err := a.Run(context.Background(), Input{Text: "sugar, corn syrup"}, nil)

	require.NoError(t, err)
	require.Len(t, res.WorkflowSteps, 2)
	assert.Equal(t, 2, llm.plannerCalls)
	require.Len(t, decider.calls, 1)
	assert.Equal(t, "sugar, corn syrup", decider.calls[0].Text)
	result, ok := res.WorkflowSteps[1].Result.(DecisionStepResult)
	require.True(t, ok)
	assert.Equal(t, label.VerdictLimit, result.Verdict)
}

func TestAgentPlannerFailureCompletes(t *testing.T) {
	llm := &scriptedLLM{planErr: errors.New("quota"), synthesisErr: errors.New("quota")}
	a := New(llm, &fakeDecider{}, &fakeAnalyzer{}, Config{})

	res, err := a.Run(context.Background(), Input{Text: "sugar"}, nil)

	require.NoError(t, err)
	assert.Len(t, res.WorkflowSteps, 1)
	assert.Equal(t, FallbackSynthesis(), res.Synthesis)
}

func TestAgentEnforcedPlan(t *testing.T) {
	llm := &scriptedLLM{
		plans:           []string{"generate_recommendations", "compare_alternatives", "complete"},
		recommendations: threeRecommendations,
		synthesis:       goodSynthesis,
	}
	decider := &fakeDecider{verdict: label.VerdictOccasional}
	a := New(llm, decider, &fakeAnalyzer{}, Config{EnforcePlan: true})

	res, err := a.Run(context.Background(), Input{Text: "yogurt, sugar"}, nil)

	require.NoError(t, err)
	actions := make([]Action, 0, len(res.WorkflowSteps))
	for _, s := range res.WorkflowSteps {
		actions = append(actions, s.Action)
	}
	assert.Equal(t, []Action{ActionAnalyzeText, ActionDecisionEngine, ActionGenerateRecommendations}, actions)
	recs, ok := res.WorkflowSteps[2].Result.(RecommendationsResult)
	require.True(t, ok)
	assert.Equal(t, "high", recs.Recommendations[0].Priority)
	assert.Equal(t, "medium", recs.Recommendations[1].Priority)
}

func TestEnforcePlan(t *testing.T) {
	decided := func(v label.Verdict) []Step {
		return []Step{
			{Action: ActionAnalyzeText},
			{Action: ActionDecisionEngine, Result: DecisionStepResult{Verdict: v}},
		}
	}
	tests := []struct {
		name   string
		choice Action
		steps  []Step
		want   Action
	}{
		{"complete passes through", ActionComplete, nil, ActionComplete},
		{"decision engine first", ActionSearchProduct, []Step{{Action: ActionAnalyzeText}}, ActionDecisionEngine},
		{"compare for concerning product", ActionCompareAlternatives, decided(label.VerdictLimit), ActionCompareAlternatives},
		{"compare rewritten otherwise", ActionCompareAlternatives, decided(label.VerdictDaily), ActionGenerateRecommendations},
		{"repeat allowed", ActionDecisionEngine, decided(label.VerdictDaily), ActionDecisionEngine},
		{"repeated recommendations allowed", ActionGenerateRecommendations,
			append(decided(label.VerdictDaily), Step{Action: ActionGenerateRecommendations}), ActionGenerateRecommendations},
		{"new action allowed", ActionSearchProduct, decided(label.VerdictDaily), ActionSearchProduct},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, enforcePlan(tc.choice, tc.steps))
		})
	}
}

func TestParseAction(t *testing.T) {
	assert.Equal(t, ActionDecisionEngine, ParseAction(" Decision_Engine\n"))
	assert.Equal(t, ActionGenerateRecommendations, ParseAction(`"generate_recommendations"`))
	assert.Equal(t, ActionComplete, ParseAction("no idea"))
	assert.Equal(t, ActionComplete, ParseAction(""))
}

func TestAgentStepErrorsAreRecorded(t *testing.T) {
	llm := &scriptedLLM{plans: []string{"decision_engine", "generate_recommendations", "complete"}, recommendations: "nope", synthesis: goodSynthesis}
	a := New(llm, &fakeDecider{err: errors.New("pipeline down")}, &fakeAnalyzer{}, Config{})

	res, err := a.Run(context.Background(), Input{Text: "sugar"}, nil)

	require.NoError(t, err)
	require.Len(t, res.WorkflowSteps, 3)
	assert.Equal(t, ErrorResult{Error: "pipeline down"}, res.WorkflowSteps[1].Result)
	assert.Equal(t, "Decision engine analysis failed", res.WorkflowSteps[1].Description)
	_, isErr := res.WorkflowSteps[2].Result.(ErrorResult)
	assert.True(t, isErr)
}

func TestAgentImageInput(t *testing.T) {
	llm := &scriptedLLM{plans: []string{"decision_engine", "complete"}, synthesis: goodSynthesis}
	decider := &fakeDecider{verdict: label.VerdictDaily}
	analyzer := &fakeAnalyzer{extracted: "INGREDIENTS:\noats"}
	a := New(llm, decider, analyzer, Config{})

	res, err := a.Run(context.Background(), Input{Image: []byte{0xff}}, nil)

	require.NoError(t, err)
	assert.Equal(t, ActionAnalyzeImage, res.WorkflowSteps[0].Action)
	assert.Equal(t, "image/jpeg", analyzer.imageMIME)
	assert.Equal(t, "INGREDIENTS:\noats", res.InitialAnalysis.ExtractedText)
	require.Len(t, decider.calls, 1)
	assert.Equal(t, "INGREDIENTS:\noats", decider.calls[0].Text)
}

func TestAgentKeyTakeaways(t *testing.T) {
	a := New(&scriptedLLM{synthesis: goodSynthesis}, &fakeDecider{}, &fakeAnalyzer{}, Config{})

	res, err := a.Run(context.Background(), Input{Text: "sugar"}, nil)

	require.NoError(t, err)
	assert.Equal(t, []string{"✓ Quick energy", "✓ Tasty", "⚠ Sugar spike", "⚠ Low fiber"}, res.InitialAnalysis.KeyTakeaways)
}

func TestAgentProgressEvents(t *testing.T) {
	llm := &scriptedLLM{plans: []string{"search_product", "complete"}, synthesis: goodSynthesis}
	a := New(llm, &fakeDecider{}, &fakeAnalyzer{}, Config{})
	sink := &progressLog{}

	res, err := a.Run(context.Background(), Input{Text: "sugar"}, sink)

	require.NoError(t, err)
	require.NotEmpty(t, sink.events)
	first, last := sink.events[0], sink.events[len(sink.events)-1]
	assert.Equal(t, Progress{RunID: res.RunID, Step: 1, Total: 3, Message: "Starting initial analysis...", Status: StatusInProgress}, first)
	assert.Equal(t, StatusCompleted, last.Status)
	assert.Equal(t, "Analysis complete!", last.Message)
	assert.Equal(t, last.Step, last.Total)
	for _, e := range sink.events[:len(sink.events)-1] {
		assert.Equal(t, StatusInProgress, e.Status)
		assert.Equal(t, res.RunID, e.RunID)
	}
}

func TestAgentValidation(t *testing.T) {
	a := New(&scriptedLLM{}, &fakeDecider{}, &fakeAnalyzer{}, Config{})
	_, err := a.Run(context.Background(), Input{Text: "  "}, nil)
	assert.ErrorIs(t, err, pipeline.ErrEmptyInput)

	_, err = New(nil, &fakeDecider{}, &fakeAnalyzer{}, Config{}).Run(context.Background(), Input{Text: "x"}, nil)
	assert.ErrorIs(t, err, pipeline.ErrNotConfigured)
}

func TestAgentDisabledCapabilityStillAnswers(t *testing.T) {
	llm := &scriptedLLM{disabled: true}
	a := New(llm, &fakeDecider{}, &fakeAnalyzer{}, Config{})

	res, err := a.Run(context.Background(), Input{Text: "sugar"}, ProgressFunc(func(context.Context, Progress) {}))

	require.NoError(t, err)
	assert.Equal(t, 0, llm.plannerCalls)
	assert.Len(t, res.WorkflowSteps, 1)
	assert.Equal(t, FallbackSynthesis(), res.Synthesis)
}

func TestAgentKeepsSuppliedRunID(t *testing.T) {
	a := New(&scriptedLLM{synthesis: goodSynthesis}, &fakeDecider{}, &fakeAnalyzer{}, Config{})
	sink := &progressLog{}

	res, err := a.Run(context.Background(), Input{RunID: "run-42", Text: "sugar"}, sink)

	require.NoError(t, err)
	assert.Equal(t, "run-42", res.RunID)
	for _, e := range sink.events {
		assert.Equal(t, "run-42", e.RunID)
	}
}
