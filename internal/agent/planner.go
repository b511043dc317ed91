package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"unlabel/backend/internal/ai"
	"unlabel/backend/internal/label"
)

const plannerMenu = `AVAILABLE ACTIONS:
1. decision_engine - Deep analysis with decision engine (intent classification, ingredient interpretation, etc.)
2. search_product - Search for this product in global food database
3. compare_alternatives - Find and compare healthier alternatives
4. generate_recommendations - Generate personalized recommendations
5. complete - Analysis is comprehensive, no more actions needed

RULES:
- Always run decision_engine after initial analysis (if not done yet)
- Only search_product if we have a clear product name
- Only compare_alternatives if the product has concerning ingredients
- Only generate_recommendations if user might benefit from guidance
- Choose 'complete' when sufficient information has been gathered

Return ONLY the action name (e.g. "decision_engine", "complete")`

// ParseAction maps a planner reply onto the action menu; anything
// unrecognised means complete.
func ParseAction(reply string) Action {
	text := strings.ToLower(strings.TrimSpace(reply))
	for _, action := range plannerActions {
		if strings.Contains(text, string(action)) {
			return action
		}
	}
	return ActionComplete
}

// decideNext asks the planner for the next action. Errors terminate the loop.
func (a *Agent) decideNext(ctx context.Context, initial InitialAnalysis, steps []Step, query string) Action {
	if a.llm == nil || !a.llm.Enabled() {
		return ActionComplete
	}
	reply, err := a.llm.Invoke(ctx, ai.Request{
		Prompt:      buildPlannerPrompt(initial, steps, query),
		Format:      ai.FormatText,
		Temperature: ai.Temperature(0.2),
	})
	if err != nil {
		a.log.WithError(err).Warn("planner failed, completing run")
		return ActionComplete
	}
	return ParseAction(reply)
}

// enforcePlan rewrites a planner choice so the planner rules hold
// regardless of what the model picked.
func enforcePlan(choice Action, steps []Step) Action {
	if choice == ActionComplete {
		return choice
	}
	done := make(map[Action]bool, len(steps))
	verdict := label.Verdict("")
	for _, s := range steps {
		done[s.Action] = true
		if r, ok := s.Result.(DecisionStepResult); ok {
			verdict = r.Verdict
		}
	}
	if !done[ActionDecisionEngine] {
		return ActionDecisionEngine
	}
	if choice == ActionCompareAlternatives && verdict != label.VerdictLimit {
		return ActionGenerateRecommendations
	}
	return choice
}

func buildPlannerPrompt(initial InitialAnalysis, steps []Step, query string) string {
	if strings.TrimSpace(query) == "" {
		query = "General food analysis"
	}
	b := &strings.Builder{}
	b.WriteString("You are an autonomous food analysis agent. Based on the information below, decide the NEXT BEST ACTION to help the user.\n\n")
	fmt.Fprintf(b, "INITIAL ANALYSIS:\n%s\n\n", indentJSON(initial))
	fmt.Fprintf(b, "COMPLETED STEPS:\n%s\n\n", indentJSON(steps))
	fmt.Fprintf(b, "USER QUERY: %s\n\n", query)
	b.WriteString(plannerMenu)
	return b.String()
}

func indentJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(data)
}
