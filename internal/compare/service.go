package compare

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"unlabel/backend/internal/ai"
	"unlabel/backend/internal/label"
	"unlabel/backend/internal/pipeline"
)

const (
	// MaxKeyDifferences bounds ComparisonInsight.KeyDifferences.
	MaxKeyDifferences = 3

	maxSummaryWords        = 20
	maxDifferenceWords     = 15
	maxRecommendationWords = 50

	defaultNameA = "Product A"
	defaultNameB = "Product B"
)

var (
	tracer = otel.Tracer("unlabel/compare")

	insightSchema = ai.MustSchema("comparison_insight", ai.Object(map[string]*jsonschema.Schema{
		"winner":          ai.StringEnum(string(label.WinnerA), string(label.WinnerB), string(label.WinnerSimilar)),
		"summary":         {Type: "string"},
		"key_differences": ai.StringList(),
	}))
)

// Decider runs the decision pipeline for one product.
type Decider interface {
	Process(ctx context.Context, req pipeline.Request) (label.DecisionResponse, error)
}

// Request names two products to compare.
type Request struct {
	ProductAText string `json:"product_a_text"`
	ProductBText string `json:"product_b_text"`
	ProductAName string `json:"product_a_name,omitempty"`
	ProductBName string `json:"product_b_name,omitempty"`
}

// Service compares two products side by side.
type Service struct {
	llm     ai.Capability
	decider Decider
}

// NewService constructs a comparison service.
func NewService(llm ai.Capability, decider Decider) *Service {
	return &Service{llm: llm, decider: decider}
}

// Compare analyses both products concurrently, then derives a structured
// insight and a recommendation. Only the two pipeline runs can fail it.
func (s *Service) Compare(ctx context.Context, req Request) (label.ComparisonResponse, error) {
	if strings.TrimSpace(req.ProductAText) == "" || strings.TrimSpace(req.ProductBText) == "" {
		return label.ComparisonResponse{}, pipeline.ErrEmptyInput
	}
	if s.decider == nil {
		return label.ComparisonResponse{}, pipeline.ErrNotConfigured
	}
	nameA := firstNonEmpty(req.ProductAName, defaultNameA)
	nameB := firstNonEmpty(req.ProductBName, defaultNameB)

	ctx, span := tracer.Start(ctx, "comparison.compare")
	defer span.End()

	var analysisA, analysisB label.DecisionResponse
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		analysisA, err = s.decider.Process(gctx, pipeline.Request{Text: req.ProductAText})
		if err != nil {
			return fmt.Errorf("analyze %s: %w", nameA, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		analysisB, err = s.decider.Process(gctx, pipeline.Request{Text: req.ProductBText})
		if err != nil {
			return fmt.Errorf("analyze %s: %w", nameB, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return label.ComparisonResponse{}, err
	}

	insight := s.insight(ctx, nameA, nameB, analysisA, analysisB)
	recommendation := s.recommend(ctx, nameA, nameB, insight, analysisA, analysisB)
	span.SetAttributes(attribute.String("winner", string(insight.Winner)))

	return label.ComparisonResponse{
		ProductAName:      nameA,
		ProductBName:      nameB,
		ProductAAnalysis:  analysisA,
		ProductBAnalysis:  analysisB,
		ComparisonInsight: insight,
		Recommendation:    recommendation,
	}, nil
}

func (s *Service) insight(ctx context.Context, nameA, nameB string, a, b label.DecisionResponse) label.ComparisonInsight {
	var out label.ComparisonInsight
	err := ai.DecodeJSON(ctx, s.llm, ai.Request{
		Prompt:      buildInsightPrompt(nameA, nameB, a, b),
		Temperature: ai.Temperature(0.4),
	}, insightSchema, &out)
	if errors.Is(err, ai.ErrUnavailable) {
		return label.ComparisonInsight{
			Winner:         label.WinnerSimilar,
			Summary:        fmt.Sprintf("%s and %s have similar profiles.", nameA, nameB),
			KeyDifferences: []string{"Unable to generate detailed comparison"},
		}
	}
	if err != nil {
		logrus.WithError(err).Warn("comparison insight failed, using fallback")
		return label.ComparisonInsight{
			Winner:  label.WinnerSimilar,
			Summary: fmt.Sprintf("%s and %s have different characteristics.", nameA, nameB),
			KeyDifferences: []string{
				fmt.Sprintf("%s: %s", nameA, firstSignal(a)),
				fmt.Sprintf("%s: %s", nameB, firstSignal(b)),
				"See individual analyses for details",
			},
		}
	}

	out.Summary = limitWords(out.Summary, maxSummaryWords)
	diffs := make([]string, 0, MaxKeyDifferences)
	for _, d := range out.KeyDifferences {
		if len(diffs) == MaxKeyDifferences {
			break
		}
		if d = limitWords(d, maxDifferenceWords); d != "" {
			diffs = append(diffs, d)
		}
	}
	out.KeyDifferences = diffs
	return out
}

func (s *Service) recommend(ctx context.Context, nameA, nameB string, insight label.ComparisonInsight, a, b label.DecisionResponse) string {
	if s.llm == nil || !s.llm.Enabled() {
		return "Both products have distinct characteristics. Review the analyses to decide which fits your needs."
	}
	reply, err := s.llm.Invoke(ctx, ai.Request{
		Prompt:      buildRecommendationPrompt(nameA, nameB, insight, a, b),
		Format:      ai.FormatText,
		Temperature: ai.Temperature(0.5),
	})
	if reply = limitWords(reply, maxRecommendationWords); err == nil && reply != "" {
		return reply
	}
	if err != nil {
		logrus.WithError(err).Warn("comparison recommendation failed, using template")
	}
	switch insight.Winner {
	case label.WinnerA:
		return fmt.Sprintf("%s appears to be the better choice overall. However, %s may be preferable depending on your specific needs.", nameA, nameB)
	case label.WinnerB:
		return fmt.Sprintf("%s appears to be the better choice overall. However, %s may be preferable depending on your specific needs.", nameB, nameA)
	default:
		return "Both products are comparable. Choose based on your personal preferences and dietary goals."
	}
}

func buildInsightPrompt(nameA, nameB string, a, b label.DecisionResponse) string {
	return fmt.Sprintf(`Compare these two food products based on their analyses.

PRODUCT A (%s):
- Quick Insight: %s
- Key Signals: %s
- Intent: %s

PRODUCT B (%s):
- Quick Insight: %s
- Key Signals: %s
- Intent: %s

Provide a comparison in JSON format:
{
  "winner": "A" or "B" or "Similar" (which is better overall),
  "summary": "One clear sentence comparing them (max 20 words)",
  "key_differences": [
    "First key difference (max 15 words)",
    "Second key difference (max 15 words)",
    "Third key difference (max 15 words)"
  ]
}

Focus on practical differences that matter to consumers.
Be honest if they're similar.`,
		nameA, a.QuickInsight.Summary, strings.Join(label.Truncate(a.KeySignals, 3), ", "), a.IntentClassified,
		nameB, b.QuickInsight.Summary, strings.Join(label.Truncate(b.KeySignals, 3), ", "), b.IntentClassified)
}

func buildRecommendationPrompt(nameA, nameB string, insight label.ComparisonInsight, a, b label.DecisionResponse) string {
	return fmt.Sprintf(`Based on this comparison, provide a clear, actionable recommendation.

COMPARISON WINNER: %s
SUMMARY: %s
KEY DIFFERENCES: %s

%s EXPLANATION:
- Why it matters: %s
- When it makes sense: %s

%s EXPLANATION:
- Why it matters: %s
- When it makes sense: %s

Provide a recommendation (2-3 sentences, max 50 words total) that:
1. States which is better and why
2. Mentions when the other might be preferable
3. Uses clear, consumer-friendly language

Return ONLY the recommendation text, no JSON.`,
		insight.Winner, insight.Summary, strings.Join(insight.KeyDifferences, ", "),
		nameA, strings.Join(label.Truncate(a.Explanation.WhyThisMatters, 2), ", "), a.Explanation.WhenItMakesSense,
		nameB, strings.Join(label.Truncate(b.Explanation.WhyThisMatters, 2), ", "), b.Explanation.WhenItMakesSense)
}

func firstSignal(r label.DecisionResponse) string {
	if len(r.KeySignals) == 0 {
		return "No data"
	}
	return r.KeySignals[0]
}

// limitWords trims s to at most n whitespace-separated words.
func limitWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
