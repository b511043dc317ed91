package pipeline

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"unlabel/backend/internal/ai"
)

var (
	// ErrEmptyInput is returned before any model call when the label text is blank.
	ErrEmptyInput = errors.New("text cannot be empty")
	// ErrNotConfigured is returned when the pipeline has no capability gateway at all.
	ErrNotConfigured = errors.New("decision pipeline is not configured")
)

var (
	tracer            = otel.Tracer("unlabel/pipeline")
	stageFallbacks, _ = otel.Meter("unlabel/pipeline").Int64Counter("pipeline_stage_fallbacks_total",
		metric.WithDescription("Stage results replaced by a deterministic fallback"))
)

// startStage opens a span for one pipeline stage.
func startStage(ctx context.Context, stage string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "pipeline."+stage)
}

// recordFallback logs and counts a stage that degraded to its fallback value.
func recordFallback(ctx context.Context, span trace.Span, stage string, err error) {
	entry := logrus.WithField("stage", stage)
	if errors.Is(err, ai.ErrUnavailable) {
		entry.Debug("capability unavailable, using fallback")
	} else {
		entry.WithError(err).Warn("stage failed, using fallback")
	}
	span.SetAttributes(attribute.Bool("fallback", true))
	if err != nil {
		span.RecordError(err)
	}
	stageFallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
}
