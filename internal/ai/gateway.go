package ai

import (
	"context"
	"runtime"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
)

const (
	defaultRetryRounds    = 1
	defaultInitialBackoff = 2 * time.Second
	defaultMaxBackoff     = 10 * time.Second
)

// GatewayConfig tunes the credential walk and the worker pool.
type GatewayConfig struct {
	MaxConcurrency int
	RetryRounds    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Gateway fronts an ordered list of credentialed providers. Callers see a
// single blocking Invoke; credential fallback happens inside it.
type Gateway struct {
	providers      []Provider
	slots          *semaphore.Weighted
	rounds         int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	tracer         trace.Tracer
	calls          metric.Int64Counter
	failures       metric.Int64Counter
	fallbacks      metric.Int64Counter
}

// NewGateway builds a gateway over providers, tried in the given order.
// A gateway with no providers is valid and reports ErrUnavailable on every call.
func NewGateway(cfg GatewayConfig, providers ...Provider) *Gateway {
	var active []Provider
	for _, p := range providers {
		if p != nil {
			active = append(active, p)
		}
	}

	workers := cfg.MaxConcurrency
	if workers <= 0 {
		workers = 4 * runtime.GOMAXPROCS(0)
	}
	rounds := cfg.RetryRounds
	if rounds <= 0 {
		rounds = defaultRetryRounds
	}
	initial := cfg.InitialBackoff
	if initial <= 0 {
		initial = defaultInitialBackoff
	}
	maxBackoff := cfg.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = defaultMaxBackoff
	}

	meter := otel.Meter("unlabel/ai")
	calls, _ := meter.Int64Counter("ai_capability_calls_total",
		metric.WithDescription("Total number of capability gateway invocations"))
	failures, _ := meter.Int64Counter("ai_capability_failures_total",
		metric.WithDescription("Invocations where every credential failed"))
	fallbacks, _ := meter.Int64Counter("ai_credential_fallbacks_total",
		metric.WithDescription("Times a call advanced to the next credential"))

	return &Gateway{
		providers:      active,
		slots:          semaphore.NewWeighted(int64(workers)),
		rounds:         rounds,
		initialBackoff: initial,
		maxBackoff:     maxBackoff,
		tracer:         otel.Tracer("unlabel/ai"),
		calls:          calls,
		failures:       failures,
		fallbacks:      fallbacks,
	}
}

// Enabled reports whether at least one credential is configured.
func (g *Gateway) Enabled() bool {
	return g != nil && len(g.providers) > 0
}

// Providers returns the provider names in fallback order.
func (g *Gateway) Providers() []string {
	if g == nil {
		return nil
	}
	names := make([]string, 0, len(g.providers))
	for _, p := range g.providers {
		names = append(names, p.Name())
	}
	return names
}

// Invoke runs req against the credentials in order until one succeeds.
func (g *Gateway) Invoke(ctx context.Context, req Request) (string, error) {
	if !g.Enabled() {
		return "", ErrUnavailable
	}
	if req.Format == "" {
		req.Format = FormatText
	}

	ctx, span := g.tracer.Start(ctx, "gateway.invoke", trace.WithAttributes(
		attribute.String("format", string(req.Format)),
		attribute.Bool("image", len(req.Image) > 0),
		attribute.Int("credentials", len(g.providers)),
	))
	defer span.End()
	g.calls.Add(ctx, 1)

	if err := g.slots.Acquire(ctx, 1); err != nil {
		span.RecordError(err)
		return "", err
	}
	defer g.slots.Release(1)

	delay := g.initialBackoff
	var attempts []error
	for round := 0; round < g.rounds; round++ {
		text, errs := g.walk(ctx, req)
		if errs == nil {
			return text, nil
		}
		attempts = append(attempts, errs...)

		if ctx.Err() != nil || round == g.rounds-1 || !anyRetryable(errs) {
			break
		}

		if err := sleepContext(ctx, delay); err != nil {
			attempts = append(attempts, err)
			break
		}

		delay *= 2
		if delay > g.maxBackoff {
			delay = g.maxBackoff
		}
	}

	err := &CapabilityError{Attempts: attempts}
	g.failures.Add(ctx, 1)
	span.RecordError(err)
	span.SetStatus(codes.Error, "all credentials failed")
	return "", err
}
