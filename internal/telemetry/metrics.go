package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/EgehanKilicarslan/shopmetrics/backend-go/auth"

// Metrics counts refresh token lifecycle transitions.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	issued  metric.Int64Counter
	rotated metric.Int64Counter
	reused  metric.Int64Counter
	revoked metric.Int64Counter
	swept   metric.Int64Counter
}

// NewMetrics registers the counters on meter. A nil meter uses the global
// provider.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter(meterName)
	}

	m := &Metrics{}
	var err error

	if m.issued, err = meter.Int64Counter("auth.refresh_tokens.issued",
		metric.WithDescription("Refresh tokens issued")); err != nil {
		return nil, err
	}
	if m.rotated, err = meter.Int64Counter("auth.refresh_tokens.rotated",
		metric.WithDescription("Successful refresh token rotations")); err != nil {
		return nil, err
	}
	if m.reused, err = meter.Int64Counter("auth.refresh_tokens.reuse_detected",
		metric.WithDescription("Replays of already rotated refresh tokens")); err != nil {
		return nil, err
	}
	if m.revoked, err = meter.Int64Counter("auth.refresh_tokens.revoked",
		metric.WithDescription("Refresh tokens revoked by logout")); err != nil {
		return nil, err
	}
	if m.swept, err = meter.Int64Counter("auth.refresh_tokens.swept",
		metric.WithDescription("Expired refresh tokens deleted by cleanup")); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Metrics) TokenIssued(ctx context.Context) {
	if m == nil {
		return
	}
	m.issued.Add(ctx, 1)
}

func (m *Metrics) TokenRotated(ctx context.Context) {
	if m == nil {
		return
	}
	m.rotated.Add(ctx, 1)
}

func (m *Metrics) ReuseDetected(ctx context.Context) {
	if m == nil {
		return
	}
	m.reused.Add(ctx, 1)
}

// TokensRevoked records n revocations; scope is "single" or "all".
func (m *Metrics) TokensRevoked(ctx context.Context, scope string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.revoked.Add(ctx, n, metric.WithAttributes(attribute.String("scope", scope)))
}

func (m *Metrics) TokensSwept(ctx context.Context, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.swept.Add(ctx, n)
}
