package metrics

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/bizmatters/agent-builder/studio-client/internal/models"
)

var meter = otel.Meter("studio-sync")

// SyncMetrics records load accounting for the stateful components.
// A nil *SyncMetrics is valid and records nothing.
type SyncMetrics struct {
	loadsStartedCounter   metric.Int64Counter
	loadsCompletedCounter metric.Int64Counter
	loadsFailedCounter    metric.Int64Counter
	loadsDiscardedCounter metric.Int64Counter
	loadDurationHistogram metric.Float64Histogram
	loadsActiveGauge      metric.Int64UpDownCounter
}

// NewSyncMetrics creates the instruments on the global meter provider
func NewSyncMetrics() (*SyncMetrics, error) {
	loadsStartedCounter, err := meter.Int64Counter(
		"studio.sync.loads.started",
		metric.WithDescription("Total number of remote loads started"),
		metric.WithUnit("{load}"),
	)
	if err != nil {
		return nil, err
	}

	loadsCompletedCounter, err := meter.Int64Counter(
		"studio.sync.loads.completed",
		metric.WithDescription("Total number of remote loads applied to local state"),
		metric.WithUnit("{load}"),
	)
	if err != nil {
		return nil, err
	}

	loadsFailedCounter, err := meter.Int64Counter(
		"studio.sync.loads.failed",
		metric.WithDescription("Total number of remote loads that failed"),
		metric.WithUnit("{load}"),
	)
	if err != nil {
		return nil, err
	}

	loadsDiscardedCounter, err := meter.Int64Counter(
		"studio.sync.loads.discarded",
		metric.WithDescription("Total number of completions discarded as stale"),
		metric.WithUnit("{load}"),
	)
	if err != nil {
		return nil, err
	}

	loadDurationHistogram, err := meter.Float64Histogram(
		"studio.sync.load.duration",
		metric.WithDescription("Duration of remote loads in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	loadsActiveGauge, err := meter.Int64UpDownCounter(
		"studio.sync.loads.active",
		metric.WithDescription("Number of remote loads in flight"),
		metric.WithUnit("{load}"),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		loadsStartedCounter:   loadsStartedCounter,
		loadsCompletedCounter: loadsCompletedCounter,
		loadsFailedCounter:    loadsFailedCounter,
		loadsDiscardedCounter: loadsDiscardedCounter,
		loadDurationHistogram: loadDurationHistogram,
		loadsActiveGauge:      loadsActiveGauge,
	}, nil
}

// RecordLoadStarted records a load leaving for the network
func (sm *SyncMetrics) RecordLoadStarted(ctx context.Context, component, operation string) {
	if sm == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("component", component),
		attribute.String("operation", operation),
	)
	sm.loadsStartedCounter.Add(ctx, 1, attrs)
	sm.loadsActiveGauge.Add(ctx, 1, attrs)
}

// RecordLoadCompleted records a load whose result was applied
func (sm *SyncMetrics) RecordLoadCompleted(ctx context.Context, component, operation string, duration time.Duration) {
	if sm == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("component", component),
		attribute.String("operation", operation),
		attribute.String("status", "completed"),
	)
	sm.loadsCompletedCounter.Add(ctx, 1, attrs)
	sm.loadDurationHistogram.Record(ctx, duration.Seconds(), attrs)
	sm.finish(ctx, component, operation)
}

// RecordLoadFailed records a failed load; errorType is a short classifier
// such as "not_found" or "transport"
func (sm *SyncMetrics) RecordLoadFailed(ctx context.Context, component, operation, errorType string, duration time.Duration) {
	if sm == nil {
		return
	}
	sm.loadsFailedCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("component", component),
			attribute.String("operation", operation),
			attribute.String("status", "failed"),
			attribute.String("error.type", errorType),
		),
	)
	sm.loadDurationHistogram.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("component", component),
			attribute.String("operation", operation),
			attribute.String("status", "failed"),
		),
	)
	sm.finish(ctx, component, operation)
}

// RecordLoadDiscarded records a completion dropped because its selector
// was no longer current
func (sm *SyncMetrics) RecordLoadDiscarded(ctx context.Context, component, operation string) {
	if sm == nil {
		return
	}
	sm.loadsDiscardedCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("component", component),
			attribute.String("operation", operation),
		),
	)
	sm.finish(ctx, component, operation)
}

func (sm *SyncMetrics) finish(ctx context.Context, component, operation string) {
	sm.loadsActiveGauge.Add(ctx, -1,
		metric.WithAttributes(
			attribute.String("component", component),
			attribute.String("operation", operation),
		),
	)
}

// ErrorType classifies err for the error.type attribute
func ErrorType(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	case models.IsValidation(err):
		return "validation"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "transport"
	}
}
