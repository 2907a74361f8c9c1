package tracker

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/causalityd/internal/tracker"

// trackerMetrics holds tracker instrumentation. Instruments are nil-checked
// at record time so a missing meter provider degrades to no-ops.
type trackerMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	chainsStarted  metric.Int64Counter
	chainsEnded    metric.Int64Counter
	chainsExpired  metric.Int64Counter
	chainsEvicted  metric.Int64Counter
	eventsRecorded metric.Int64Counter
	activeChains   metric.Int64UpDownCounter
	eventDuration  metric.Float64Histogram
	chainDuration  metric.Float64Histogram
}

func newTrackerMetrics(logger *zap.Logger) *trackerMetrics {
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &trackerMetrics{
		meter:  otel.Meter(instrumentationName),
		logger: logger,
	}
	m.init()
	return m
}

func (m *trackerMetrics) init() {
	var err error

	m.chainsStarted, err = m.meter.Int64Counter(
		"causalityd.tracker.chains_started_total",
		metric.WithDescription("Total causality chains started, labeled by root event type."),
		metric.WithUnit("{chain}"),
	)
	if err != nil {
		m.logger.Warn("failed to create chains started counter", zap.Error(err))
	}

	m.chainsEnded, err = m.meter.Int64Counter(
		"causalityd.tracker.chains_ended_total",
		metric.WithDescription("Total causality chains explicitly ended."),
		metric.WithUnit("{chain}"),
	)
	if err != nil {
		m.logger.Warn("failed to create chains ended counter", zap.Error(err))
	}

	m.chainsExpired, err = m.meter.Int64Counter(
		"causalityd.tracker.chains_expired_total",
		metric.WithDescription("Chains removed by age-based expiry during cleanup sweeps."),
		metric.WithUnit("{chain}"),
	)
	if err != nil {
		m.logger.Warn("failed to create chains expired counter", zap.Error(err))
	}

	m.chainsEvicted, err = m.meter.Int64Counter(
		"causalityd.tracker.chains_evicted_total",
		metric.WithDescription("Chains removed by memory-cap eviction, oldest start time first."),
		metric.WithUnit("{chain}"),
	)
	if err != nil {
		m.logger.Warn("failed to create chains evicted counter", zap.Error(err))
	}

	m.eventsRecorded, err = m.meter.Int64Counter(
		"causalityd.tracker.events_recorded_total",
		metric.WithDescription("Total causal events recorded, labeled by event type."),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		m.logger.Warn("failed to create events recorded counter", zap.Error(err))
	}

	m.activeChains, err = m.meter.Int64UpDownCounter(
		"causalityd.tracker.active_chains",
		metric.WithDescription("Number of chains currently live in the store."),
		metric.WithUnit("{chain}"),
	)
	if err != nil {
		m.logger.Warn("failed to create active chains gauge", zap.Error(err))
	}

	m.eventDuration, err = m.meter.Float64Histogram(
		"causalityd.tracker.event_duration_seconds",
		metric.WithDescription("Completed event duration in seconds, labeled by event type and error presence."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		m.logger.Warn("failed to create event duration histogram", zap.Error(err))
	}

	m.chainDuration, err = m.meter.Float64Histogram(
		"causalityd.tracker.chain_duration_seconds",
		metric.WithDescription("Total duration of ended chains in seconds."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0, 30.0, 60.0, 300.0),
	)
	if err != nil {
		m.logger.Warn("failed to create chain duration histogram", zap.Error(err))
	}
}

func (m *trackerMetrics) chainStarted(rootType EventType) {
	ctx := context.Background()
	if m.chainsStarted != nil {
		m.chainsStarted.Add(ctx, 1, metric.WithAttributes(attribute.String("root_type", string(rootType))))
	}
	if m.activeChains != nil {
		m.activeChains.Add(ctx, 1)
	}
}

func (m *trackerMetrics) chainEnded(total time.Duration) {
	ctx := context.Background()
	if m.chainsEnded != nil {
		m.chainsEnded.Add(ctx, 1)
	}
	if m.chainDuration != nil {
		m.chainDuration.Record(ctx, total.Seconds())
	}
}

func (m *trackerMetrics) eventRecorded(typ EventType) {
	if m.eventsRecorded != nil {
		m.eventsRecorded.Add(context.Background(), 1,
			metric.WithAttributes(attribute.String("type", string(typ))))
	}
}

func (m *trackerMetrics) eventCompleted(typ EventType, d time.Duration, hasError bool) {
	if m.eventDuration != nil {
		m.eventDuration.Record(context.Background(), d.Seconds(), metric.WithAttributes(
			attribute.String("type", string(typ)),
			attribute.Bool("error", hasError),
		))
	}
}

func (m *trackerMetrics) chainsRemoved(expired, evicted int) {
	ctx := context.Background()
	if expired > 0 && m.chainsExpired != nil {
		m.chainsExpired.Add(ctx, int64(expired))
	}
	if evicted > 0 && m.chainsEvicted != nil {
		m.chainsEvicted.Add(ctx, int64(evicted))
	}
	if m.activeChains != nil {
		m.activeChains.Add(ctx, -int64(expired+evicted))
	}
}

// storeCleared zeroes the live-chain gauge when the store is dropped wholesale.
func (m *trackerMetrics) storeCleared(live int) {
	if live > 0 && m.activeChains != nil {
		m.activeChains.Add(context.Background(), -int64(live))
	}
}
