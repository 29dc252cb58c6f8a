package pool

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	obtainFromStore   = "store"
	obtainFromFactory = "factory"
	releaseRetained   = "retained"
	releaseRejected   = "rejected"

	meterName = "reuse.pool"
)

// Metrics captures observability instruments for pool operations. A nil
// Metrics is valid and records nothing.
type Metrics struct {
	attrs         []attribute.KeyValue
	obtainTotal   metric.Int64Counter
	releaseTotal  metric.Int64Counter
	resetDuration metric.Float64Histogram
}

// NewMetrics constructs instruments against the global meter provider,
// labelled with the pool name. Instrument creation failures degrade to
// no-op recording rather than failing pool construction.
func NewMetrics(poolName string) *Metrics {
	meter := otel.Meter(meterName)
	m := &Metrics{
		attrs: []attribute.KeyValue{attribute.String("pool", poolName)},
	}

	var err error
	m.obtainTotal, err = meter.Int64Counter("reuse_pool_obtain_total",
		metric.WithDescription("Instances handed out, labeled by source (store or factory)."),
		metric.WithUnit("{instance}"),
	)
	if err != nil {
		return m
	}
	m.releaseTotal, err = meter.Int64Counter("reuse_pool_release_total",
		metric.WithDescription("Instances returned, labeled by outcome (retained or rejected)."),
		metric.WithUnit("{instance}"),
	)
	if err != nil {
		return m
	}
	m.resetDuration, err = meter.Float64Histogram("reuse_pool_reset_duration_seconds",
		metric.WithDescription("Time spent resetting instances on release."),
		metric.WithUnit("s"),
	)
	if err != nil {
		return m
	}
	return m
}

func (m *Metrics) observeObtain(source string) {
	if m == nil || m.obtainTotal == nil {
		return
	}
	attrs := append([]attribute.KeyValue{attribute.String("source", source)}, m.attrs...)
	m.obtainTotal.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) observeRelease(outcome string) {
	if m == nil || m.releaseTotal == nil {
		return
	}
	attrs := append([]attribute.KeyValue{attribute.String("outcome", outcome)}, m.attrs...)
	m.releaseTotal.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) observeReset(started time.Time) {
	if m == nil || m.resetDuration == nil {
		return
	}
	m.resetDuration.Record(context.Background(), time.Since(started).Seconds(),
		metric.WithAttributes(m.attrs...))
}

// ObserveOccupancy registers observable gauges reporting the pool's idle
// count and configured ceiling. Gauges emit on every metric collection.
func ObserveOccupancy[T any](p *Pool[T]) error {
	if p == nil {
		return nil
	}
	meter := otel.Meter(meterName)
	attrs := []attribute.KeyValue{attribute.String("pool", p.Name())}

	if _, err := meter.Int64ObservableGauge("reuse_pool_idle",
		metric.WithDescription("Instances currently idle in the store."),
		metric.WithUnit("{instance}"),
		metric.WithInt64Callback(func(_ context.Context, observer metric.Int64Observer) error {
			observer.Observe(int64(p.IdleLen()), metric.WithAttributes(attrs...))
			return nil
		}),
	); err != nil {
		return err
	}
	if _, err := meter.Int64ObservableGauge("reuse_pool_live",
		metric.WithDescription("Factory-created instances currently outside the store (creations minus idle, floored at zero)."),
		metric.WithUnit("{instance}"),
		metric.WithInt64Callback(func(_ context.Context, observer metric.Int64Observer) error {
			observer.Observe(int64(p.Snapshot().Live), metric.WithAttributes(attrs...))
			return nil
		}),
	); err != nil {
		return err
	}
	if _, err := meter.Int64ObservableGauge("reuse_pool_max_size",
		metric.WithDescription("Configured ceiling on retained idle instances."),
		metric.WithUnit("{instance}"),
		metric.WithInt64Callback(func(_ context.Context, observer metric.Int64Observer) error {
			observer.Observe(int64(p.MaxSize()), metric.WithAttributes(attrs...))
			return nil
		}),
	); err != nil {
		return err
	}
	return nil
}
