package metrics

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned when UseMeter is given no meter
var ErrMeterNil = errors.New("metrics: meter cannot be nil")

const (
	attrOperation = attribute.Key("operation")
	attrOutcome   = attribute.Key("outcome")
	attrResult    = attribute.Key("result")
)

// otelInstruments mirrors the engine instruments on an OpenTelemetry meter
type otelInstruments struct {
	batchOperations metric.Int64Counter
	batchItems      metric.Int64Counter
	batchSize       metric.Int64Histogram
	sweepRuns       metric.Int64Counter
	sweepDuration   metric.Float64Histogram
}

// UseMeter records every engine batch and sweep on meter as well as on the
// Prometheus registry. HTTP instruments stay Prometheus-only.
func (m *Metrics) UseMeter(meter metric.Meter) error {
	if meter == nil {
		return ErrMeterNil
	}
	var (
		o   otelInstruments
		err error
	)
	if o.batchOperations, err = meter.Int64Counter(
		"agency_obligation_batch_operations_total",
		metric.WithDescription("Engine batch operations by operation and outcome"),
		metric.WithUnit("{batches}"),
	); err != nil {
		return err
	}
	if o.batchItems, err = meter.Int64Counter(
		"agency_obligation_batch_items_total",
		metric.WithDescription("Items touched by engine batches, split into affected and failed"),
		metric.WithUnit("{items}"),
	); err != nil {
		return err
	}
	if o.batchSize, err = meter.Int64Histogram(
		"agency_obligation_batch_size",
		metric.WithDescription("Items affected by one engine batch"),
		metric.WithUnit("{items}"),
		metric.WithExplicitBucketBoundaries(0, 1, 5, 12, 50, 100, 500, 1000),
	); err != nil {
		return err
	}
	if o.sweepRuns, err = meter.Int64Counter(
		"agency_obligation_sweep_runs_total",
		metric.WithDescription("Periodic sweep runs by result"),
		metric.WithUnit("{runs}"),
	); err != nil {
		return err
	}
	if o.sweepDuration, err = meter.Float64Histogram(
		"agency_obligation_sweep_duration_seconds",
		metric.WithDescription("Duration of one periodic sweep"),
		metric.WithUnit("s"),
	); err != nil {
		return err
	}
	m.otel = &o
	return nil
}

func (o *otelInstruments) observeBatch(ctx context.Context, operation, outcome string, affected, failed int) {
	op := attrOperation.String(operation)
	o.batchOperations.Add(ctx, 1, metric.WithAttributes(op, attrOutcome.String(outcome)))
	if affected > 0 {
		o.batchItems.Add(ctx, int64(affected), metric.WithAttributes(op, attrResult.String("affected")))
	}
	if failed > 0 {
		o.batchItems.Add(ctx, int64(failed), metric.WithAttributes(op, attrResult.String("failed")))
	}
	o.batchSize.Record(ctx, int64(affected), metric.WithAttributes(op))
}

func (o *otelInstruments) observeSweep(ctx context.Context, d time.Duration, result string) {
	o.sweepRuns.Add(ctx, 1, metric.WithAttributes(attrResult.String(result)))
	o.sweepDuration.Record(ctx, d.Seconds())
}
