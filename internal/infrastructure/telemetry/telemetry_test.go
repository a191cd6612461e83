package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return recorder
}

func TestNewTracerProvider_Disabled(t *testing.T) {
	tp, err := NewTracerProvider(context.Background(), Config{ServiceName: "agency-backend"}, zap.NewNop())
	require.NoError(t, err)

	assert.False(t, tp.IsEnabled())
	assert.NotNil(t, tp.Tracer("x"))
	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), sampler(1).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), sampler(0).Description())
	assert.Contains(t, sampler(0.25).Description(), "TraceIDRatioBased")
}

func TestStartSpan(t *testing.T) {
	recorder := withRecorder(t)

	ctx, span := StartSpan(context.Background(), "obligation.materialize_range",
		AttrContractID.String("c-1"),
		AttrOperation.String("materializeRange"),
	)
	assert.NotEmpty(t, TraceID(ctx))
	End(span, nil)

	_, failing := StartSpan(context.Background(), "obligation.toggle_transaction_status")
	End(failing, errors.New("store unavailable"))

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "obligation.materialize_range", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), AttrContractID.String("c-1"))
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "store unavailable", spans[1].Status().Description)
	require.Len(t, spans[1].Events(), 1)
}

func TestTraceID_NoSpan(t *testing.T) {
	assert.Empty(t, TraceID(context.Background()))
}

type ledgerRow struct {
	ID   uint `gorm:"primaryKey"`
	Memo string
}

func TestRegisterGormTracing(t *testing.T) {
	open := func(t *testing.T) *gorm.DB {
		db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
		require.NoError(t, err)
		return db
	}

	t.Run("disabled registers nothing", func(t *testing.T) {
		db := open(t)
		require.NoError(t, RegisterGormTracing(db, DBTracingConfig{}))
		_, ok := db.Plugins["otelgorm"]
		assert.False(t, ok)
	})

	t.Run("queries become child spans", func(t *testing.T) {
		recorder := tracetest.NewSpanRecorder()
		tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
		t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

		db := open(t)
		require.NoError(t, RegisterGormTracing(db, DBTracingConfig{Enabled: true, DBName: "agency", Provider: tp}))
		require.NoError(t, db.AutoMigrate(&ledgerRow{}))

		ctx, parent := tp.Tracer("test").Start(context.Background(), "parent")
		require.NoError(t, db.WithContext(ctx).Create(&ledgerRow{Memo: "2024-01"}).Error)
		parent.End()

		var child sdktrace.ReadOnlySpan
		for _, s := range recorder.Ended() {
			if s.Parent().SpanID() == parent.SpanContext().SpanID() {
				child = s
			}
		}
		require.NotNil(t, child)
	})
}

type memoryExporter struct {
	mu      sync.Mutex
	records []sdklog.Record
}

func (e *memoryExporter) Export(_ context.Context, records []sdklog.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range records {
		e.records = append(e.records, r.Clone())
	}
	return nil
}

func (e *memoryExporter) Shutdown(context.Context) error   { return nil }
func (e *memoryExporter) ForceFlush(context.Context) error { return nil }

func TestBridgeLogger(t *testing.T) {
	exporter := &memoryExporter{}
	provider := sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewSimpleProcessor(exporter)))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	core, logs := observer.New(zapcore.DebugLevel)
	log := BridgeLogger(zap.New(core), provider, "agency-backend", zapcore.InfoLevel)

	log.Debug("materializing month")
	log.Info("batch finished", zap.String("operation", "materializeRange"))

	assert.Equal(t, 2, logs.Len())
	exporter.mu.Lock()
	defer exporter.mu.Unlock()
	require.Len(t, exporter.records, 1)
	assert.Equal(t, "batch finished", exporter.records[0].Body().AsString())
}

func TestLoggerProvider_DisabledKeepsBase(t *testing.T) {
	lp, err := NewLoggerProvider(context.Background(), Config{}, zap.NewNop())
	require.NoError(t, err)

	base := zap.NewNop()
	assert.Same(t, base, lp.Bridge(base, "agency-backend", zapcore.InfoLevel))
	assert.NoError(t, lp.Shutdown(context.Background()))
}

func TestNewMeterProvider_Disabled(t *testing.T) {
	mp, err := NewMeterProvider(context.Background(), Config{ServiceName: "agency-backend"}, zap.NewNop())
	require.NoError(t, err)

	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter(MeterName))
	assert.NoError(t, mp.ForceFlush(context.Background()))
	assert.NoError(t, mp.Shutdown(context.Background()))
}

func TestNewSDKMeterProvider_DurationBuckets(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := NewSDKMeterProvider(reader)
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	meter := provider.Meter(MeterName)
	sweep, err := meter.Float64Histogram("agency_obligation_sweep_duration_seconds")
	require.NoError(t, err)
	size, err := meter.Float64Histogram("agency_obligation_batch_size")
	require.NoError(t, err)
	sweep.Record(context.Background(), 0.3)
	size.Record(context.Background(), 3)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	bounds := map[string][]float64{}
	for _, md := range rm.ScopeMetrics[0].Metrics {
		h, ok := md.Data.(metricdata.Histogram[float64])
		require.True(t, ok)
		bounds[md.Name] = h.DataPoints[0].Bounds
	}
	assert.Equal(t, []float64{0.05, 0.1, 0.5, 1, 5, 15, 60, 300}, bounds["agency_obligation_sweep_duration_seconds"])
	assert.NotEqual(t, bounds["agency_obligation_sweep_duration_seconds"], bounds["agency_obligation_batch_size"])
}
