package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agency/backend/internal/application/obligation"
	"github.com/agency/backend/internal/domain/shared"
	"github.com/agency/backend/internal/infrastructure/cache"
	"github.com/agency/backend/internal/infrastructure/config"
	"github.com/agency/backend/internal/infrastructure/event"
	"github.com/agency/backend/internal/infrastructure/logger"
	"github.com/agency/backend/internal/infrastructure/metrics"
	"github.com/agency/backend/internal/infrastructure/persistence"
	"github.com/agency/backend/internal/infrastructure/scheduler"
	"github.com/agency/backend/internal/infrastructure/telemetry"
	"github.com/agency/backend/internal/interfaces/http/handler"
	"github.com/agency/backend/internal/interfaces/http/middleware"
	"github.com/agency/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Error("Server stopped with error", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	log.Info("Starting agency backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetryCfg := telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.App.Name,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
		ExportInterval:    cfg.Telemetry.MetricsExportInterval,
	}
	tracer, err := telemetry.NewTracerProvider(ctx, telemetryCfg, log)
	if err != nil {
		return err
	}
	logsCfg := telemetryCfg
	logsCfg.Enabled = cfg.Telemetry.LogsEnabled
	logExport, err := telemetry.NewLoggerProvider(ctx, logsCfg, log)
	if err != nil {
		return err
	}
	metricsCfg := telemetryCfg
	metricsCfg.Enabled = cfg.Telemetry.MetricsEnabled
	meters, err := telemetry.NewMeterProvider(ctx, metricsCfg, log)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := tracer.Shutdown(flushCtx); err != nil {
			log.Error("Error flushing traces", zap.Error(err))
		}
		if err := meters.Shutdown(flushCtx); err != nil {
			log.Error("Error flushing metrics", zap.Error(err))
		}
		if err := logExport.Shutdown(flushCtx); err != nil {
			log.Error("Error flushing logs", zap.Error(err))
		}
	}()
	log = logExport.Bridge(log, cfg.App.Name, zapcore.InfoLevel)

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Database.LogLevel),
		logger.WithOperationSlowThreshold(2*time.Second,
			obligation.OpSweep,
			obligation.OpMaterializeDueMonths,
			obligation.OpGenerateFutureCommissions,
			obligation.OpSyncCommissionsToFinancial,
			obligation.OpCleanupCommissionPayables,
			obligation.OpCleanupReceivables,
			obligation.OpFixContractTypes,
		),
	)
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := telemetry.RegisterGormTracing(db.DB, telemetry.DBTracingConfig{
		Enabled: tracer.IsEnabled(),
		DBName:  cfg.Database.DBName,
	}); err != nil {
		return err
	}
	log.Info("Database connected")

	m := metrics.New(true)
	if meters.IsEnabled() {
		if err := m.UseMeter(meters.Meter(telemetry.MeterName)); err != nil {
			return err
		}
	}

	bus := event.NewInMemoryEventBus(log.Named("events"))
	if err := bus.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := bus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	idempotency, err := cache.NewIdempotencyStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = idempotency.Close() }()

	notifier := metrics.NewNotifier(obligation.NewEventNotifier(bus, log.Named("notifier")), m)
	engine := obligation.NewEngine(
		db.UnitOfWork(),
		db.SellerProfiles(),
		bus,
		notifier,
		obligation.Settings{CommissionHorizonMonths: cfg.Engine.CommissionHorizonMonths},
		log.Named("obligation"),
	)
	bus.SubscribeAll(event.WrapIdempotent(
		engine.EventHandlers(),
		idempotency,
		shared.IdempotencyConfig{TTL: cfg.Engine.IdempotencyTTL, Enabled: true},
		log.Named("events"),
	)...)

	var sweep *scheduler.SweepScheduler
	if cfg.Engine.SweepEnabled {
		sweep, err = scheduler.NewSweepScheduler(scheduler.SweepConfig{
			Interval:    cfg.Engine.SweepInterval,
			MonthsAhead: cfg.Engine.SweepMonthsAhead,
			RunTimeout:  cfg.Engine.SweepInterval,
		}, metrics.NewSweepRunner(engine, m), log.Named("sweep"))
		if err != nil {
			return err
		}
	}

	mode := gin.ReleaseMode
	if cfg.App.Env == "development" {
		mode = gin.DebugMode
	}
	engineCfg := router.EngineConfig{
		Mode:           mode,
		MaxBodySize:    cfg.HTTP.MaxBodySize,
		RequestTimeout: cfg.HTTP.WriteTimeout,
		Tracing: middleware.TracingConfig{
			ServiceName: cfg.App.Name,
			Enabled:     tracer.IsEnabled(),
		},
	}
	if cfg.HTTP.MetricsEnabled {
		engineCfg.Metrics = m
		engineCfg.MetricsHandler = m.Handler()
	}
	httpEngine := router.NewEngine(engineCfg, log)

	router.NewRouter(httpEngine,
		router.WithGroupMiddleware(middleware.Idempotency(idempotency, cfg.Engine.IdempotencyTTL, log.Named("http"))),
	).
		Register(handler.NewObligationHandler(engine)).
		Register(handler.NewSystemHandler(cfg.App.Name, version, db, sweep)).
		Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        httpEngine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if sweep != nil {
		g.Go(func() error { return sweep.Run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("Server exited")
	return nil
}
