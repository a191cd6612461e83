package telemetry

import (
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database tracing
type DBTracingConfig struct {
	Enabled bool
	// DBName is reported as db.name on every span
	DBName string
	// WithQueryVariables keeps bound parameters in db.statement
	WithQueryVariables bool
	// Provider overrides the global tracer provider
	Provider trace.TracerProvider
}

// RegisterGormTracing installs the otelgorm plugin on db. Every query runs
// inside a client span that is a child of the span in the statement context.
func RegisterGormTracing(db *gorm.DB, cfg DBTracingConfig) error {
	if !cfg.Enabled {
		return nil
	}
	opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBName)}
	if !cfg.WithQueryVariables {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if cfg.Provider != nil {
		opts = append(opts, otelgorm.WithTracerProvider(cfg.Provider))
	}
	return db.Use(otelgorm.NewPlugin(opts...))
}
