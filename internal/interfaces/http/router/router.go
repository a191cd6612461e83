package router

import (
	"net/http"
	"time"

	"github.com/agency/backend/internal/infrastructure/logger"
	"github.com/agency/backend/internal/interfaces/http/dto"
	"github.com/agency/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RouteRegistrar defines the interface for registering routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router manages HTTP route registration
type Router struct {
	engine     *gin.Engine
	apiVersion string
	middleware []gin.HandlerFunc
	registrars []RouteRegistrar
}

// RouterOption is a functional option for Router configuration
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix (e.g., "v1", "v2")
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// WithGroupMiddleware adds middleware that only runs on the versioned API group
func WithGroupMiddleware(handlers ...gin.HandlerFunc) RouterOption {
	return func(r *Router) {
		r.middleware = append(r.middleware, handlers...)
	}
}

// NewRouter creates a new Router instance
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{
		engine:     engine,
		apiVersion: "v1",
		registrars: make([]RouteRegistrar, 0),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Register adds a RouteRegistrar to be registered later
func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrar)
	return r
}

// Setup registers all routes with the engine
func (r *Router) Setup() {
	api := r.engine.Group("/api/" + r.apiVersion)
	if len(r.middleware) > 0 {
		api.Use(r.middleware...)
	}

	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
}

// EngineConfig controls the global middleware stack
type EngineConfig struct {
	Mode           string
	MaxBodySize    int64
	RequestTimeout time.Duration
	Metrics        middleware.HTTPObserver
	MetricsHandler http.Handler
	Tracing        middleware.TracingConfig
}

// NewEngine creates a gin engine with the global middleware in order:
// recovery, request ID, tracing, access log, security headers, metrics,
// body limit and request timeout. A non-nil MetricsHandler is served on /metrics.
func NewEngine(cfg EngineConfig, log *zap.Logger) *gin.Engine {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	engine.HandleMethodNotAllowed = true

	stack := []gin.HandlerFunc{
		logger.Recovery(log),
		middleware.RequestID(),
	}
	stack = append(stack, middleware.Tracing(cfg.Tracing)...)
	stack = append(stack, logger.GinMiddleware(log), middleware.Secure())
	if cfg.Metrics != nil {
		stack = append(stack, middleware.HTTPMetrics(cfg.Metrics))
	}
	if cfg.MaxBodySize > 0 {
		stack = append(stack, middleware.BodyLimit(cfg.MaxBodySize))
	}
	stack = append(stack, middleware.Timeout(cfg.RequestTimeout))
	engine.Use(stack...)

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, dto.NewErrorResponseWithRequestID(dto.ErrCodeNotFound, "route not found", middleware.GetRequestID(c)))
	})
	engine.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, dto.NewErrorResponseWithRequestID(dto.ErrCodeBadRequest, "method not allowed", middleware.GetRequestID(c)))
	})

	if cfg.MetricsHandler != nil {
		engine.GET("/metrics", gin.WrapH(cfg.MetricsHandler))
	}
	return engine
}
