package handler

import (
	"errors"
	"net/http"
	"runtime"
	"time"

	"github.com/agency/backend/internal/infrastructure/scheduler"
	"github.com/agency/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// Pinger reports whether a backing store is reachable
type Pinger interface {
	Ping() error
}

// SystemHandler serves liveness, readiness and sweep endpoints
type SystemHandler struct {
	BaseHandler
	name      string
	version   string
	startTime time.Time
	db        Pinger
	sweep     *scheduler.SweepScheduler
}

// NewSystemHandler creates a SystemHandler. db and sweep may be nil.
func NewSystemHandler(name, version string, db Pinger, sweep *scheduler.SweepScheduler) *SystemHandler {
	return &SystemHandler{
		name:      name,
		version:   version,
		startTime: time.Now(),
		db:        db,
		sweep:     sweep,
	}
}

// SystemInfoResponse represents the system information response
type SystemInfoResponse struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
}

// GetSystemInfo handles GET /system/info
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	h.Success(c, SystemInfoResponse{
		Name:      h.name,
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	})
}

// Ping handles GET /system/ping
func (h *SystemHandler) Ping(c *gin.Context) {
	h.Success(c, gin.H{"message": "pong", "timestamp": time.Now().Format(time.RFC3339)})
}

// Ready handles GET /system/ready. It fails with 503 while the database is
// unreachable.
func (h *SystemHandler) Ready(c *gin.Context) {
	if h.db != nil {
		if err := h.db.Ping(); err != nil {
			h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeUnavailable, "database unreachable")
			return
		}
	}
	h.Success(c, gin.H{"status": "ready"})
}

// SweepStatus handles GET /system/sweep
func (h *SystemHandler) SweepStatus(c *gin.Context) {
	if h.sweep == nil {
		h.Success(c, gin.H{"enabled": false})
		return
	}
	h.Success(c, gin.H{"enabled": true, "status": h.sweep.Status()})
}

// TriggerSweep handles POST /system/sweep. The sweep runs within the request.
func (h *SystemHandler) TriggerSweep(c *gin.Context) {
	if h.sweep == nil {
		h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeUnavailable, "periodic sweep is disabled")
		return
	}
	err := h.sweep.TriggerNow(c.Request.Context())
	switch {
	case errors.Is(err, scheduler.ErrSweepInProgress):
		h.Error(c, http.StatusConflict, dto.ErrCodeConflict, "a sweep is already running")
	case errors.Is(err, scheduler.ErrSchedulerNotRunning):
		h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeUnavailable, "sweep scheduler is not running")
	case err != nil:
		h.HandleError(c, err)
	default:
		h.Success(c, h.sweep.Status())
	}
}

// RegisterRoutes mounts the system routes on rg
func (h *SystemHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/system")
	g.GET("/info", h.GetSystemInfo)
	g.GET("/ping", h.Ping)
	g.GET("/ready", h.Ready)
	g.GET("/sweep", h.SweepStatus)
	g.POST("/sweep", h.TriggerSweep)
}
