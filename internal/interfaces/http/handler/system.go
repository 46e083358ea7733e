package handler

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/erp/integration-hub/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// Pinger reports whether a backing store is reachable
type Pinger interface {
	PingContext(ctx context.Context) error
}

// SystemHandler serves liveness and readiness probes
type SystemHandler struct {
	BaseHandler
	db        Pinger
	version   string
	startedAt time.Time
	ready     atomic.Bool
}

// NewSystemHandler creates a SystemHandler. db may be nil when the hub runs
// on in-process storage.
func NewSystemHandler(db Pinger, version string) *SystemHandler {
	return &SystemHandler{db: db, version: version, startedAt: time.Now()}
}

// SetReady flips the readiness probe. The server marks itself ready once
// its workers run and unready when shutdown begins.
func (h *SystemHandler) SetReady(ready bool) {
	h.ready.Store(ready)
}

// HealthResponse is the liveness probe body
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Database string `json:"database"`
	Uptime   string `json:"uptime"`
}

// Health pings the database
//
// GET /health
func (h *SystemHandler) Health(c *gin.Context) {
	resp := HealthResponse{
		Status:   "healthy",
		Version:  h.version,
		Database: "memory",
		Uptime:   time.Since(h.startedAt).Round(time.Second).String(),
	}
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			resp.Status = "unhealthy"
			resp.Database = "unreachable"
			c.JSON(http.StatusServiceUnavailable, dto.Response{Success: false, Data: resp, Error: &dto.ErrorInfo{
				Code:    dto.ErrCodeServiceUnavailable,
				Message: "Database is unreachable",
			}})
			return
		}
		resp.Database = "connected"
	}
	h.Success(c, resp)
}

// Ready reports whether the hub accepts traffic
//
// GET /ready
func (h *SystemHandler) Ready(c *gin.Context) {
	if !h.ready.Load() {
		h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeServiceUnavailable, "Hub is not ready")
		return
	}
	h.Success(c, gin.H{"status": "ready"})
}
