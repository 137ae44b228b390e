package handler

import (
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
)

// SystemHandler handles system-related API endpoints
type SystemHandler struct {
	BaseHandler
	version   string
	strategy  string
	startTime time.Time
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(version, strategy string) *SystemHandler {
	return &SystemHandler{
		version:   version,
		strategy:  strategy,
		startTime: time.Now(),
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status        string `json:"status" example:"ok"`
	Version       string `json:"version" example:"1.0.0"`
	GoVersion     string `json:"go_version" example:"go1.25.5"`
	LoginStrategy string `json:"login_strategy" example:"popup"`
	Uptime        string `json:"uptime" example:"1h30m45s"`
	Timestamp     string `json:"timestamp" example:"2026-01-23T12:00:00Z"`
}

// Health godoc
// @Summary      Health check
// @Description  Reports that the service is up, with version and uptime
// @Tags         system
// @Produce      json
// @Success      200 {object} dto.Response
// @Router       /health [get]
func (h *SystemHandler) Health(c *gin.Context) {
	h.Success(c, HealthResponse{
		Status:        "ok",
		Version:       h.version,
		GoVersion:     runtime.Version(),
		LoginStrategy: h.strategy,
		Uptime:        time.Since(h.startTime).Round(time.Second).String(),
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	})
}
