package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"calma/backend/pkg/health"
)

// HealthHandler reports component health
type HealthHandler struct {
	checker *health.Checker
	sockets func() int
	version string
}

// NewHealthHandler creates the handler. sockets reports open voice sockets.
func NewHealthHandler(checker *health.Checker, sockets func() int, version string) *HealthHandler {
	return &HealthHandler{checker: checker, sockets: sockets, version: version}
}

// HealthResponse represents the health check response structure
type HealthResponse struct {
	Status     string                       `json:"status"`
	Timestamp  time.Time                    `json:"timestamp"`
	Version    string                       `json:"version"`
	Components map[string]*health.Component `json:"components"`
	Sockets    int                          `json:"sockets"`
	Memory     gin.H                        `json:"memory"`
}

// Health answers 503 while a critical component is down.
func (h *HealthHandler) Health(c *gin.Context) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	resp := HealthResponse{
		Status:     "ok",
		Timestamp:  time.Now(),
		Version:    h.version,
		Components: h.checker.GetStatus(),
		Memory: gin.H{
			"alloc_mb":  memStats.Alloc / 1024 / 1024,
			"sys_mb":    memStats.Sys / 1024 / 1024,
			"gc_cycles": memStats.NumGC,
		},
	}
	if h.sockets != nil {
		resp.Sockets = h.sockets()
	}

	code := http.StatusOK
	if !h.checker.IsSystemHealthy() {
		resp.Status = "unavailable"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, resp)
}

// RegisterHealthRoutes registers health check related routes
func (h *HealthHandler) RegisterHealthRoutes(router gin.IRoutes) {
	router.GET("/health", h.Health)
}
