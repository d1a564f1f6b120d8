package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dupcheck/internal/port"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	store port.ReferenceStore
}

// NewHealthHandler creates a new HealthHandler. store may be nil when the
// server runs against file references only.
func NewHealthHandler(store port.ReferenceStore) *HealthHandler {
	return &HealthHandler{store: store}
}

// Liveness handles GET /healthz
// @Summary      Liveness probe
// @Tags         health
// @Produce      json
// @Success      200 {object} map[string]string
// @Router       /healthz [get]
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readiness handles GET /readyz
// @Summary      Readiness probe
// @Description  Pings the reference store when one is configured
// @Tags         health
// @Produce      json
// @Success      200 {object} map[string]string
// @Failure      503 {object} map[string]string
// @Router       /readyz [get]
func (h *HealthHandler) Readiness(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "store": "not configured"})
		return
	}
	if err := h.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": "reference store not reachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
