package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"dupcheck/internal/handler"
	"dupcheck/internal/middleware"
)

// Setup configures the Gin engine with all routes and middleware.
func Setup(
	logger *zap.Logger,
	allowedOrigins []string,
	checkH *handler.CheckHandler,
	healthH *handler.HealthHandler,
) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	if len(allowedOrigins) > 0 {
		r.Use(middleware.CORS(allowedOrigins))
	}

	// Health checks
	r.GET("/healthz", healthH.Liveness)
	r.GET("/readyz", healthH.Readiness)

	v1 := r.Group("/api/v1")

	checks := v1.Group("/checks")
	checks.POST("", checkH.Create)
	checks.GET("", checkH.List)
	checks.GET("/:id", checkH.GetByID)
	checks.GET("/:id/unique", checkH.Unique)
	checks.GET("/:id/report", checkH.Report)
	checks.POST("/:id/merge", checkH.Merge)

	return r
}
