package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/prodiguer/hermes/api/handlers"
	"github.com/prodiguer/hermes/api/middleware"
	"github.com/prodiguer/hermes/internal/health"
	"github.com/prodiguer/hermes/internal/message"
)

// RegisterRoutes sets up the operational endpoints of an agent
func RegisterRoutes(r *gin.Engine, agent string, registry *health.Registry) {
	if registry == nil {
		panic("Health registry cannot be nil")
	}

	r.Use(gin.Recovery())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	ops := r.Group("/")
	ops.Use(middleware.TracingMiddleware(agent))
	{
		ops.GET("/health", handlers.HealthCheck(registry))
		ops.GET("/status", handlers.Status(agent, message.HermesVersion, registry))
	}
}
