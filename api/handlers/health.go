package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/prodiguer/hermes/internal/health"
)

// HealthCheck probes the collaborators of the running agent.
func HealthCheck(registry *health.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		result := registry.Check(c.Request.Context())
		status := http.StatusOK
		if result.Status != health.StatusHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, result)
	}
}

// Status describes the agent without probing anything.
func Status(agent, version string, registry *health.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"agent":   agent,
			"version": version,
			"checks":  registry.Names(),
		})
	}
}
