package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"btc-treasury-tracker/internal/observability"
)

func (s *Server) handleHealth(c *gin.Context) {
	report := s.deps.Health.Check(c.Request.Context())

	status := http.StatusOK
	if report.Status == observability.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(status, report)
}

func (s *Server) handleReady(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	if err := s.deps.Health.Ready(c.Request.Context()); err != nil {
		s.log.WithError(err).Warn("readiness check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ready": true})
}
