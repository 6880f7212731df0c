package api

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"btc-treasury-tracker/internal/config"
	"btc-treasury-tracker/internal/observability"
)

// instrument records request latency per route.
func (s *Server) instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start)
		status := c.Writer.Status()

		observability.RecordRequest(route, strconv.Itoa(status), elapsed.Seconds())
		if s.deps.Recorder != nil && route != "/metrics" {
			s.deps.Recorder.TrackPerformance("http "+c.Request.Method+" "+route, elapsed, map[string]string{
				"status": strconv.Itoa(status),
			})
		}
	}
}

// requireAdmin rejects requests whose bearer token does not match the admin
// secret before any handler runs. Rejections while no secret is configured
// are not recorded as monitor errors.
func (s *Server) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		secret, err := s.adminSecret()
		if err != nil {
			s.log.WithError(err).WithField("route", c.FullPath()).Debug("admin request rejected")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, errorResponse{Error: "admin endpoints are not configured"})
			return
		}
		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(secret)) != 1 {
			s.fail(c, http.StatusUnauthorized, "unauthorized", nil)
			return
		}
		c.Next()
	}
}

func (s *Server) adminSecret() (string, error) {
	if s.deps.AdminSecret == nil {
		return "", fmt.Errorf("admin secret: %w", config.ErrNotConfigured)
	}
	return s.deps.AdminSecret()
}
