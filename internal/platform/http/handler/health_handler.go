// Package handler provides HTTP handlers for platform-level endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Check reports whether a dependency is reachable.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

// Health serves /healthz. Every probe must pass within the timeout for a 200.
type Health struct {
	checks  []Check
	timeout time.Duration
}

func NewHealth(timeout time.Duration, checks ...Check) *Health {
	return &Health{checks: checks, timeout: timeout}
}

func (h *Health) Handle(c *gin.Context) {
	c.Header("Cache-Control", "no-store")

	if c.Request.Method == http.MethodOptions {
		c.Status(http.StatusNoContent)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	status, results := http.StatusOK, make(map[string]string, len(h.checks))
	for _, check := range h.checks {
		if err := check.Probe(ctx); err != nil {
			slog.WarnContext(ctx, "health check failed", "check", check.Name, "error", err)
			results[check.Name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		results[check.Name] = "ok"
	}

	if c.Request.Method == http.MethodHead {
		c.Status(status)
		return
	}
	overall := "ok"
	if status != http.StatusOK {
		overall = "unavailable"
	}
	c.JSON(status, gin.H{"status": overall, "checks": results})
}
