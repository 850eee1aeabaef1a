package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/ally-360/pos-terminal/internal/infra"

	"github.com/gin-gonic/gin"
)

// HealthCheck pings one dependency.
type HealthCheck func(ctx context.Context) error

// Health returns a JSON health check response. Every named check must pass;
// the backend breaker is reported but an open breaker does not fail the check,
// the terminal keeps serving carts while the backend is down.
func Health(checks map[string]HealthCheck, cb *infra.CircuitBreaker) gin.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		body := gin.H{}
		status := http.StatusOK
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				body[name] = "error"
				status = http.StatusServiceUnavailable
				continue
			}
			body[name] = "connected"
		}
		if cb != nil {
			body["backend"] = cb.State().String()
		}
		body["ok"] = status == http.StatusOK
		c.JSON(status, body)
	}
}
