package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// SessionCounter reports the number of live sessions.
type SessionCounter interface {
	Count() int
}

type HealthHandlers struct {
	Predictor HealthChecker
	Sessions  SessionCounter
	Timeout   time.Duration
}

// Health always answers 200 while the API is serving; the predictor's state
// is reported alongside.
func (h *HealthHandlers) Health(c *gin.Context) {
	predictor := "ok"
	if h.Predictor != nil {
		timeout := h.Timeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		if err := h.Predictor.Health(ctx); err != nil {
			predictor = "unavailable"
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"sessions":  h.Sessions.Count(),
		"predictor": predictor,
	})
}
