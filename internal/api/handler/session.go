package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// NewSession видає новий анонімний sessionId.
// GET /api/session
func (h *Handler) NewSession(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"sessionId":      uuid.NewString(),
		"pollIntervalMs": h.PollInterval.Milliseconds(),
	})
}

// Healthz answers liveness checks.
func (h *Handler) Healthz(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}
