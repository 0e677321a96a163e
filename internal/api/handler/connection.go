package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type connectionRequest struct {
	ConnectionID string `json:"connectionId"`
}

// EndConnection завершує з'єднання. Unknown or already ended ids succeed.
// POST /api/connections/end {connectionId}
func (h *Handler) EndConnection(c *gin.Context) {
	var req connectionRequest
	if !h.bindJSON(c, &req) {
		return
	}

	if err := h.Matcher.End(c.Request.Context(), req.ConnectionID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "success": true})
}

// MarkConnected is called by a client once the out-of-band call is under way.
// POST /api/connections/connected {connectionId}
func (h *Handler) MarkConnected(c *gin.Context) {
	var req connectionRequest
	if !h.bindJSON(c, &req) {
		return
	}

	if err := h.Matcher.MarkConnected(c.Request.Context(), req.ConnectionID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "success": true})
}
