package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ventishh/backend/internal/models"
)

type leaveRequest struct {
	SessionID string `json:"sessionId"`
}

// JoinQueue ставить сесію в чергу і одразу намагається знайти пару.
// POST /api/queue/join {sessionId, role, contactHandle | telegramUsername}
func (h *Handler) JoinQueue(c *gin.Context) {
	var req models.JoinRequest
	if !h.bindJSON(c, &req) {
		return
	}

	res, err := h.Matcher.Join(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	body := gin.H{
		"entry":   res.Entry,
		"user":    res.Entry, // поле старого клієнта
		"matched": res.Matched,
	}
	if res.Connection != nil {
		body["connection"] = res.Connection
	}
	c.JSON(http.StatusOK, body)
}

// LeaveQueue прибирає сесію з черги. Idempotent.
// POST /api/queue/leave {sessionId}
func (h *Handler) LeaveQueue(c *gin.Context) {
	var req leaveRequest
	if !h.bindJSON(c, &req) {
		return
	}

	if err := h.Matcher.Leave(c.Request.Context(), req.SessionID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "success": true})
}

// QueueStatus віддає знімок черги для клієнтів, що опитують сервер.
// GET /api/queue/status?sessionId=
func (h *Handler) QueueStatus(c *gin.Context) {
	snap, err := h.Matcher.Snapshot(c.Request.Context(), c.Query("sessionId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}
