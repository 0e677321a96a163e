package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"ventishh/backend/internal/apperrors"
	"ventishh/backend/internal/matchhub"
)

func (h *Handler) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// ServeWebSocket оновлює HTTP-з'єднання до WebSocket, через який клієнт
// отримує подію "match_found". Опитування status лишається основним каналом.
// GET /ws?sessionId=
func (h *Handler) ServeWebSocket(c *gin.Context) {
	sessionID := strings.TrimSpace(c.Query("sessionId"))
	if sessionID == "" {
		h.respondError(c, apperrors.ErrSessionRequired)
		return
	}

	upgrader := h.upgrader()
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		slog.WarnContext(c.Request.Context(), "websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	// 1. Створення нового клієнта
	client := matchhub.NewWebSocketClient(h.Hub, conn, sessionID)

	// 2. Реєстрація клієнта в хабі
	select {
	case h.Hub.RegisterCh <- client:
	case <-h.Hub.Done():
		conn.Close()
		return
	}

	// 3. Запуск клієнта
	client.Run()
}
