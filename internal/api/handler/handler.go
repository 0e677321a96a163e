package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ventishh/backend/internal/apperrors"
	"ventishh/backend/internal/localization"
	"ventishh/backend/internal/logger"
	"ventishh/backend/internal/matchhub"
)

// Handler містить посилання на Matcher та push-хаб
type Handler struct {
	Matcher   *matchhub.MatcherService
	Hub       *matchhub.ManagerService
	Localizer *localization.Localizer
	// PollInterval is advertised to clients in the session response.
	PollInterval time.Duration
	// AllowedOrigins gates WebSocket upgrades; "*" allows any origin.
	AllowedOrigins []string
}

func NewHandler(matcher *matchhub.MatcherService, hub *matchhub.ManagerService, localizer *localization.Localizer) *Handler {
	return &Handler{
		Matcher:        matcher,
		Hub:            hub,
		Localizer:      localizer,
		AllowedOrigins: []string{"*"},
	}
}

// respondError maps err onto the HTTP contract: validation failures become a
// 400 with a localized message, everything else an opaque 500.
func (h *Handler) respondError(c *gin.Context, err error) {
	lang := h.Localizer.Negotiate(c.GetHeader("Accept-Language"))

	if apperrors.IsValidation(err) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": h.Localizer.GetString(lang, apperrors.MessageKey(err)),
			"code":  apperrors.CodeValidation,
		})
		return
	}

	logger.LogError(c.Request.Context(), "request failed", err,
		slog.String("method", c.Request.Method),
		slog.String("path", c.FullPath()))
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": h.Localizer.GetString(lang, "error.internal"),
		"code":  apperrors.CodeInternal,
	})
}

// bindJSON decodes the request body into dst, answering 400 on malformed input.
func (h *Handler) bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		slog.DebugContext(c.Request.Context(), "bad request body", slog.String("error", err.Error()))
		h.respondError(c, apperrors.ErrInvalidBody)
		return false
	}
	return true
}
