package handler

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter налаштовує Gin: middleware, CORS та всі роути сервісу.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger())

	origins := h.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:  origins,
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Content-Type", "Accept-Language", requestIDHeader},
		ExposeHeaders: []string{"Content-Length", requestIDHeader},
	}))

	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ws", h.ServeWebSocket) // WebSocket Upgrade

	api := r.Group("/api")
	{
		api.GET("/session", h.NewSession)

		queue := api.Group("/queue")
		{
			queue.POST("/join", h.JoinQueue)
			queue.POST("/leave", h.LeaveQueue)
			queue.GET("/status", h.QueueStatus)
		}

		connections := api.Group("/connections")
		{
			connections.POST("/end", h.EndConnection)
			connections.POST("/connected", h.MarkConnected)
		}
	}
	return r
}
