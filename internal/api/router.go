package api

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/personalolive/oliveboard/pkg/board"
	"github.com/personalolive/oliveboard/pkg/fragment"
)

// NewRouter wires all endpoints onto a gin engine.
func NewRouter(svc *board.Service, src fragment.Source) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/health", Health(src))

	apiGroup := r.Group("/api")
	{
		apiGroup.POST("/generate", Generate(svc))
		apiGroup.GET("/sessions", ListSessions(svc))
		apiGroup.GET("/sessions/:sessionId", GetSession(svc))
		apiGroup.POST("/sessions/:sessionId/filter", FilterWidget(svc))
	}

	return r
}

// requestLogger tags each request with an id and logs method, path, status,
// and latency through slog.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := uuid.NewString()
		c.Set("requestId", requestID)
		c.Header("X-Request-ID", requestID)

		start := time.Now()
		c.Next()

		slog.Info("request completed",
			"requestId", requestID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).String(),
		)
	}
}
