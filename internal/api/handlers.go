// Package api exposes the board service over HTTP.
package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/personalolive/oliveboard/pkg/board"
	"github.com/personalolive/oliveboard/pkg/fragment"
	"github.com/personalolive/oliveboard/pkg/response"
	"github.com/personalolive/oliveboard/pkg/spec"
)

type generateRequest struct {
	SessionID string `json:"sessionId"`
	Prompt    string `json:"prompt" binding:"required"`
}

// Generate runs one prompt submission against the board service.
func Generate(svc *board.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req generateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "prompt is required"})
			return
		}
		slog.Info("Received generate request", "sessionId", req.SessionID)

		res, err := svc.Submit(c.Request.Context(), req.SessionID, req.Prompt)
		if err != nil {
			slog.Error("submit failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process prompt"})
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// ListSessions returns the session collection, most recently updated first.
func ListSessions(svc *board.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"sessions": response.FromSessions(svc.Sessions())})
	}
}

// GetSession returns one full session, transcript and dashboard included.
func GetSession(svc *board.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("sessionId")
		sess := svc.Session(id)
		if sess == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusOK, sess)
	}
}

type filterRequest struct {
	WidgetID string           `json:"widgetId" binding:"required"`
	Filters  spec.FilterState `json:"filters"`
}

// FilterWidget evaluates a widget's rows under the posted filter state.
func FilterWidget(svc *board.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("sessionId")
		var req filterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "widgetId is required"})
			return
		}

		rows, err := svc.Filter(id, req.WidgetID, req.Filters)
		if err != nil {
			slog.Error("filter failed", "sessionId", id, "error", err)
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		if rows == nil {
			rows = spec.Rows{}
		}
		c.JSON(http.StatusOK, gin.H{"widgetId": req.WidgetID, "rows": rows})
	}
}

// Health reports liveness and, when the source is an Ollama client, whether
// the model endpoint is reachable.
func Health(src fragment.Source) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := gin.H{"status": "ok"}
		if hc, ok := src.(interface{ HealthCheck() error }); ok {
			if err := hc.HealthCheck(); err != nil {
				status["status"] = "degraded"
				status["ollama"] = err.Error()
				c.JSON(http.StatusServiceUnavailable, status)
				return
			}
			status["ollama"] = "ok"
		}
		c.JSON(http.StatusOK, status)
	}
}
