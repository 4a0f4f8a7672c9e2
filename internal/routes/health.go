package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"table-call/internal/backend"
	"table-call/internal/utils"
)

// Health serves the ops endpoints.
func (s *Server) Health(r *gin.RouterGroup) {
	r.GET("/ping", func(c *gin.Context) {
		msg := c.Query("ping")
		if msg == "" {
			msg = "pong"
		}
		c.JSON(http.StatusOK, gin.H{"message": msg})
	})

	r.GET("/health", func(c *gin.Context) {
		status := http.StatusOK
		data := gin.H{
			"status":  "ok",
			"version": utils.GetVersion(),
			"views":   s.Views.Len(),
		}
		if s.Storage != nil {
			version, err := s.Storage.GetSchemaVersion(c.Request.Context())
			if err != nil {
				status = http.StatusServiceUnavailable
				data["status"] = "degraded"
				data["storage"] = err.Error()
			} else {
				data["schemaVersion"] = version
			}
		}
		c.JSON(status, data)
	})

	// Provide the initial client config
	r.GET("/config.json", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"callCooldown":     s.Cfg.CallCooldown.Milliseconds(),
			"feedbackCooldown": s.Cfg.FeedbackCooldown.Milliseconds(),
			"noticeTTL":        s.Cfg.NoticeTTL.Milliseconds(),
			"callTypes":        backend.CallTypes,
			"version":          utils.GetVersion(),
		})
	})
}
