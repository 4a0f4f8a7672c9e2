package routes

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Interval of the comment lines keeping idle streams open through proxies.
var keepAliveInterval = 15 * time.Second

// startStream sets the SSE headers and commits the response.
func startStream(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no") // Disable buffering for Nginx

	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()
}

// eventMessage sends one named event with a JSON payload to the SSE client.
func eventMessage(c *gin.Context, event string, data any) error {
	serialized, err := json.Marshal(data)
	if err != nil {
		slog.Error("Failed to marshal SSE event message", "event", event, "error", err)
		return err
	}

	if _, err := fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, serialized); err != nil {
		return err
	}

	// Flush the buffer to ensure the data is sent immediately
	c.Writer.Flush()
	return nil
}

func keepAlive(c *gin.Context) error {
	if _, err := c.Writer.WriteString(": keep-alive\n\n"); err != nil {
		return err
	}
	c.Writer.Flush()
	return nil
}
