package routes

import (
	"log/slog"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
)

type errorStruct struct {
	Succeed bool     `json:"success"`
	Status  string   `json:"status"`
	Message string   `json:"message,omitempty"`
	Code    []string `json:"code,omitempty"`
}

// wantsJSON reports whether the error should be rendered as JSON. API routes
// always answer in JSON.
func wantsJSON(c *gin.Context) bool {
	if strings.HasPrefix(c.Request.URL.Path, "/api/") {
		return true
	}
	return strings.Contains(c.GetHeader("Accept"), "application/json")
}

// ErrorHandler captures errors and returns a consistent error response
// with appropriate HTTP status codes based on the error type
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		// Use the last error (most recent)
		err := c.Errors.Last().Err

		statusCode := GetErrorStatus(err)
		errorInfo := GetErrorInfo(err)

		if statusCode >= 500 {
			slog.Error("Request failed with server error",
				"error", err,
				"status", statusCode,
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
			)
		} else if statusCode >= 400 {
			slog.Warn("Request failed with client error",
				"error", err,
				"status", statusCode,
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
			)
		}

		// Streams have already sent their headers
		if c.Writer.Written() {
			return
		}

		response := errorStruct{
			Succeed: false,
			Status:  "error",
			Message: errorInfo.Message,
		}

		// Collect the stop codes of every error in the chain
		var stopCodes []string
		for _, e := range c.Errors {
			for _, code := range GetErrorInfo(e.Err).StopCodes {
				if !slices.Contains(stopCodes, code) {
					stopCodes = append(stopCodes, code)
				}
			}
		}
		response.Code = stopCodes

		if wantsJSON(c) {
			c.AbortWithStatusJSON(statusCode, response)
			return
		}
		slog.Debug("Returning error page HTML", "code", statusCode, "message", errorInfo.Message)
		HTML(c, statusCode, "error.html.tmpl", gin.H{"Error": response, "Status": statusCode})
		c.Abort()
	}
}

// AbortWithError is a helper function to abort the request with an error
// and add it to the Gin error chain for the ErrorHandler middleware
func AbortWithError(c *gin.Context, err error) {
	statusCode := GetErrorStatus(err)
	c.Error(err)
	c.Abort()
	// Set the status code so gin knows not to send 200
	c.Status(statusCode)
}

// AbortWithHTTPError is a helper to abort with a custom HTTPError
func AbortWithHTTPError(c *gin.Context, statusCode int, err error, message string, stopCodes ...string) {
	httpErr := NewHTTPError(statusCode, err, message, stopCodes...)
	c.Error(httpErr)
	c.Abort()
	c.Status(statusCode)
}
