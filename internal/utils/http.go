package utils

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// BaseURLKey is the gin context key of the public base URL for the request.
const BaseURLKey = "BaseURL"

// JoinURL appends path to base with exactly one slash between them.
func JoinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// UrlFor builds an absolute URL for path on the request's base URL.
func UrlFor(c *gin.Context, path string) string {
	return JoinURL(GetBaseURL(c, c.GetString(BaseURLKey)), path)
}

// GetBaseURL prefers the configured base URL and otherwise derives one from
// the request, honouring X-Forwarded-Proto from a TLS terminating proxy.
func GetBaseURL(c *gin.Context, configured string) string {
	if configured != "" {
		return strings.TrimRight(configured, "/")
	}

	scheme := "http"
	if c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host
}
