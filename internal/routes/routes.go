package routes

import (
	"github.com/gin-gonic/gin"

	"table-call/internal/utils"
)

// Context key holding the public base URL, set by the app middleware.
const BaseURLKey = utils.BaseURLKey

// Merge into existing gin.H
func H(c *gin.Context, data gin.H) gin.H {
	if data == nil {
		data = gin.H{}
	}
	data["BaseURL"] = c.GetString(BaseURLKey)
	data["AppVersion"] = utils.GetVersion()
	return data
}

// Returns a HTML response with merged data
func HTML(c *gin.Context, code int, name string, data gin.H) {
	c.HTML(code, name, H(c, data))
}
