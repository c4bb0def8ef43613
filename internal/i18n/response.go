package i18n

import "github.com/gin-gonic/gin"

// Abort ends the request with a JSON error. "error" carries the stable key
// the UI translates itself; "message" is the server-side translation for API
// clients.
func Abort(c *gin.Context, status int, key string, data map[string]string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error":   key,
		"message": TWithDataFromContext(c.Request.Context(), key, data),
	})
}
