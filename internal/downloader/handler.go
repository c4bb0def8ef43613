package downloader

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	"github.com/rmitchellscott/binder/internal/i18n"
	"github.com/rmitchellscott/binder/internal/media"
)

// SniffHandler responds with the MIME type of the ?url parameter and whether
// it can be merged.
func SniffHandler(c *gin.Context) {
	urlStr := c.Query("url")
	if urlStr == "" {
		i18n.Abort(c, http.StatusBadRequest, "backend.errors.missing_url", nil)
		return
	}

	mt, err := SniffMime(urlStr)
	if err != nil {
		i18n.Abort(c, http.StatusBadGateway, "backend.errors.fetch_failed", map[string]string{"url": urlStr})
		return
	}
	c.JSON(http.StatusOK, gin.H{"mime": mt, "supported": slices.Contains(media.Allowed(), mt)})
}
