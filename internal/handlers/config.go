package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rmitchellscott/binder/internal/auth"
	"github.com/rmitchellscott/binder/internal/config"
	"github.com/rmitchellscott/binder/internal/i18n"
	"github.com/rmitchellscott/binder/internal/media"
)

// ConfigHandler returns the limits and defaults the UI needs before it
// lets a user pick files.
func ConfigHandler(s config.Settings) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"apiUrl":            "/api/",
			"authEnabled":       auth.WebAuthEnabled(),
			"apiKeyEnabled":     config.Get("API_KEY", "") != "",
			"maxFiles":          s.MaxFiles,
			"maxFileSize":       s.MaxFileSize,
			"maxRequestSize":    s.MaxRequestSize,
			"maxFilenameLength": s.MaxFilenameLength,
			"allowedTypes":      media.Allowed(),
			"pageSize":          s.PageSize,
			"pageMargin":        s.PageMargin,
			"pdfMode":           s.PDFMode,
			"storeOutput":       s.StoreOutput,
			"languages":         i18n.Supported(),
		})
	}
}
