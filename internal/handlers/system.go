package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rmitchellscott/binder/internal/database"
	"github.com/rmitchellscott/binder/internal/storage"
	"github.com/rmitchellscott/binder/internal/version"
)

func HealthHandler(c *gin.Context) {
	status := gin.H{"status": "ok"}
	if kind := storage.GetStorageType(); kind != "" {
		status["storage"] = kind
	}
	if database.Enabled() {
		status["database"] = "connected"
		if sqlDB, err := database.DB.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			status["status"] = "degraded"
			status["database"] = "unreachable"
			c.JSON(http.StatusServiceUnavailable, status)
			return
		}
	}
	c.JSON(http.StatusOK, status)
}

func VersionHandler(c *gin.Context) {
	c.JSON(http.StatusOK, version.Get())
}
