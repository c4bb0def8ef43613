package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/rmitchellscott/binder/internal/i18n"
	"github.com/rmitchellscott/binder/internal/logging"
)

// StreamToResponse copies a stored object to the response. It writes the 404
// itself when the key is missing.
func StreamToResponse(ctx context.Context, c *gin.Context, backend StorageBackendWithInfo, storageKey, filename, contentType string) error {
	info, err := backend.GetInfo(ctx, storageKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			i18n.Abort(c, http.StatusNotFound, "backend.errors.document_not_found", nil)
		}
		return fmt.Errorf("failed to check file existence: %w", err)
	}

	reader, err := backend.Get(ctx, storageKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			i18n.Abort(c, http.StatusNotFound, "backend.errors.document_not_found", nil)
		}
		return fmt.Errorf("failed to get file from storage: %w", err)
	}
	defer reader.Close()

	if filename != "" {
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	}
	if contentType != "" {
		c.Header("Content-Type", contentType)
	}
	c.Header("Content-Length", strconv.FormatInt(info.Size, 10))
	c.Status(http.StatusOK)

	if _, err := io.Copy(c.Writer, reader); err != nil {
		logging.Logf("[ERROR] Failed to stream file %s: %v", storageKey, err)
		return fmt.Errorf("failed to stream file: %w", err)
	}
	return nil
}

// CleanupStorageByPrefix deletes every object under prefix, logging (not
// returning) individual failures.
func CleanupStorageByPrefix(ctx context.Context, backend StorageBackend, prefix string) (int, error) {
	keys, err := backend.List(ctx, prefix)
	if err != nil {
		return 0, fmt.Errorf("failed to list files with prefix %s: %w", prefix, err)
	}

	deleted := 0
	for _, key := range keys {
		if err := backend.Delete(ctx, key); err != nil {
			logging.Logf("[WARNING] Failed to delete storage file %s: %v", key, err)
			continue
		}
		deleted++
	}
	if deleted > 0 {
		logging.Logf("[STORAGE] Cleaned up %d files with prefix %s", deleted, prefix)
	}
	return deleted, nil
}
