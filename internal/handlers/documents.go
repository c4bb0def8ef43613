package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rmitchellscott/binder/internal/database"
	"github.com/rmitchellscott/binder/internal/i18n"
	"github.com/rmitchellscott/binder/internal/logging"
	"github.com/rmitchellscott/binder/internal/retention"
	"github.com/rmitchellscott/binder/internal/storage"
)

const maxPageLimit = 200

// storedOutput returns the storage backend, or writes 404 when stored
// documents are turned off.
func storedOutput(c *gin.Context) (storage.StorageBackendWithInfo, bool) {
	backend := storage.GetStorageBackend()
	if backend == nil || !database.Enabled() {
		i18n.Abort(c, http.StatusNotFound, "backend.errors.storage_disabled", nil)
		return nil, false
	}
	return backend, true
}

func documentID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		i18n.Abort(c, http.StatusNotFound, "backend.errors.document_not_found", nil)
		return uuid.Nil, false
	}
	return id, true
}

// ListDocumentsHandler lists stored documents, newest first.
func ListDocumentsHandler(c *gin.Context) {
	if _, ok := storedOutput(c); !ok {
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 {
		limit = 50
	}
	limit = min(limit, maxPageLimit)
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	docs, total, err := database.ListDocuments(limit, offset)
	if err != nil {
		logging.Logf("[ERROR] [DOCUMENTS] %v", err)
		i18n.Abort(c, http.StatusInternalServerError, "backend.errors.internal_error", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs, "total": total, "limit": limit, "offset": offset})
}

// GetDocumentHandler streams a stored document.
func GetDocumentHandler(c *gin.Context) {
	backend, ok := storedOutput(c)
	if !ok {
		return
	}
	id, ok := documentID(c)
	if !ok {
		return
	}
	doc, err := database.GetDocument(id)
	if err != nil {
		if errors.Is(err, database.ErrDocumentNotFound) {
			i18n.Abort(c, http.StatusNotFound, "backend.errors.document_not_found", nil)
			return
		}
		logging.Logf("[ERROR] [DOCUMENTS] %v", err)
		i18n.Abort(c, http.StatusInternalServerError, "backend.errors.internal_error", nil)
		return
	}
	if err := storage.StreamToResponse(c.Request.Context(), c, backend, doc.StorageKey, doc.Filename, "application/pdf"); err != nil {
		logging.Logf("[ERROR] [DOCUMENTS] %s: %v", doc.ID, err)
		if !c.Writer.Written() {
			i18n.Abort(c, http.StatusInternalServerError, "backend.errors.internal_error", nil)
		}
	}
}

// DeleteDocumentHandler removes a stored document and its record.
func DeleteDocumentHandler(c *gin.Context) {
	backend, ok := storedOutput(c)
	if !ok {
		return
	}
	id, ok := documentID(c)
	if !ok {
		return
	}
	doc, err := database.GetDocument(id)
	if err != nil {
		if errors.Is(err, database.ErrDocumentNotFound) {
			i18n.Abort(c, http.StatusNotFound, "backend.errors.document_not_found", nil)
			return
		}
		i18n.Abort(c, http.StatusInternalServerError, "backend.errors.internal_error", nil)
		return
	}
	if err := retention.Remove(c.Request.Context(), backend, doc); err != nil {
		logging.Logf("[ERROR] [DOCUMENTS] delete %s: %v", doc.ID, err)
		i18n.Abort(c, http.StatusInternalServerError, "backend.errors.internal_error", nil)
		return
	}
	logging.Logf("[DOCUMENTS] Deleted %s", doc.ID)
	c.Status(http.StatusNoContent)
}

// PurgeDocumentsHandler removes every stored document.
func PurgeDocumentsHandler(c *gin.Context) {
	backend, ok := storedOutput(c)
	if !ok {
		return
	}
	objects, err := storage.CleanupStorageByPrefix(c.Request.Context(), backend, storage.DocumentPrefix)
	if err != nil {
		logging.Logf("[ERROR] [DOCUMENTS] purge: %v", err)
		i18n.Abort(c, http.StatusInternalServerError, "backend.errors.internal_error", nil)
		return
	}
	records, err := database.DeleteAllDocuments()
	if err != nil {
		logging.Logf("[ERROR] [DOCUMENTS] purge: %v", err)
		i18n.Abort(c, http.StatusInternalServerError, "backend.errors.internal_error", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"objects": objects, "documents": records})
}
