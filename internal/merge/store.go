package merge

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rmitchellscott/binder/internal/binder"
	"github.com/rmitchellscott/binder/internal/database"
	"github.com/rmitchellscott/binder/internal/logging"
	"github.com/rmitchellscott/binder/internal/storage"
)

// storeOutput keeps a copy of the output document when stored output is
// configured. It returns the document ID, or "" when nothing was stored.
func storeOutput(ctx context.Context, res *binder.Result, filename, source string, retention time.Duration) (string, error) {
	backend := storage.GetStorageBackend()
	if backend == nil || !database.Enabled() {
		return "", nil
	}

	id := uuid.New()
	key := storage.DocumentKey(id)
	if err := backend.Put(ctx, key, bytes.NewReader(res.PDF)); err != nil {
		return "", fmt.Errorf("storing document: %w", err)
	}

	doc := &database.Document{
		ID:         id,
		Filename:   filename,
		StorageKey: key,
		Size:       int64(len(res.PDF)),
		Pages:      res.Pages,
		Inputs:     res.Inputs,
		Source:     source,
	}
	if retention > 0 {
		exp := time.Now().UTC().Add(retention)
		doc.ExpiresAt = &exp
	}
	if err := database.CreateDocument(doc); err != nil {
		if derr := backend.Delete(ctx, key); derr != nil {
			logging.Logf("[WARNING] [STORAGE] Orphaned object %s: %v", key, derr)
		}
		return "", err
	}
	logging.Logf("[STORAGE] Stored %s (%d bytes, %d pages)", key, doc.Size, doc.Pages)
	return id.String(), nil
}
