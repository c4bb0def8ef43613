package storage

import (
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
)

// DocumentPrefix holds every stored output document.
const DocumentPrefix = "documents/"

// DocumentKey generates the storage key for a stored output document.
func DocumentKey(id uuid.UUID) string {
	return fmt.Sprintf("%s%s.pdf", DocumentPrefix, id.String())
}

// ParseDocumentKey extracts the document ID from a storage key.
func ParseDocumentKey(storageKey string) (uuid.UUID, error) {
	if !strings.HasPrefix(storageKey, DocumentPrefix) {
		return uuid.Nil, fmt.Errorf("storage key is not a document: %s", storageKey)
	}
	name := strings.TrimPrefix(storageKey, DocumentPrefix)
	if strings.Contains(name, "/") || path.Ext(name) != ".pdf" {
		return uuid.Nil, fmt.Errorf("invalid document key format: %s", storageKey)
	}
	id, err := uuid.Parse(strings.TrimSuffix(name, ".pdf"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid document ID in storage key: %w", err)
	}
	return id, nil
}
