package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
)

var (
	ErrPathTraversal = errors.New("path contains directory traversal sequences")
	ErrAbsolutePath  = errors.New("absolute paths are not allowed")
	ErrRelativePath  = errors.New("path must be absolute")
	ErrEmptyPath     = errors.New("path cannot be empty")
	ErrInvalidPath   = errors.New("invalid path")
)

// ValidateStorageKey rejects keys that could escape the storage root.
func ValidateStorageKey(key string) error {
	if key == "" {
		return ErrEmptyPath
	}
	if strings.Contains(key, "\x00") {
		return ErrInvalidPath
	}
	if strings.Contains(key, "..") {
		return ErrPathTraversal
	}
	if filepath.IsAbs(key) || strings.HasPrefix(key, "/") {
		return ErrAbsolutePath
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." {
			return ErrPathTraversal
		}
	}
	return nil
}

// ValidateExistingFilePath checks an absolute, already-resolved filesystem path.
func ValidateExistingFilePath(path string) error {
	if path == "" {
		return ErrEmptyPath
	}
	if strings.Contains(path, "\x00") {
		return ErrInvalidPath
	}
	if !filepath.IsAbs(path) {
		return ErrRelativePath
	}
	if strings.Contains(path, "..") {
		return ErrPathTraversal
	}
	return nil
}

// ValidateAndCleanFilename validates a bare file name (no directories).
func ValidateAndCleanFilename(filename string) (string, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return "", ErrEmptyPath
	}
	if strings.ContainsAny(filename, `/\`) {
		return "", fmt.Errorf("filename cannot contain path separators")
	}
	if strings.Contains(filename, "..") {
		return "", ErrPathTraversal
	}
	if strings.Contains(filename, "\x00") {
		return "", ErrInvalidPath
	}
	return filename, nil
}

// SanitizeFilename turns a client supplied name into something safe to put in
// a Content-Disposition header. The result always ends in ".pdf"; an empty or
// unusable name yields fallback.
func SanitizeFilename(name, fallback string) string {
	name = filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r == '"' || r == ';' || r == '/' || r == '%':
			b.WriteRune('_')
		case unicode.IsControl(r):
		case r > unicode.MaxASCII:
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	clean := strings.Trim(b.String(), ". ")
	if clean == "" {
		return fallback
	}
	if !strings.EqualFold(filepath.Ext(clean), ".pdf") {
		clean = strings.TrimSuffix(clean, filepath.Ext(clean)) + ".pdf"
	}
	if len(clean) > 128 {
		clean = clean[:124] + ".pdf"
	}
	return clean
}
