package security

import (
	"fmt"
	"path/filepath"
)

// SecurePath is a filesystem path that has passed validation. File operations
// in this package only accept SecurePath values.
type SecurePath struct {
	path string
}

// NewSecurePathFromExisting validates an absolute path.
func NewSecurePathFromExisting(path string) (*SecurePath, error) {
	if err := ValidateExistingFilePath(path); err != nil {
		return nil, err
	}
	return &SecurePath{path: filepath.Clean(path)}, nil
}

// NewSecurePathInBase joins a storage key onto baseDir.
func NewSecurePathInBase(baseDir, key string) (*SecurePath, error) {
	if err := ValidateStorageKey(key); err != nil {
		return nil, err
	}
	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}
	return NewSecurePathFromExisting(filepath.Join(absBase, filepath.FromSlash(key)))
}

// ResolveSecurePath makes a user supplied (possibly relative) path absolute
// before validating it.
func ResolveSecurePath(path string) (*SecurePath, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %q: %w", path, err)
	}
	return NewSecurePathFromExisting(abs)
}

func (sp *SecurePath) String() string {
	if sp == nil {
		return ""
	}
	return sp.path
}

// Dir returns the parent directory as a SecurePath.
func (sp *SecurePath) Dir() *SecurePath {
	if sp == nil {
		return nil
	}
	return &SecurePath{path: filepath.Dir(sp.path)}
}
