package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rmitchellscott/binder/internal/logging"
	"github.com/rmitchellscott/binder/internal/security"
)

type FilesystemBackend struct {
	basePath string
}

func NewFilesystemBackend(basePath string) *FilesystemBackend {
	return &FilesystemBackend{
		basePath: basePath,
	}
}

// Put writes to a temporary file beside the target and renames it into
// place, so readers never observe a partial document.
func (fsb *FilesystemBackend) Put(ctx context.Context, key string, data io.Reader) error {
	target, err := fsb.keyToPath(key)
	if err != nil {
		return fmt.Errorf("invalid storage key %s: %w", key, err)
	}
	if err := security.SafeMkdirAll(target.Dir(), 0755); err != nil {
		logging.Logf("[ERROR] [STORAGE] Failed to create directory %s: %v", target.Dir(), err)
		return fmt.Errorf("failed to create directory for %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(target.Dir().String(), ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", key, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := io.Copy(tmp, data); err != nil {
		tmp.Close()
		logging.Logf("[ERROR] [STORAGE] Failed to write data to %s: %v", target, err)
		return fmt.Errorf("failed to write data to %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write data to %s: %w", key, err)
	}
	if err := os.Rename(tmpName, target.String()); err != nil {
		return fmt.Errorf("failed to store %s: %w", key, err)
	}
	return nil
}

func (fsb *FilesystemBackend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	target, err := fsb.keyToPath(key)
	if err != nil {
		return nil, fmt.Errorf("invalid storage key %s: %w", key, err)
	}

	file, err := security.SafeOpen(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to open file %s: %w", key, err)
	}
	return file, nil
}

func (fsb *FilesystemBackend) Delete(ctx context.Context, key string) error {
	target, err := fsb.keyToPath(key)
	if err != nil {
		return fmt.Errorf("invalid storage key %s: %w", key, err)
	}
	if err := security.SafeRemoveIfExists(target); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (fsb *FilesystemBackend) List(ctx context.Context, prefix string) ([]string, error) {
	infos, err := fsb.ListWithInfo(ctx, prefix)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(infos))
	for _, info := range infos {
		keys = append(keys, info.Key)
	}
	return keys, nil
}

func (fsb *FilesystemBackend) Exists(ctx context.Context, key string) (bool, error) {
	target, err := fsb.keyToPath(key)
	if err != nil {
		return false, fmt.Errorf("invalid storage key %s: %w", key, err)
	}
	if _, err := security.SafeStat(target); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check existence of %s: %w", key, err)
	}
	return true, nil
}

// ListWithInfo walks the directory holding prefix. Temporary upload files
// are skipped.
func (fsb *FilesystemBackend) ListWithInfo(ctx context.Context, prefix string) ([]StorageInfo, error) {
	root, err := filepath.Abs(fsb.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage root: %w", err)
	}
	dir := strings.TrimSuffix(prefix, "/")
	if !strings.HasSuffix(prefix, "/") {
		dir = path.Dir(prefix)
	}
	if dir != "" && dir != "." {
		sp, err := fsb.keyToPath(dir)
		if err != nil {
			return nil, fmt.Errorf("invalid storage prefix %s: %w", prefix, err)
		}
		root = sp.String()
	}

	var infos []StorageInfo
	if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
		return infos, nil
	}

	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".upload-") {
			return nil
		}
		key := fsb.pathToKey(p)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		infos = append(infos, StorageInfo{Key: key, Size: info.Size(), LastModified: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list objects with prefix %s: %w", prefix, err)
	}
	return infos, nil
}

func (fsb *FilesystemBackend) GetInfo(ctx context.Context, key string) (*StorageInfo, error) {
	target, err := fsb.keyToPath(key)
	if err != nil {
		return nil, fmt.Errorf("invalid storage key %s: %w", key, err)
	}
	info, err := security.SafeStat(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to get info for %s: %w", key, err)
	}
	return &StorageInfo{Key: key, Size: info.Size(), LastModified: info.ModTime()}, nil
}

func (fsb *FilesystemBackend) keyToPath(key string) (*security.SecurePath, error) {
	return security.NewSecurePathInBase(fsb.basePath, key)
}

func (fsb *FilesystemBackend) pathToKey(p string) string {
	base, err := filepath.Abs(fsb.basePath)
	if err != nil {
		base = fsb.basePath
	}
	relPath, err := filepath.Rel(base, p)
	if err != nil {
		return p
	}
	return filepath.ToSlash(relPath)
}
