package storage

import (
	"github.com/rmitchellscott/binder/internal/config"
)

// StorageConfig selects and configures the backend for stored output
// documents.
type StorageConfig struct {
	Backend string
	DataDir string

	S3Bucket         string
	S3Region         string
	S3Endpoint       string
	S3AccessKeyID    string
	S3SecretKey      string
	S3ForcePathStyle bool
}

// GetStorageConfig reads STORAGE_BACKEND, DATA_DIR and the S3_* variables.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Backend:          config.Get("STORAGE_BACKEND", "filesystem"),
		DataDir:          config.Get("DATA_DIR", "/data"),
		S3Bucket:         config.Get("S3_BUCKET", ""),
		S3Region:         config.Get("S3_REGION", "us-east-1"),
		S3Endpoint:       config.Get("S3_ENDPOINT", ""),
		S3AccessKeyID:    config.Get("S3_ACCESS_KEY_ID", ""),
		S3SecretKey:      config.Get("S3_SECRET_ACCESS_KEY", ""),
		S3ForcePathStyle: config.GetBool("S3_FORCE_PATH_STYLE", false),
	}
}
