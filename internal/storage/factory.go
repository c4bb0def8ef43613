package storage

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/rmitchellscott/binder/internal/logging"
)

var (
	mu            sync.RWMutex
	globalBackend StorageBackendWithInfo
	globalConfig  StorageConfig
)

// InitializeStorage initializes the global storage backend based on configuration
func InitializeStorage(ctx context.Context) error {
	cfg := GetStorageConfig()
	if err := ValidateStorageConfig(cfg); err != nil {
		return err
	}

	var backend StorageBackendWithInfo
	switch cfg.Backend {
	case "s3":
		b, err := createS3Backend(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to create S3 backend: %w", err)
		}
		backend = b
		logging.Logf("[STORAGE] Initialized S3 backend: s3://%s (endpoint: %s)", cfg.S3Bucket, cfg.S3Endpoint)

	case "filesystem":
		backend = NewFilesystemBackend(cfg.DataDir)
		logging.Logf("[STORAGE] Initialized filesystem backend: %s", cfg.DataDir)
	}

	mu.Lock()
	globalBackend = backend
	globalConfig = cfg
	mu.Unlock()
	return nil
}

// SetBackend installs backend directly. Tests use it with a temp directory.
func SetBackend(backend StorageBackendWithInfo, kind string) {
	mu.Lock()
	defer mu.Unlock()
	globalBackend = backend
	globalConfig = StorageConfig{Backend: kind}
}

// GetStorageBackend returns the initialized global storage backend, or nil
// when stored output is disabled.
func GetStorageBackend() StorageBackendWithInfo {
	mu.RLock()
	defer mu.RUnlock()
	return globalBackend
}

// GetStorageType returns the type of the current storage backend
func GetStorageType() string {
	mu.RLock()
	defer mu.RUnlock()
	return globalConfig.Backend
}

// createS3Backend builds the client from S3_* settings and checks the bucket
// is reachable before serving.
func createS3Backend(ctx context.Context, cfg StorageConfig) (*S3Backend, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.S3Region)}
	if cfg.S3AccessKeyID != "" && cfg.S3SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretKey, ""),
		))
	}
	// otherwise the default chain (env, IAM roles) applies

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if cfg.S3Endpoint != "" {
		if _, err := url.Parse(cfg.S3Endpoint); err != nil {
			return nil, fmt.Errorf("invalid S3_ENDPOINT: %w", err)
		}
	}
	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
		o.UsePathStyle = cfg.S3ForcePathStyle
	})

	if _, err := s3Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.S3Bucket),
	}); err != nil {
		return nil, fmt.Errorf("failed to access S3 bucket %s: %w", cfg.S3Bucket, err)
	}

	return NewS3Backend(s3Client, cfg.S3Bucket), nil
}

// ValidateStorageConfig validates the storage configuration
func ValidateStorageConfig(cfg StorageConfig) error {
	switch cfg.Backend {
	case "filesystem":
		if cfg.DataDir == "" {
			return fmt.Errorf("DATA_DIR is required for filesystem backend")
		}
		return nil

	case "s3":
		if cfg.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required for S3 backend")
		}
		if cfg.S3Region == "" {
			return fmt.Errorf("S3_REGION is required for S3 backend")
		}
		return nil

	default:
		return fmt.Errorf("unknown storage backend: %s (valid options: filesystem, s3)", cfg.Backend)
	}
}
