package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/rmitchellscott/binder/internal/logging"
)

// s3API is the part of *s3.Client the backend talks to.
type s3API interface {
	manager.UploadAPIClient
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Backend stores output documents in a single bucket.
type S3Backend struct {
	client   s3API
	uploader *manager.Uploader
	bucket   string
}

// uploadPartSize is the S3 minimum; merged PDFs rarely need more than one part.
const uploadPartSize = 5 << 20

func NewS3Backend(client s3API, bucket string) *S3Backend {
	return &S3Backend{
		client: client,
		uploader: manager.NewUploader(client, func(u *manager.Uploader) {
			u.PartSize = uploadPartSize
			u.Concurrency = 3
		}),
		bucket: bucket,
	}
}

func (b *S3Backend) object(key string) (*string, *string) {
	return aws.String(b.bucket), aws.String(key)
}

func (b *S3Backend) Put(ctx context.Context, key string, data io.Reader) error {
	bucket, k := b.object(key)
	in := &s3.PutObjectInput{Bucket: bucket, Key: k, Body: data}
	if path.Ext(key) == ".pdf" {
		in.ContentType = aws.String("application/pdf")
	}
	out, err := b.uploader.Upload(ctx, in)
	if err != nil {
		return fmt.Errorf("s3 put %s: %w", key, err)
	}
	logging.Debugf("[STORAGE] S3 put s3://%s/%s etag=%s", b.bucket, key, aws.ToString(out.ETag))
	return nil
}

func (b *S3Backend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	bucket, k := b.object(key)
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{Bucket: bucket, Key: k})
	if err != nil {
		return nil, b.wrap("get", key, err)
	}
	return out.Body, nil
}

// Delete is idempotent; S3 itself reports success for missing keys.
func (b *S3Backend) Delete(ctx context.Context, key string) error {
	bucket, k := b.object(key)
	if _, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: bucket, Key: k}); err != nil && !isNotFound(err) {
		return fmt.Errorf("s3 delete %s: %w", key, err)
	}
	return nil
}

func (b *S3Backend) Exists(ctx context.Context, key string) (bool, error) {
	_, err := b.GetInfo(ctx, key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (b *S3Backend) GetInfo(ctx context.Context, key string) (*StorageInfo, error) {
	bucket, k := b.object(key)
	out, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: bucket, Key: k})
	if err != nil {
		return nil, b.wrap("head", key, err)
	}
	return &StorageInfo{
		Key:          key,
		Size:         aws.ToInt64(out.ContentLength),
		LastModified: aws.ToTime(out.LastModified),
	}, nil
}

func (b *S3Backend) List(ctx context.Context, prefix string) ([]string, error) {
	infos, err := b.ListWithInfo(ctx, prefix)
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(infos))
	for i, info := range infos {
		keys[i] = info.Key
	}
	return keys, nil
}

func (b *S3Backend) ListWithInfo(ctx context.Context, prefix string) ([]StorageInfo, error) {
	var infos []StorageInfo
	pages := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(prefix),
	})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3 list %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			infos = append(infos, StorageInfo{
				Key:          *obj.Key,
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}
	return infos, nil
}

func (b *S3Backend) wrap(op, key string, err error) error {
	if isNotFound(err) {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return fmt.Errorf("s3 %s %s: %w", op, key, err)
}

// isNotFound covers GetObject (NoSuchKey) and HeadObject (NotFound, no body).
func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}
