package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/ruteri/fhe-identity-auth/interfaces"
)

// minioAPI is the subset of *minio.Client the backend uses, so tests can run
// without a MinIO server.
type minioAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (io.ReadCloser, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

type minioClientWrapper struct{ c *minio.Client }

func (w minioClientWrapper) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	return w.c.BucketExists(ctx, bucketName)
}

func (w minioClientWrapper) MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error {
	return w.c.MakeBucket(ctx, bucketName, opts)
}

func (w minioClientWrapper) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	return w.c.PutObject(ctx, bucketName, objectName, reader, objectSize, opts)
}

func (w minioClientWrapper) GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (io.ReadCloser, error) {
	obj, err := w.c.GetObject(ctx, bucketName, objectName, opts)
	if err != nil {
		return nil, err
	}
	return obj, nil
}

func (w minioClientWrapper) RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error {
	return w.c.RemoveObject(ctx, bucketName, objectName, opts)
}

// MinioBackend stores items as objects in a MinIO bucket.
type MinioBackend struct {
	api         minioAPI
	bucket      string
	prefix      string
	log         *slog.Logger
	locationURI string
}

// NewMinioBackend connects to endpoint with static credentials.
func NewMinioBackend(endpoint, accessKey, secretKey, bucket, prefix string, secure bool, log *slog.Logger) (*MinioBackend, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	uri := fmt.Sprintf("minio://%s/%s/%s", endpoint, bucket, strings.Trim(prefix, "/"))
	return newMinioBackendWithAPI(minioClientWrapper{c: client}, bucket, prefix, uri, log), nil
}

func newMinioBackendWithAPI(api minioAPI, bucket, prefix, uri string, log *slog.Logger) *MinioBackend {
	return &MinioBackend{
		api:         api,
		bucket:      bucket,
		prefix:      strings.Trim(prefix, "/"),
		log:         log,
		locationURI: uri,
	}
}

// EnsureBucket creates the bucket if it does not exist yet.
func (b *MinioBackend) EnsureBucket(ctx context.Context) error {
	exists, err := b.api.BucketExists(ctx, b.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if exists {
		return nil
	}
	if err := b.api.MakeBucket(ctx, b.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

func (b *MinioBackend) GetItem(ctx context.Context, key string) (string, error) {
	obj, err := b.api.GetObject(ctx, b.bucket, b.objectName(key), minio.GetObjectOptions{})
	if err != nil {
		return "", b.mapError(err)
	}
	defer obj.Close()

	// minio.Object defers the request until the first read.
	data, err := io.ReadAll(obj)
	if err != nil {
		return "", b.mapError(err)
	}
	return string(data), nil
}

func (b *MinioBackend) SetItem(ctx context.Context, key string, value string) error {
	_, err := b.api.PutObject(ctx, b.bucket, b.objectName(key), strings.NewReader(value), int64(len(value)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("%w: failed to upload object: %v", interfaces.ErrBackendUnavailable, err)
	}
	return nil
}

func (b *MinioBackend) RemoveItem(ctx context.Context, key string) error {
	if err := b.api.RemoveObject(ctx, b.bucket, b.objectName(key), minio.RemoveObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil
		}
		return fmt.Errorf("%w: failed to delete object: %v", interfaces.ErrBackendUnavailable, err)
	}
	return nil
}

func (b *MinioBackend) Available(ctx context.Context) bool {
	exists, err := b.api.BucketExists(ctx, b.bucket)
	if err != nil {
		b.log.Debug("MinIO backend unavailable", slog.String("bucket", b.bucket), "err", err)
		return false
	}
	return exists
}

func (b *MinioBackend) Name() string {
	return fmt.Sprintf("minio-%s", b.bucket)
}

func (b *MinioBackend) LocationURI() string {
	return b.locationURI
}

func (b *MinioBackend) objectName(key string) string {
	if b.prefix == "" {
		return key
	}
	return path.Join(b.prefix, key)
}

func (b *MinioBackend) mapError(err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return interfaces.ErrItemNotFound
	}
	return fmt.Errorf("%w: failed to get object: %v", interfaces.ErrBackendUnavailable, err)
}
