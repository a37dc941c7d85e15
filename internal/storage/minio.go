// Package storage mirrors report artifacts into an S3-compatible bucket.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/joseph-ayodele/plates-tracker/internal/common"
)

// objectAPI is the subset of *minio.Client the uploader needs.
type objectAPI interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	FPutObject(ctx context.Context, bucket, object, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	PresignedGetObject(ctx context.Context, bucket, object string, expiry time.Duration, params url.Values) (*url.URL, error)
}

// Uploader stores files under {prefix}/YYYY/MM/{key}.
type Uploader struct {
	client objectAPI
	bucket string
	prefix string
	now    func() time.Time
	logger *slog.Logger
}

// NewMinIOUploader connects to cfg.Endpoint and creates the bucket when it is missing.
func NewMinIOUploader(ctx context.Context, cfg common.StorageConfig, logger *slog.Logger) (*Uploader, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}
	return newUploader(ctx, client, cfg.Bucket, "plates", logger)
}

func newUploader(ctx context.Context, client objectAPI, bucket, prefix string, logger *slog.Logger) (*Uploader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", bucket, err)
		}
		logger.Info("storage.bucket.created", "bucket", bucket)
	}
	return &Uploader{client: client, bucket: bucket, prefix: prefix, now: time.Now, logger: logger}, nil
}

// ObjectName returns where key is stored for the current month.
func (u *Uploader) ObjectName(key string) string {
	now := u.now()
	return path.Join(u.prefix, fmt.Sprintf("%d", now.Year()), fmt.Sprintf("%02d", now.Month()), strings.TrimPrefix(key, "/"))
}

// Upload puts localPath into the bucket.
func (u *Uploader) Upload(ctx context.Context, localPath, key string) error {
	object := u.ObjectName(key)
	info, err := u.client.FPutObject(ctx, u.bucket, object, localPath, minio.PutObjectOptions{
		ContentType: ContentType(localPath),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", filepath.Base(localPath), err)
	}
	u.logger.Debug("storage.uploaded", "bucket", u.bucket, "object", object, "size", info.Size)
	return nil
}

// PresignedURL returns a time-limited GET link for an object name.
func (u *Uploader) PresignedURL(ctx context.Context, object string, expiry time.Duration) (string, error) {
	object = strings.TrimPrefix(object, u.bucket+"/")
	link, err := u.client.PresignedGetObject(ctx, u.bucket, object, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return link.String(), nil
}

// ContentType maps a file extension to the MIME type stored with the object.
func ContentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".txt":
		return "text/plain; charset=utf-8"
	case ".csv":
		return "text/csv"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}
