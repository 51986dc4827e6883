// Package publish uploads baked artifacts to S3-compatible object storage.
package publish

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// objectClient is the subset of *minio.Client the publisher needs.
type objectClient interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

type Publisher struct {
	client objectClient
	bucket string
	prefix string
	logger *zap.Logger
}

func New(opts Options, logger *zap.Logger) (*Publisher, error) {
	if strings.TrimSpace(opts.Endpoint) == "" {
		return nil, fmt.Errorf("publish: endpoint is required")
	}
	if strings.TrimSpace(opts.Bucket) == "" {
		return nil, fmt.Errorf("publish: bucket is required")
	}
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create object storage client: %w", err)
	}
	return newWithClient(client, opts.Bucket, opts.Prefix, logger), nil
}

func newWithClient(client objectClient, bucket, prefix string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{client: client, bucket: bucket, prefix: prefix, logger: logger}
}

func (p *Publisher) Bucket() string {
	return p.bucket
}

// EnsureBucket creates the bucket when it does not exist yet.
func (p *Publisher) EnsureBucket(ctx context.Context) error {
	exists, err := p.client.BucketExists(ctx, p.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", p.bucket, err)
	}
	if exists {
		return nil
	}
	if err := p.client.MakeBucket(ctx, p.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", p.bucket, err)
	}
	p.logger.Info("created bucket", zap.String("bucket", p.bucket))
	return nil
}

// Upload stores data under the publisher prefix and returns the object key.
// An empty contentType is derived from the key's extension.
func (p *Publisher) Upload(ctx context.Context, rel string, data []byte, contentType string) (string, error) {
	key := ObjectKey(p.prefix, rel)
	if contentType == "" {
		contentType = ContentTypeFor(key)
	}
	_, err := p.client.PutObject(ctx, p.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: "public, max-age=300",
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	p.logger.Debug("uploaded object", zap.String("key", key), zap.Int("bytes", len(data)))
	return key, nil
}

// ObjectKey joins prefix and a relative file path into a slash-separated key.
func ObjectKey(prefix, rel string) string {
	key := path.Join(strings.Trim(prefix, "/"), filepath.ToSlash(rel))
	return strings.TrimPrefix(key, "/")
}

func ContentTypeFor(name string) string {
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
