// Package publish uploads a finished sweep to an S3-compatible bucket.
package publish

import (
	"context"
	"fmt"
	"io/fs"
	"mime"
	"path"
	"path/filepath"
	"strings"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// ObjectStore is the part of the minio client the publisher needs
type ObjectStore interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts miniogo.MakeBucketOptions) error
	FPutObject(ctx context.Context, bucket, object, filePath string, opts miniogo.PutObjectOptions) (miniogo.UploadInfo, error)
}

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	Prefix    string
}

// Publisher uploads sweep directories
type Publisher struct {
	store  ObjectStore
	bucket string
	prefix string
	logger *zap.Logger
}

// New connects to the configured endpoint
func New(cfg Config, logger *zap.Logger) (*Publisher, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("publish endpoint is not configured")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("publish bucket is not configured")
	}

	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return NewWithStore(client, cfg.Bucket, cfg.Prefix, logger), nil
}

// NewWithStore builds a publisher over any object store
func NewWithStore(store ObjectStore, bucket, prefix string, logger *zap.Logger) *Publisher {
	return &Publisher{
		store:  store,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: logger,
	}
}

// EnsureBucket creates the bucket when missing
func (p *Publisher) EnsureBucket(ctx context.Context) error {
	exists, err := p.store.BucketExists(ctx, p.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", p.bucket, err)
	}
	if !exists {
		if err := p.store.MakeBucket(ctx, p.bucket, miniogo.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", p.bucket, err)
		}
		p.logger.Info("Created bucket", zap.String("bucket", p.bucket))
	}
	return nil
}

// ObjectKey maps a file below the out-base to its key for a run
func (p *Publisher) ObjectKey(runID, rel string) string {
	parts := []string{runID, filepath.ToSlash(rel)}
	if p.prefix != "" {
		parts = append([]string{p.prefix}, parts...)
	}
	return path.Join(parts...)
}

// PublishDir uploads every file below dir under prefix/runID and returns the uploaded keys
func (p *Publisher) PublishDir(ctx context.Context, runID, dir string) ([]string, error) {
	if err := p.EnsureBucket(ctx); err != nil {
		return nil, err
	}

	var keys []string
	err := filepath.WalkDir(dir, func(file string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(dir, file)
		if err != nil {
			return err
		}
		key := p.ObjectKey(runID, rel)

		contentType := mime.TypeByExtension(filepath.Ext(file))
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		if _, err := p.store.FPutObject(ctx, p.bucket, key, file, miniogo.PutObjectOptions{
			ContentType: contentType,
		}); err != nil {
			return fmt.Errorf("upload %s: %w", rel, err)
		}
		p.logger.Debug("Uploaded", zap.String("key", key))
		keys = append(keys, key)
		return nil
	})
	if err != nil {
		return keys, err
	}

	p.logger.Info("Published sweep",
		zap.String("bucket", p.bucket),
		zap.String("run", runID),
		zap.Int("objects", len(keys)),
	)
	return keys, nil
}
