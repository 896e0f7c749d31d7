// Package export dumps stored documents as NDJSON into an S3-compatible bucket.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"pageblocks/api/internal/store"
)

var ErrNotConfigured = errors.New("export storage is not configured")

// Lister loads the documents to export.
type Lister interface {
	ListDocuments(ctx context.Context, opts store.ListOptions) ([]store.Document, error)
}

// ObjectStore is the part of an S3 client the exporter needs.
type ObjectStore interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Request selects what to export. An empty Type exports every document.
type Request struct {
	Type string `json:"type"`
}

type Result struct {
	Bucket    string    `json:"bucket"`
	Key       string    `json:"key"`
	Documents int       `json:"documents"`
	Bytes     int64     `json:"bytes"`
	ETag      string    `json:"etag"`
	CreatedAt time.Time `json:"createdAt"`
}

type Service struct {
	docs    Lister
	objects ObjectStore
	bucket  string
	now     func() time.Time
}

// NewMinioClient connects to an S3-compatible endpoint.
func NewMinioClient(cfg Config) (*minio.Client, error) {
	if cfg.Endpoint == "" {
		return nil, ErrNotConfigured
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	return client, nil
}

func NewService(docs Lister, objects ObjectStore, bucket string) *Service {
	return &Service{docs: docs, objects: objects, bucket: bucket, now: time.Now}
}

// Export writes the selected documents to a new object and returns its key.
func (s *Service) Export(ctx context.Context, req Request) (Result, error) {
	if s == nil || s.objects == nil {
		return Result{}, ErrNotConfigured
	}
	docs, err := s.docs.ListDocuments(ctx, store.ListOptions{Type: req.Type})
	if err != nil {
		return Result{}, fmt.Errorf("list documents: %w", err)
	}

	var buf bytes.Buffer
	if err := WriteNDJSON(&buf, docs); err != nil {
		return Result{}, err
	}

	if err := s.ensureBucket(ctx); err != nil {
		return Result{}, err
	}

	now := s.now().UTC()
	scope := req.Type
	if scope == "" {
		scope = "all"
	}
	key := fmt.Sprintf("exports/%s/%s.ndjson", scope, now.Format("20060102T150405.000Z"))
	size := int64(buf.Len())
	info, err := s.objects.PutObject(ctx, s.bucket, key, &buf, size, minio.PutObjectOptions{
		ContentType: "application/x-ndjson",
	})
	if err != nil {
		return Result{}, fmt.Errorf("upload %s: %w", key, err)
	}
	return Result{
		Bucket:    s.bucket,
		Key:       key,
		Documents: len(docs),
		Bytes:     size,
		ETag:      info.ETag,
		CreatedAt: now,
	}, nil
}

func (s *Service) ensureBucket(ctx context.Context) error {
	exists, err := s.objects.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.objects.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	return nil
}
