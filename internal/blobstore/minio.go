package blobstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// PresignTTL is the lifetime of object URLs handed to clients
const PresignTTL = 7 * 24 * time.Hour

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

// MinioStore keeps objects in an S3-compatible bucket
type MinioStore struct {
	cfg    MinioConfig
	client *minio.Client
}

func NewMinioStore(cfg MinioConfig) (*MinioStore, error) {
	endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "http://"), "https://")
	cl, err := minio.New(endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		// bucket calls show up as client spans under the request that caused them
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	})
	if err != nil {
		return nil, err
	}
	return &MinioStore{cfg: cfg, client: cl}, nil
}

func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return err
	}
	if !exists {
		return s.client.MakeBucket(ctx, s.cfg.Bucket, minio.MakeBucketOptions{})
	}
	return nil
}

func (s *MinioStore) Upload(ctx context.Context, p, contentType string, r io.Reader, size int64) (Handle, error) {
	key, err := CleanPath(p)
	if err != nil {
		return Handle{}, err
	}
	_, err = s.client.PutObject(ctx, s.cfg.Bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return Handle{}, fmt.Errorf("put %s: %w", key, err)
	}
	return Handle{Path: key}, nil
}

func (s *MinioStore) URL(ctx context.Context, h Handle) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.cfg.Bucket, h.Path, PresignTTL, nil)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", h.Path, err)
	}
	return u.String(), nil
}

func (s *MinioStore) Delete(ctx context.Context, h Handle) error {
	return s.client.RemoveObject(ctx, s.cfg.Bucket, h.Path, minio.RemoveObjectOptions{})
}
