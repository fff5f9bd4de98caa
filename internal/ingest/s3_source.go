package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/agentic-research/resmerge/internal/graph"
)

// S3Config locates an S3-compatible object store.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// S3Source fetches content documents from object storage.
type S3Source struct {
	client *minio.Client
}

func NewS3Source(cfg S3Config) (*S3Source, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errors.New("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, errors.New("s3 access key and secret key are required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return &S3Source{client: client}, nil
}

// Fetch reads the object at bucket/key. A missing bucket or key yields
// graph.ErrNotFound.
func (s *S3Source) Fetch(ctx context.Context, bucket, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, objectError(bucket, key, err)
	}
	defer func() { _ = obj.Close() }()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, objectError(bucket, key, err)
	}
	return data, nil
}

// LoadObject fetches the content document at url (s3://bucket/key) and
// imports it like Load.
func (s *S3Source) LoadObject(ctx context.Context, url, selector string, target IngestionTarget) (Stats, error) {
	bucket, key, err := ParseS3URL(url)
	if err != nil {
		return Stats{}, err
	}
	data, err := s.Fetch(ctx, bucket, key)
	if err != nil {
		return Stats{}, err
	}
	return Load(ctx, data, selector, target)
}

// ParseS3URL splits s3://bucket/key.
func ParseS3URL(url string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(url, "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an s3 url: %q", url)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	key = strings.TrimLeft(key, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 url %q needs a bucket and a key", url)
	}
	return bucket, key, nil
}

func objectError(bucket, key string, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return fmt.Errorf("s3://%s/%s: %w", bucket, key, graph.ErrNotFound)
	}
	return fmt.Errorf("s3://%s/%s: %w", bucket, key, err)
}
