package ingest

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/resmerge/internal/graph"
)

func TestParseS3URL(t *testing.T) {
	tests := []struct {
		url        string
		bucket     string
		key        string
		wantErrMsg string
	}{
		{url: "s3://content/site.json", bucket: "content", key: "site.json"},
		{url: "s3://content/nested/dir/site.json", bucket: "content", key: "nested/dir/site.json"},
		{url: "s3://content//site.json", bucket: "content", key: "site.json"},
		{url: "https://content/site.json", wantErrMsg: "not an s3 url"},
		{url: "s3://content", wantErrMsg: "needs a bucket and a key"},
		{url: "s3:///site.json", wantErrMsg: "needs a bucket and a key"},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			bucket, key, err := ParseS3URL(tt.url)
			if tt.wantErrMsg != "" {
				assert.ErrorContains(t, err, tt.wantErrMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.bucket, bucket)
			assert.Equal(t, tt.key, key)
		})
	}
}

func TestNewS3Source_Validation(t *testing.T) {
	_, err := NewS3Source(S3Config{AccessKey: "a", SecretKey: "s"})
	assert.ErrorContains(t, err, "endpoint is required")

	_, err = NewS3Source(S3Config{Endpoint: "localhost:9000", AccessKey: "a"})
	assert.ErrorContains(t, err, "secret key")

	src, err := NewS3Source(S3Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s"})
	require.NoError(t, err)
	assert.NotNil(t, src)
}

// TestS3Source_LoadObject runs against a live S3-compatible server, e.g.
// a local minio. It creates a bucket and uploads sampleContent.
func TestS3Source_LoadObject(t *testing.T) {
	endpoint := os.Getenv("RESMERGE_TEST_S3_ENDPOINT")
	if endpoint == "" {
		t.Skip("RESMERGE_TEST_S3_ENDPOINT not set")
	}
	ctx := context.Background()

	src, err := NewS3Source(S3Config{
		Endpoint:  endpoint,
		AccessKey: os.Getenv("RESMERGE_TEST_S3_ACCESS_KEY"),
		SecretKey: os.Getenv("RESMERGE_TEST_S3_SECRET_KEY"),
	})
	require.NoError(t, err)

	const bucket = "resmerge-test"
	exists, err := src.client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		require.NoError(t, src.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	}
	_, err = src.client.PutObject(ctx, bucket, "site.json", bytes.NewReader([]byte(sampleContent)),
		int64(len(sampleContent)), minio.PutObjectOptions{ContentType: "application/json"})
	require.NoError(t, err)

	store := graph.NewMemoryStore()
	stats, err := src.LoadObject(ctx, "s3://"+bucket+"/site.json", "", MemoryTarget(store))
	require.NoError(t, err)
	assert.Equal(t, 7, stats.Nodes)
	assert.Equal(t, []string{"/apps", "/libs"}, store.SearchPaths())

	_, err = src.LoadObject(ctx, "s3://"+bucket+"/missing.json", "", MemoryTarget(store))
	assert.ErrorIs(t, err, graph.ErrNotFound)
}
