package timeseries

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/claude/healthbridge/internal/models"
)

// ErrBlobNotFound is returned by Get when no object exists at the key.
var ErrBlobNotFound = errors.New("blob not found")

const blobContentType = "application/json"

// S3API is the S3 surface the blob store needs.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// BlobStore writes and reads full JSON payloads in an object store. Keys are
// time-unique by construction, so Put is an idempotent upsert.
type BlobStore struct {
	api    S3API
	bucket string
	prefix string
}

// NewBlobStore creates a blob store. An empty bucket disables offloading;
// Enabled reports that.
func NewBlobStore(api S3API, bucket, prefix string) *BlobStore {
	if prefix == "" {
		prefix = "health-data"
	}
	return &BlobStore{api: api, bucket: bucket, prefix: prefix}
}

// Enabled reports whether offloading is configured.
func (b *BlobStore) Enabled() bool {
	return b != nil && b.bucket != ""
}

// Key builds the deterministic object key for a payload:
// {prefix}/{user_id}/{provider_type}/{category}/{YYYY-MM-DD}/payload_{epoch_ms}.json
// with the date taken from the record's start time in UTC.
func (b *BlobStore) Key(userID string, provider models.ProviderKind, category models.Category, start, at time.Time) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s/payload_%d.json",
		b.prefix, userID, provider, category,
		start.UTC().Format("2006-01-02"), at.UnixMilli())
}

// Put uploads the payload as JSON at key.
func (b *BlobStore) Put(ctx context.Context, key string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling blob payload: %w", err)
	}
	_, err = b.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(blobContentType),
	})
	if err != nil {
		return fmt.Errorf("uploading blob %s: %w", key, err)
	}
	return nil
}

// Get fetches and decodes the payload stored at key.
func (b *BlobStore) Get(ctx context.Context, key string) (map[string]any, error) {
	out, err := b.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, key)
		}
		return nil, fmt.Errorf("fetching blob %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("reading blob %s: %w", key, err)
	}
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decoding blob %s: %w", key, err)
	}
	return payload, nil
}
