// Package blob stores submission photos in object storage.
package blob

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"intake-gateway/pkg/platform/sentinel"
)

// Object identifies an uploaded blob.
type Object struct {
	Key string
	URL string
}

// Uploader stores photo bytes and returns their durable reference.
type Uploader interface {
	Upload(ctx context.Context, contentType string, data []byte) (Object, error)
}

// S3Config configures the S3-backed uploader.
type S3Config struct {
	Bucket   string
	Region   string
	Endpoint string // optional, for MinIO and compatible stores
	Prefix   string
}

// S3Uploader stores photos in an S3 bucket under a random UUID key.
type S3Uploader struct {
	client *s3.Client
	bucket string
	prefix string
}

func NewS3Uploader(ctx context.Context, cfg S3Config) (*S3Uploader, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	clientOpts := func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}
	return &S3Uploader{
		client: s3.NewFromConfig(awsCfg, clientOpts),
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

func (u *S3Uploader) Upload(ctx context.Context, contentType string, data []byte) (Object, error) {
	key := u.prefix + uuid.NewString()
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return Object{}, fmt.Errorf("put object: %w: %v", sentinel.ErrUnavailable, err)
	}
	return Object{Key: key, URL: fmt.Sprintf("s3://%s/%s", u.bucket, key)}, nil
}

// MemoryUploader keeps uploads in memory. Test double.
type MemoryUploader struct {
	mu      sync.Mutex
	objects map[string][]byte
	// Fail makes the n-th upload (1-based) return an error; zero disables.
	Fail int
	n    int
}

func NewMemoryUploader() *MemoryUploader {
	return &MemoryUploader{objects: make(map[string][]byte)}
}

func (u *MemoryUploader) Upload(ctx context.Context, contentType string, data []byte) (Object, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.n++
	if u.Fail != 0 && u.n == u.Fail {
		return Object{}, fmt.Errorf("upload: %w", sentinel.ErrUnavailable)
	}
	key := uuid.NewString()
	u.objects[key] = append([]byte(nil), data...)
	return Object{Key: key, URL: "mem://" + key}, nil
}

// Len reports the number of stored objects.
func (u *MemoryUploader) Len() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.objects)
}
