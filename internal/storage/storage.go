package storage

import (
	"context"
	"io"
	"time"
)

// Service stores post cover images in remote object storage. UploadObject
// returns an s3://bucket/key location; GetObjectURL turns such a location
// back into a short-lived URL a browser can fetch.
type Service interface {
	UploadObject(ctx context.Context, bucket, key string, body io.Reader, contentType string) (string, error)
	DeleteObject(ctx context.Context, bucket, key string) error
	GetObjectURL(ctx context.Context, bucket, key string, expires time.Duration) (string, error)
}
