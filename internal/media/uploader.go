package media

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrUploaderDisabled indicates that uploads are not currently enabled.
var ErrUploaderDisabled = errors.New("media uploader disabled")

// ErrBucketRequired is returned when an object store backend is selected without a bucket.
var ErrBucketRequired = errors.New("media bucket is required")

// UploadInput wraps the payload required for persisting a file under Key.
type UploadInput struct {
	Key         string
	ContentType string
	Body        io.Reader
	Size        int64
}

// UploadResult captures the canonical object key and its public URL.
type UploadResult struct {
	Key string
	URL string
}

// Uploader hides the backing implementation for storing files.
type Uploader interface {
	Upload(ctx context.Context, input UploadInput) (UploadResult, error)
}

type disabledUploader struct{}

func (disabledUploader) Upload(_ context.Context, _ UploadInput) (UploadResult, error) {
	return UploadResult{}, ErrUploaderDisabled
}

// Disabled returns an uploader that always signals disabled uploads.
func Disabled() Uploader {
	return disabledUploader{}
}

// WithTimeout bounds every upload made through u.
func WithTimeout(u Uploader, d time.Duration) Uploader {
	if d <= 0 {
		return u
	}
	return timeoutUploader{next: u, timeout: d}
}

type timeoutUploader struct {
	next    Uploader
	timeout time.Duration
}

func (t timeoutUploader) Upload(ctx context.Context, input UploadInput) (UploadResult, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Upload(ctx, input)
}
