package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	gcs "cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	"github.com/google/uuid"
	"google.golang.org/api/option"
)

const firebaseDownloadBase = "https://firebasestorage.googleapis.com/v0/b"

// FirebaseConfig describes a Firebase Storage bucket.
type FirebaseConfig struct {
	Bucket          string
	CredentialsFile string
	KeyPrefix       string
}

// objectWriter opens a writer for a new object carrying attrs.
type objectWriter func(ctx context.Context, key string, attrs gcs.ObjectAttrs) io.WriteCloser

type firebaseUploader struct {
	bucket   string
	prefix   string
	newToken func() string
	open     objectWriter
}

// NewFirebaseUploader wires a Firebase Storage bucket through the Admin SDK.
func NewFirebaseUploader(ctx context.Context, cfg FirebaseConfig) (Uploader, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("firebase uploader: %w", ErrBucketRequired)
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{StorageBucket: cfg.Bucket}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	client, err := app.Storage(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase storage: %w", err)
	}
	bucket, err := client.DefaultBucket()
	if err != nil {
		return nil, fmt.Errorf("firebase bucket: %w", err)
	}

	return &firebaseUploader{
		bucket:   cfg.Bucket,
		prefix:   strings.Trim(cfg.KeyPrefix, "/"),
		newToken: uuid.NewString,
		open: func(ctx context.Context, key string, attrs gcs.ObjectAttrs) io.WriteCloser {
			w := bucket.Object(key).NewWriter(ctx)
			w.ContentType = attrs.ContentType
			w.Metadata = attrs.Metadata
			return w
		},
	}, nil
}

// Upload writes the object with a download token so the returned URL needs no credentials.
func (u *firebaseUploader) Upload(ctx context.Context, input UploadInput) (UploadResult, error) {
	if input.Body == nil {
		return UploadResult{}, errors.New("upload body is required")
	}
	key := strings.Trim(input.Key, "/")
	if key == "" {
		key = uuid.NewString()
	}
	if u.prefix != "" {
		key = path.Join(u.prefix, key)
	}

	token := u.newToken()
	w := u.open(ctx, key, gcs.ObjectAttrs{
		ContentType: input.ContentType,
		Metadata:    map[string]string{"firebaseStorageDownloadTokens": token},
	})
	if _, err := io.Copy(w, input.Body); err != nil {
		_ = w.Close()
		return UploadResult{}, fmt.Errorf("write object: %w", err)
	}
	if err := w.Close(); err != nil {
		return UploadResult{}, fmt.Errorf("finalize object: %w", err)
	}

	return UploadResult{Key: key, URL: u.downloadURL(key, token)}, nil
}

func (u *firebaseUploader) downloadURL(key, token string) string {
	return fmt.Sprintf("%s/%s/o/%s?alt=media&token=%s",
		firebaseDownloadBase, u.bucket, url.PathEscape(key), url.QueryEscape(token))
}
