package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"aiRoomDesigner/internal/codec"
)

// StoreError wraps any failure to persist an object.
type StoreError struct {
	Key string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("media: store %s: %v", e.Key, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// NewKey builds a timestamped object path such as room-redesign/1700000000000.jpg.
func NewKey(prefix string, now time.Time) string {
	name := strconv.FormatInt(now.UnixMilli(), 10) + ".jpg"
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

// StoreImage writes img under key and returns a URL third parties can resolve without credentials.
func StoreImage(ctx context.Context, uploader Uploader, img codec.TransportImage, key string) (string, error) {
	if uploader == nil {
		uploader = Disabled()
	}
	if len(img.Data) == 0 {
		return "", &StoreError{Key: key, Err: errors.New("empty payload")}
	}
	contentType := img.MIMEType
	if contentType == "" {
		contentType = codec.MIMEType
	}

	result, err := uploader.Upload(ctx, UploadInput{
		Key:         key,
		ContentType: contentType,
		Body:        bytes.NewReader(img.Data),
		Size:        int64(len(img.Data)),
	})
	if err != nil {
		return "", &StoreError{Key: key, Err: err}
	}
	if result.URL == "" {
		return "", &StoreError{Key: key, Err: errors.New("backend returned no public URL")}
	}

	log.Debug().Str("key", result.Key).Int("bytes", len(img.Data)).Msg("image stored")
	return result.URL, nil
}
