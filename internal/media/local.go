package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// LocalRoute is where the HTTP server exposes files written by LocalUploader.
const LocalRoute = "/media/"

// LocalUploader stores files on the local filesystem and serves them back through the API.
type LocalUploader struct {
	BaseDir string
	BaseURL string
}

// NewLocalUploader constructs an uploader that writes to baseDir and links through baseURL.
// If baseDir is empty, os.TempDir() is used.
func NewLocalUploader(baseDir, baseURL string) (*LocalUploader, error) {
	dir := baseDir
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "room-media")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create local media dir: %w", err)
	}
	return &LocalUploader{BaseDir: dir, BaseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

// Upload writes the incoming content to BaseDir/Key atomically.
func (l *LocalUploader) Upload(_ context.Context, input UploadInput) (UploadResult, error) {
	if input.Body == nil {
		return UploadResult{}, errors.New("upload body is required")
	}

	key := path.Clean("/" + strings.TrimSpace(input.Key))[1:]
	if key == "" || key == "." {
		return UploadResult{}, errors.New("upload key is required")
	}
	target := filepath.Join(l.BaseDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return UploadResult{}, fmt.Errorf("create media dir: %w", err)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return UploadResult{}, fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(tmpFile, input.Body); err != nil {
		tmpFile.Close()
		os.Remove(tmpFile.Name())
		return UploadResult{}, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpFile.Name())
		return UploadResult{}, fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpFile.Name(), target); err != nil {
		os.Remove(tmpFile.Name())
		return UploadResult{}, fmt.Errorf("move into place: %w", err)
	}

	return UploadResult{
		Key: key,
		URL: l.BaseURL + LocalRoute + key,
	}, nil
}
