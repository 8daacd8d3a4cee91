// Package codec downloads images and normalizes them into a single transport encoding.
package codec

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// MIMEType is the encoding every normalized image is converted to.
const MIMEType = "image/jpeg"

const (
	DefaultMaxBytes    = 20 << 20
	DefaultTimeout     = 30 * time.Second
	DefaultJPEGQuality = 90
	DefaultMaxPixels   = 40_000_000
)

var (
	// ErrTooLarge is wrapped by FetchError when the payload exceeds the byte limit.
	ErrTooLarge = errors.New("image exceeds size limit")
	// ErrTooManyPixels is wrapped by EncodeError when the declared dimensions exceed the pixel limit.
	ErrTooManyPixels = errors.New("image exceeds pixel limit")
)

// TransportImage is a normalized image ready to embed in an API request.
type TransportImage struct {
	MIMEType string
	Data     []byte
}

// Base64 returns the standard base64 encoding of the image bytes.
func (t TransportImage) Base64() string {
	return base64.StdEncoding.EncodeToString(t.Data)
}

// DataURL returns the image as a data URL.
func (t TransportImage) DataURL() string {
	mime := t.MIMEType
	if mime == "" {
		mime = MIMEType
	}
	return "data:" + mime + ";base64," + t.Base64()
}

// FetchError reports an unreachable locator or a non-success response.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("codec: fetch %s: status %d", redact(e.URL), e.StatusCode)
	}
	return fmt.Sprintf("codec: fetch %s: %v", redact(e.URL), e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// EncodeError reports bytes that could not be decoded or re-encoded as an image.
type EncodeError struct {
	Err error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("codec: encode image: %v", e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// Options tunes a Fetcher. Zero values fall back to defaults.
type Options struct {
	Timeout      time.Duration
	MaxBytes     int64
	MaxDimension int
	MaxPixels    int64
	JPEGQuality  int
	Client       *http.Client
}

// Fetcher retrieves images from http(s) or data URLs and normalizes them to JPEG.
type Fetcher struct {
	client       *http.Client
	maxBytes     int64
	maxDimension int
	maxPixels    int64
	quality      int
}

// NewFetcher constructs a Fetcher from options.
func NewFetcher(opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if opts.MaxPixels <= 0 {
		opts.MaxPixels = DefaultMaxPixels
	}
	if opts.JPEGQuality <= 0 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = DefaultJPEGQuality
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &Fetcher{
		client:       client,
		maxBytes:     opts.MaxBytes,
		maxDimension: opts.MaxDimension,
		maxPixels:    opts.MaxPixels,
		quality:      opts.JPEGQuality,
	}
}

// FetchAndEncode downloads the image behind locator and returns it re-encoded as JPEG.
func (f *Fetcher) FetchAndEncode(ctx context.Context, locator string) (TransportImage, error) {
	data, err := f.Fetch(ctx, locator)
	if err != nil {
		return TransportImage{}, err
	}
	img, err := f.Normalize(data)
	if err != nil {
		return TransportImage{}, err
	}
	log.Debug().
		Str("url", redact(locator)).
		Int("input_bytes", len(data)).
		Int("output_bytes", len(img.Data)).
		Msg("image normalized")
	return img, nil
}

// Fetch returns the raw bytes behind an http(s) or data URL.
func (f *Fetcher) Fetch(ctx context.Context, locator string) ([]byte, error) {
	locator = strings.TrimSpace(locator)
	if locator == "" {
		return nil, &FetchError{Err: errors.New("empty image URL")}
	}
	if strings.HasPrefix(locator, "data:") {
		data, _, err := DecodeDataURL(locator)
		if err != nil {
			return nil, &FetchError{URL: locator, Err: err}
		}
		if int64(len(data)) > f.maxBytes {
			return nil, &FetchError{URL: locator, Err: ErrTooLarge}
		}
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, &FetchError{URL: locator, Err: err}
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: locator, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &FetchError{URL: locator, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, &FetchError{URL: locator, Err: fmt.Errorf("read body: %w", err)}
	}
	if int64(len(data)) > f.maxBytes {
		return nil, &FetchError{URL: locator, Err: ErrTooLarge}
	}
	return data, nil
}

// Normalize decodes any supported image format and re-encodes it as JPEG,
// flattening transparency onto white and downscaling past the configured edge.
// Images whose header declares more than the pixel limit are rejected before decoding.
func (f *Fetcher) Normalize(data []byte) (TransportImage, error) {
	if len(data) == 0 {
		return TransportImage{}, &EncodeError{Err: errors.New("empty image data")}
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return TransportImage{}, &EncodeError{Err: err}
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > f.maxPixels {
		return TransportImage{}, &EncodeError{
			Err: fmt.Errorf("%s %dx%d: %w", format, cfg.Width, cfg.Height, ErrTooManyPixels),
		}
	}
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return TransportImage{}, &EncodeError{Err: err}
	}

	bounds := src.Bounds()
	width, height := scaledSize(bounds.Dx(), bounds.Dy(), f.maxDimension)
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	if width == bounds.Dx() && height == bounds.Dy() {
		draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: f.quality}); err != nil {
		return TransportImage{}, &EncodeError{Err: fmt.Errorf("jpeg from %s: %w", format, err)}
	}
	return TransportImage{MIMEType: MIMEType, Data: buf.Bytes()}, nil
}

// DecodeDataURL splits a base64 data URL into its bytes and declared MIME type.
func DecodeDataURL(raw string) ([]byte, string, error) {
	if !strings.HasPrefix(raw, "data:") {
		return nil, "", errors.New("not a data URL")
	}
	header, payload, ok := strings.Cut(strings.TrimPrefix(raw, "data:"), ",")
	if !ok {
		return nil, "", errors.New("invalid data URL")
	}
	mime, isBase64 := strings.CutSuffix(header, ";base64")
	if !isBase64 {
		return nil, "", errors.New("data URL is not base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("decode data URL: %w", err)
	}
	return data, mime, nil
}

func scaledSize(width, height, maxDimension int) (int, int) {
	if maxDimension <= 0 || (width <= maxDimension && height <= maxDimension) {
		return width, height
	}
	if width >= height {
		h := height * maxDimension / width
		if h < 1 {
			h = 1
		}
		return maxDimension, h
	}
	w := width * maxDimension / height
	if w < 1 {
		w = 1
	}
	return w, maxDimension
}

// redact keeps data URLs and signed query strings out of logs and errors.
func redact(locator string) string {
	if strings.HasPrefix(locator, "data:") {
		if idx := strings.Index(locator, ","); idx > 0 {
			return locator[:idx] + ",..."
		}
		return "data:..."
	}
	if idx := strings.Index(locator, "?"); idx > 0 {
		return locator[:idx]
	}
	return locator
}
