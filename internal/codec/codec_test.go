package codec

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.NRGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestFetchAndEncodeConvertsPNGToJPEG(t *testing.T) {
	body := pngBytes(t, 40, 20)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	img, err := NewFetcher(Options{}).FetchAndEncode(context.Background(), srv.URL+"/room.png")
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", img.MIMEType)

	decoded, err := jpeg.Decode(bytes.NewReader(img.Data))
	require.NoError(t, err)
	assert.Equal(t, 40, decoded.Bounds().Dx())
	assert.Equal(t, 20, decoded.Bounds().Dy())
}

func TestFetchAndEncodeDownscalesLargeImages(t *testing.T) {
	body := pngBytes(t, 300, 150)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	img, err := NewFetcher(Options{MaxDimension: 100}).FetchAndEncode(context.Background(), srv.URL)
	require.NoError(t, err)

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(img.Data))
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Width)
	assert.Equal(t, 50, cfg.Height)
}

func TestFetchAndEncodeNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.NotFound(w, nil)
	}))
	defer srv.Close()

	_, err := NewFetcher(Options{}).FetchAndEncode(context.Background(), srv.URL+"/missing.jpg")
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
}

func TestFetchAndEncodeUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewFetcher(Options{}).FetchAndEncode(context.Background(), url)
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Zero(t, fetchErr.StatusCode)
}

func TestFetchAndEncodeRejectsNonImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>not an image</html>"))
	}))
	defer srv.Close()

	_, err := NewFetcher(Options{}).FetchAndEncode(context.Background(), srv.URL)
	var encodeErr *EncodeError
	require.ErrorAs(t, err, &encodeErr)
}

// pngHeader returns a PNG signature and IHDR chunk declaring w x h RGB pixels with no image data.
func pngHeader(w, h uint32) []byte {
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], w)
	binary.BigEndian.PutUint32(ihdr[4:8], h)
	ihdr[8] = 8 // bit depth
	ihdr[9] = 2 // truecolor

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	chunk := append([]byte("IHDR"), ihdr...)
	buf.Write(chunk)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestNormalizeRejectsOversizedDimensionsBeforeDecoding(t *testing.T) {
	_, err := NewFetcher(Options{}).Normalize(pngHeader(40000, 40000))
	var encodeErr *EncodeError
	require.ErrorAs(t, err, &encodeErr)
	assert.ErrorIs(t, err, ErrTooManyPixels)
	assert.Contains(t, err.Error(), "40000x40000")
}

func TestNormalizeHonorsConfiguredPixelLimit(t *testing.T) {
	body := pngBytes(t, 40, 20)

	_, err := NewFetcher(Options{MaxPixels: 799}).Normalize(body)
	assert.ErrorIs(t, err, ErrTooManyPixels)

	img, err := NewFetcher(Options{MaxPixels: 800}).Normalize(body)
	require.NoError(t, err)
	assert.Equal(t, MIMEType, img.MIMEType)
}

func TestFetchRespectsByteLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(make([]byte, 2048))
	}))
	defer srv.Close()

	_, err := NewFetcher(Options{MaxBytes: 1024}).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTooLarge))
}

func TestFetchAndEncodeDataURL(t *testing.T) {
	locator := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes(t, 8, 8))

	img, err := NewFetcher(Options{}).FetchAndEncode(context.Background(), locator)
	require.NoError(t, err)
	assert.Equal(t, MIMEType, img.MIMEType)
	assert.Contains(t, img.DataURL(), "data:image/jpeg;base64,")
}

func TestDecodeDataURL(t *testing.T) {
	data, mime, err := DecodeDataURL("data:image/webp;base64,aGVsbG8=")
	require.NoError(t, err)
	assert.Equal(t, "image/webp", mime)
	assert.Equal(t, []byte("hello"), data)

	_, _, err = DecodeDataURL("data:text/plain,hello")
	assert.Error(t, err)

	_, _, err = DecodeDataURL("https://example.com/a.jpg")
	assert.Error(t, err)
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "https://cdn.example.com/a.jpg", redact("https://cdn.example.com/a.jpg?token=secret"))
	assert.Equal(t, "data:image/png;base64,...", redact("data:image/png;base64,AAAA"))
}
