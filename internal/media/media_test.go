package media

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aiRoomDesigner/internal/codec"
)

type fakePutter struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakePutter) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = params
	if params.Body != nil {
		f.body, _ = io.ReadAll(params.Body)
	}
	return &s3.PutObjectOutput{}, f.err
}

func TestNewKey(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	assert.Equal(t, "room-redesign/1700000000123.jpg", NewKey("/room-redesign/", now))
	assert.Equal(t, "1700000000123.jpg", NewKey("", now))
}

func TestS3UploaderUsesCallerKeyAndPublicURL(t *testing.T) {
	putter := &fakePutter{}
	u := newS3Uploader(putter, Config{Bucket: "rooms", Region: "eu-north-1", KeyPrefix: "prod", PublicURL: "https://cdn.example.com/"})

	res, err := u.Upload(context.Background(), UploadInput{
		Key:         "room-redesign/1.jpg",
		ContentType: "image/jpeg",
		Body:        strings.NewReader("jpeg"),
		Size:        4,
	})
	require.NoError(t, err)
	assert.Equal(t, "prod/room-redesign/1.jpg", res.Key)
	assert.Equal(t, "https://cdn.example.com/prod/room-redesign/1.jpg", res.URL)
	assert.Equal(t, "rooms", aws.ToString(putter.input.Bucket))
	assert.Equal(t, "image/jpeg", aws.ToString(putter.input.ContentType))
	assert.Equal(t, []byte("jpeg"), putter.body)
}

func TestS3UploaderURLFallbacks(t *testing.T) {
	u := newS3Uploader(&fakePutter{}, Config{Bucket: "rooms", Region: "us-east-1"})
	assert.Equal(t, "https://rooms.s3.us-east-1.amazonaws.com/a.jpg", u.objectURL("a.jpg"))

	u = newS3Uploader(&fakePutter{}, Config{Bucket: "rooms", Region: "auto", Endpoint: "http://minio:9000/", ForcePathStyle: true})
	assert.Equal(t, "http://minio:9000/rooms/a.jpg", u.objectURL("a.jpg"))
}

func TestS3UploaderPropagatesErrors(t *testing.T) {
	u := newS3Uploader(&fakePutter{err: errors.New("access denied")}, Config{Bucket: "rooms", Region: "us-east-1"})
	_, err := u.Upload(context.Background(), UploadInput{Key: "a.jpg", Body: strings.NewReader("x")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestLocalUploaderWritesFile(t *testing.T) {
	dir := t.TempDir()
	u, err := NewLocalUploader(dir, "http://localhost:8080/")
	require.NoError(t, err)

	res, err := u.Upload(context.Background(), UploadInput{Key: "room-redesign/42.jpg", Body: strings.NewReader("data")})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/media/room-redesign/42.jpg", res.URL)

	content, err := os.ReadFile(filepath.Join(dir, "room-redesign", "42.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "data", string(content))
}

func TestLocalUploaderStaysInsideBaseDir(t *testing.T) {
	dir := t.TempDir()
	u, err := NewLocalUploader(dir, "")
	require.NoError(t, err)

	res, err := u.Upload(context.Background(), UploadInput{Key: "../../escape.jpg", Body: strings.NewReader("x")})
	require.NoError(t, err)
	assert.Equal(t, "escape.jpg", res.Key)
	_, err = os.Stat(filepath.Join(dir, "escape.jpg"))
	assert.NoError(t, err)
}

type bufferCloser struct {
	bytes.Buffer
	closed bool
}

func (b *bufferCloser) Close() error {
	b.closed = true
	return nil
}

func TestFirebaseUploaderAttachesDownloadToken(t *testing.T) {
	var (
		gotKey   string
		gotAttrs gcs.ObjectAttrs
		buf      bufferCloser
	)
	u := &firebaseUploader{
		bucket:   "rooms.appspot.com",
		newToken: func() string { return "tok-1" },
		open: func(_ context.Context, key string, attrs gcs.ObjectAttrs) io.WriteCloser {
			gotKey, gotAttrs = key, attrs
			return &buf
		},
	}

	res, err := u.Upload(context.Background(), UploadInput{Key: "room-redesign/7.jpg", ContentType: "image/jpeg", Body: strings.NewReader("img")})
	require.NoError(t, err)
	assert.Equal(t, "room-redesign/7.jpg", gotKey)
	assert.Equal(t, "tok-1", gotAttrs.Metadata["firebaseStorageDownloadTokens"])
	assert.True(t, buf.closed)
	assert.Equal(t, "img", buf.String())
	assert.Equal(t,
		"https://firebasestorage.googleapis.com/v0/b/rooms.appspot.com/o/room-redesign%2F7.jpg?alt=media&token=tok-1",
		res.URL)
}

func TestObjectStoresRequireBucket(t *testing.T) {
	u, err := NewFirebaseUploader(context.Background(), FirebaseConfig{CredentialsFile: "sa.json"})
	assert.Nil(t, u)
	assert.ErrorIs(t, err, ErrBucketRequired)

	u, err = NewUploader(context.Background(), Config{Region: "eu-central-1"})
	assert.Nil(t, u)
	assert.ErrorIs(t, err, ErrBucketRequired)

	_, err = NewUploader(context.Background(), Config{Bucket: "rooms"})
	assert.ErrorContains(t, err, "region")
}

func TestStoreImageWrapsFailures(t *testing.T) {
	img := codec.TransportImage{MIMEType: "image/jpeg", Data: []byte("jpeg")}

	_, err := StoreImage(context.Background(), Disabled(), img, "room-redesign/1.jpg")
	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "room-redesign/1.jpg", storeErr.Key)
	assert.ErrorIs(t, err, ErrUploaderDisabled)

	_, err = StoreImage(context.Background(), Disabled(), codec.TransportImage{}, "k")
	require.ErrorAs(t, err, &storeErr)
}

func TestStoreImageReturnsURL(t *testing.T) {
	dir := t.TempDir()
	u, err := NewLocalUploader(dir, "http://rooms.test")
	require.NoError(t, err)

	url, err := StoreImage(context.Background(), u, codec.TransportImage{MIMEType: "image/jpeg", Data: []byte("jpeg")}, "room-redesign/9.jpg")
	require.NoError(t, err)
	assert.Equal(t, "http://rooms.test/media/room-redesign/9.jpg", url)
}

type blockingUploader struct{}

func (blockingUploader) Upload(ctx context.Context, _ UploadInput) (UploadResult, error) {
	<-ctx.Done()
	return UploadResult{}, ctx.Err()
}

func TestWithTimeoutBoundsUploads(t *testing.T) {
	u := WithTimeout(blockingUploader{}, 10*time.Millisecond)
	_, err := u.Upload(context.Background(), UploadInput{Key: "k"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	plain := Disabled()
	assert.Equal(t, plain, WithTimeout(plain, 0))
}
