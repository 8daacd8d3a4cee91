package generation

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"cloud.google.com/go/aiplatform/apiv1/aiplatformpb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
	"google.golang.org/protobuf/types/known/structpb"

	"aiRoomDesigner/internal/codec"
)

var source = codec.TransportImage{MIMEType: codec.MIMEType, Data: []byte("jpeg-bytes")}

func newTestReplicate(t *testing.T, baseURL string) *Replicate {
	t.Helper()
	r, err := NewReplicate(ReplicateConfig{Token: "r8_test", BaseURL: baseURL, PollInterval: time.Millisecond})
	require.NoError(t, err)
	return r
}

func TestReplicateImmediateSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/predictions", r.URL.Path)
		assert.Contains(t, r.Header.Get("Authorization"), "r8_test")

		var body struct {
			Version string            `json:"version"`
			Input   map[string]string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "76604baddc85b1b4616e1c6475eca080da339c8875bd4996705440484a6eac38", body.Version)
		assert.Equal(t, "A Kitchen with a Modern style interior ", body.Input["prompt"])
		assert.True(t, strings.HasPrefix(body.Input["image"], "data:image/jpeg;base64,"))

		_, _ = w.Write([]byte(`{"id":"p1","status":"succeeded","output":"https://replicate.delivery/out.png"}`))
	}))
	defer srv.Close()

	url, err := newTestReplicate(t, srv.URL).Generate(context.Background(), source, "A Kitchen with a Modern style interior ")
	require.NoError(t, err)
	assert.Equal(t, "https://replicate.delivery/out.png", url)
}

func TestReplicatePollsUntilDone(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_, _ = w.Write([]byte(`{"id":"p2","status":"starting"}`))
			return
		}
		assert.Equal(t, "/predictions/p2", r.URL.Path)
		if polls.Add(1) < 3 {
			_, _ = w.Write([]byte(`{"id":"p2","status":"processing"}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"p2","status":"succeeded","output":["https://replicate.delivery/a.png","https://replicate.delivery/b.png"]}`))
	}))
	defer srv.Close()

	url, err := newTestReplicate(t, srv.URL).Generate(context.Background(), source, "prompt")
	require.NoError(t, err)
	assert.Equal(t, "https://replicate.delivery/a.png", url)
	assert.Equal(t, int32(3), polls.Load())
}

func TestReplicateFailures(t *testing.T) {
	cases := map[string]struct {
		status int
		body   string
	}{
		"failed prediction": {http.StatusOK, `{"id":"p3","status":"failed","error":"NSFW content detected"}`},
		"empty output":      {http.StatusOK, `{"id":"p4","status":"succeeded","output":null}`},
		"api error":         {http.StatusUnauthorized, `{"title":"Unauthenticated","detail":"Invalid token","status":401}`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := newTestReplicate(t, srv.URL).Generate(context.Background(), source, "prompt")
			var genErr *GenerationError
			require.ErrorAs(t, err, &genErr)
			assert.Equal(t, "replicate", genErr.Provider)
		})
	}
}

func TestReplicateAPIErrorCarriesDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"title":"Invalid version","detail":"version does not exist","status":422}`))
	}))
	defer srv.Close()

	_, err := newTestReplicate(t, srv.URL).Generate(context.Background(), source, "prompt")
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Contains(t, err.Error(), "version does not exist")
}

func TestNewReplicateRequiresToken(t *testing.T) {
	_, err := NewReplicate(ReplicateConfig{})
	assert.Error(t, err)
}

type fakeModels struct {
	resp *genai.GenerateContentResponse
	err  error
}

func (f fakeModels) GenerateContent(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return f.resp, f.err
}

func TestGeminiReturnsInlineImageAsDataURL(t *testing.T) {
	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []*genai.Part{
			{Text: "Here is your room"},
			{InlineData: &genai.Blob{MIMEType: "image/png", Data: []byte("png")}},
		}},
	}}}
	url, err := NewGeminiWithClient(fakeModels{resp: resp}, "", 0).Generate(context.Background(), source, "prompt")
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,"+base64.StdEncoding.EncodeToString([]byte("png")), url)
}

func TestGeminiWithoutImageIsGenerationError(t *testing.T) {
	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []*genai.Part{{Text: "I can't do that"}}},
	}}}
	_, err := NewGeminiWithClient(fakeModels{resp: resp}, "", 0).Generate(context.Background(), source, "prompt")
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)

	_, err = NewGeminiWithClient(fakeModels{err: errors.New("quota")}, "", 0).Generate(context.Background(), source, "prompt")
	require.ErrorAs(t, err, &genErr)
}

func TestImagenDecodesPrediction(t *testing.T) {
	var got *aiplatformpb.PredictRequest
	prediction, err := structpb.NewValue(map[string]any{
		"bytesBase64Encoded": base64.StdEncoding.EncodeToString([]byte("render")),
		"mimeType":           "image/png",
	})
	require.NoError(t, err)

	imagen := newImagen("projects/p/locations/l/publishers/google/models/m",
		func(_ context.Context, req *aiplatformpb.PredictRequest) (*aiplatformpb.PredictResponse, error) {
			got = req
			return &aiplatformpb.PredictResponse{Predictions: []*structpb.Value{prediction}}, nil
		}, nil, 0)

	url, err := imagen.Generate(context.Background(), source, "A Bedroom with a Bohemian style interior ")
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,"+base64.StdEncoding.EncodeToString([]byte("render")), url)
	assert.Equal(t, "projects/p/locations/l/publishers/google/models/m", got.Endpoint)
	assert.Equal(t, source.Base64(), got.Instances[0].GetStructValue().GetFields()["image"].GetStructValue().GetFields()["bytesBase64Encoded"].GetStringValue())
	assert.NoError(t, imagen.Close())
}

func TestImagenEmptyPrediction(t *testing.T) {
	imagen := newImagen("e", func(context.Context, *aiplatformpb.PredictRequest) (*aiplatformpb.PredictResponse, error) {
		return &aiplatformpb.PredictResponse{}, nil
	}, nil, 0)
	_, err := imagen.Generate(context.Background(), source, "prompt")
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, "imagen", genErr.Provider)
}
