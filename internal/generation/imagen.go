package generation

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	aiplatform "cloud.google.com/go/aiplatform/apiv1"
	"cloud.google.com/go/aiplatform/apiv1/aiplatformpb"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/types/known/structpb"

	"aiRoomDesigner/internal/codec"
)

const providerImagen = "imagen"

// ImagenConfig describes how to connect to Vertex AI Imagen.
type ImagenConfig struct {
	ProjectID          string
	Location           string
	Model              string
	APIKey             string
	AccessToken        string
	ServiceAccount     string
	ServiceAccountJSON string
	Timeout            time.Duration
}

type predictFunc func(ctx context.Context, req *aiplatformpb.PredictRequest) (*aiplatformpb.PredictResponse, error)

// Imagen edits the source photo with a Vertex AI Imagen model.
type Imagen struct {
	endpoint string
	predict  predictFunc
	closer   func() error
	timeout  time.Duration
}

// NewImagen opens a Vertex AI prediction client for the configured model.
func NewImagen(ctx context.Context, cfg ImagenConfig) (*Imagen, error) {
	cfg.ProjectID = strings.TrimSpace(cfg.ProjectID)
	cfg.Location = strings.TrimSpace(cfg.Location)
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.ProjectID == "" || cfg.Location == "" || cfg.Model == "" {
		return nil, errors.New("generation: imagen needs project, location and model")
	}

	options := []option.ClientOption{option.WithEndpoint(fmt.Sprintf("%s-aiplatform.googleapis.com:443", cfg.Location))}
	switch {
	case cfg.ServiceAccountJSON != "":
		options = append(options, option.WithCredentialsJSON([]byte(cfg.ServiceAccountJSON)))
	case cfg.ServiceAccount != "":
		options = append(options, option.WithCredentialsFile(cfg.ServiceAccount))
	case cfg.AccessToken != "":
		options = append(options, option.WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: cfg.AccessToken,
			TokenType:   "Bearer",
		})))
	case cfg.APIKey != "":
		options = append(options, option.WithAPIKey(cfg.APIKey))
	}

	client, err := aiplatform.NewPredictionClient(ctx, options...)
	if err != nil {
		return nil, failure(providerImagen, "prediction client: %w", err)
	}

	endpoint := fmt.Sprintf("projects/%s/locations/%s/publishers/google/models/%s", cfg.ProjectID, cfg.Location, cfg.Model)
	return newImagen(endpoint, func(ctx context.Context, req *aiplatformpb.PredictRequest) (*aiplatformpb.PredictResponse, error) {
		return client.Predict(ctx, req)
	}, client.Close, cfg.Timeout), nil
}

func newImagen(endpoint string, predict predictFunc, closer func() error, timeout time.Duration) *Imagen {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Imagen{endpoint: endpoint, predict: predict, closer: closer, timeout: timeout}
}

// Close releases the prediction client.
func (v *Imagen) Close() error {
	if v.closer == nil {
		return nil
	}
	return v.closer()
}

// Generate runs an Imagen edit and returns the rendered image as a data URL.
func (v *Imagen) Generate(ctx context.Context, source codec.TransportImage, prompt string) (string, error) {
	if len(source.Data) == 0 {
		return "", failure(providerImagen, "source image is empty")
	}
	if strings.TrimSpace(prompt) == "" {
		return "", failure(providerImagen, "prompt is required")
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	instance, err := structpb.NewValue(map[string]any{
		"prompt": prompt,
		"image": map[string]any{
			"bytesBase64Encoded": source.Base64(),
		},
	})
	if err != nil {
		return "", failure(providerImagen, "build instance: %w", err)
	}
	params, err := structpb.NewValue(map[string]any{
		"sampleCount": 1,
		"editMode":    "inpainting-free-form",
	})
	if err != nil {
		return "", failure(providerImagen, "build parameters: %w", err)
	}

	resp, err := v.predict(ctx, &aiplatformpb.PredictRequest{
		Endpoint:   v.endpoint,
		Instances:  []*structpb.Value{instance},
		Parameters: params,
	})
	if err != nil {
		return "", failure(providerImagen, "predict: %w", err)
	}
	if resp == nil || len(resp.Predictions) == 0 {
		return "", failure(providerImagen, "empty prediction response")
	}

	fields := resp.Predictions[0].GetStructValue().GetFields()
	encoded := fields["bytesBase64Encoded"].GetStringValue()
	if encoded == "" {
		return "", failure(providerImagen, "prediction missing bytes")
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", failure(providerImagen, "decode result: %w", err)
	}
	mime := fields["mimeType"].GetStringValue()
	if mime == "" {
		mime = "image/png"
	}
	return codec.TransportImage{MIMEType: mime, Data: data}.DataURL(), nil
}
