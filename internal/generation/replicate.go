package generation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/replicate/replicate-go"
	"github.com/rs/zerolog/log"

	"aiRoomDesigner/internal/codec"
)

// DefaultReplicateModel is the interior design model used for redesigns.
const DefaultReplicateModel = "adirik/interior-design:76604baddc85b1b4616e1c6475eca080da339c8875bd4996705440484a6eac38"

const providerReplicate = "replicate"

// ReplicateConfig configures the Replicate predictions client.
type ReplicateConfig struct {
	Token        string
	Model        string
	BaseURL      string
	Timeout      time.Duration
	PollInterval time.Duration
}

// Replicate runs a fixed model version through the Replicate predictions API and
// waits for the prediction to finish.
type Replicate struct {
	client  *replicate.Client
	version string
	poll    time.Duration
	timeout time.Duration
}

// NewReplicate constructs a Replicate generator.
func NewReplicate(cfg ReplicateConfig) (*Replicate, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("generation: replicate token is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultReplicateModel
	}
	version := model
	if _, v, ok := strings.Cut(model, ":"); ok {
		version = v
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Minute
	}

	opts := []replicate.ClientOption{
		replicate.WithToken(cfg.Token),
		replicate.WithHTTPClient(&http.Client{Timeout: 90 * time.Second}),
	}
	if baseURL := strings.TrimSuffix(strings.TrimSpace(cfg.BaseURL), "/"); baseURL != "" {
		opts = append(opts, replicate.WithBaseURL(baseURL))
	}
	client, err := replicate.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("generation: replicate client: %w", err)
	}
	return &Replicate{
		client:  client,
		version: version,
		poll:    cfg.PollInterval,
		timeout: cfg.Timeout,
	}, nil
}

// Generate submits {image, prompt} and blocks until the prediction reaches a terminal state.
func (r *Replicate) Generate(ctx context.Context, source codec.TransportImage, prompt string) (string, error) {
	if len(source.Data) == 0 {
		return "", failure(providerReplicate, "source image is empty")
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	pred, err := r.client.CreatePrediction(ctx, r.version, replicate.PredictionInput{
		"image":  source.DataURL(),
		"prompt": prompt,
	}, nil, false)
	if err != nil {
		return "", failure(providerReplicate, "create prediction: %w", apiError(err))
	}
	log.Debug().Str("prediction", pred.ID).Str("status", string(pred.Status)).Msg("replicate prediction created")

	if !pred.Status.Terminated() {
		if err := r.client.Wait(ctx, pred, replicate.WithPollingInterval(r.poll)); err != nil {
			return "", failure(providerReplicate, "prediction %s: %w", pred.ID, apiError(err))
		}
	}

	if pred.Status != replicate.Succeeded {
		return "", failure(providerReplicate, "prediction %s %s: %v", pred.ID, pred.Status, pred.Error)
	}
	url, err := firstOutput(pred.Output)
	if err != nil {
		return "", failure(providerReplicate, "prediction %s: %w", pred.ID, err)
	}
	return url, nil
}

// apiError surfaces the detail Replicate returns with a non-success status.
func apiError(err error) error {
	var apiErr *replicate.APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return fmt.Errorf("status %d: %s: %w", apiErr.Status, apiErr.Detail, err)
	}
	return err
}

// firstOutput accepts a single URL or a list of URLs.
func firstOutput(out replicate.PredictionOutput) (string, error) {
	switch v := out.(type) {
	case nil:
		return "", errors.New("empty output")
	case string:
		if strings.TrimSpace(v) == "" {
			return "", errors.New("empty output")
		}
		return v, nil
	case []any:
		for _, item := range v {
			if url, ok := item.(string); ok && strings.TrimSpace(url) != "" {
				return url, nil
			}
		}
		return "", errors.New("empty output")
	default:
		return "", fmt.Errorf("unexpected output %T", out)
	}
}
