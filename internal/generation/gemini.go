package generation

import (
	"context"
	"errors"
	"strings"
	"time"

	"google.golang.org/genai"

	"aiRoomDesigner/internal/codec"
)

const (
	defaultGeminiImageModel = "gemini-2.5-flash-image"
	providerGemini          = "gemini"
)

// ContentGenerator is the subset of the genai models service used for rendering.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini edits the source photo with a Gemini image model and returns the result as a data URL.
type Gemini struct {
	models  ContentGenerator
	model   string
	timeout time.Duration
}

// NewGemini constructs a Gemini image generator from an API key.
func NewGemini(ctx context.Context, apiKey, model string, timeout time.Duration) (*Gemini, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("generation: gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, failure(providerGemini, "create genai client: %w", err)
	}
	return NewGeminiWithClient(client.Models, model, timeout), nil
}

// NewGeminiWithClient wraps an existing content generator.
func NewGeminiWithClient(models ContentGenerator, model string, timeout time.Duration) *Gemini {
	model = strings.TrimPrefix(strings.TrimSpace(model), "models/")
	if model == "" {
		model = defaultGeminiImageModel
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Gemini{models: models, model: model, timeout: timeout}
}

// Generate sends the prompt and source image and returns the first inline image.
func (g *Gemini) Generate(ctx context.Context, source codec.TransportImage, prompt string) (string, error) {
	if len(source.Data) == 0 {
		return "", failure(providerGemini, "source image is empty")
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			{Text: "Redesign this room photo keeping its layout and camera angle. " + prompt},
			{InlineData: &genai.Blob{MIMEType: source.MIMEType, Data: source.Data}},
		},
	}}
	resp, err := g.models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	})
	if err != nil {
		return "", failure(providerGemini, "render: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", failure(providerGemini, "render returned no candidates")
	}

	for _, part := range resp.Candidates[0].Content.Parts {
		if part.InlineData == nil || len(part.InlineData.Data) == 0 {
			continue
		}
		mime := part.InlineData.MIMEType
		if strings.TrimSpace(mime) == "" {
			mime = "image/png"
		}
		return codec.TransportImage{MIMEType: mime, Data: part.InlineData.Data}.DataURL(), nil
	}
	return "", failure(providerGemini, "render returned no image data")
}
