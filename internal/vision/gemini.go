package vision

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"aiRoomDesigner/internal/codec"
	"aiRoomDesigner/internal/prompts"
)

const DefaultAnalysisModel = "gemini-2.0-flash"

// ContentGenerator is the subset of the genai models service used for analysis.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// ImageSource fetches and normalizes the image to analyze.
type ImageSource interface {
	FetchAndEncode(ctx context.Context, locator string) (codec.TransportImage, error)
}

// GeminiAnalyzer implements Analyzer with a Gemini multimodal model.
type GeminiAnalyzer struct {
	models  ContentGenerator
	images  ImageSource
	model   string
	timeout time.Duration
}

// NewGeminiAnalyzer creates a genai client for apiKey and wraps it in an analyzer.
func NewGeminiAnalyzer(ctx context.Context, apiKey, model string, images ImageSource, timeout time.Duration) (*GeminiAnalyzer, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("vision: gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("vision: create genai client: %w", err)
	}
	return NewGeminiAnalyzerWithClient(client.Models, model, images, timeout), nil
}

// NewGeminiAnalyzerWithClient wires an analyzer around an existing content generator.
func NewGeminiAnalyzerWithClient(models ContentGenerator, model string, images ImageSource, timeout time.Duration) *GeminiAnalyzer {
	model = strings.TrimPrefix(strings.TrimSpace(model), "models/")
	if model == "" {
		model = DefaultAnalysisModel
	}
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &GeminiAnalyzer{
		models:  models,
		images:  images,
		model:   model,
		timeout: timeout,
	}
}

// Model reports the configured model name.
func (g *GeminiAnalyzer) Model() string { return g.model }

// Analyze downloads the image and asks Gemini for a strict JSON room analysis.
func (g *GeminiAnalyzer) Analyze(ctx context.Context, imageURL, roomType, designStyle string) (RoomAnalysis, error) {
	if strings.TrimSpace(imageURL) == "" {
		return RoomAnalysis{}, &AnalysisRequestError{Phase: "fetch", Err: errors.New("empty image URL")}
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	img, err := g.images.FetchAndEncode(ctx, imageURL)
	if err != nil {
		return RoomAnalysis{}, &AnalysisRequestError{Phase: Phase(err), Err: err}
	}

	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			{Text: prompts.BuildAnalysisPrompt(roomType, designStyle)},
			{InlineData: &genai.Blob{MIMEType: img.MIMEType, Data: img.Data}},
		},
	}}
	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0.7),
		TopP:             genai.Ptr[float32](0.95),
		TopK:             genai.Ptr[float32](64),
		CandidateCount:   1,
		ResponseMIMEType: "application/json",
	}

	resp, err := g.models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return RoomAnalysis{}, &AnalysisRequestError{Phase: "request", Err: err}
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return RoomAnalysis{}, &AnalysisRequestError{Phase: "request", Err: errors.New("empty response")}
	}

	raw := resp.Text()
	log.Debug().
		Str("model", g.model).
		Int("response_length", len(raw)).
		Msg("analysis response received")

	analysis, err := ParseAnalysis(raw)
	if err != nil {
		log.Warn().Err(err).Str("raw", truncate(raw, 500)).Msg("analysis response was not valid JSON")
		return RoomAnalysis{}, err
	}
	return analysis, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
