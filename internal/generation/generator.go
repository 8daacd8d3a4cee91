// Package generation renders a redesigned room from a source photo and a style prompt.
package generation

import (
	"context"
	"fmt"

	"aiRoomDesigner/internal/codec"
)

// Generator turns a source image and a prompt into a URL of the rendered result.
// The URL may be an http(s) URL or a data URL; callers normalize it before storing.
type Generator interface {
	Generate(ctx context.Context, source codec.TransportImage, prompt string) (string, error)
}

// GenerationError reports a failed generation call or an empty output.
type GenerationError struct {
	Provider string
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation (%s): %v", e.Provider, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

func failure(provider string, format string, args ...any) error {
	return &GenerationError{Provider: provider, Err: fmt.Errorf(format, args...)}
}
