package vision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"aiRoomDesigner/internal/codec"
)

// Analyzer describes the furniture, decor and structure visible in a redesigned room.
type Analyzer interface {
	Analyze(ctx context.Context, imageURL, roomType, designStyle string) (RoomAnalysis, error)
}

// RoomAnalysis is the structured description returned by the vision model.
type RoomAnalysis struct {
	Furniture  []FurnitureItem `json:"furniture"`
	Decor      []DecorItem     `json:"decor"`
	Structural Structural      `json:"structural"`
}

// FurnitureItem is a single piece of furniture with shopping hints.
type FurnitureItem struct {
	Type        string     `json:"type"`
	Style       StringList `json:"style"`
	Materials   StringList `json:"materials"`
	Colors      StringList `json:"colors"`
	Dimensions  string     `json:"dimensions"`
	SearchTerms StringList `json:"searchTerms"`
}

// DecorItem is a decorative element.
type DecorItem struct {
	Type        string     `json:"type"`
	Style       StringList `json:"style"`
	Colors      StringList `json:"colors"`
	SearchTerms StringList `json:"searchTerms"`
}

// Structural lists finishes of the room shell.
type Structural struct {
	Walls    StringList `json:"walls"`
	Flooring StringList `json:"flooring"`
	Windows  StringList `json:"windows"`
}

// StringList accepts either a JSON array of strings or a single string, and drops
// empty and duplicate entries.
type StringList []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *StringList) UnmarshalJSON(data []byte) error {
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		var single *string
		if err2 := json.Unmarshal(data, &single); err2 != nil {
			return err
		}
		if single != nil {
			items = []string{*single}
		}
	}

	out := make(StringList, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if item == "" {
			continue
		}
		if _, dup := seen[item]; dup {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	*l = out
	return nil
}

// MarshalJSON keeps nil lists serialized as [].
func (l StringList) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(l))
}

// Normalize replaces nil collections with empty ones.
func (a RoomAnalysis) Normalize() RoomAnalysis {
	if a.Furniture == nil {
		a.Furniture = []FurnitureItem{}
	}
	if a.Decor == nil {
		a.Decor = []DecorItem{}
	}
	return a
}

// AnalysisRequestError reports a failed call to the analysis backend. Phase names the
// step that failed: fetch, encode or request.
type AnalysisRequestError struct {
	Phase string
	Err   error
}

func (e *AnalysisRequestError) Error() string {
	return fmt.Sprintf("vision: %s: %v", e.Phase, e.Err)
}

func (e *AnalysisRequestError) Unwrap() error { return e.Err }

// AnalysisParseError reports model output that is not a room analysis even after sanitizing.
type AnalysisParseError struct {
	Raw string
	Err error
}

func (e *AnalysisParseError) Error() string {
	return fmt.Sprintf("vision: parse analysis: %v", e.Err)
}

func (e *AnalysisParseError) Unwrap() error { return e.Err }

// Phase maps an analysis failure onto the stage that produced it.
func Phase(err error) string {
	var (
		parseErr   *AnalysisParseError
		requestErr *AnalysisRequestError
		fetchErr   *codec.FetchError
		encodeErr  *codec.EncodeError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &parseErr):
		return "parse"
	case errors.As(err, &fetchErr):
		return "fetch"
	case errors.As(err, &encodeErr):
		return "encode"
	case errors.As(err, &requestErr):
		return requestErr.Phase
	default:
		return "unknown"
	}
}
