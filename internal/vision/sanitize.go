package vision

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

var (
	leadingJSONFence = regexp.MustCompile("(?i)^```json\\s*")
	trailingFence    = regexp.MustCompile("\\s*```$")
	leadingFence     = regexp.MustCompile("^```\\s*")
)

var errMissingSections = errors.New("object has none of furniture, decor, structural")

// SanitizeModelOutput strips markdown code fences and surrounding whitespace from raw
// model text. Clean JSON is returned unchanged.
func SanitizeModelOutput(raw string) string {
	text := strings.TrimSpace(raw)
	text = leadingJSONFence.ReplaceAllString(text, "")
	text = trailingFence.ReplaceAllString(text, "")
	text = leadingFence.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// ParseAnalysis sanitizes raw model text and decodes it into a RoomAnalysis.
// If the sanitized text still carries prose, the outermost JSON object is tried.
// Failures are returned as *AnalysisParseError holding the raw text.
func ParseAnalysis(raw string) (RoomAnalysis, error) {
	cleaned := SanitizeModelOutput(raw)
	analysis, err := decodeAnalysis(cleaned)
	if err == nil {
		return analysis, nil
	}

	if start, end := strings.Index(cleaned, "{"), strings.LastIndex(cleaned, "}"); start >= 0 && end > start {
		if candidate := cleaned[start : end+1]; candidate != cleaned {
			if analysis, innerErr := decodeAnalysis(candidate); innerErr == nil {
				return analysis, nil
			}
		}
	}
	return RoomAnalysis{}, &AnalysisParseError{Raw: raw, Err: err}
}

func decodeAnalysis(text string) (RoomAnalysis, error) {
	var sections map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &sections); err != nil {
		return RoomAnalysis{}, err
	}
	_, hasFurniture := sections["furniture"]
	_, hasDecor := sections["decor"]
	_, hasStructural := sections["structural"]
	if !hasFurniture && !hasDecor && !hasStructural {
		return RoomAnalysis{}, errMissingSections
	}

	var analysis RoomAnalysis
	if err := json.Unmarshal([]byte(text), &analysis); err != nil {
		return RoomAnalysis{}, err
	}
	return analysis.Normalize(), nil
}
