// Package prompts holds the model instructions used for redesign and analysis.
package prompts

import (
	"fmt"
	"strings"
)

const redesignTemplate = "A %s with a %s style interior %s"

// analysisTemplate is the canonical strict-JSON contract for room analysis.
const analysisTemplate = `Analyze this %s designed in %s style.
IMPORTANT: Return ONLY a raw JSON object with no markdown formatting, no backticks, and no code block indicators.
Use exactly this format:
{
    "furniture": [
        {
            "type": "string",
            "style": ["string"],
            "materials": ["string"],
            "colors": ["string"],
            "dimensions": "string",
            "searchTerms": ["string"]
        }
    ],
    "decor": [
        {
            "type": "string",
            "style": ["string"],
            "colors": ["string"],
            "searchTerms": ["string"]
        }
    ],
    "structural": {
        "walls": ["string"],
        "flooring": ["string"],
        "windows": ["string"]
    }
}

DO NOT include any text before or after the JSON. DO NOT use markdown formatting.`

// BuildRedesignPrompt composes the generation prompt. Additional instructions are appended verbatim.
func BuildRedesignPrompt(roomType, designStyle, additional string) string {
	return fmt.Sprintf(redesignTemplate, strings.TrimSpace(roomType), strings.TrimSpace(designStyle), strings.TrimSpace(additional))
}

// BuildAnalysisPrompt returns the strict-JSON analysis instruction for a room.
func BuildAnalysisPrompt(roomType, designStyle string) string {
	return fmt.Sprintf(analysisTemplate, strings.TrimSpace(roomType), strings.TrimSpace(designStyle))
}
