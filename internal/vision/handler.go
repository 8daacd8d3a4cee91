package vision

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog/log"
)

// AnalyzeRequest is the body of POST /analyze.
type AnalyzeRequest struct {
	ImageURL   string `json:"imageUrl"`
	RoomType   string `json:"roomType"`
	DesignType string `json:"designType"`
}

// Handler exposes the analysis endpoints.
type Handler struct {
	Analyzer  Analyzer
	Backend   string
	APIKey    string
	CacheUsed bool
}

// Analyze handles POST /analyze.
func (h Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	if h.Analyzer == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "vision analysis inactive", "phase": "unknown"})
		return
	}

	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body", "phase": "validation"})
		return
	}
	var missing []string
	if strings.TrimSpace(req.ImageURL) == "" {
		missing = append(missing, "imageUrl")
	}
	if strings.TrimSpace(req.RoomType) == "" {
		missing = append(missing, "roomType")
	}
	if strings.TrimSpace(req.DesignType) == "" {
		missing = append(missing, "designType")
	}
	if len(missing) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "missing required fields: " + strings.Join(missing, ", "),
			"phase": "validation",
		})
		return
	}

	analysis, err := h.Analyzer.Analyze(r.Context(), strings.TrimSpace(req.ImageURL), req.RoomType, req.DesignType)
	if err != nil {
		phase := Phase(err)
		log.Error().Err(err).Str("phase", phase).Msg("room analysis failed")
		if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
			hub.WithScope(func(scope *sentry.Scope) {
				scope.SetTag("failure_type", "analysis")
				scope.SetTag("phase", phase)
				hub.CaptureException(err)
			})
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error(), "phase": phase})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"analysis": analysis})
}

// Diagnostics handles GET /analyze and reports readiness only.
func (h Handler) Diagnostics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"environment": map[string]any{
			"geminiKeyPresent": h.APIKey != "",
			"keyLength":        len(h.APIKey),
			"analyzer":         h.Backend,
			"cache":            h.CacheUsed,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("write response")
	}
}
