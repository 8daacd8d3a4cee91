package redesign

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
)

// MaxBodyBytes bounds the request body, which may carry a data URL.
const MaxBodyBytes = 32 << 20

// Redesigner runs one redesign.
type Redesigner interface {
	Redesign(ctx context.Context, req Request) Outcome
}

// Handler exposes the redesign endpoint.
type Handler struct {
	Service Redesigner
}

// Redesign handles POST /redesign.
func (h Handler) Redesign(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	switch outcome := h.Service.Redesign(r.Context(), req).(type) {
	case FullSuccess:
		writeJSON(w, http.StatusOK, map[string]any{
			"result":   outcome.GeneratedImageURL,
			"analysis": outcome.Analysis,
		})
	case PartialSuccess:
		writeJSON(w, http.StatusOK, map[string]any{
			"result":        outcome.GeneratedImageURL,
			"analysisError": outcome.AnalysisError.Error(),
		})
	case Aborted:
		var verr *ValidationError
		if errors.As(outcome.Reason, &verr) {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": verr.Error(), "fields": verr.Fields})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   outcome.Error(),
			"details": string(outcome.Step),
		})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "unknown redesign outcome"})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("write response")
	}
}
