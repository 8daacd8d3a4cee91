package accounts

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"aiRoomDesigner/internal/storage"
)

// EnsureUserRequest is the body of POST /api/users.
type EnsureUserRequest struct {
	Name     string `json:"name" validate:"max=200"`
	Email    string `json:"email" validate:"required,email"`
	ImageURL string `json:"imageUrl" validate:"omitempty,url"`
}

// RoomView is a past redesign with its analysis decoded.
type RoomView struct {
	ID         int64           `json:"id"`
	RoomType   string          `json:"roomType"`
	DesignType string          `json:"designType"`
	OrgImage   string          `json:"orgImage"`
	AIImage    string          `json:"aiImage"`
	Analysis   json.RawMessage `json:"analysis,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// Handler serves account and history endpoints.
type Handler struct {
	Store    storage.Store
	Validate *validator.Validate
	Now      func() time.Time
}

// NewHandler builds a Handler.
func NewHandler(store storage.Store) Handler {
	return Handler{
		Store:    store,
		Validate: validator.New(validator.WithRequiredStructEnabled()),
		Now:      time.Now,
	}
}

// EnsureUser handles POST /api/users.
func (h Handler) EnsureUser(w http.ResponseWriter, r *http.Request) {
	var req EnsureUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.ImageURL = strings.TrimSpace(req.ImageURL)
	if err := h.Validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.Store.EnsureUser(r.Context(), storage.User{Name: req.Name, Email: req.Email, ImageURL: req.ImageURL})
	if err != nil {
		log.Error().Err(err).Msg("ensure user")
		writeError(w, http.StatusInternalServerError, "failed to save user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// GetUser handles GET /api/users/{email}.
func (h Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	email := emailParam(r)
	user, err := h.Store.GetUserByEmail(r.Context(), email)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("get user")
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// ListRooms handles GET /api/users/{email}/rooms.
func (h Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	rooms, err := h.Store.ListGeneratedRooms(r.Context(), emailParam(r), limit)
	if err != nil {
		log.Error().Err(err).Msg("list rooms")
		writeError(w, http.StatusInternalServerError, "failed to load rooms")
		return
	}

	views := make([]RoomView, 0, len(rooms))
	for _, room := range rooms {
		view := RoomView{
			ID:         room.ID,
			RoomType:   room.RoomType,
			DesignType: room.DesignType,
			OrgImage:   room.OrgImage,
			AIImage:    room.AIImage,
			CreatedAt:  room.CreatedAt,
		}
		if room.Analysis != nil && json.Valid([]byte(*room.Analysis)) {
			view.Analysis = json.RawMessage(*room.Analysis)
		}
		views = append(views, view)
	}
	writeJSON(w, http.StatusOK, map[string]any{"rooms": views})
}

// ListGuestRooms handles GET /api/guests/{sessionID}/rooms.
func (h Handler) ListGuestRooms(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(chi.URLParam(r, "sessionID"))
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session id required")
		return
	}
	rooms, err := h.Store.ListGuestRooms(r.Context(), sessionID, h.Now().UTC())
	if err != nil {
		log.Error().Err(err).Msg("list guest rooms")
		writeError(w, http.StatusInternalServerError, "failed to load rooms")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rooms": rooms})
}

func emailParam(r *http.Request) string {
	raw := chi.URLParam(r, "email")
	if decoded, err := url.PathUnescape(raw); err == nil {
		raw = decoded
	}
	return strings.TrimSpace(raw)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("write response")
	}
}
