package server

import (
	"net/http"
	"time"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"aiRoomDesigner/internal/accounts"
	"aiRoomDesigner/internal/events"
	"aiRoomDesigner/internal/media"
	"aiRoomDesigner/internal/redesign"
	"aiRoomDesigner/internal/vision"
)

// Handlers groups the HTTP handlers mounted by the router.
type Handlers struct {
	Redesign redesign.Handler
	Vision   vision.Handler
	Accounts accounts.Handler
	Events   *events.Broker
	// Media serves locally stored images. Nil when a remote backend is used.
	Media http.Handler
}

// NewRouter builds the chi router with middleware and routes.
func NewRouter(h Handlers) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)
	router.Use(sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle)

	router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	router.Post("/redesign", h.Redesign.Redesign)
	router.Post("/analyze", h.Vision.Analyze)
	router.Get("/analyze", h.Vision.Diagnostics)

	router.Route("/api", func(r chi.Router) {
		r.Post("/redesign-room", h.Redesign.Redesign)
		r.Post("/analyze-room", h.Vision.Analyze)
		r.Get("/analyze-room", h.Vision.Diagnostics)

		r.Route("/users", func(r chi.Router) {
			r.Post("/", h.Accounts.EnsureUser)
			r.Get("/{email}", h.Accounts.GetUser)
			r.Get("/{email}/rooms", h.Accounts.ListRooms)
		})
		r.Get("/guests/{sessionID}/rooms", h.Accounts.ListGuestRooms)

		if h.Events != nil {
			r.Get("/events", h.Events.Stream)
		}
	})

	if h.Media != nil {
		router.Handle(media.LocalRoute+"*", http.StripPrefix(media.LocalRoute, h.Media))
	}

	return router
}

// New constructs the HTTP server. Writes are unbounded because redesigns
// and event streams outlive any fixed deadline.
func New(port string, h Handlers) *http.Server {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           NewRouter(h),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Info().Str("addr", srv.Addr).Msg("server ready")
	return srv
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			log.Info().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("request")
		}()
		next.ServeHTTP(ww, r)
	})
}
