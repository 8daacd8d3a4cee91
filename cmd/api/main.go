package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog/log"

	"aiRoomDesigner/internal/accounts"
	"aiRoomDesigner/internal/codec"
	"aiRoomDesigner/internal/config"
	"aiRoomDesigner/internal/events"
	"aiRoomDesigner/internal/logging"
	"aiRoomDesigner/internal/redesign"
	"aiRoomDesigner/internal/server"
	"aiRoomDesigner/internal/storage"
	"aiRoomDesigner/internal/vision"
)

func main() {
	configPath := flag.String("config", "config.json", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logging.Init(cfg.Log.Level, cfg.Log.Format)

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.Sentry.DSN,
			Environment:      cfg.Sentry.Environment,
			TracesSampleRate: 0.2,
		}); err != nil {
			log.Fatal().Err(err).Msg("sentry init")
		}
		defer sentry.Flush(2 * time.Second)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init store")
	}
	defer store.Close()

	uploader, mediaFS, err := buildUploader(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init media uploader")
	}

	images := codec.NewFetcher(codec.Options{
		Timeout:      cfg.Codec.Timeout,
		MaxBytes:     cfg.Codec.MaxBytes,
		MaxDimension: cfg.Codec.MaxDimension,
		MaxPixels:    cfg.Codec.MaxPixels,
		JPEGQuality:  cfg.Codec.JPEGQuality,
	})

	generator, closeGenerator, err := buildGenerator(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init generator")
	}
	defer closeGenerator()

	analysis, err := buildAnalyzers(ctx, cfg, images)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init analyzer")
	}

	broker := events.NewBroker()
	service := &redesign.Service{
		Images:         images,
		Generator:      generator,
		Uploader:       uploader,
		Analyzer:       analysis.pipeline,
		Store:          store,
		Events:         broker,
		PathPrefix:     cfg.Media.PathPrefix,
		GuestRetention: cfg.Guests.Retention,
	}

	srv := server.New(cfg.Port, server.Handlers{
		Redesign: redesign.Handler{Service: service},
		Vision: vision.Handler{
			Analyzer:  analysis.local,
			Backend:   analysis.backend,
			APIKey:    cfg.Analysis.GeminiAPIKey,
			CacheUsed: analysis.cached,
		},
		Accounts: accounts.NewHandler(store),
		Events:   broker,
		Media:    mediaFS,
	})

	if cfg.Guests.Retention > 0 {
		go purgeGuestRooms(ctx, store, time.Hour)
	}

	go func() {
		<-ctx.Done()
		log.Info().Msg("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server shutdown")
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server failed")
	}
}

func purgeGuestRooms(ctx context.Context, store storage.Store, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			purged, err := store.PurgeExpiredGuestRooms(ctx, now)
			if err != nil {
				log.Error().Err(err).Msg("purge guest rooms")
				continue
			}
			if purged > 0 {
				log.Info().Int64("purged", purged).Msg("expired guest rooms removed")
			}
		}
	}
}
