package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"aiRoomDesigner/internal/config"
	"aiRoomDesigner/internal/generation"
	"aiRoomDesigner/internal/media"
	"aiRoomDesigner/internal/vision"
)

// buildUploader returns the configured object store and, for the local backend,
// the file server exposing it.
func buildUploader(ctx context.Context, cfg config.Config) (media.Uploader, http.Handler, error) {
	var (
		uploader media.Uploader
		fs       http.Handler
		err      error
	)
	switch cfg.Media.Backend {
	case "s3":
		uploader, err = media.NewUploader(ctx, media.Config{
			Bucket:          cfg.Media.Bucket,
			Region:          cfg.Media.Region,
			Endpoint:        cfg.Media.Endpoint,
			PublicURL:       cfg.Media.PublicURL,
			KeyPrefix:       cfg.Media.KeyPrefix,
			ForcePathStyle:  cfg.Media.ForcePathStyle,
			AccessKeyID:     cfg.Media.AccessKeyID,
			SecretAccessKey: cfg.Media.SecretAccessKey,
		})
	case "firebase":
		uploader, err = media.NewFirebaseUploader(ctx, media.FirebaseConfig{
			Bucket:          cfg.Media.Bucket,
			CredentialsFile: cfg.Media.CredentialsFile,
			KeyPrefix:       cfg.Media.KeyPrefix,
		})
	case "local":
		uploader, err = media.NewLocalUploader(cfg.Media.LocalDir, cfg.PublicURL)
		fs = http.FileServer(http.Dir(cfg.Media.LocalDir))
	default:
		return nil, nil, fmt.Errorf("unknown media backend %q", cfg.Media.Backend)
	}
	if err != nil {
		return nil, nil, err
	}
	log.Info().Str("backend", cfg.Media.Backend).Str("path_prefix", cfg.Media.PathPrefix).Msg("media uploader ready")
	return media.WithTimeout(uploader, cfg.Media.Timeout), fs, nil
}

// buildGenerator picks the image generation backend. The returned closer is always non-nil.
func buildGenerator(ctx context.Context, cfg config.Config) (generation.Generator, func(), error) {
	noop := func() {}
	gen := cfg.Generation
	switch gen.Provider {
	case "replicate":
		r, err := generation.NewReplicate(generation.ReplicateConfig{
			Token:        gen.Replicate.Token,
			Model:        gen.Replicate.Model,
			BaseURL:      gen.Replicate.BaseURL,
			Timeout:      gen.Timeout,
			PollInterval: gen.Replicate.PollInterval,
		})
		if err != nil {
			return nil, noop, err
		}
		log.Info().Str("provider", "replicate").Msg("generator ready")
		return r, noop, nil
	case "gemini":
		g, err := generation.NewGemini(ctx, gen.Gemini.APIKey, gen.Gemini.Model, gen.Timeout)
		if err != nil {
			return nil, noop, err
		}
		log.Info().Str("provider", "gemini").Msg("generator ready")
		return g, noop, nil
	case "imagen":
		v, err := generation.NewImagen(ctx, generation.ImagenConfig{
			ProjectID:          gen.Imagen.ProjectID,
			Location:           gen.Imagen.Location,
			Model:              gen.Imagen.Model,
			APIKey:             gen.Imagen.APIKey,
			AccessToken:        gen.Imagen.AccessToken,
			ServiceAccount:     gen.Imagen.ServiceAccount,
			ServiceAccountJSON: gen.Imagen.ServiceAccountJSON,
			Timeout:            gen.Timeout,
		})
		if err != nil {
			return nil, noop, err
		}
		log.Info().Str("provider", "imagen").Msg("generator ready")
		return v, func() {
			if err := v.Close(); err != nil {
				log.Warn().Err(err).Msg("close imagen client")
			}
		}, nil
	default:
		return nil, noop, fmt.Errorf("unknown generation provider %q", gen.Provider)
	}
}

// analyzers separates the analyzer behind POST /analyze from the one the
// redesign pipeline calls. Only the pipeline may reach a remote endpoint.
type analyzers struct {
	local    vision.Analyzer
	pipeline vision.Analyzer
	backend  string
	cached   bool
}

// buildAnalyzers wires the local Gemini analyzer for the analyze endpoint and,
// when analysis.base_url is set, a remote analyzer for the redesign pipeline.
// A nil analyzer means analysis is inactive for that caller.
func buildAnalyzers(ctx context.Context, cfg config.Config, images vision.ImageSource) (analyzers, error) {
	var out analyzers
	local, backend, cached, err := buildLocalAnalyzer(ctx, cfg, images)
	if err != nil {
		return analyzers{}, err
	}
	out.local, out.backend, out.cached = local, backend, cached
	out.pipeline = local

	if cfg.Analysis.BaseURL != "" {
		if strings.EqualFold(strings.TrimSuffix(cfg.Analysis.BaseURL, "/"), strings.TrimSuffix(cfg.PublicURL, "/")) {
			return analyzers{}, fmt.Errorf("analysis base url %s points at this service", cfg.Analysis.BaseURL)
		}
		out.pipeline = vision.NewRemoteAnalyzer(cfg.Analysis.BaseURL, cfg.Analysis.Timeout)
		log.Info().Str("analyzer", "remote").Str("base_url", cfg.Analysis.BaseURL).Msg("redesign analyzer ready")
	}
	if out.local == nil && out.pipeline == nil {
		log.Warn().Msg("vision analysis inactive: no gemini key or analysis base url")
	}
	return out, nil
}

func buildLocalAnalyzer(ctx context.Context, cfg config.Config, images vision.ImageSource) (vision.Analyzer, string, bool, error) {
	if cfg.Analysis.GeminiAPIKey == "" {
		return nil, "none", false, nil
	}
	g, err := vision.NewGeminiAnalyzer(ctx, cfg.Analysis.GeminiAPIKey, cfg.Analysis.Model, images, cfg.Analysis.Timeout)
	if err != nil {
		return nil, "", false, err
	}
	backend := "gemini:" + g.Model()

	if cfg.Analysis.CacheTTL <= 0 {
		log.Info().Str("analyzer", backend).Msg("analyzer ready")
		return g, backend, false, nil
	}
	cached, err := vision.NewCachedAnalyzer(g, cfg.Analysis.CacheTTL)
	if err != nil {
		return nil, "", false, err
	}
	log.Info().Str("analyzer", backend).Dur("cache_ttl", cfg.Analysis.CacheTTL).Msg("analyzer ready")
	return cached, backend, true, nil
}
