package redesign

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"aiRoomDesigner/internal/codec"
	"aiRoomDesigner/internal/events"
	"aiRoomDesigner/internal/generation"
	"aiRoomDesigner/internal/media"
	"aiRoomDesigner/internal/prompts"
	"aiRoomDesigner/internal/storage"
	"aiRoomDesigner/internal/vision"
)

// ErrAnalysisInactive is reported when no analyzer is configured.
var ErrAnalysisInactive = errors.New("vision analysis inactive")

// ImageSource fetches a locator and returns it in transport form.
type ImageSource interface {
	FetchAndEncode(ctx context.Context, locator string) (codec.TransportImage, error)
}

// Service runs the redesign pipeline. Steps execute strictly in sequence.
type Service struct {
	Images         ImageSource
	Generator      generation.Generator
	Uploader       media.Uploader
	Analyzer       vision.Analyzer
	Store          storage.Store
	Events         events.Publisher
	PathPrefix     string
	GuestRetention time.Duration
	Now            func() time.Time
}

// Redesign encodes the source, generates a redesign, stores it durably, analyzes it and records it.
// Failures before the image is stored abort the request; later failures never lose the image.
func (s *Service) Redesign(ctx context.Context, req Request) Outcome {
	req = req.Normalized()
	requestID := middleware.GetReqID(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	logger := log.With().Str("request_id", requestID).Str("room_type", req.RoomType).Str("design_style", req.DesignStyle).Logger()
	progress := progressReporter{events: s.Events, requestID: requestID}

	if err := req.Validate(); err != nil {
		logger.Info().Err(err).Msg("redesign rejected")
		return Aborted{Step: StepValidate, Reason: err}
	}

	abort := func(step Step, err error) Outcome {
		logger.Error().Err(err).Str("step", string(step)).Msg("redesign aborted")
		progress.failed(step, err)
		progress.publish("failed", events.StatusFailed, string(step))
		report(ctx, err, "redesign", step)
		return Aborted{Step: step, Reason: err}
	}

	progress.started(StepEncodeSource)
	source, err := s.Images.FetchAndEncode(ctx, req.SourceImageURL)
	if err != nil {
		return abort(StepEncodeSource, err)
	}
	progress.completed(StepEncodeSource)

	progress.started(StepGenerate)
	prompt := prompts.BuildRedesignPrompt(req.RoomType, req.DesignStyle, req.AdditionalInstructions)
	generated, err := s.Generator.Generate(ctx, source, prompt)
	if err != nil {
		return abort(StepGenerate, err)
	}
	progress.completed(StepGenerate)

	progress.started(StepStore)
	output, err := s.Images.FetchAndEncode(ctx, generated)
	if err != nil {
		return abort(StepStore, err)
	}
	durableURL, err := media.StoreImage(ctx, s.Uploader, output, media.NewKey(s.PathPrefix, s.now()))
	if err != nil {
		return abort(StepStore, err)
	}
	progress.completed(StepStore)
	logger.Info().Str("url", durableURL).Msg("redesign stored")

	progress.started(StepAnalyze)
	var outcome Outcome
	analysis, analysisErr := s.analyze(ctx, durableURL, req)
	if analysisErr != nil {
		logger.Warn().Err(analysisErr).Str("phase", vision.Phase(analysisErr)).Msg("analysis failed, keeping redesign")
		progress.failed(StepAnalyze, analysisErr)
		report(ctx, analysisErr, "analysis", StepAnalyze)
		outcome = PartialSuccess{GeneratedImageURL: durableURL, AnalysisError: analysisErr}
	} else {
		progress.completed(StepAnalyze)
		outcome = FullSuccess{GeneratedImageURL: durableURL, Analysis: analysis}
	}

	progress.started(StepPersist)
	if err := s.persist(ctx, logger, req, outcome); err != nil {
		logger.Error().Err(err).Msg("persist redesign")
		progress.failed(StepPersist, err)
		report(ctx, err, "persist", StepPersist)
	} else {
		progress.completed(StepPersist)
	}

	progress.done()
	return outcome
}

func (s *Service) analyze(ctx context.Context, imageURL string, req Request) (vision.RoomAnalysis, error) {
	if s.Analyzer == nil {
		return vision.RoomAnalysis{}, ErrAnalysisInactive
	}
	return s.Analyzer.Analyze(ctx, imageURL, req.RoomType, req.DesignStyle)
}

func (s *Service) persist(ctx context.Context, logger zerolog.Logger, req Request, outcome Outcome) error {
	if s.Store == nil {
		return nil
	}

	var (
		imageURL string
		record   *string
	)
	switch o := outcome.(type) {
	case FullSuccess:
		imageURL = o.GeneratedImageURL
		encoded, err := json.Marshal(o.Analysis)
		if err != nil {
			return err
		}
		analysis := string(encoded)
		record = &analysis
	case PartialSuccess:
		imageURL = o.GeneratedImageURL
	default:
		return nil
	}

	if req.IsGuest() {
		if req.GuestSessionID == "" || s.GuestRetention <= 0 {
			logger.Debug().Msg("guest redesign not persisted")
			return nil
		}
		now := s.now()
		_, err := s.Store.CreateGuestRoom(ctx, storage.GuestRoom{
			SessionID:  req.GuestSessionID,
			RoomType:   req.RoomType,
			DesignType: req.DesignStyle,
			OrgImage:   req.SourceImageURL,
			AIImage:    imageURL,
			CreatedAt:  now,
			ExpiresAt:  now.Add(s.GuestRetention),
		})
		return err
	}

	_, err := s.Store.CreateGeneratedRoom(ctx, storage.GeneratedRoom{
		RoomType:   req.RoomType,
		DesignType: req.DesignStyle,
		OrgImage:   req.SourceImageURL,
		AIImage:    imageURL,
		UserEmail:  req.RequesterIdentity,
		Analysis:   record,
		CreatedAt:  s.now(),
	})
	if err != nil {
		return err
	}

	remaining, err := s.Store.DeductCredit(ctx, req.RequesterIdentity)
	switch {
	case errors.Is(err, storage.ErrNoCredits), errors.Is(err, storage.ErrNotFound):
		logger.Warn().Err(err).Msg("credit not deducted")
	case err != nil:
		logger.Error().Err(err).Msg("deduct credit")
	default:
		logger.Info().Int("credits", remaining).Msg("credit deducted")
	}
	return nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func report(ctx context.Context, err error, failureType string, step Step) {
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("failure_type", failureType)
		scope.SetTag("step", string(step))
		hub.CaptureException(err)
	})
}

type progressReporter struct {
	events    events.Publisher
	requestID string
}

func (p progressReporter) publish(step string, status events.Status, message string) {
	if p.events == nil {
		return
	}
	p.events.Publish(events.Event{RequestID: p.requestID, Step: step, Status: status, Message: message})
}

func (p progressReporter) started(step Step)   { p.publish(string(step), events.StatusStarted, "") }
func (p progressReporter) completed(step Step) { p.publish(string(step), events.StatusCompleted, "") }
func (p progressReporter) failed(step Step, err error) {
	p.publish(string(step), events.StatusFailed, err.Error())
}
func (p progressReporter) done() { p.publish("done", events.StatusCompleted, "") }
