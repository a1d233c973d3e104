// Package server serves the predict page and its JSON API over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"impractical.co/reach"
	"impractical.co/reach/internal/history"
	"impractical.co/reach/internal/photos"
	"impractical.co/reach/internal/prediction"
)

const themeCookie = "theme"

// Predictor turns metrics into a predicted impression. *prediction.Client is
// a Predictor.
type Predictor interface {
	Predict(ctx context.Context, metrics prediction.Metrics) (prediction.Prediction, error)
}

// BackgroundSource hands out the current background photo. *photos.Rotator
// is a BackgroundSource.
type BackgroundSource interface {
	Current(ctx context.Context) (photos.Photo, error)
}

// HistoryStore records submissions and lists recent ones. *history.Store is a
// HistoryStore.
type HistoryStore interface {
	Record(ctx context.Context, sub history.Submission) (history.Submission, error)
	Recent(ctx context.Context, limit int) ([]history.Submission, error)
}

// Options configure a Server. Site and Predictor are required; everything
// else may be left empty to turn the feature off.
type Options struct {
	Site      *reach.FormSite
	Predictor Predictor

	// Background is only consulted for themed revisions.
	Background BackgroundSource

	History HistoryStore

	// RecentLimit is how many recent predictions are shown on the page.
	RecentLimit int

	Limiter *RateLimiter
	Logger  *slog.Logger
}

// Server handles every route of the service.
type Server struct {
	site        *reach.FormSite
	predictor   Predictor
	background  BackgroundSource
	history     HistoryStore
	recentLimit int
	limiter     *RateLimiter
	logger      *slog.Logger
	tracer      trace.Tracer
}

// New returns a Server built from opts.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		site:        opts.Site,
		predictor:   opts.Predictor,
		background:  opts.Background,
		history:     opts.History,
		recentLimit: opts.RecentLimit,
		limiter:     opts.Limiter,
		logger:      logger,
		tracer:      otel.Tracer("impractical.co/reach/internal/server"),
	}
}

// Routes returns the http.Handler serving every route.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.observe)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.healthzHandler)

	r.Get("/", s.indexHandler)
	r.With(s.limiter.Limit(http.HandlerFunc(s.predictLimitedHandler))).Post("/predict", s.predictHandler)
	r.Post("/theme", s.themeHandler)

	r.Route("/api", func(r chi.Router) {
		r.With(s.limiter.Limit(http.HandlerFunc(apiLimitedHandler))).Post("/predict", s.apiPredictHandler)
		r.Get("/background", s.apiBackgroundHandler)
		r.Get("/history", s.apiHistoryHandler)
	})
	return r
}

// observe starts a span for each request, puts a request-scoped logger in
// its context, and logs the request once it's been served.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx, span := s.tracer.Start(r.Context(), r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("url.path", r.URL.Path),
			))
		defer span.End()

		logger := s.logger.With("request_id", middleware.GetReqID(ctx))
		ctx = reach.LoggingContext(ctx, logger)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		if route := chi.RouteContext(ctx); route != nil && route.RoutePattern() != "" {
			span.SetName(r.Method + " " + route.RoutePattern())
			span.SetAttributes(attribute.String("http.route", route.RoutePattern()))
		}
		span.SetAttributes(attribute.Int("http.response.status_code", status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
		logger.InfoContext(ctx, "served request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start))
	})
}

func (s *Server) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// theme returns the theme the visitor picked, or the site's default.
func (s *Server) theme(r *http.Request) reach.Theme {
	if cookie, err := r.Cookie(themeCookie); err == nil {
		if theme, ok := reach.ParseTheme(cookie.Value); ok {
			return theme
		}
	}
	return s.site.DefaultTheme
}

// page builds the predict page around state, with everything else the
// revision being served needs.
func (s *Server) page(r *http.Request, state reach.State) reach.PredictPage {
	ctx := r.Context()
	page := reach.PredictPage{
		Revision: s.site.Revision,
		Theme:    s.theme(r),
		State:    state,
	}
	if page.Revision.Themed() && s.background != nil {
		photo, err := s.background.Current(ctx)
		switch {
		case err == nil:
			page.Photo = &photo
		case errors.Is(err, photos.ErrNoPhoto):
		default:
			reach.Logger(ctx).WarnContext(ctx, "error getting background photo", "error", err)
		}
	}
	page.Recent = s.recent(ctx)
	return page
}

func (s *Server) recent(ctx context.Context) []reach.RecentPrediction {
	if s.history == nil || s.recentLimit <= 0 {
		return nil
	}
	subs, err := s.history.Recent(ctx, s.recentLimit)
	if err != nil {
		reach.Logger(ctx).ErrorContext(ctx, "error listing recent predictions", "error", err)
		return nil
	}
	recent := make([]reach.RecentPrediction, 0, len(subs))
	for _, sub := range subs {
		if sub.Impression == nil {
			continue
		}
		recent = append(recent, reach.RecentPrediction{
			Metrics:    sub.Metrics,
			Impression: *sub.Impression,
			At:         sub.CreatedAt,
		})
	}
	return recent
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, state reach.State) {
	reach.RenderHTTP(r.Context(), w, status, s.site, s.page(r, state))
}

// predict asks the Predictor for an impression and records the outcome.
func (s *Server) predict(ctx context.Context, metrics prediction.Metrics) (prediction.Prediction, error) {
	result, err := s.predictor.Predict(ctx, metrics)
	if err != nil {
		reach.Logger(ctx).ErrorContext(ctx, "error predicting impression", "error", err)
	}
	s.record(ctx, metrics, result, err)
	return result, err
}

func (s *Server) record(ctx context.Context, metrics prediction.Metrics, result prediction.Prediction, predictErr error) {
	if s.history == nil {
		return
	}
	sub := history.Submission{
		Metrics:  metrics,
		Revision: s.site.Revision.String(),
	}
	if predictErr != nil {
		sub.Failure = predictErr.Error()
	} else {
		impression := result.Impression
		sub.Impression = &impression
	}
	if _, err := s.history.Record(ctx, sub); err != nil {
		reach.Logger(ctx).ErrorContext(ctx, "error recording submission", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
