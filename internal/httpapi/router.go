// Package httpapi exposes transcription, evaluation and session history over HTTP.
package httpapi

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/loqalabs/ortheloquence/internal/exercise"
	"github.com/loqalabs/ortheloquence/internal/protocol"
	"github.com/loqalabs/ortheloquence/internal/sessions"
)

// Pipeline is satisfied by *pipeline.Pipeline.
type Pipeline interface {
	Transcribe(ctx context.Context, src io.Reader, format string) (protocol.TranscriptionResult, error)
	Evaluate(ctx context.Context, req protocol.EvaluationRequest) protocol.EvaluationResult
	Catalog() *exercise.Catalog
}

// SessionStore is satisfied by *sessions.Store.
type SessionStore interface {
	Add(ctx context.Context, rec sessions.Record) (string, error)
	List(ctx context.Context, kind string) ([]sessions.Record, error)
	DeleteAll(ctx context.Context) (int64, error)
}

type Options struct {
	Pipeline       Pipeline
	Sessions       SessionStore
	MaxUploadBytes int64
	// Ready reports readiness for /readyz. Nil means always ready.
	Ready   func() bool
	Metrics http.Handler
	Logger  *slog.Logger
}

type api struct {
	pipeline  Pipeline
	sessions  SessionStore
	maxUpload int64
	log       *slog.Logger
}

func NewRouter(opts Options) http.Handler {
	a := &api{
		pipeline:  opts.Pipeline,
		sessions:  opts.Sessions,
		maxUpload: opts.MaxUploadBytes,
		log:       opts.Logger.With(slog.String("component", "httpapi")),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(a.log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if opts.Ready == nil || opts.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
	})
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Post("/transcribe/", a.handleTranscribe)

	r.Route("/exercises", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"message": "Exercises router is working"})
		})
		r.Get("/list", a.handleListExercises)
		r.Post("/evaluate", a.handleEvaluate)
	})

	if a.sessions != nil {
		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", a.handleListSessions)
			r.Post("/", a.handleAddSession)
			r.Delete("/", a.handleDeleteSessions)
		})
	}
	return r
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("latency", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
