package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/loqalabs/ortheloquence/internal/audio"
	"github.com/loqalabs/ortheloquence/internal/config"
	"github.com/loqalabs/ortheloquence/internal/events"
	"github.com/loqalabs/ortheloquence/internal/exercise"
	"github.com/loqalabs/ortheloquence/internal/grammar"
	"github.com/loqalabs/ortheloquence/internal/pipeline"
	"github.com/loqalabs/ortheloquence/internal/stt"
)

// NewLogger returns a JSON logger at the named level (debug, info, warn, error).
func NewLogger(level string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// BuildPipeline assembles the configured backends. The returned close function
// releases backend clients and must be called once the pipeline is idle.
func BuildPipeline(ctx context.Context, cfg config.Config, dispatcher *events.Dispatcher, logger *slog.Logger) (*pipeline.Pipeline, func() error, error) {
	var closers []io.Closer
	closeAll := func() error {
		var errs []error
		for _, c := range closers {
			errs = append(errs, c.Close())
		}
		return errors.Join(errs...)
	}

	decoder, err := newDecoder(cfg.Audio)
	if err != nil {
		return nil, nil, err
	}
	target := audio.Format{SampleRate: cfg.Audio.SampleRate, Channels: cfg.Audio.Channels, BitDepth: cfg.Audio.BitDepth}

	recognizer, closer, err := newRecognizer(ctx, cfg.STT)
	if err != nil {
		return nil, nil, err
	}
	if closer != nil {
		closers = append(closers, closer)
	}

	checker, err := newChecker(cfg.Grammar)
	if err != nil {
		_ = closeAll()
		return nil, nil, err
	}

	catalog := exercise.Default()
	if cfg.Exercises.Path != "" {
		catalog, err = exercise.Load(cfg.Exercises.Path)
		if err != nil {
			_ = closeAll()
			return nil, nil, err
		}
	}

	p, err := pipeline.New(pipeline.Deps{
		Normalizer:  audio.NewNormalizer(decoder, target, cfg.Audio.TempDir, logger),
		Transcriber: stt.NewTranscriber(recognizer, cfg.STT.Language, time.Duration(cfg.STT.TimeoutMS)*time.Millisecond, logger),
		Corrector:   grammar.NewCorrector(checker, cfg.Grammar.Language, logger),
		Catalog:     catalog,
		Events:      dispatcher,
	}, logger)
	if err != nil {
		_ = closeAll()
		return nil, nil, err
	}
	logger.Info("pipeline ready",
		slog.String("audio", cfg.Audio.Mode),
		slog.String("stt", cfg.STT.Mode),
		slog.String("grammar", cfg.Grammar.Mode),
		slog.Int("categories", len(catalog.Categories())))
	return p, closeAll, nil
}

func newDecoder(cfg config.AudioConfig) (audio.Decoder, error) {
	switch cfg.Mode {
	case "mock":
		return audio.NewMockDecoder(2 * time.Second), nil
	case "exec", "":
		return audio.NewExecDecoder(cfg.Command)
	default:
		return nil, fmt.Errorf("unsupported audio mode %q", cfg.Mode)
	}
}

func newRecognizer(ctx context.Context, cfg config.STTConfig) (stt.Recognizer, io.Closer, error) {
	switch cfg.Mode {
	case "mock", "":
		return stt.NewMockRecognizer(""), nil, nil
	case "exec":
		r, err := stt.NewExecRecognizer(cfg)
		return r, nil, err
	case "google":
		r, err := stt.NewGoogleRecognizer(ctx, cfg.CredentialsFile)
		if err != nil {
			return nil, nil, err
		}
		return r, r, nil
	default:
		return nil, nil, fmt.Errorf("unsupported stt mode %q", cfg.Mode)
	}
}

func newChecker(cfg config.GrammarConfig) (grammar.Checker, error) {
	switch cfg.Mode {
	case "mock", "":
		return grammar.NewMockChecker(grammar.DefaultMockRules), nil
	case "languagetool":
		return grammar.NewLanguageToolChecker(cfg.Endpoint, nil), nil
	case "exec":
		return grammar.NewExecChecker(cfg.Command)
	default:
		return nil, fmt.Errorf("unsupported grammar mode %q", cfg.Mode)
	}
}
