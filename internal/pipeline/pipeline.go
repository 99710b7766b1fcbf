// Package pipeline turns uploaded recordings into transcription results and
// scores exercise answers.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/loqalabs/ortheloquence/internal/audio"
	"github.com/loqalabs/ortheloquence/internal/events"
	"github.com/loqalabs/ortheloquence/internal/exercise"
	"github.com/loqalabs/ortheloquence/internal/grammar"
	"github.com/loqalabs/ortheloquence/internal/protocol"
	"github.com/loqalabs/ortheloquence/internal/speech"
	"github.com/loqalabs/ortheloquence/internal/stt"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/loqalabs/ortheloquence/internal/pipeline"

// Deps are the collaborators shared by every request. All of them must be safe
// for concurrent use. Meter and Tracer default to the global providers; a nil
// Events dispatcher disables event publishing.
type Deps struct {
	Normalizer  *audio.Normalizer
	Transcriber *stt.Transcriber
	Corrector   *grammar.Corrector
	Catalog     *exercise.Catalog
	Events      *events.Dispatcher
	Meter       metric.Meter
	Tracer      trace.Tracer
}

// Pipeline holds no per-request state.
type Pipeline struct {
	normalizer  *audio.Normalizer
	transcriber *stt.Transcriber
	corrector   *grammar.Corrector
	catalog     *exercise.Catalog
	events      *events.Dispatcher
	tracer      trace.Tracer
	metrics     *instruments
	log         *slog.Logger
}

func New(deps Deps, log *slog.Logger) (*Pipeline, error) {
	if deps.Normalizer == nil || deps.Transcriber == nil {
		return nil, errors.New("pipeline requires a normalizer and a transcriber")
	}
	if deps.Catalog == nil {
		deps.Catalog = exercise.Default()
	}
	if deps.Meter == nil {
		deps.Meter = otel.Meter(instrumentationName)
	}
	if deps.Tracer == nil {
		deps.Tracer = otel.Tracer(instrumentationName)
	}
	inst, err := newInstruments(deps.Meter)
	if err != nil {
		return nil, fmt.Errorf("create pipeline instruments: %w", err)
	}
	return &Pipeline{
		normalizer:  deps.Normalizer,
		transcriber: deps.Transcriber,
		corrector:   deps.Corrector,
		catalog:     deps.Catalog,
		events:      deps.Events,
		tracer:      deps.Tracer,
		metrics:     inst,
		log:         log.With(slog.String("component", "pipeline")),
	}, nil
}

// Catalog returns the exercise registry used for validation.
func (p *Pipeline) Catalog() *exercise.Catalog {
	return p.catalog
}

// Transcribe stages src, normalizes, transcribes and corrects it, then derives
// speech metrics. Temporary files are removed before it returns, on every path.
func (p *Pipeline) Transcribe(ctx context.Context, src io.Reader, format string) (protocol.TranscriptionResult, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.transcribe", trace.WithAttributes(attribute.String("audio.format", format)))
	defer span.End()

	result, err := p.transcribe(ctx, src, format)
	kind := "ok"
	if err != nil {
		kind = KindOf(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, kind)
		p.log.Warn("transcription failed", slog.String("kind", kind), slogError(err))
	}
	p.metrics.transcriptions.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
	if err == nil {
		id := uuid.NewString()
		p.events.Send(protocol.EventTranscriptionCompleted, id, protocol.TranscriptionCompleted{
			ID:        id,
			Format:    format,
			Result:    result,
			Timestamp: time.Now().UTC(),
		})
	}
	return result, err
}

func (p *Pipeline) transcribe(ctx context.Context, src io.Reader, format string) (protocol.TranscriptionResult, error) {
	asset, err := p.normalizer.Stage(src, format)
	if err != nil {
		return protocol.TranscriptionResult{}, err
	}
	defer func() {
		if err := asset.Close(); err != nil {
			p.log.Warn("failed to remove upload", slog.String("dir", asset.Dir()), slogError(err))
		}
	}()

	var wave audio.Waveform
	err = p.stage(ctx, "normalize", func(ctx context.Context) error {
		var err error
		wave, err = p.normalizer.Normalize(ctx, asset)
		return err
	})
	if err != nil {
		return protocol.TranscriptionResult{}, err
	}

	var text string
	err = p.stage(ctx, "transcribe", func(ctx context.Context) error {
		var err error
		text, err = p.transcriber.Transcribe(ctx, wave)
		return err
	})
	if err != nil {
		return protocol.TranscriptionResult{}, err
	}

	var (
		corrected string
		matches   []grammar.Match
	)
	err = p.stage(ctx, "correct", func(ctx context.Context) error {
		var err error
		corrected, matches, err = p.corrector.Correct(ctx, text)
		return err
	})
	if err != nil {
		return protocol.TranscriptionResult{}, err
	}

	m := speech.Analyze(corrected, wave)
	return protocol.TranscriptionResult{
		Transcription:          text,
		CorrectedTranscription: corrected,
		Corrections:            toCorrections(matches),
		WordCount:              m.WordCount,
		DurationSec:            m.DurationSec,
		SpeechRate:             m.SpeechRateWPM,
		TicCounts:              m.TicCounts,
	}, nil
}

func (p *Pipeline) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := p.tracer.Start(ctx, "pipeline."+name)
	defer span.End()
	start := time.Now()
	err := fn(ctx)
	p.metrics.stageDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attribute.String("stage", name)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, KindOf(err))
	}
	return err
}

func toCorrections(matches []grammar.Match) []protocol.Correction {
	out := make([]protocol.Correction, 0, len(matches))
	for _, m := range matches {
		replacements := m.Replacements
		if replacements == nil {
			replacements = []string{}
		}
		out = append(out, protocol.Correction{
			Context:      m.Context,
			Message:      m.Message,
			Replacements: replacements,
		})
	}
	return out
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
