package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/loqalabs/ortheloquence/internal/exercise"
	"github.com/loqalabs/ortheloquence/internal/protocol"
	"github.com/loqalabs/ortheloquence/internal/speech"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	MaxScore        = 100
	matchPenalty    = 10
	mismatchPenalty = 40
	ticPenalty      = 5

	msgInvalidExercise      = "invalid exercise"
	msgCorrectorUnavailable = "correction tool unavailable"
	msgMissingTranscription = "missing transcription data"
)

// Evaluate scores one answer. It never fails: every problem is reported as a
// zero score with a message and a kind.
func (p *Pipeline) Evaluate(ctx context.Context, req protocol.EvaluationRequest) protocol.EvaluationResult {
	ctx, span := p.tracer.Start(ctx, "pipeline.evaluate", trace.WithAttributes(
		attribute.String("exercise.category", req.Category),
	))
	defer span.End()

	result := p.evaluate(ctx, req)
	if result.Corrections == nil {
		result.Corrections = []protocol.Correction{}
	}
	result.Score = clamp(result.Score)

	span.SetAttributes(attribute.Int("exercise.score", result.Score), attribute.String("exercise.kind", result.Kind))
	attrs := metric.WithAttributes(attribute.String("category", req.Category), attribute.String("kind", outcome(result.Kind)))
	p.metrics.evaluations.Add(ctx, 1, attrs)
	p.metrics.score.Record(ctx, int64(result.Score), attrs)
	p.log.Debug("exercise evaluated",
		slog.String("category", req.Category),
		slog.Int("score", result.Score),
		slog.String("kind", result.Kind))

	id := uuid.NewString()
	p.events.Send(protocol.EventExerciseEvaluated, id, protocol.ExerciseEvaluated{
		ID:        id,
		User:      req.User,
		Category:  req.Category,
		Question:  req.Question,
		Score:     result.Score,
		Kind:      result.Kind,
		Timestamp: time.Now().UTC(),
	})
	return result
}

func (p *Pipeline) evaluate(ctx context.Context, req protocol.EvaluationRequest) protocol.EvaluationResult {
	category := exercise.Category(req.Category)
	if !p.catalog.Contains(category, req.Question) {
		return protocol.EvaluationResult{Message: msgInvalidExercise, Kind: protocol.KindInvalidExercise}
	}
	if category.IsOral() {
		return scoreOral(req)
	}
	return p.scoreText(ctx, req)
}

func (p *Pipeline) scoreText(ctx context.Context, req protocol.EvaluationRequest) protocol.EvaluationResult {
	var (
		corrected string
		n         int
		result    protocol.EvaluationResult
	)
	err := p.stage(ctx, "correct", func(ctx context.Context) error {
		text, matches, err := p.corrector.Correct(ctx, req.Answer)
		if err != nil {
			return err
		}
		corrected, n = text, len(matches)
		result.Corrections = toCorrections(matches)
		return nil
	})
	if err != nil {
		return protocol.EvaluationResult{Message: msgCorrectorUnavailable, Kind: protocol.KindCorrectorUnavailable}
	}
	result.Score = MaxScore - matchPenalty*n
	result.Message = fmt.Sprintf("Your answer: %s\nSuggested correction: %s", req.Answer, corrected)
	return result
}

func scoreOral(req protocol.EvaluationRequest) protocol.EvaluationResult {
	data := req.TranscriptionData
	if data.IsZero() {
		return protocol.EvaluationResult{Message: msgMissingTranscription, Kind: protocol.KindMissingTranscriptionData}
	}

	raw := strings.TrimSpace(data.Transcription)
	corrected := strings.TrimSpace(data.CorrectedTranscription)
	expected := exercise.ExpectedText(req.Question)

	score := MaxScore
	var msg strings.Builder
	fmt.Fprintf(&msg, "Exercise: %s\n\nRaw transcription: %s\nCorrected transcription: %s\n", req.Question, raw, corrected)

	if strings.ToLower(corrected) != strings.ToLower(expected) {
		score = max(0, score-mismatchPenalty)
		msg.WriteString("\nTip: the transcription does not exactly match the expected text.")
	}

	if total := speech.TotalTics(data.TicCounts); total > 0 {
		score = max(0, score-ticPenalty*total)
		fmt.Fprintf(&msg, "\n\nTics detected: %s. Try to reduce them!", ticBreakdown(data.TicCounts))
	} else {
		msg.WriteString("\n\nNo tics detected!")
	}

	if data.WordCount > 0 && data.SpeechRate > 0 {
		fmt.Fprintf(&msg, "\n\nSpeech rate: %.1f words/min.", data.SpeechRate)
	}

	return protocol.EvaluationResult{
		Score:             score,
		Message:           msg.String(),
		TranscriptionData: data,
	}
}

// ticBreakdown lists the tics that occurred, known vocabulary first.
func ticBreakdown(counts map[string]int) string {
	known := make(map[string]bool, len(speech.Tics))
	var parts []string
	for _, tic := range speech.Tics {
		known[tic] = true
		if n := counts[tic]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s (%d)", tic, n))
		}
	}
	var extra []string
	for tic, n := range counts {
		if !known[tic] && n > 0 {
			extra = append(extra, fmt.Sprintf("%s (%d)", tic, n))
		}
	}
	sort.Strings(extra)
	return strings.Join(append(parts, extra...), ", ")
}

func clamp(score int) int {
	return min(MaxScore, max(0, score))
}

func outcome(kind string) string {
	if kind == "" {
		return "ok"
	}
	return kind
}
