package stt

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/loqalabs/ortheloquence/internal/audio"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type recognizerFunc func(ctx context.Context, wave audio.Waveform, locale string) (string, error)

func (f recognizerFunc) Recognize(ctx context.Context, wave audio.Waveform, locale string) (string, error) {
	return f(ctx, wave, locale)
}

var oneSecond = audio.Waveform{SampleRate: 44100, Channels: 1, BitDepth: 16, FrameCount: 44100, PCM: make([]byte, 88200)}

func TestTranscriberPassesLocale(t *testing.T) {
	var gotLocale string
	tr := NewTranscriber(recognizerFunc(func(_ context.Context, _ audio.Waveform, locale string) (string, error) {
		gotLocale = locale
		return "  bonjour tout le monde \n", nil
	}), "fr-FR", time.Second, newLogger())

	text, err := tr.Transcribe(context.Background(), oneSecond)
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if gotLocale != "fr-FR" {
		t.Fatalf("expected fr-FR, got %q", gotLocale)
	}
	if text != "bonjour tout le monde" {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestTranscriberClassifiesFailures(t *testing.T) {
	tests := []struct {
		name          string
		text          string
		err           error
		unintelligble bool
	}{
		{"blank text", "   ", nil, true},
		{"unintelligible", "", ErrUnintelligible, true},
		{"service error", "", &ServiceError{Provider: "google", Err: errors.New("quota exceeded")}, false},
		{"unclassified error", "", errors.New("connection reset"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTranscriber(recognizerFunc(func(context.Context, audio.Waveform, string) (string, error) {
				return tt.text, tt.err
			}), "fr-FR", 0, newLogger())
			_, err := tr.Transcribe(context.Background(), oneSecond)
			if tt.unintelligble {
				if !errors.Is(err, ErrUnintelligible) {
					t.Fatalf("expected ErrUnintelligible, got %v", err)
				}
				return
			}
			var svcErr *ServiceError
			if !errors.As(err, &svcErr) {
				t.Fatalf("expected ServiceError, got %v", err)
			}
			if errors.Is(err, ErrUnintelligible) {
				t.Fatal("service errors must stay distinct from unintelligible")
			}
		})
	}
}

func TestTranscriberAppliesTimeout(t *testing.T) {
	tr := NewTranscriber(recognizerFunc(func(ctx context.Context, _ audio.Waveform, _ string) (string, error) {
		if _, ok := ctx.Deadline(); !ok {
			t.Error("expected a deadline on the recognizer context")
		}
		return "ok", nil
	}), "fr-FR", 50*time.Millisecond, newLogger())
	if _, err := tr.Transcribe(context.Background(), oneSecond); err != nil {
		t.Fatalf("transcribe: %v", err)
	}
}

func TestMockRecognizer(t *testing.T) {
	rec := NewMockRecognizer("bonjour")
	text, err := rec.Recognize(context.Background(), oneSecond, "fr-FR")
	if err != nil || text != "bonjour" {
		t.Fatalf("unexpected result %q %v", text, err)
	}
	if _, err := rec.Recognize(context.Background(), audio.Waveform{SampleRate: 44100}, "fr-FR"); !errors.Is(err, ErrUnintelligible) {
		t.Fatalf("expected ErrUnintelligible for empty waveform, got %v", err)
	}
}
