package stt

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/loqalabs/ortheloquence/internal/audio"
)

// Transcriber submits a whole waveform to a Recognizer in a fixed locale and
// classifies every failure as ErrUnintelligible or *ServiceError.
type Transcriber struct {
	recognizer Recognizer
	locale     string
	timeout    time.Duration
	log        *slog.Logger
}

func NewTranscriber(recognizer Recognizer, locale string, timeout time.Duration, log *slog.Logger) *Transcriber {
	return &Transcriber{
		recognizer: recognizer,
		locale:     locale,
		timeout:    timeout,
		log:        log.With(slog.String("component", "transcriber")),
	}
}

// Locale returns the recognition language.
func (t *Transcriber) Locale() string { return t.locale }

func (t *Transcriber) Transcribe(ctx context.Context, wave audio.Waveform) (string, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	text, err := t.recognizer.Recognize(ctx, wave, t.locale)
	if err != nil {
		if errors.Is(err, ErrUnintelligible) {
			return "", ErrUnintelligible
		}
		var svcErr *ServiceError
		if !errors.As(err, &svcErr) {
			svcErr = &ServiceError{Provider: "unknown", Err: err}
		}
		t.log.Warn("speech recognition failed", slog.String("provider", svcErr.Provider), slogError(svcErr.Err))
		return "", svcErr
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrUnintelligible
	}
	return text, nil
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
