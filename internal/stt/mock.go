package stt

import (
	"context"
	"fmt"

	"github.com/loqalabs/ortheloquence/internal/audio"
)

type mockRecognizer struct {
	text string
}

// NewMockRecognizer returns text for every non-empty waveform. An empty text
// yields a placeholder describing the recording.
func NewMockRecognizer(text string) Recognizer {
	return &mockRecognizer{text: text}
}

func (m *mockRecognizer) Recognize(ctx context.Context, wave audio.Waveform, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &ServiceError{Provider: "mock", Err: err}
	}
	if wave.FrameCount == 0 {
		return "", ErrUnintelligible
	}
	if m.text != "" {
		return m.text, nil
	}
	return fmt.Sprintf("transcription factice de %.1f secondes", wave.DurationSeconds()), nil
}
