package stt

import (
	"context"
	"errors"
	"fmt"

	"github.com/loqalabs/ortheloquence/internal/audio"
)

// ErrUnintelligible is returned when the recognizer produced no text for the recording.
var ErrUnintelligible = errors.New("speech could not be understood")

// ServiceError reports a recognizer call that failed before producing a result.
type ServiceError struct {
	Provider string
	Err      error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("speech service %s unavailable: %v", e.Provider, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Recognizer abstracts STT backends. Implementations must be safe for concurrent use.
type Recognizer interface {
	Recognize(ctx context.Context, wave audio.Waveform, locale string) (string, error)
}
