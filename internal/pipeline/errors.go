package pipeline

import (
	"errors"

	"github.com/loqalabs/ortheloquence/internal/audio"
	"github.com/loqalabs/ortheloquence/internal/grammar"
	"github.com/loqalabs/ortheloquence/internal/stt"
)

const (
	KindInputMissing         = "input_missing"
	KindConversionFailed     = "conversion_failed"
	KindOutputInvalid        = "output_invalid"
	KindUnintelligible       = "unintelligible"
	KindServiceUnavailable   = "service_unavailable"
	KindCorrectorUnavailable = "corrector_unavailable"
	KindInternal             = "internal"
)

// KindOf maps a stage error to a stable kind string.
func KindOf(err error) string {
	var (
		convErr *audio.ConversionError
		svcErr  *stt.ServiceError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, audio.ErrInputMissing):
		return KindInputMissing
	case errors.As(err, &convErr):
		return KindConversionFailed
	case errors.Is(err, audio.ErrOutputInvalid):
		return KindOutputInvalid
	case errors.Is(err, stt.ErrUnintelligible):
		return KindUnintelligible
	case errors.As(err, &svcErr):
		return KindServiceUnavailable
	case errors.Is(err, grammar.ErrUnavailable):
		return KindCorrectorUnavailable
	default:
		return KindInternal
	}
}

// Message returns the user-facing text for a stage error.
func Message(err error) string {
	switch KindOf(err) {
	case KindInputMissing:
		return "the uploaded audio is empty"
	case KindConversionFailed:
		return "the audio could not be converted"
	case KindOutputInvalid:
		return "the audio conversion produced no usable output"
	case KindUnintelligible:
		return "speech recognition could not understand the audio"
	case KindServiceUnavailable:
		return "speech recognition service error: " + err.Error()
	case KindCorrectorUnavailable:
		return "correction tool unavailable"
	default:
		return "internal error"
	}
}
