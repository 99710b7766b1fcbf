package audio

import (
	"errors"
	"fmt"
)

var (
	// ErrInputMissing is returned when the uploaded source is absent or empty.
	ErrInputMissing = errors.New("audio input missing or empty")
	// ErrOutputInvalid is returned when the decoder reported success but produced no usable waveform.
	ErrOutputInvalid = errors.New("audio conversion produced no output")
)

// ConversionError reports a decoder process that exited unsuccessfully.
type ConversionError struct {
	Err    error
	Output string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("audio conversion failed: %v: %s", e.Err, e.Output)
}

func (e *ConversionError) Unwrap() error { return e.Err }
