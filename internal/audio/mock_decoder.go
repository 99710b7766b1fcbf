package audio

import (
	"context"
	"fmt"
	"os"
	"time"
)

type mockDecoder struct {
	duration time.Duration
}

// NewMockDecoder writes a silent WAV of the given duration regardless of input content.
func NewMockDecoder(duration time.Duration) Decoder {
	return &mockDecoder{duration: duration}
}

func (m *mockDecoder) Decode(ctx context.Context, inputPath, outputPath string, target Format) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := os.Stat(inputPath); err != nil {
		return &ConversionError{Err: err, Output: "mock decoder: input not readable"}
	}
	frames := int(m.duration.Seconds() * float64(target.SampleRate))
	pcm := make([]byte, frames*target.Channels*2)

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer file.Close()
	return WriteWAV(file, pcm, target.SampleRate, target.Channels)
}
