package audio

import "context"

// Decoder converts an arbitrary audio container into a WAV file in the target format.
// Implementations must be safe for concurrent use.
type Decoder interface {
	Decode(ctx context.Context, inputPath, outputPath string, target Format) error
}
