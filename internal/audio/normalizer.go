package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Asset is an uploaded recording staged in its own temporary directory.
// Close removes the directory and everything the pipeline wrote into it.
type Asset struct {
	dir    string
	path   string
	format string
	size   int64
}

// Path returns the location of the staged source file.
func (a *Asset) Path() string { return a.path }

// Dir returns the request-scoped directory holding the asset and its derivatives.
func (a *Asset) Dir() string { return a.dir }

// Format returns the declared container extension, without the leading dot.
func (a *Asset) Format() string { return a.format }

// Size returns the number of bytes staged.
func (a *Asset) Size() int64 { return a.size }

// Close deletes the asset directory. It is safe to call more than once.
func (a *Asset) Close() error {
	if a == nil || a.dir == "" {
		return nil
	}
	err := os.RemoveAll(a.dir)
	a.dir = ""
	return err
}

// Normalizer stages uploads and converts them into canonical waveforms.
type Normalizer struct {
	decoder Decoder
	target  Format
	tempDir string
	log     *slog.Logger
}

func NewNormalizer(decoder Decoder, target Format, tempDir string, log *slog.Logger) *Normalizer {
	return &Normalizer{
		decoder: decoder,
		target:  target,
		tempDir: tempDir,
		log:     log.With(slog.String("component", "audio-normalizer")),
	}
}

// Target returns the canonical output format.
func (n *Normalizer) Target() Format { return n.target }

// Stage copies src into a fresh temporary directory. The caller owns the
// returned Asset and must Close it on every exit path.
func (n *Normalizer) Stage(src io.Reader, format string) (*Asset, error) {
	format = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(format)), ".")
	if format == "" {
		format = "webm"
	}
	dir, err := os.MkdirTemp(n.tempDir, "ortho_upload_*")
	if err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	asset := &Asset{dir: dir, path: filepath.Join(dir, "input."+format), format: format}

	file, err := os.Create(asset.path)
	if err != nil {
		asset.Close()
		return nil, fmt.Errorf("create upload file: %w", err)
	}
	written, err := io.Copy(file, src)
	closeErr := file.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		asset.Close()
		return nil, fmt.Errorf("write upload: %w", err)
	}
	asset.size = written
	return asset, nil
}

// Normalize decodes the asset into a canonical WAV inside the asset directory
// and returns the parsed waveform.
func (n *Normalizer) Normalize(ctx context.Context, asset *Asset) (Waveform, error) {
	if asset == nil || asset.path == "" {
		return Waveform{}, ErrInputMissing
	}
	info, err := os.Stat(asset.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Waveform{}, fmt.Errorf("%w: %s does not exist", ErrInputMissing, asset.path)
		}
		return Waveform{}, fmt.Errorf("stat input: %w", err)
	}
	if info.Size() == 0 {
		return Waveform{}, fmt.Errorf("%w: %s is empty", ErrInputMissing, asset.path)
	}

	output := filepath.Join(asset.dir, "normalized.wav")
	if err := n.decoder.Decode(ctx, asset.path, output, n.target); err != nil {
		var convErr *ConversionError
		if errors.As(err, &convErr) {
			n.log.Warn("audio conversion failed", slog.String("error", convErr.Err.Error()), slog.String("output", convErr.Output))
			return Waveform{}, err
		}
		return Waveform{}, &ConversionError{Err: err}
	}

	out, err := os.Stat(output)
	if err != nil {
		return Waveform{}, fmt.Errorf("%w: %s was not created", ErrOutputInvalid, output)
	}
	if out.Size() == 0 {
		return Waveform{}, fmt.Errorf("%w: %s is empty", ErrOutputInvalid, output)
	}

	wave, err := ReadWaveform(output)
	if err != nil {
		return Waveform{}, fmt.Errorf("%w: %v", ErrOutputInvalid, err)
	}
	n.log.Debug("audio normalized",
		slog.String("input", asset.path),
		slog.Int64("frames", wave.FrameCount),
		slog.Int("sample_rate", wave.SampleRate))
	return wave, nil
}
