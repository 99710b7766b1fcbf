// Package audio turns uploaded recordings into canonical PCM waveforms.
package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Format describes the canonical PCM layout produced by normalization.
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// DefaultFormat is 44.1 kHz mono 16-bit linear PCM.
func DefaultFormat() Format {
	return Format{SampleRate: 44100, Channels: 1, BitDepth: 16}
}

// Waveform is decoded 16-bit little-endian PCM plus its layout.
type Waveform struct {
	SampleRate int
	Channels   int
	BitDepth   int
	FrameCount int64
	PCM        []byte
	// Path is the WAV file the waveform was read from, if any.
	Path string
}

// DurationSeconds returns FrameCount / SampleRate, or 0 when the sample rate is not positive.
func (w Waveform) DurationSeconds() float64 {
	if w.SampleRate <= 0 {
		return 0
	}
	return float64(w.FrameCount) / float64(w.SampleRate)
}

// ReadWaveform parses a WAV file into a Waveform.
func ReadWaveform(path string) (Waveform, error) {
	file, err := os.Open(path)
	if err != nil {
		return Waveform{}, fmt.Errorf("open wav: %w", err)
	}
	defer file.Close()

	dec := wav.NewDecoder(file)
	if !dec.IsValidFile() {
		return Waveform{}, fmt.Errorf("%s is not a valid wav file", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Waveform{}, fmt.Errorf("read pcm: %w", err)
	}

	channels := int(dec.NumChans)
	if channels <= 0 {
		channels = 1
	}
	pcm := make([]byte, len(buf.Data)*2)
	for i, sample := range buf.Data {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(sample)))
	}
	return Waveform{
		SampleRate: int(dec.SampleRate),
		Channels:   channels,
		BitDepth:   int(dec.BitDepth),
		FrameCount: int64(len(buf.Data) / channels),
		PCM:        pcm,
		Path:       path,
	}, nil
}

// WriteWAV encodes 16-bit little-endian PCM as a WAV stream.
func WriteWAV(w io.WriteSeeker, pcm []byte, sampleRate int, channels int) error {
	if len(pcm)%2 != 0 {
		return fmt.Errorf("pcm payload not aligned")
	}
	buffer := &audio.IntBuffer{Format: &audio.Format{NumChannels: channels, SampleRate: sampleRate}}
	samples := make([]int, len(pcm)/2)
	for i := 0; i < len(samples); i++ {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}
	buffer.Data = samples

	enc := wav.NewEncoder(w, sampleRate, 16, channels, 1)
	if err := enc.Write(buffer); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav encoder: %w", err)
	}
	return nil
}
