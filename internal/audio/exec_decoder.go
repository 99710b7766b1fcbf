package audio

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/mattn/go-shellwords"
)

type execDecoder struct {
	cmd []string
}

// NewExecDecoder runs an ffmpeg-compatible command line. The command may carry
// leading flags (for example "ffmpeg -hide_banner -loglevel error").
func NewExecDecoder(command string) (Decoder, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse audio command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("audio command is empty")
	}
	return &execDecoder{cmd: args}, nil
}

func (d *execDecoder) Decode(ctx context.Context, inputPath, outputPath string, target Format) error {
	base := d.cmd[0]
	cmdArgs := append([]string{}, d.cmd[1:]...)
	cmdArgs = append(cmdArgs, decodeArgs(inputPath, outputPath, target)...)

	command := exec.CommandContext(ctx, base, cmdArgs...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		return &ConversionError{
			Err:    err,
			Output: fmt.Sprintf("stdout: %s\nstderr: %s", stdout.String(), stderr.String()),
		}
	}
	return nil
}

func decodeArgs(inputPath, outputPath string, target Format) []string {
	return []string{
		"-y",
		"-i", inputPath,
		"-ar", strconv.Itoa(target.SampleRate),
		"-ac", strconv.Itoa(target.Channels),
		"-acodec", codecFor(target.BitDepth),
		outputPath,
	}
}

func codecFor(bitDepth int) string {
	switch bitDepth {
	case 24:
		return "pcm_s24le"
	case 32:
		return "pcm_s32le"
	default:
		return "pcm_s16le"
	}
}
