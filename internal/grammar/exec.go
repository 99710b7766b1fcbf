package grammar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	"github.com/mattn/go-shellwords"
)

type execChecker struct {
	cmd []string
}

type execRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

type execResponse struct {
	Matches []Match `json:"matches"`
}

// NewExecChecker runs a command that reads {"text","language"} on stdin and
// prints {"matches": [...]} on stdout.
func NewExecChecker(command string) (Checker, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse grammar command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("grammar command empty")
	}
	return &execChecker{cmd: args}, nil
}

func (c *execChecker) Check(ctx context.Context, text, language string) ([]Match, error) {
	input, err := json.Marshal(execRequest{Text: text, Language: language})
	if err != nil {
		return nil, err
	}

	base := c.cmd[0]
	args := append([]string{}, c.cmd[1:]...)
	cmd := exec.CommandContext(ctx, base, args...)
	cmd.Stdin = bytes.NewReader(input)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("grammar exec command failed: %w: %s", err, stderr.String())
	}

	var resp execResponse
	if err := json.Unmarshal(output, &resp); err != nil {
		return nil, fmt.Errorf("decode grammar exec response: %w", err)
	}
	return resp.Matches, nil
}
