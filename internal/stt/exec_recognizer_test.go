package stt

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/loqalabs/ortheloquence/internal/config"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stt.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExecRecognizerParsesJSON(t *testing.T) {
	script := writeScript(t, `echo '{"text": "il fait beau", "confidence": 0.9}'`)
	rec, err := NewExecRecognizer(config.STTConfig{Command: script})
	if err != nil {
		t.Fatalf("new recognizer: %v", err)
	}
	text, err := rec.Recognize(context.Background(), oneSecond, "fr-FR")
	if err != nil {
		t.Fatalf("recognize: %v", err)
	}
	if text != "il fait beau" {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestExecRecognizerEmptyText(t *testing.T) {
	script := writeScript(t, `echo '{"text": ""}'`)
	rec, err := NewExecRecognizer(config.STTConfig{Command: script})
	if err != nil {
		t.Fatalf("new recognizer: %v", err)
	}
	if _, err := rec.Recognize(context.Background(), oneSecond, "fr-FR"); !errors.Is(err, ErrUnintelligible) {
		t.Fatalf("expected ErrUnintelligible, got %v", err)
	}
}

func TestExecRecognizerCommandFailure(t *testing.T) {
	script := writeScript(t, "echo model missing >&2\nexit 2")
	rec, err := NewExecRecognizer(config.STTConfig{Command: script})
	if err != nil {
		t.Fatalf("new recognizer: %v", err)
	}
	_, err = rec.Recognize(context.Background(), oneSecond, "fr-FR")
	var svcErr *ServiceError
	if !errors.As(err, &svcErr) || svcErr.Provider != "exec" {
		t.Fatalf("expected exec ServiceError, got %v", err)
	}
}
