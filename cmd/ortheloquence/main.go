package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/loqalabs/ortheloquence/internal/config"
	"github.com/loqalabs/ortheloquence/internal/pipeline"
	"github.com/loqalabs/ortheloquence/internal/protocol"
	"github.com/loqalabs/ortheloquence/internal/runtime"
)

var version = "0.1.0-dev"

const usage = "usage: ortheloquence <transcribe|evaluate|exercises|version> [flags]"

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err := run(context.Background(), os.Args[1], os.Args[2:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var usageErr usageError
		if errors.As(err, &usageErr) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

type usageError string

func (e usageError) Error() string { return string(e) }

func run(ctx context.Context, command string, args []string, out io.Writer) error {
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	configPath := fs.String("config", "", "Path to configuration file")

	switch command {
	case "version":
		fmt.Fprintln(out, version)
		return nil
	case "transcribe":
		file := fs.String("file", "", "Audio file to transcribe")
		if err := fs.Parse(args); err != nil {
			return usageError(err.Error())
		}
		if *file == "" {
			return usageError("transcribe requires -file")
		}
		return withPipeline(ctx, *configPath, func(p *pipeline.Pipeline) error {
			return transcribe(ctx, p, *file, out)
		})
	case "evaluate":
		var req protocol.EvaluationRequest
		fs.StringVar(&req.User, "user", "anonymous", "User name")
		fs.StringVar(&req.Category, "category", "", "Exercise category")
		fs.StringVar(&req.Question, "question", "", "Exercise question, exactly as listed")
		fs.StringVar(&req.Answer, "answer", "", "Written answer")
		file := fs.String("file", "", "Audio answer for oral exercises")
		if err := fs.Parse(args); err != nil {
			return usageError(err.Error())
		}
		return withPipeline(ctx, *configPath, func(p *pipeline.Pipeline) error {
			if *file != "" {
				data, err := transcribeFile(ctx, p, *file)
				if err != nil {
					return err
				}
				req.TranscriptionData = &data
			}
			return writeJSON(out, p.Evaluate(ctx, req))
		})
	case "exercises":
		if err := fs.Parse(args); err != nil {
			return usageError(err.Error())
		}
		return withPipeline(ctx, *configPath, func(p *pipeline.Pipeline) error {
			return writeJSON(out, p.Catalog().List())
		})
	default:
		return usageError(fmt.Sprintf("unknown command %q\n%s", command, usage))
	}
}

func withPipeline(ctx context.Context, configPath string, fn func(*pipeline.Pipeline) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := runtime.NewLogger(cfg.Telemetry.LogLevel, os.Stderr)
	p, closeFn, err := runtime.BuildPipeline(ctx, cfg, nil, logger)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(p)
}

func transcribe(ctx context.Context, p *pipeline.Pipeline, path string, out io.Writer) error {
	res, err := transcribeFile(ctx, p, path)
	if err != nil {
		return err
	}
	return writeJSON(out, res)
}

func transcribeFile(ctx context.Context, p *pipeline.Pipeline, path string) (protocol.TranscriptionResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return protocol.TranscriptionResult{}, err
	}
	defer f.Close()
	res, err := p.Transcribe(ctx, f, strings.TrimPrefix(filepath.Ext(path), "."))
	if err != nil {
		return res, fmt.Errorf("%s (%s): %w", pipeline.Message(err), pipeline.KindOf(err), err)
	}
	return res, nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
