package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/crimson-sun/densefeat/internal/config"
	"github.com/crimson-sun/densefeat/internal/engine"
	"github.com/crimson-sun/densefeat/internal/engine/embedder"
	"github.com/crimson-sun/densefeat/internal/engine/featurizer"
	"github.com/crimson-sun/densefeat/internal/input"
	"github.com/crimson-sun/densefeat/internal/logging"
	"github.com/crimson-sun/densefeat/internal/output"
	"github.com/crimson-sun/densefeat/internal/output/file"
	"github.com/crimson-sun/densefeat/internal/output/multi"
	"github.com/crimson-sun/densefeat/internal/output/stdout"
	"github.com/crimson-sun/densefeat/internal/pipeline"
)

// Exit codes.
const (
	exitOK       = 0
	exitFailures = 1 // ran, but some messages failed
	exitConfig   = 2
	exitRuntime  = 3
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	envFile := os.Getenv("DENSEFEAT_ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := config.LoadEnvFile(envFile); err != nil {
		fmt.Fprintf(os.Stderr, "densefeat: %v\n", err)
		return exitConfig
	}

	cfg := config.Load()
	if err := parseFlags(&cfg, args); err != nil {
		fmt.Fprintf(os.Stderr, "densefeat: %v\n", err)
		return exitConfig
	}
	if cfg.ShowVersion {
		fmt.Println("densefeat", config.Version)
		return exitOK
	}

	if err := cfg.ResolvePooling(); err != nil {
		fmt.Fprintf(os.Stderr, "densefeat: %v\n", err)
		return exitConfig
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "densefeat: invalid configuration:\n%v\n", err)
		return exitConfig
	}

	logging.Init(cfg.Output.Format != "file", logging.ParseLevel(cfg.LogLevel))

	eng, closeEngine, err := buildEngine(cfg)
	if err != nil {
		slog.Error("failed to build engine", "error", err)
		return exitRuntime
	}
	defer closeEngine()

	out, err := buildOutput(cfg)
	if err != nil {
		slog.Error("failed to open output", "error", err)
		return exitRuntime
	}

	// Set up graceful shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig.String())
		cancel()
	}()

	src, err := input.Open(ctx, cfg.Input.Path, cfg.Input.Token)
	if err != nil {
		out.Close()
		slog.Error("failed to open input", "error", err)
		return exitRuntime
	}

	var opts []pipeline.Option
	if cfg.Input.BatchWindow > 0 {
		opts = append(opts, pipeline.WithBatching(cfg.Input.BatchWindow, cfg.Vectorizer.BatchSize))
	}
	p := pipeline.New(src, eng, out, opts...)

	slog.Info("densefeat starting",
		"version", config.Version,
		"mode", cfg.Mode,
		"pooling", cfg.Featurizer.Pooling,
		"input", cfg.Input.Path,
		"output", cfg.Output.Format)

	var stats pipeline.Stats
	if cfg.Mode == "train" {
		stats, err = p.Train(ctx)
	} else {
		stats, err = p.Stream(ctx)
	}
	if cerr := p.Close(); cerr != nil {
		slog.Error("close failed", "error", cerr)
	}

	switch {
	case err != nil && !errors.Is(err, context.Canceled):
		slog.Error("pipeline error", "error", err)
		return exitRuntime
	case stats.Failed > 0:
		return exitFailures
	}
	return exitOK
}

// parseFlags applies command-line overrides on top of the environment.
func parseFlags(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("densefeat", flag.ContinueOnError)
	fs.BoolVar(&cfg.ShowVersion, "version", false, "print version and exit")
	fs.StringVar(&cfg.Mode, "mode", cfg.Mode, "process (stream) or train (batch)")
	fs.StringVar(&cfg.Featurizer.Pooling, "pooling", cfg.Featurizer.Pooling, "pooling operation: mean or max")
	fs.StringVar(&cfg.Featurizer.ComponentConfigPath, "config", cfg.Featurizer.ComponentConfigPath, "YAML component config file")
	fs.StringVar(&cfg.Input.Path, "input", cfg.Input.Path, `input NDJSON: file, http(s) URL, or "-" for stdin`)
	fs.StringVar(&cfg.Output.Format, "output", cfg.Output.Format, "stdout, file, or both")
	fs.StringVar(&cfg.Output.Path, "output-file", cfg.Output.Path, "output file path")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn, or error")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return nil
}

// buildEngine wires the vectorizer and the pooled dense featurizer. The
// featurizer is built first so a bad pooling name fails before the model
// loads.
func buildEngine(cfg config.Config) (*engine.Engine, func(), error) {
	feat, err := featurizer.New(cfg.Featurizer.Pooling)
	if err != nil {
		return nil, nil, err
	}

	opts := []embedder.Option{
		embedder.WithThreads(cfg.Vectorizer.Threads),
		embedder.WithBatchSize(cfg.Vectorizer.BatchSize),
	}
	if cfg.Vectorizer.ProjectionPath != "" {
		opts = append(opts, embedder.WithProjection(cfg.Vectorizer.ProjectionPath))
	}
	if cfg.Vectorizer.RuntimeLibPath != "" {
		opts = append(opts, embedder.WithRuntimeLibrary(cfg.Vectorizer.RuntimeLibPath))
	}
	vec, err := embedder.New(cfg.Vectorizer.ModelPath, cfg.Vectorizer.VocabPath, opts...)
	if err != nil {
		return nil, nil, err
	}

	eng, err := engine.New(vec, feat)
	if err != nil {
		vec.Close()
		return nil, nil, err
	}
	closeFn := func() {
		if err := vec.Close(); err != nil {
			slog.Warn("vectorizer close failed", "error", err)
		}
	}
	return eng, closeFn, nil
}

func buildOutput(cfg config.Config) (output.Output, error) {
	var outs []output.Output
	if cfg.Output.Format == "stdout" || cfg.Output.Format == "both" {
		outs = append(outs, stdout.New(cfg.Output.Pretty))
	}
	if cfg.Output.Format == "file" || cfg.Output.Format == "both" {
		f, err := file.New(cfg.Output.Path,
			file.WithMaxSize(cfg.Output.MaxSize),
			file.WithMaxBackups(cfg.Output.MaxBackups),
		)
		if err != nil {
			return nil, err
		}
		outs = append(outs, f)
	}
	if len(outs) == 1 {
		return outs[0], nil
	}
	return multi.New(outs...), nil
}
