package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mkessler/ocrflow/internal/api"
	"github.com/mkessler/ocrflow/internal/config"
	"github.com/mkessler/ocrflow/internal/document"
	"github.com/mkessler/ocrflow/internal/engine"
	"github.com/mkessler/ocrflow/internal/jobs"
	"github.com/mkessler/ocrflow/internal/output"
	"github.com/mkessler/ocrflow/internal/pipeline"
	"github.com/mkessler/ocrflow/internal/watch"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "/etc/ocrflow/server.toml", "path to config file")
	serve := flag.Bool("serve", false, "run the HTTP service instead of a one-shot run")
	showVersion := flag.Bool("version", false, "show version and exit")
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Println("ocrflow", version)
		os.Exit(0)
	}

	if *serve {
		runServer(*configPath)
		return
	}

	if err := runOnce(*configPath, flag.Args()); err != nil {
		slog.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `ocrflow - two-pass layout OCR with picture text merge

Usage:
  %[1]s [options] <image> <output-dir> [--first-pass-args <args...>]
  %[1]s -serve [-config path]

The one-shot form runs a layout pass over <image>, re-reads every
picture block with a grounded pass, and writes the merged document to
<output-dir>/<stem>.json. Everything after --first-pass-args is passed
verbatim to the first engine invocation (default: --mode layout_all).

Options:
`, os.Args[0])
	flag.PrintDefaults()
}

// runOnce performs a single two-pass run for one image. The config file
// is optional here; defaults are used when it is absent.
func runOnce(configPath string, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		cfg = config.DefaultConfig()
		cfg.Logging.Format = "text"
	}
	setupLogging(cfg.Logging)

	positional, extra, hasExtra := splitFirstPassArgs(args)
	if len(positional) != 2 {
		usage()
		return fmt.Errorf("expected <image> and <output-dir> arguments")
	}
	image, outputDir := positional[0], positional[1]

	if _, err := os.Stat(image); err != nil {
		return fmt.Errorf("image not found: %s", image)
	}

	runner := engine.NewDotsRunner(cfg.Engine)
	pl := pipeline.New(runner, document.FileStore{}, cfg.Engine)

	job := jobs.NewJob(image, outputDir, "", jobs.OutputConfig{})
	if hasExtra {
		job.FirstPassArgs = extra
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := pl.Process(ctx, job, nil)
	if err != nil {
		return err
	}

	slog.Info("merged document written",
		"document", res.DocumentPath,
		"blocks", res.Blocks,
		"pictures", res.Pictures,
		"children", res.Children,
		"artifacts", len(res.Artifacts))
	return nil
}

// splitFirstPassArgs separates positional arguments from the verbatim
// remainder introduced by --first-pass-args.
func splitFirstPassArgs(args []string) (positional, extra []string, found bool) {
	for i, a := range args {
		if a == "--first-pass-args" {
			return args[:i], args[i+1:], true
		}
	}
	return args, nil, false
}

func runServer(configPath string) {
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	setupLogging(cfg.Logging)

	slog.Info("starting ocrflow", "version", version)

	jobQueue := jobs.NewQueue()

	profilesDir := filepath.Join(filepath.Dir(configPath), "profiles")
	profiles, err := config.NewProfileStore(profilesDir)
	if err != nil {
		slog.Warn("failed to load profiles from directory, using defaults", "dir", profilesDir, "error", err)
		profiles, _ = config.NewProfileStore("")
	}

	runner := engine.NewDotsRunner(cfg.Engine)
	pl := pipeline.New(runner, document.FileStore{}, cfg.Engine)
	outputs := output.NewManager(cfg.Output)

	if info := engine.Detect(cfg.Engine.Binary); info.Available {
		slog.Info("ocr engine detected", "path", info.Path, "version", info.Version)
	} else {
		slog.Warn("ocr engine not found on PATH, jobs will fail until it is installed",
			"binary", cfg.Engine.Binary)
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup hot-folder watcher if enabled
	if cfg.Watch.Enabled {
		w := watch.New(cfg.Watch, jobQueue)
		go w.Start(ctx)
	}

	// Create and start API server
	srv := api.NewServer(cfg, jobQueue, profiles, pl, outputs)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		slog.Info("shutdown signal received")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	if err := srv.Start(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func setupLogging(cfg config.LoggingConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
