package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mkessler/ocrflow/internal/config"
	"github.com/mkessler/ocrflow/internal/document"
	"github.com/mkessler/ocrflow/internal/jobs"
)

// processedDirName is where handled inbox files are moved so they are
// not queued twice.
const processedDirName = "processed"

var imageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".tif":  true,
	".tiff": true,
	".bmp":  true,
	".webp": true,
}

// Watcher polls an inbox directory and submits an OCR job for every new
// image file. A file is only picked up once its size has stopped
// changing between two polls, so half-copied files are left alone.
type Watcher struct {
	dir          string
	outputDir    string
	pollInterval time.Duration
	profile      string
	output       string
	queue        *jobs.Queue

	sizes map[string]int64
}

// New creates a watcher for the configured inbox directory.
func New(cfg config.WatchConfig, queue *jobs.Queue) *Watcher {
	pollInterval := cfg.PollInterval.Duration()
	if pollInterval == 0 {
		pollInterval = 2 * time.Second
	}

	outputDir := cfg.OutputDirectory
	if outputDir == "" {
		outputDir = filepath.Join(cfg.Directory, "results")
	}

	return &Watcher{
		dir:          cfg.Directory,
		outputDir:    outputDir,
		pollInterval: pollInterval,
		profile:      cfg.Profile,
		output:       cfg.Output,
		queue:        queue,
		sizes:        make(map[string]int64),
	}
}

// Start begins polling the inbox. Blocks until the context is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	slog.Info("watcher started",
		"dir", w.dir,
		"poll_interval", w.pollInterval,
		"profile", w.profile)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("watcher stopped")
			return
		case <-ticker.C:
			w.poll()
		}
	}
}

func (w *Watcher) poll() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		slog.Warn("watcher cannot read inbox", "dir", w.dir, "error", err)
		return
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !imageExts[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}

		path := filepath.Join(w.dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			continue
		}

		prev, seen := w.sizes[path]
		if !seen || prev != info.Size() {
			w.sizes[path] = info.Size()
			continue
		}

		delete(w.sizes, path)
		w.submit(path)
	}
}

func (w *Watcher) submit(path string) {
	// Move aside first so a failed submit never loops on the same file.
	processedDir := filepath.Join(w.dir, processedDirName)
	if err := os.MkdirAll(processedDir, 0o755); err != nil {
		slog.Warn("watcher cannot create processed dir", "error", err)
		return
	}

	dest := filepath.Join(processedDir, filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		slog.Warn("watcher cannot move inbox file", "file", path, "error", err)
		return
	}

	outputDir := filepath.Join(w.outputDir, document.Stem(dest))
	job := jobs.NewJob(dest, outputDir, w.profile, jobs.OutputConfig{
		Target: w.output,
	})

	slog.Info("watcher submitting job", "image", dest, "profile", w.profile)
	if err := w.queue.Submit(job); err != nil {
		slog.Error("watcher submit failed", "image", dest, "error", err)
	}
}
