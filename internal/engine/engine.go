package engine

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/mkessler/ocrflow/internal/config"
)

// Runner abstracts the external OCR executable so it can be replaced
// with a stub in tests. Run invokes the engine against image, writing
// into outputDir, and returns the path of the result file.
type Runner interface {
	Run(ctx context.Context, image, outputDir string, extraArgs []string) (string, error)
}

// DotsRunner invokes the dots.ocr command line program.
type DotsRunner struct {
	binary     string
	resultName string
}

// NewDotsRunner creates a runner for the configured engine binary.
func NewDotsRunner(cfg config.EngineConfig) *DotsRunner {
	binary := cfg.Binary
	if binary == "" {
		binary = "dots.ocr"
	}
	resultName := cfg.ResultFilename
	if resultName == "" {
		resultName = "result.json"
	}
	return &DotsRunner{binary: binary, resultName: resultName}
}

// Run executes `<binary> <image> --output <outputDir> [extraArgs...]`.
// The output directory is created first; the engine writes the result
// file into it. A non-zero exit is returned as an error with the
// engine's stderr forwarded to ours.
func (r *DotsRunner) Run(ctx context.Context, image, outputDir string, extraArgs []string) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	args := append([]string{image, "--output", outputDir}, extraArgs...)

	cmd := exec.CommandContext(ctx, r.binary, args...)
	cmd.Stderr = os.Stderr

	slog.Debug("running ocr engine", "binary", r.binary, "args", args)
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s %s: %w", r.binary, strings.Join(args, " "), err)
	}

	return filepath.Join(outputDir, r.resultName), nil
}

// Info describes the detected state of the engine binary.
type Info struct {
	Available bool   `json:"available"`
	Path      string `json:"path,omitempty"`
	Version   string `json:"version,omitempty"`
}

// Detect reports whether the engine binary is on PATH and, if so, its
// version string. Detection failures are not errors; the service can
// run with a stub or an engine installed later.
func Detect(binary string) Info {
	if binary == "" {
		binary = "dots.ocr"
	}

	path, err := exec.LookPath(binary)
	if err != nil {
		return Info{}
	}

	info := Info{Available: true, Path: path}

	var out bytes.Buffer
	cmd := exec.Command(path, "--version")
	cmd.Stdout = &out
	if err := cmd.Run(); err == nil {
		info.Version = strings.TrimSpace(out.String())
	}

	return info
}
