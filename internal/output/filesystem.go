package output

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mkessler/ocrflow/internal/jobs"
)

// FilesystemHandler saves result bundles to the local filesystem.
type FilesystemHandler struct {
	directory string
}

// NewFilesystemHandler creates a new filesystem output handler.
func NewFilesystemHandler(dir string) *FilesystemHandler {
	return &FilesystemHandler{directory: dir}
}

func (h *FilesystemHandler) Name() string { return "filesystem" }

func (h *FilesystemHandler) Available() bool {
	return h.directory != ""
}

// Send saves the merged document and its artifacts to the local filesystem.
func (h *FilesystemHandler) Send(_ context.Context, doc *jobs.Document) error {
	if err := os.MkdirAll(h.directory, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	path := filepath.Join(h.directory, doc.Filename)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, doc.Reader); err != nil {
		return fmt.Errorf("write file: %w", err)
	}

	for _, a := range doc.Artifacts {
		if err := copyArtifact(a, filepath.Join(h.directory, a.Filename)); err != nil {
			return fmt.Errorf("copy artifact %s: %w", a.Filename, err)
		}
	}

	return nil
}

func copyArtifact(a jobs.Artifact, dst string) error {
	in, err := os.Open(a.Path)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
