package output

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mkessler/ocrflow/internal/config"
	"github.com/mkessler/ocrflow/internal/jobs"
)

// ConsumeHandler places the merged document in a folder watched by a
// downstream system, which imports new files automatically.
type ConsumeHandler struct {
	consumePath string
}

// NewConsumeHandler creates a new consume folder output handler.
func NewConsumeHandler(cfg config.ConsumeConfig) *ConsumeHandler {
	return &ConsumeHandler{
		consumePath: cfg.Path,
	}
}

func (h *ConsumeHandler) Name() string { return "consume" }

func (h *ConsumeHandler) Available() bool {
	if h.consumePath == "" {
		return false
	}
	_, err := os.Stat(h.consumePath)
	return err == nil
}

// Send places the merged document in the consume folder. Artifacts stay
// behind: the downstream importer only understands the JSON document.
func (h *ConsumeHandler) Send(_ context.Context, doc *jobs.Document) error {
	if err := os.MkdirAll(h.consumePath, 0o755); err != nil {
		return fmt.Errorf("create consume directory: %w", err)
	}

	targetPath := filepath.Join(h.consumePath, doc.Filename)

	f, err := os.Create(targetPath)
	if err != nil {
		return fmt.Errorf("create file in consume folder: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, doc.Reader); err != nil {
		return fmt.Errorf("write to consume folder: %w", err)
	}

	return nil
}
