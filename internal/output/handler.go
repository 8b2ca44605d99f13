package output

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mkessler/ocrflow/internal/config"
	"github.com/mkessler/ocrflow/internal/jobs"
)

// Handler is the interface for all output targets.
type Handler interface {
	Name() string
	Send(ctx context.Context, doc *jobs.Document) error
	Available() bool
}

// Target describes a configured output target.
type Target struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Enabled   bool   `json:"enabled"`
	Available bool   `json:"available"`
}

// Manager routes result bundles to the appropriate output handler.
type Manager struct {
	handlers map[string]Handler
}

// NewManager creates a new output manager from the server configuration.
func NewManager(cfg config.OutputConfig) *Manager {
	m := &Manager{
		handlers: make(map[string]Handler),
	}

	if cfg.SMB.Enabled {
		m.handlers["smb"] = NewSMBHandler(cfg.SMB)
	}

	if cfg.Consume.Enabled {
		m.handlers["consume"] = NewConsumeHandler(cfg.Consume)
	}

	if cfg.Webhook.Enabled {
		m.handlers["webhook"] = NewWebhookHandler(cfg.Webhook)
	}

	if cfg.Email.Enabled {
		m.handlers["email"] = NewEmailHandler(cfg.Email)
	}

	// Filesystem is always available
	dir := cfg.Filesystem.Directory
	if dir == "" {
		dir = "/var/lib/ocrflow/documents"
	}
	m.handlers["filesystem"] = NewFilesystemHandler(dir)

	slog.Info("output handlers initialized", "count", len(m.handlers))
	return m
}

// Send routes a result bundle to the specified output target.
func (m *Manager) Send(ctx context.Context, target string, doc *jobs.Document) error {
	handler, ok := m.handlers[target]
	if !ok {
		return fmt.Errorf("unknown output target: %s", target)
	}

	slog.Info("sending document to output",
		"target", target,
		"filename", doc.Filename,
		"size", doc.Size,
		"artifacts", len(doc.Artifacts))

	if err := handler.Send(ctx, doc); err != nil {
		return fmt.Errorf("output %s: %w", target, err)
	}

	slog.Info("document sent successfully", "target", target)
	return nil
}

// ListTargets returns all configured output targets.
func (m *Manager) ListTargets() []Target {
	targets := make([]Target, 0, len(m.handlers))
	for name, h := range m.handlers {
		targets = append(targets, Target{
			Name:      name,
			Type:      name,
			Enabled:   true,
			Available: h.Available(),
		})
	}
	return targets
}
