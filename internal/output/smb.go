package output

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/hirochachacha/go-smb2"
	"github.com/mkessler/ocrflow/internal/config"
	"github.com/mkessler/ocrflow/internal/jobs"
)

// SMBHandler uploads result bundles to a SMB/CIFS network share.
type SMBHandler struct {
	server    string
	share     string
	username  string
	password  string
	directory string
}

// NewSMBHandler creates a new SMB output handler.
func NewSMBHandler(cfg config.SMBConfig) *SMBHandler {
	password := ""
	if cfg.PasswordFile != "" {
		data, err := os.ReadFile(cfg.PasswordFile)
		if err == nil {
			password = strings.TrimSpace(string(data))
		}
	}

	return &SMBHandler{
		server:    cfg.Server,
		share:     cfg.Share,
		username:  cfg.Username,
		password:  password,
		directory: cfg.Directory,
	}
}

func (h *SMBHandler) Name() string { return "smb" }

func (h *SMBHandler) Available() bool {
	return h.server != "" && h.share != ""
}

// Send uploads the merged document and its artifacts to the SMB share.
func (h *SMBHandler) Send(ctx context.Context, doc *jobs.Document) error {
	server := strings.TrimPrefix(h.server, "//")
	if !strings.Contains(server, ":") {
		server = server + ":445"
	}

	conn, err := net.DialTimeout("tcp", server, 10*time.Second)
	if err != nil {
		return fmt.Errorf("SMB connect: %w", err)
	}
	defer conn.Close()

	d := &smb2.Dialer{
		Initiator: &smb2.NTLMInitiator{
			User:     h.username,
			Password: h.password,
		},
	}

	session, err := d.Dial(conn)
	if err != nil {
		return fmt.Errorf("SMB authenticate: %w", err)
	}
	defer session.Logoff()

	share, err := session.Mount(h.share)
	if err != nil {
		return fmt.Errorf("SMB mount share: %w", err)
	}
	defer share.Umount()

	if h.directory != "" {
		share.MkdirAll(h.directory, 0o755)
	}

	if err := h.upload(share, doc.Filename, doc.Reader); err != nil {
		return err
	}

	for _, a := range doc.Artifacts {
		f, err := os.Open(a.Path)
		if err != nil {
			return fmt.Errorf("open artifact %s: %w", a.Filename, err)
		}
		err = h.upload(share, a.Filename, f)
		f.Close()
		if err != nil {
			return err
		}
	}

	return nil
}

func (h *SMBHandler) upload(share *smb2.Share, filename string, r io.Reader) error {
	path := filename
	if h.directory != "" {
		path = h.directory + "/" + filename
	}

	f, err := share.Create(path)
	if err != nil {
		return fmt.Errorf("SMB create file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("SMB write: %w", err)
	}

	return nil
}
