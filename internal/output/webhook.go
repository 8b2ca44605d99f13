package output

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"

	"github.com/mkessler/ocrflow/internal/config"
	"github.com/mkessler/ocrflow/internal/jobs"
)

// WebhookHandler posts result bundles to an HTTP endpoint as a
// multipart form: the merged document under "document", artifacts under
// "artifact".
type WebhookHandler struct {
	url    string
	token  string
	client *http.Client
}

// NewWebhookHandler creates a new webhook output handler.
func NewWebhookHandler(cfg config.WebhookConfig) *WebhookHandler {
	return &WebhookHandler{
		url:    cfg.URL,
		token:  cfg.Token,
		client: &http.Client{},
	}
}

func (h *WebhookHandler) Name() string { return "webhook" }

func (h *WebhookHandler) Available() bool {
	return h.url != ""
}

// Send uploads the result bundle to the configured endpoint.
func (h *WebhookHandler) Send(ctx context.Context, doc *jobs.Document) error {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("document", doc.Filename)
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, doc.Reader); err != nil {
		return fmt.Errorf("copy document data: %w", err)
	}

	if doc.Title != "" {
		writer.WriteField("title", doc.Title)
	}

	for _, a := range doc.Artifacts {
		f, err := os.Open(a.Path)
		if err != nil {
			return fmt.Errorf("open artifact %s: %w", a.Filename, err)
		}
		part, err := writer.CreateFormFile("artifact", a.Filename)
		if err == nil {
			_, err = io.Copy(part, f)
		}
		f.Close()
		if err != nil {
			return fmt.Errorf("attach artifact %s: %w", a.Filename, err)
		}
	}

	writer.Close()

	req, err := http.NewRequestWithContext(ctx, "POST", h.url, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if h.token != "" {
		req.Header.Set("Authorization", "Token "+h.token)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("webhook error %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}
