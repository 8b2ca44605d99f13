package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mkessler/ocrflow/internal/config"
	"github.com/mkessler/ocrflow/internal/jobs"
	"github.com/mkessler/ocrflow/internal/output"
	"github.com/mkessler/ocrflow/internal/pipeline"
)

// Server is the HTTP API server.
type Server struct {
	cfg      *config.Config
	router   chi.Router
	jobQueue *jobs.Queue
	profiles *config.ProfileStore
	pipeline *pipeline.Pipeline
	outputs  *output.Manager
	wsHub    *ProgressHub
	server   *http.Server
}

// NewServer creates a new API server.
func NewServer(cfg *config.Config, q *jobs.Queue, profiles *config.ProfileStore, pl *pipeline.Pipeline, outputs *output.Manager) *Server {
	s := &Server{
		cfg:      cfg,
		jobQueue: q,
		profiles: profiles,
		pipeline: pl,
		outputs:  outputs,
		wsHub:    NewProgressHub(),
	}

	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(CORSMiddleware())

	// Health check (no auth required)
	r.Get("/api/v1/health", s.handleHealth)

	// API routes (with auth)
	r.Group(func(r chi.Router) {
		if s.cfg.Server.Auth.Enabled {
			r.Use(AuthMiddleware(s.cfg.Server.Auth))
		}

		// OCR jobs
		r.Post("/api/v1/ocr", s.handleSubmit)
		r.Get("/api/v1/ocr", s.handleListJobs)
		r.Get("/api/v1/ocr/{jobID}", s.handleGetJobStatus)
		r.Delete("/api/v1/ocr/{jobID}", s.handleCancelJob)
		r.Get("/api/v1/ocr/{jobID}/document", s.handleGetDocument)
		r.Post("/api/v1/ocr/{jobID}/send", s.handleSendOutput)

		// Output targets
		r.Get("/api/v1/outputs", s.handleListOutputs)

		// Profiles
		r.Get("/api/v1/profiles", s.handleListProfiles)
		r.Get("/api/v1/profiles/{name}", s.handleGetProfile)
		r.Post("/api/v1/profiles", s.handleCreateProfile)
		r.Put("/api/v1/profiles/{name}", s.handleUpdateProfile)

		// System
		r.Get("/api/v1/status", s.handleStatus)

		// WebSocket
		r.Get("/api/v1/ws", s.handleWebSocket)
	})

	s.router = r
}

// Start begins listening for HTTP connections.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start job worker
	go s.jobWorker()

	slog.Info("API server starting", "addr", addr)

	if s.cfg.Server.TLS.Enabled {
		return s.server.ListenAndServeTLS(
			s.cfg.Server.TLS.CertFile,
			s.cfg.Server.TLS.KeyFile,
		)
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("API server shutting down")
	return s.server.Shutdown(ctx)
}

// jobWorker processes jobs from the queue one at a time. The grounded
// pass reuses a fixed-name temp directory, so runs must not overlap.
func (s *Server) jobWorker() {
	for job := range s.jobQueue.Pending() {
		s.processJob(job)
	}
}

func (s *Server) processJob(job *jobs.Job) {
	ctx, cancel := context.WithCancel(context.Background())
	job.SetCancel(cancel)
	defer cancel()

	slog.Info("processing job", "job_id", job.ID, "image", job.Image, "profile", job.Profile)

	profile, ok := s.profiles.Get(job.Profile)
	if !ok {
		job.SetError(fmt.Errorf("profile %q not found", job.Profile))
		s.broadcastJobUpdate(job)
		return
	}

	job.SetStatus(jobs.StatusRunning)
	s.broadcastJobUpdate(job)

	res, err := s.pipeline.Process(ctx, job, profile)
	if err != nil {
		job.SetError(fmt.Errorf("processing failed: %w", err))
		s.broadcastJobUpdate(job)
		return
	}

	job.SetResult(res.DocumentPath, res.Blocks, res.Pictures, res.Children)

	// Send to output
	target := job.Output.Target
	if target == "" {
		target = profile.Output.DefaultTarget
	}
	if target == "" {
		target = "filesystem"
	}

	doc, closeDoc, err := bundleFromResult(res)
	if err != nil {
		job.SetError(fmt.Errorf("open result: %w", err))
		s.broadcastJobUpdate(job)
		return
	}
	err = s.outputs.Send(ctx, target, doc)
	closeDoc()
	if err != nil {
		job.SetError(fmt.Errorf("output failed: %w", err))
		s.broadcastJobUpdate(job)
		return
	}

	// Done
	job.SetStatus(jobs.StatusCompleted)
	job.SendProgress(jobs.ProgressUpdate{
		Type:    "completed",
		Message: "Document merged and delivered",
	})
	s.broadcastJobUpdate(job)
	slog.Info("job completed", "job_id", job.ID, "blocks", res.Blocks, "pictures", res.Pictures)
}

// bundleFromResult opens the merged document for delivery together with
// its artifacts. The returned func closes the document file.
func bundleFromResult(res *pipeline.Result) (*jobs.Document, func(), error) {
	f, err := os.Open(res.DocumentPath)
	if err != nil {
		return nil, nil, err
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}

	artifacts := make([]jobs.Artifact, 0, len(res.Artifacts))
	for _, p := range res.Artifacts {
		artifacts = append(artifacts, jobs.Artifact{
			Filename: filepath.Base(p),
			Path:     p,
		})
	}

	doc := &jobs.Document{
		Filename:  filepath.Base(res.DocumentPath),
		Reader:    f,
		Size:      stat.Size(),
		Artifacts: artifacts,
	}
	return doc, func() { f.Close() }, nil
}

func (s *Server) broadcastJobUpdate(job *jobs.Job) {
	snap := job.Snapshot()
	s.wsHub.Broadcast(jobs.ProgressUpdate{
		Type:    "job_update",
		JobID:   snap.ID,
		Status:  string(snap.Status),
		Message: string(snap.Status),
	})
}
