package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/mkessler/ocrflow/internal/config"
	"github.com/mkessler/ocrflow/internal/engine"
	"github.com/mkessler/ocrflow/internal/jobs"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": "0.1.0",
	})
}

// Server status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	jobList := s.jobQueue.List()

	activeJobs := 0
	for _, j := range jobList {
		switch j.Snapshot().Status {
		case jobs.StatusRunning, jobs.StatusMerging:
			activeJobs++
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"version":     "0.1.0",
		"engine":      engine.Detect(s.cfg.Engine.Binary),
		"active_jobs": activeJobs,
		"total_jobs":  len(jobList),
	})
}

// OCR job operations
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req jobs.OCRRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Image == "" {
		writeError(w, http.StatusBadRequest, "image is required")
		return
	}
	if _, err := os.Stat(req.Image); err != nil {
		writeError(w, http.StatusBadRequest, "image not found: "+req.Image)
		return
	}

	profile := req.Profile
	if profile == "" {
		profile = "standard"
	}

	if _, ok := s.profiles.Get(profile); !ok {
		writeError(w, http.StatusBadRequest, "unknown profile: "+profile)
		return
	}

	outputCfg := jobs.OutputConfig{}
	if req.Output != nil {
		outputCfg = *req.Output
	}

	job := jobs.NewJob(req.Image, req.OutputDir, profile, outputCfg)
	job.FirstPassArgs = req.FirstPassArgs
	if job.OutputDir == "" {
		job.OutputDir = filepath.Join(os.TempDir(), "ocrflow", job.ID)
	}

	if err := s.jobQueue.Submit(job); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	slog.Info("ocr job submitted via API", "job_id", job.ID, "image", job.Image, "profile", profile)
	writeJSON(w, http.StatusAccepted, job.Snapshot())
}

// Jobs are serialized from snapshots: the worker goroutine mutates the
// originals while these handlers encode them.
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobList := s.jobQueue.List()
	snaps := make([]*jobs.Job, 0, len(jobList))
	for _, j := range jobList {
		snaps = append(snaps, j.Snapshot())
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": snaps})
}

func (s *Server) handleGetJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job, ok := s.jobQueue.Get(jobID)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if err := s.jobQueue.Cancel(jobID); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job, ok := s.jobQueue.Get(jobID)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	snap := job.Snapshot()
	if snap.Status != jobs.StatusCompleted || snap.DocumentPath == "" {
		writeError(w, http.StatusConflict, "job has no merged document yet")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	http.ServeFile(w, r, snap.DocumentPath)
}

func (s *Server) handleSendOutput(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job, ok := s.jobQueue.Get(jobID)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	snap := job.Snapshot()
	if snap.Status != jobs.StatusCompleted || snap.DocumentPath == "" {
		writeError(w, http.StatusConflict, "job has no merged document yet")
		return
	}

	var req struct {
		Target string `json:"target"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	f, err := os.Open(snap.DocumentPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "open document: "+err.Error())
		return
	}
	defer f.Close()

	stat, _ := f.Stat()
	doc := &jobs.Document{
		Filename: filepath.Base(snap.DocumentPath),
		Reader:   f,
		Size:     stat.Size(),
	}

	if err := s.outputs.Send(r.Context(), req.Target, doc); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

// Output targets
func (s *Server) handleListOutputs(w http.ResponseWriter, r *http.Request) {
	outputs := s.outputs.ListTargets()
	writeJSON(w, http.StatusOK, map[string]interface{}{"outputs": outputs})
}

// Profiles
func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles := s.profiles.List()
	writeJSON(w, http.StatusOK, map[string]interface{}{"profiles": profiles})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	profile, ok := s.profiles.Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, "profile not found")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var profile config.Profile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Stored under the slug form, same key the GET/PUT routes use.
	name := config.Slug(profile.Profile.Name)
	if name == "" {
		writeError(w, http.StatusBadRequest, "profile name is required")
		return
	}

	s.profiles.Set(name, &profile)
	writeJSON(w, http.StatusCreated, profile)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, ok := s.profiles.Get(name); !ok {
		writeError(w, http.StatusNotFound, "profile not found")
		return
	}

	var profile config.Profile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.profiles.Set(name, &profile)
	writeJSON(w, http.StatusOK, profile)
}
