package jobs

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the current state of an OCR job.
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusMerging   JobStatus = "merging"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled"
)

// Job represents one two-pass OCR run over a single image.
//
// FirstPassArgs distinguishes nil from empty: nil means the profile or
// pipeline default applies, an empty non-nil slice means run the first
// pass with no extra arguments at all.
type Job struct {
	ID            string       `json:"id"`
	Status        JobStatus    `json:"status"`
	Image         string       `json:"image"`
	OutputDir     string       `json:"output_dir"`
	Profile       string       `json:"profile"`
	FirstPassArgs []string     `json:"first_pass_args,omitempty"`
	Output        OutputConfig `json:"output"`
	DocumentPath  string       `json:"document_path,omitempty"`
	Blocks        int          `json:"blocks"`
	Pictures      int          `json:"pictures"`
	Children      int          `json:"children"`
	Error         string       `json:"error,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`

	mu       sync.RWMutex
	cancel   context.CancelFunc
	progress chan ProgressUpdate
}

// OutputConfig defines where to send the finished document.
type OutputConfig struct {
	Target   string `json:"target"`
	Filename string `json:"filename,omitempty"`
}

// OCRRequest represents an incoming OCR request from the API.
type OCRRequest struct {
	Image         string        `json:"image"`
	OutputDir     string        `json:"output_dir,omitempty"`
	Profile       string        `json:"profile,omitempty"`
	FirstPassArgs []string      `json:"first_pass_args,omitempty"`
	Output        *OutputConfig `json:"output,omitempty"`
}

// ProgressUpdate is sent via WebSocket to report job progress.
type ProgressUpdate struct {
	Type     string `json:"type"`
	JobID    string `json:"job_id"`
	Status   string `json:"status,omitempty"`
	Block    int    `json:"block,omitempty"`
	Progress int    `json:"progress,omitempty"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Document represents a finished result bundle ready for output: the
// merged JSON document plus the copied first-pass artifacts.
type Document struct {
	Filename  string
	Title     string
	Reader    io.Reader
	Size      int64
	Artifacts []Artifact
}

// Artifact is a sibling output file (rendered markdown, preview image).
type Artifact struct {
	Filename string
	Path     string
}

// NewJob creates a new job with default values.
func NewJob(image, outputDir, profile string, output OutputConfig) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.New().String(),
		Status:    StatusPending,
		Image:     image,
		OutputDir: outputDir,
		Profile:   profile,
		Output:    output,
		CreatedAt: now,
		UpdatedAt: now,
		progress:  make(chan ProgressUpdate, 100),
	}
}

// SetStatus updates the job status thread-safely.
func (j *Job) SetStatus(status JobStatus) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.UpdatedAt = time.Now()
}

// SetError marks the job as failed with an error message.
func (j *Job) SetError(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = StatusFailed
	j.Error = err.Error()
	j.UpdatedAt = time.Now()
}

// SetResult records the merged document path and block statistics.
func (j *Job) SetResult(documentPath string, blocks, pictures, children int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.DocumentPath = documentPath
	j.Blocks = blocks
	j.Pictures = pictures
	j.Children = children
	j.UpdatedAt = time.Now()
}

// SetCancel stores the cancel function for the job context.
func (j *Job) SetCancel(cancel context.CancelFunc) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cancel = cancel
}

// Cancel cancels the job.
func (j *Job) Cancel() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cancel != nil {
		j.cancel()
	}
	j.Status = StatusCancelled
	j.UpdatedAt = time.Now()
}

// Snapshot returns a copy of the job's exported state, safe to
// serialize while the worker keeps mutating the original.
func (j *Job) Snapshot() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return &Job{
		ID:            j.ID,
		Status:        j.Status,
		Image:         j.Image,
		OutputDir:     j.OutputDir,
		Profile:       j.Profile,
		FirstPassArgs: j.FirstPassArgs,
		Output:        j.Output,
		DocumentPath:  j.DocumentPath,
		Blocks:        j.Blocks,
		Pictures:      j.Pictures,
		Children:      j.Children,
		Error:         j.Error,
		CreatedAt:     j.CreatedAt,
		UpdatedAt:     j.UpdatedAt,
	}
}

// SendProgress sends a progress update for this job.
func (j *Job) SendProgress(update ProgressUpdate) {
	update.JobID = j.ID
	select {
	case j.progress <- update:
	default:
		// Channel full, drop update
	}
}

// ProgressChan returns the progress channel for this job.
func (j *Job) ProgressChan() <-chan ProgressUpdate {
	return j.progress
}
