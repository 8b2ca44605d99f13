package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mkessler/ocrflow/internal/config"
	"github.com/mkessler/ocrflow/internal/document"
	"github.com/mkessler/ocrflow/internal/engine"
	"github.com/mkessler/ocrflow/internal/jobs"
)

// FirstPassDirName is the working directory of the layout pass,
// created inside the job's output directory and left in place after
// the run.
const FirstPassDirName = "first_pass"

// Pipeline orchestrates the two OCR passes and the merge of picture
// text into the layout result.
type Pipeline struct {
	runner        engine.Runner
	store         document.Store
	firstPassArgs []string
	pictureMode   string
	tempDirName   string
}

// New creates a pipeline around the given engine runner and document store.
func New(runner engine.Runner, store document.Store, cfg config.EngineConfig) *Pipeline {
	firstPass := cfg.FirstPassArgs
	if len(firstPass) == 0 {
		firstPass = []string{"--mode", "layout_all"}
	}
	pictureMode := cfg.PictureMode
	if pictureMode == "" {
		pictureMode = "prompt_grounding_ocr"
	}
	tempDirName := cfg.PictureTempDir
	if tempDirName == "" {
		tempDirName = "_picture_temp"
	}
	return &Pipeline{
		runner:        runner,
		store:         store,
		firstPassArgs: firstPass,
		pictureMode:   pictureMode,
		tempDirName:   tempDirName,
	}
}

// Result summarizes a completed run.
type Result struct {
	DocumentPath string
	Artifacts    []string
	Blocks       int
	Pictures     int
	Children     int
}

// Process runs the layout pass for the job's image, re-OCRs every
// picture block, and writes the merged document plus copied artifacts
// into the job's output directory. Any engine failure or unreadable
// result aborts the run.
func (p *Pipeline) Process(ctx context.Context, job *jobs.Job, profile *config.Profile) (*Result, error) {
	image := job.Image
	outputDir := job.OutputDir

	firstPassArgs := p.firstPassArgs
	if profile != nil && len(profile.OCR.FirstPassArgs) > 0 {
		firstPassArgs = profile.OCR.FirstPassArgs
	}
	// nil means unset; an explicit empty slice runs the pass bare.
	if job.FirstPassArgs != nil {
		firstPassArgs = job.FirstPassArgs
	}

	slog.Info("processing job", "job_id", job.ID, "image", image)

	job.SendProgress(jobs.ProgressUpdate{
		Type:     "processing",
		Progress: 10,
		Message:  "Running layout pass...",
	})

	firstPassDir := filepath.Join(outputDir, FirstPassDirName)
	resultPath, err := p.runner.Run(ctx, image, firstPassDir, firstPassArgs)
	if err != nil {
		return nil, fmt.Errorf("layout pass: %w", err)
	}

	blocks, err := p.store.LoadBlocks(resultPath)
	if err != nil {
		return nil, fmt.Errorf("layout result: %w", err)
	}

	res := &Result{Blocks: len(blocks)}

	picturePass := profile == nil || profile.OCR.PicturePass
	if picturePass {
		job.SendProgress(jobs.ProgressUpdate{
			Type:     "processing",
			Progress: 40,
			Message:  "Re-reading picture blocks...",
		})

		if err := p.attachPictureChildren(ctx, image, blocks, job, res); err != nil {
			return nil, err
		}
	}

	job.SendProgress(jobs.ProgressUpdate{
		Type:     "processing",
		Progress: 80,
		Message:  "Writing merged document...",
	})

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	stem := document.Stem(image)
	res.DocumentPath = filepath.Join(outputDir, stem+".json")
	if err := p.store.Save(blocks, res.DocumentPath); err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}

	artifacts, err := copyArtifacts(firstPassDir, outputDir, stem)
	if err != nil {
		return nil, fmt.Errorf("copy artifacts: %w", err)
	}
	res.Artifacts = artifacts

	job.SendProgress(jobs.ProgressUpdate{
		Type:     "processing",
		Progress: 100,
		Message:  "Document ready",
	})

	slog.Info("document processed",
		"job_id", job.ID,
		"blocks", res.Blocks,
		"pictures", res.Pictures,
		"children", res.Children,
		"document", res.DocumentPath)

	return res, nil
}
