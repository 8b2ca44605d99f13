package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mkessler/ocrflow/internal/document"
	"github.com/mkessler/ocrflow/internal/jobs"
)

// attachPictureChildren runs the grounded pass for every picture block
// and attaches the recognized text regions in place. Blocks without the
// picture category or without a bounding box pass through unchanged,
// keeping their original order.
//
// The grounded pass reuses one fixed-name temp directory next to the
// image, so picture blocks must be processed one at a time; a second
// in-flight invocation would clobber the first one's result.
func (p *Pipeline) attachPictureChildren(ctx context.Context, image string, blocks []document.Block, job *jobs.Job, res *Result) error {
	tempDir := filepath.Join(filepath.Dir(image), p.tempDirName)

	for i, block := range blocks {
		if block.Category() != document.CategoryPicture {
			continue
		}
		bbox, ok := block.BBoxArg()
		if !ok {
			continue
		}

		res.Pictures++
		job.SendProgress(jobs.ProgressUpdate{
			Type:    "picture",
			Block:   i,
			Message: fmt.Sprintf("OCR inside picture block %d", i),
		})

		children, err := p.groundedPass(ctx, image, tempDir, bbox)
		if err != nil {
			return fmt.Errorf("picture block %d: %w", i, err)
		}

		if len(children) > 0 {
			kids := make([]document.PictureChild, len(children))
			for j, c := range children {
				kids[j] = document.ChildFrom(c)
			}
			block.SetChildren(kids)
			res.Children += len(kids)
		}
	}

	return nil
}

// groundedPass runs one bbox-restricted invocation in the shared temp
// directory and removes it afterwards. Cleanup is best-effort: a
// directory that cannot be removed is logged and ignored.
func (p *Pipeline) groundedPass(ctx context.Context, image, tempDir, bbox string) ([]document.Block, error) {
	defer func() {
		if err := os.RemoveAll(tempDir); err != nil {
			slog.Warn("failed to remove picture temp dir", "dir", tempDir, "error", err)
		}
	}()

	resultPath, err := p.runner.Run(ctx, image, tempDir, []string{"--mode", p.pictureMode, "--bbox", bbox})
	if err != nil {
		return nil, err
	}

	return p.store.LoadBlocks(resultPath)
}
