package pipeline

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// artifactExts are the first-pass side outputs copied next to the
// merged document: the rendered markdown and the preview image.
var artifactExts = []string{".md", ".jpg"}

// copyArtifacts copies `<stem><ext>` from the first-pass directory into
// the output directory for every artifact extension. A missing artifact
// is skipped silently; a failing copy aborts.
func copyArtifacts(firstPassDir, outputDir, stem string) ([]string, error) {
	var copied []string

	for _, ext := range artifactExts {
		src := filepath.Join(firstPassDir, stem+ext)
		if _, err := os.Stat(src); err != nil {
			continue
		}

		dst := filepath.Join(outputDir, stem+ext)
		if err := copyFile(src, dst); err != nil {
			return nil, fmt.Errorf("copy %s: %w", src, err)
		}
		copied = append(copied, dst)
	}

	return copied, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
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
