package engine

import (
	"context"
	"os"
	"path/filepath"
	"sync"
)

// StubRunner is a Runner for development and tests that writes canned
// result files instead of invoking a real engine binary.
type StubRunner struct {
	// FirstPass is the result payload for invocations without a --bbox
	// argument (the layout pass).
	FirstPass []byte
	// Grounded maps a bbox argument to the payload of the grounded pass
	// restricted to that box. Unlisted boxes yield an empty list.
	Grounded map[string][]byte
	// Err, when set, makes every invocation fail.
	Err error

	mu    sync.Mutex
	calls [][]string
}

// NewStubRunner creates a stub whose layout pass returns no blocks.
func NewStubRunner() *StubRunner {
	return &StubRunner{
		FirstPass: []byte("[]"),
		Grounded:  make(map[string][]byte),
	}
}

// Run records the invocation and writes the canned payload to
// result.json inside outputDir.
func (s *StubRunner) Run(_ context.Context, image, outputDir string, extraArgs []string) (string, error) {
	s.mu.Lock()
	call := append([]string{image, "--output", outputDir}, extraArgs...)
	s.calls = append(s.calls, call)
	s.mu.Unlock()

	if s.Err != nil {
		return "", s.Err
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", err
	}

	payload := s.FirstPass
	if bbox, ok := bboxArg(extraArgs); ok {
		payload = s.Grounded[bbox]
		if payload == nil {
			payload = []byte("[]")
		}
	}

	path := filepath.Join(outputDir, "result.json")
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// Calls returns the recorded invocations in order.
func (s *StubRunner) Calls() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]string, len(s.calls))
	copy(out, s.calls)
	return out
}

func bboxArg(args []string) (string, bool) {
	for i, a := range args {
		if a == "--bbox" && i+1 < len(args) {
			return args[i+1], true
		}
	}
	return "", false
}
