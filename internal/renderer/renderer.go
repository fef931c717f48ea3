// Package renderer invokes the out-of-process GIF generator.
//
// The renderer contract is opaque and single-shot: given an absolute source
// image path it writes the derived artifact beside the input under a fixed
// naming convention and exits zero, or exits non-zero with diagnostics on
// stderr. The process is killed if the caller's context is cancelled; the
// catalog is never touched from here.
package renderer

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// OutputSuffix is the fixed artifact suffix the generator appends to the
// source basename. Load-bearing: artifacts are located by recomputing this
// name, never via a stored path index.
const OutputSuffix = "_1px_scroll.gif"

// Service runs the external generator process.
type Service struct {
	pythonBinary  string
	scriptPath    string
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewService creates a renderer service for the given interpreter and script.
func NewService(pythonBinary, scriptPath string) *Service {
	if pythonBinary == "" {
		pythonBinary = "python3"
	}
	return &Service{pythonBinary: pythonBinary, scriptPath: scriptPath}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	s.commandRunner = runner
}

// OutputPath returns the deterministic artifact path for a source image:
// extension stripped, OutputSuffix appended, same directory.
func OutputPath(inputPath string) string {
	base := strings.TrimSuffix(inputPath, filepath.Ext(inputPath))
	return base + OutputSuffix
}

// Render runs the generator against the source image and returns the
// deterministic output path on success. The file is not re-verified here: a
// zero exit without the artifact is a renderer contract violation that
// surfaces at retrieval time, not as a pipeline error. On non-zero exit the
// captured stderr is included in the returned error.
func (s *Service) Render(ctx context.Context, inputPath string) (string, error) {
	absPath, err := filepath.Abs(inputPath)
	if err != nil {
		return "", fmt.Errorf("resolve input path: %w", err)
	}

	if err := s.run(ctx, s.pythonBinary, s.scriptPath, absPath); err != nil {
		return "", err
	}
	return OutputPath(absPath), nil
}

func (s *Service) run(ctx context.Context, name string, args ...string) error {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, name, args...)
	}

	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		diagnostics := strings.TrimSpace(stderr.String())
		if diagnostics != "" {
			return fmt.Errorf("%s: %w: %s", name, err, diagnostics)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
