// Package deps verifies the external tools the renderer shells out to.
package deps

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"gifshelf/internal/config"
)

// Requirement defines an external dependency gifshelf relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	// File requirements are checked with a stat instead of a PATH lookup.
	File bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Available   bool
	Detail      string
}

// RendererRequirements derives the renderer's external dependencies from
// configuration: the Python interpreter and the generator script.
func RendererRequirements(cfg *config.Config) []Requirement {
	return []Requirement{
		{
			Name:        "Python",
			Command:     cfg.Renderer.PythonBinary,
			Description: "Interpreter for the GIF generator",
		},
		{
			Name:        "GIF generator",
			Command:     cfg.Renderer.ScriptPath,
			Description: "Script that renders scroll GIFs",
			File:        true,
		},
	}
}

// Check evaluates the provided requirements and reports availability.
func Check(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
		}
		switch {
		case cmd == "":
			status.Detail = "not configured"
		case req.File:
			if info, err := os.Stat(cmd); err != nil {
				status.Detail = fmt.Sprintf("file %q not found", cmd)
			} else if info.IsDir() {
				status.Detail = fmt.Sprintf("%q is a directory", cmd)
			} else {
				status.Available = true
			}
		default:
			if _, err := exec.LookPath(cmd); err != nil {
				status.Detail = fmt.Sprintf("binary %q not found", cmd)
			} else {
				status.Available = true
			}
		}
		results = append(results, status)
	}
	return results
}
