package deps

import (
	"os"
	"path/filepath"
	"testing"

	"gifshelf/internal/config"
)

func TestCheckBinaryAndFileRequirements(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Script", Command: present, File: true},
		{Name: "MissingScript", Command: filepath.Join(dir, "nope.py"), File: true},
		{Name: "Unset"},
	}

	results := Check(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}

	if !results[0].Available || results[0].Detail != "" {
		t.Fatalf("present binary: %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("missing binary: %#v", results[1])
	}
	if !results[2].Available {
		t.Fatalf("present script: %#v", results[2])
	}
	if results[3].Available || results[3].Detail == "" {
		t.Fatalf("missing script: %#v", results[3])
	}
	if results[4].Available || results[4].Detail != "not configured" {
		t.Fatalf("unset requirement: %#v", results[4])
	}
}

func TestFileRequirementRejectsDirectory(t *testing.T) {
	dir := t.TempDir()
	results := Check([]Requirement{{Name: "Dir", Command: dir, File: true}})
	if results[0].Available {
		t.Fatal("directory must not satisfy a file requirement")
	}
}

func TestRendererRequirementsFollowConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Renderer.PythonBinary = "python3.12"
	cfg.Renderer.ScriptPath = "/opt/gifshelf/gif-generator.py"

	reqs := RendererRequirements(&cfg)
	if len(reqs) != 2 {
		t.Fatalf("expected 2 requirements, got %d", len(reqs))
	}
	if reqs[0].Command != "python3.12" || reqs[0].File {
		t.Fatalf("python requirement: %#v", reqs[0])
	}
	if reqs[1].Command != "/opt/gifshelf/gif-generator.py" || !reqs[1].File {
		t.Fatalf("script requirement: %#v", reqs[1])
	}
}
