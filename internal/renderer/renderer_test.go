package renderer_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gifshelf/internal/renderer"
	"gifshelf/internal/testsupport"
)

func TestOutputPathConvention(t *testing.T) {
	cases := map[string]string{
		"/up/abc.png":  "/up/abc_1px_scroll.gif",
		"/up/abc.jpeg": "/up/abc_1px_scroll.gif",
		"/up/noext":    "/up/noext_1px_scroll.gif",
	}
	for input, want := range cases {
		if got := renderer.OutputPath(input); got != want {
			t.Fatalf("%s: expected %s, got %s", input, want, got)
		}
	}
}

func TestRenderUsesCommandRunner(t *testing.T) {
	svc := renderer.NewService("python3", "/opt/gif-generator.py")
	var gotName string
	var gotArgs []string
	svc.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		gotName = name
		gotArgs = args
		return nil
	})

	out, err := svc.Render(context.Background(), "/uploads/img.png")
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if out != "/uploads/img_1px_scroll.gif" {
		t.Fatalf("unexpected output path: %q", out)
	}
	if gotName != "python3" || len(gotArgs) != 2 || gotArgs[0] != "/opt/gif-generator.py" {
		t.Fatalf("unexpected invocation: %s %v", gotName, gotArgs)
	}
	if gotArgs[1] != "/uploads/img.png" {
		t.Fatalf("expected absolute source path argument, got %q", gotArgs[1])
	}
}

func TestRenderRunsStubScript(t *testing.T) {
	dir := t.TempDir()
	script := testsupport.WriteStubRenderer(t, dir, 0)

	source := filepath.Join(dir, "img.png")
	if err := os.WriteFile(source, []byte("pixels"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	svc := renderer.NewService("/bin/sh", script)
	out, err := svc.Render(context.Background(), source)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("expected artifact at %s: %v", out, err)
	}
}

func TestRenderSurfacesStderrOnFailure(t *testing.T) {
	dir := t.TempDir()
	script := testsupport.WriteStubRenderer(t, dir, 3)

	source := filepath.Join(dir, "img.png")
	if err := os.WriteFile(source, []byte("pixels"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	svc := renderer.NewService("/bin/sh", script)
	_, err := svc.Render(context.Background(), source)
	if err == nil {
		t.Fatal("expected render failure")
	}
	if !strings.Contains(err.Error(), "stub renderer failed") {
		t.Fatalf("expected stderr diagnostics in error, got %v", err)
	}
}
