package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// WriteStubRenderer writes a shell script that mimics the external GIF
// generator: given a source path it writes "<base>_1px_scroll.gif" beside it
// and exits with the given code. Run it via "/bin/sh <script> <source>".
// A non-zero exit code makes the stub print diagnostics to stderr instead.
func WriteStubRenderer(t testing.TB, dir string, exitCode int) string {
	t.Helper()

	var script string
	if exitCode == 0 {
		script = "#!/bin/sh\nout=\"${1%.*}_1px_scroll.gif\"\nprintf 'GIF89a' > \"$out\"\nexit 0\n"
	} else {
		script = fmt.Sprintf("#!/bin/sh\necho 'stub renderer failed' >&2\nexit %d\n", exitCode)
	}

	path := filepath.Join(dir, "stub-gif-generator.sh")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub renderer: %v", err)
	}
	return path
}
