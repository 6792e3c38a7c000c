package e2e

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// TestE2ESmoke_ValidateSampleProject builds the linkgate binary and runs it
// against the bundled sample project.
func TestE2ESmoke_ValidateSampleProject(t *testing.T) {
	if os.Getenv("LINKGATE_E2E") == "" {
		t.Skip("set LINKGATE_E2E=1 to run binary smoke test")
	}
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go toolchain not found in PATH")
	}

	repoRoot := findRepoRoot(t)
	bin := filepath.Join(t.TempDir(), "linkgate")

	build := exec.Command("go", "build", "-o", bin, "./cmd/linkgate")
	build.Dir = repoRoot
	if out, err := build.CombinedOutput(); err != nil {
		t.Fatalf("go build failed: %v\n%s", err, out)
	}

	sample := filepath.Join(repoRoot, "examples", "calculator-suite")

	var stdout, stderr bytes.Buffer
	run := exec.Command(bin, "validate", "--project", sample)
	run.Stdout = &stdout
	run.Stderr = &stderr
	err := run.Run()

	// The sample declares an experimental edge without opt-in, so validate
	// exits non-zero; the verdict line must still be printed.
	if err == nil {
		t.Fatalf("expected non-zero exit for sample project\nstdout: %s", stdout.String())
	}
	if !strings.Contains(stdout.String(), "verdict:") {
		t.Fatalf("expected verdict line in output\nstdout: %s\nstderr: %s", stdout.String(), stderr.String())
	}
}

func findRepoRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("go.mod not found above test directory")
		}
		dir = parent
	}
}
