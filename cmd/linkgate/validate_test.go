package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

// newValidateCommand builds a command wired like the real CLI, pointed at a
// project root.
func newValidateCommand(t *testing.T, root string) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	cmd := &cobra.Command{}
	cmd.Flags().String("project", root, "")
	cmd.Flags().Bool("verbose", false, "")
	cmd.Flags().String("out", "", "")
	var out bytes.Buffer
	cmd.SetOut(&out)
	return cmd, &out
}

func writeProject(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "pkg.nlink"), []byte(content), 0o644); err != nil {
		t.Fatalf("write pkg.nlink: %v", err)
	}
	return dir
}

func TestRunValidateBlockingProjectReturnsExitCode(t *testing.T) {
	// Stable consumer on an experimental producer without opt-in blocks the
	// graph; the failure must surface as a returned exit code, not a direct
	// process exit, so deferred teardown runs.
	dir := writeProject(t, `
[project]
name = "blocked"

[[component]]
id = "app"
version = "1.0.0"
range_state = "stable"

[[component]]
id = "plugin"
version = "0.1.0"
range_state = "experimental"

[[dependency]]
consumer = "app"
producer = "plugin"
`)

	cmd, out := newValidateCommand(t, dir)
	err := runValidate(cmd, nil)

	var exit exitError
	if !errors.As(err, &exit) {
		t.Fatalf("expected exitError, got %v", err)
	}
	if exit.code != 2 {
		t.Fatalf("expected exit code 2 for blocking verdict, got %d", exit.code)
	}
	if !strings.Contains(out.String(), "verdict:") {
		t.Fatalf("expected verdict line in output, got:\n%s", out.String())
	}
}

func TestRunValidateCompatibleProjectReturnsNil(t *testing.T) {
	dir := writeProject(t, `
[project]
name = "clean"

[[component]]
id = "app"
version = "1.0.0"
range_state = "stable"

[[component]]
id = "lib"
version = "2.3.0"
range_state = "stable"

[[dependency]]
consumer = "app"
producer = "lib"
constraint = ">=2.0.0 <3.0.0"
`)

	cmd, _ := newValidateCommand(t, dir)
	if err := runValidate(cmd, nil); err != nil {
		t.Fatalf("expected clean project to validate, got %v", err)
	}
}
