package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/linkgate-platform/linkgate/internal/semverx"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

const sampleProject = `
[project]
name = "calculator-suite"

[policy]
drain_timeout_ms = 500
telemetry_queue_capacity = 64
allow_experimental_override = true

[[component]]
id = "calculator"
version = "1.2.0"
range_state = "stable"
hot_swap = true
migration_policy = "auto"

[[component]]
id = "scientific"
version = "0.3.0"
range_state = "experimental"

[[dependency]]
consumer = "scientific"
producer = "calculator"
constraint = ">=1.0.0 <2.0.0"

[[dependency]]
consumer = "calculator"
producer = "scientific"
accept_range_states = ["experimental"]
`

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ProjectFileName)
	writeFile(t, path, sampleProject)

	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if m.Project.Name != "calculator-suite" {
		t.Fatalf("unexpected project name %q", m.Project.Name)
	}
	if m.Policy.DrainTimeout() != 500*time.Millisecond {
		t.Fatalf("unexpected drain timeout %s", m.Policy.DrainTimeout())
	}
	if !m.Policy.AllowExperimentalOverride {
		t.Fatal("expected experimental override enabled")
	}

	components, err := m.ComponentSet()
	if err != nil {
		t.Fatalf("ComponentSet: %v", err)
	}
	if len(components) != 2 {
		t.Fatalf("expected 2 components, got %d", len(components))
	}
	if components[0].RangeState != semverx.RangeStable || !components[0].HotSwapEnabled {
		t.Fatalf("calculator decoded wrong: %+v", components[0])
	}
	if components[0].MigrationPolicy != "auto" {
		t.Fatalf("expected migration policy auto, got %q", components[0].MigrationPolicy)
	}

	edges, err := m.EdgeSet()
	if err != nil {
		t.Fatalf("EdgeSet: %v", err)
	}
	if len(edges) != 2 {
		t.Fatalf("expected 2 edges, got %d", len(edges))
	}
	if edges[1].VersionConstraint.String() != "*" {
		t.Fatalf("expected defaulted constraint *, got %q", edges[1].VersionConstraint)
	}
	if !edges[1].Accepts(semverx.RangeExperimental) {
		t.Fatal("expected experimental opt-in on second edge")
	}
}

func TestLoadRejectsBadRangeState(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ProjectFileName)
	writeFile(t, path, `
[[component]]
id = "x"
version = "1.0.0"
range_state = "frozen"
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown range state")
	}
}

func TestLoadRejectsBadVersion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ProjectFileName)
	writeFile(t, path, `
[[component]]
id = "x"
version = "not-a-version"
range_state = "stable"
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed version")
	}
}

func TestDiscoverMergesComponentDirs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ProjectFileName), sampleProject)
	writeFile(t, filepath.Join(dir, "plotting", ComponentFileName), `
[[component]]
id = "plotting"
version = "0.1.0"
range_state = "experimental"
`)
	// A subdirectory without nlink.txt is not a component.
	writeFile(t, filepath.Join(dir, "docs", "README"), "not a component")

	m, err := Discover(dir)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	components, err := m.ComponentSet()
	if err != nil {
		t.Fatalf("ComponentSet: %v", err)
	}
	if len(components) != 3 {
		t.Fatalf("expected 3 components after discovery, got %d", len(components))
	}
}

func TestDiscoverWithoutProjectFile(t *testing.T) {
	if _, err := Discover(t.TempDir()); !errors.Is(err, ErrNoProjectFile) {
		t.Fatalf("expected ErrNoProjectFile, got %v", err)
	}
}
