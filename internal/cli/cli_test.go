package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/locforge/locforge/internal/config"
)

func TestVersionVariables(t *testing.T) {
	if Version == "" {
		t.Error("Version should not be empty")
	}
	if Commit == "" {
		t.Error("Commit should not be empty")
	}
	if BuildDate == "" {
		t.Error("BuildDate should not be empty")
	}
}

// captureStdout runs fn with os.Stdout redirected and returns what it
// printed.
func captureStdout(t *testing.T, fn func() error) (string, error) {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	os.Stdout = w
	defer func() { os.Stdout = old }()

	runErr := fn()
	w.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		t.Fatal(err)
	}
	return buf.String(), runErr
}

func TestVersionCommand(t *testing.T) {
	out, err := captureStdout(t, func() error {
		return Run(context.Background(), []string{"locforge", "version"})
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(out, "locforge "+Version) {
		t.Errorf("output = %q", out)
	}
	if !strings.Contains(out, "commit:") {
		t.Errorf("output = %q", out)
	}
}

func TestHelpListsCommands(t *testing.T) {
	out, err := captureStdout(t, func() error {
		return Run(context.Background(), []string{"locforge", "--help"})
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	for _, cmd := range []string{"push", "pull", "resolve", "history", "snapshot", "translate"} {
		if !strings.Contains(out, cmd) {
			t.Errorf("help output missing %q", cmd)
		}
	}
}

func TestInitCommand(t *testing.T) {
	dir := t.TempDir()
	_, err := captureStdout(t, func() error {
		return Run(context.Background(), []string{
			"locforge", "-C", dir, "init", "acme-app",
			"--lang", "de", "--lang", "fr",
		})
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	m, err := config.LoadManifest(dir)
	if err != nil {
		t.Fatalf("LoadManifest() error = %v", err)
	}
	if m.Project != "acme-app" {
		t.Errorf("project = %q", m.Project)
	}
	if len(m.Languages) != 3 {
		t.Errorf("languages = %v, want default plus de and fr", m.Languages)
	}
	if _, err := os.Stat(filepath.Join(dir, "strings.json")); err != nil {
		t.Errorf("default resource file not seeded: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "strings.de.json")); err != nil {
		t.Errorf("de resource file not seeded: %v", err)
	}
}

func TestInitRefusesExistingManifest(t *testing.T) {
	dir := t.TempDir()
	run := func() error {
		_, err := captureStdout(t, func() error {
			return Run(context.Background(), []string{"locforge", "-C", dir, "init", "acme-app"})
		})
		return err
	}
	if err := run(); err != nil {
		t.Fatalf("first init error = %v", err)
	}
	if err := run(); err == nil {
		t.Error("second init should refuse to overwrite the manifest")
	}
}

func TestStatusSkipsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	run := func(args ...string) (string, error) {
		return captureStdout(t, func() error {
			return Run(context.Background(), append([]string{"locforge", "-C", dir}, args...))
		})
	}

	if _, err := run("init", "acme-app", "--lang", "de", "--server", "http://127.0.0.1:1"); err != nil {
		t.Fatalf("init error = %v", err)
	}
	if _, err := run("add", "Welcome", "Hello"); err != nil {
		t.Fatalf("add error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "strings.de.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	// The broken de file drops out of the working set; the default file
	// still reports its pending addition.
	out, err := run("status")
	if err != nil {
		t.Fatalf("status error = %v", err)
	}
	if !strings.Contains(out, "Welcome") {
		t.Errorf("status output = %q, want the healthy file's change listed", out)
	}
}

func TestAddSetRm(t *testing.T) {
	dir := t.TempDir()
	run := func(args ...string) error {
		_, err := captureStdout(t, func() error {
			return Run(context.Background(), append([]string{"locforge", "-C", dir}, args...))
		})
		return err
	}

	if err := run("init", "acme-app"); err != nil {
		t.Fatalf("init error = %v", err)
	}
	if err := run("add", "Welcome", "Hello", "--comment", "greeting"); err != nil {
		t.Fatalf("add error = %v", err)
	}
	if err := run("set", "Welcome", "Hi"); err != nil {
		t.Fatalf("set error = %v", err)
	}

	m, err := config.LoadManifest(dir)
	if err != nil {
		t.Fatal(err)
	}
	files, errs := m.ReadFiles()
	if len(errs) != 0 {
		t.Fatalf("ReadFiles errs = %v", errs)
	}
	entry, ok := files[""].First("Welcome")
	if !ok || entry.Value != "Hi" {
		t.Fatalf("entry = %+v, %v", entry, ok)
	}
	if entry.Comment != "greeting" {
		t.Errorf("set without --comment should keep the comment, got %q", entry.Comment)
	}

	if err := run("rm", "Welcome"); err != nil {
		t.Fatalf("rm error = %v", err)
	}
	files, _ = m.ReadFiles()
	if _, ok := files[""].First("Welcome"); ok {
		t.Error("entry should be removed")
	}
}
