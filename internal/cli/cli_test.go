package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
)

// executeCommand runs a cobra command with args and returns captured output.
func executeCommand(root *cobra.Command, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "teakit" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "teakit")
	}

	expected := []string{"run", "history", "config"}
	cmdMap := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		cmdMap[cmd.Name()] = true
	}
	for _, name := range expected {
		if !cmdMap[name] {
			t.Errorf("expected subcommand %q not found", name)
		}
	}
}

func TestRunCommand(t *testing.T) {
	tmpDir := t.TempDir()
	pipelinePath := filepath.Join(tmpDir, "pipeline.json")
	contents := `{
		"name": "smoke",
		"tasks": [
			{"id": "a", "command": "echo one"},
			{"id": "b", "command": "echo $(OUT:a) two"}
		]
	}`
	if err := os.WriteFile(pipelinePath, []byte(contents), 0644); err != nil {
		t.Fatalf("writing pipeline: %v", err)
	}

	dbPath := filepath.Join(tmpDir, "history.db")
	_, err := executeCommand(rootCmd, "run", pipelinePath, "--no-tui", "--history", dbPath)
	if err != nil {
		t.Fatalf("run command failed: %v", err)
	}

	// The run must have been archived.
	listOut, err := executeCommand(rootCmd, "history", "--db", dbPath)
	if err != nil {
		t.Fatalf("history command failed: %v", err)
	}
	_ = listOut
}

func TestRunCommandFailureExitsNonZero(t *testing.T) {
	tmpDir := t.TempDir()
	pipelinePath := filepath.Join(tmpDir, "pipeline.json")
	contents := `{"tasks": [{"id": "boom", "command": "exit 1"}]}`
	if err := os.WriteFile(pipelinePath, []byte(contents), 0644); err != nil {
		t.Fatalf("writing pipeline: %v", err)
	}

	dbPath := filepath.Join(tmpDir, "history.db")
	if _, err := executeCommand(rootCmd, "run", pipelinePath, "--no-tui", "--history", dbPath); err == nil {
		t.Fatal("run with a failing task returned nil error")
	}
}

func TestConfigInitCommand(t *testing.T) {
	tmpDir := t.TempDir()
	originalDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getting working directory: %v", err)
	}
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("changing directory: %v", err)
	}
	t.Cleanup(func() { os.Chdir(originalDir) })

	if _, err := executeCommand(rootCmd, "config", "init"); err != nil {
		t.Fatalf("config init failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, ".teakit", "config.json")); err != nil {
		t.Fatalf("config file not written: %v", err)
	}

	// A second init must refuse to overwrite.
	if _, err := executeCommand(rootCmd, "config", "init"); err == nil {
		t.Fatal("config init overwrote an existing file")
	}
}

func TestRunCommandMissingPipeline(t *testing.T) {
	if _, err := executeCommand(rootCmd, "run", filepath.Join(t.TempDir(), "absent.json"), "--no-tui"); err == nil {
		t.Fatal("run on a missing pipeline returned nil error")
	}
}
