package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/teakit/teakit/internal/scheduler"
)

// commandAction builds the scheduler action for one shell command. refs names
// the tasks whose output the command references, in the same order as the
// spec's OutputFrom args, so each resolved arg substitutes its $(OUT:ref).
// The task's output is the command's stdout with trailing newlines trimmed.
func commandAction(command string, refs []string, writes []string, locks *pathLocks) scheduler.Action {
	return func(ctx context.Context, m scheduler.Messenger, args []any) (any, error) {
		resolved := command
		for i, ref := range refs {
			if i >= len(args) {
				break
			}
			placeholder := fmt.Sprintf("$(OUT:%s)", ref)
			resolved = strings.ReplaceAll(resolved, placeholder, fmt.Sprintf("%v", args[i]))
		}

		locks.lockAll(writes)
		defer locks.unlockAll(writes)

		m.SendProgress(0.1, resolved)
		return runCommand(ctx, resolved)
	}
}

// runCommand executes a command through the shell, capturing stdout and
// stderr separately so failures carry the diagnostic text.
func runCommand(ctx context.Context, command string) (string, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return "", fmt.Errorf("command failed: %w (stderr: %s)", err, strings.TrimSpace(stderr.String()))
		}
		return "", fmt.Errorf("command failed: %w", err)
	}
	return strings.TrimRight(stdout.String(), "\n"), nil
}
